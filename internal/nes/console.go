// Package nes provides the console side of the REST API core: the
// memory, pause and frame-counter state owned by the single emulation
// goroutine, and the per-tick integration point where queued commands
// are drained and controllers are sampled through the input overlay.
package nes

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/jrknox1977/fceux/internal/command"
	"github.com/jrknox1977/fceux/internal/input"
	"github.com/jrknox1977/fceux/pkg/log"
)

const (
	// ScreenWidth is the width of the rendered frame in pixels.
	ScreenWidth = 256
	// ScreenHeight is the height of the rendered frame in pixels.
	ScreenHeight = 240
	// FramesPerSecond is the NTSC frame rate.
	FramesPerSecond = 60.0988
)

// frameRate as a variable, so the FrameDuration conversion truncates at
// run time instead of being rejected as a fractional constant.
var frameRate = float64(FramesPerSecond)

// FrameDuration is the wall-clock length of one NTSC frame.
var FrameDuration = time.Duration(float64(time.Second) / frameRate)

// ErrNoGame is returned by operations that need a loaded cartridge.
var ErrNoGame = errors.New("no game loaded")

const (
	ramSize     = 0x0800
	sramSize    = 0x2000
	vramSize    = 0x1000
	paletteSize = 32
	chrRAMSize  = 0x2000
)

// Console holds all emulator state written by the tick loop. The state
// lock is held for the whole of a tick; request goroutines never take
// it directly, they submit commands instead. Accessors below that read
// or write console state are meant to be called from inside a queued
// command (or from the tick loop itself), where the lock is already
// held.
type Console struct {
	mu  sync.Mutex
	log log.Logger

	ram     [ramSize]byte
	sram    [sramSize]byte
	vram    [vramSize]byte
	palette [paletteSize]byte
	chrRAM  [chrRAMSize]byte

	cart   *Cartridge
	frame  uint64
	paused bool

	joy  [input.Ports]uint8 // raw controller state as set by the host
	pads [input.Ports]uint8 // effective state after the overlay, as last sampled

	fb [ScreenWidth * ScreenHeight]uint8 // master palette indices

	queue     *command.Queue
	overlay   *input.Overlay
	scheduler *input.Scheduler

	memoryState []byte // in-memory save slot (-1)
}

type Opt func(c *Console)

// WithLogger sets the console logger.
func WithLogger(l log.Logger) Opt {
	return func(c *Console) {
		c.log = l
	}
}

// WithQueueSize overrides the command queue capacity.
func WithQueueSize(n int) Opt {
	return func(c *Console) {
		c.queue = command.NewQueue(n)
	}
}

// New returns a console with an empty cartridge slot and a fresh
// command queue.
func New(opts ...Opt) *Console {
	c := &Console{
		log:   log.New(),
		queue: command.NewQueue(command.DefaultMaxSize),
	}
	c.overlay = input.NewOverlay()
	c.scheduler = input.NewScheduler(c.overlay)
	for i := range c.fb {
		c.fb[i] = 0x0F // black
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Queue returns the console's command queue. Request handlers push
// commands here; only the tick loop pops.
func (c *Console) Queue() *command.Queue {
	return c.queue
}

// Overlay returns the input overlay. Mutate only from a queued command.
func (c *Console) Overlay() *input.Overlay {
	return c.overlay
}

// Scheduler returns the pending-release scheduler. Mutate only from a
// queued command.
func (c *Console) Scheduler() *input.Scheduler {
	return c.scheduler
}

// Insert loads a cartridge into the console.
func (c *Console) Insert(cart *Cartridge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cart = cart
	c.frame = 0
	c.memoryState = nil
}

// Eject removes the cartridge and clears any forced input.
func (c *Console) Eject() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cart = nil
	c.overlay.ClearAll()
	c.scheduler.Clear()
}

// Tick runs one iteration of the emulation loop: drain every queued
// command, advance the release scheduler, then step a frame. The state
// lock is held throughout; the queue's own lock is only taken
// transiently per pop inside Drain.
func (c *Console) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	command.Drain(c.queue, c.log)
	c.scheduler.Tick(c.frame)

	if c.cart == nil || c.paused {
		return
	}
	c.stepFrame()
}

// stepFrame advances the console by one video frame. The CPU/PPU
// pipeline proper lives behind this boundary; what this core owns is
// sampling the controllers through the overlay and advancing the frame
// counter the scheduler keys on.
func (c *Console) stepFrame() {
	for port := 0; port < input.Ports; port++ {
		c.pads[port] = c.overlay.Sample(port, c.joy[port])
	}
	c.frame++
}

// Run ticks the console at the NTSC frame rate until ctx is cancelled.
// On exit the queue is cleared so no submitted command is left with an
// unresolved promise.
func (c *Console) Run(ctx context.Context) {
	t := time.NewTicker(FrameDuration)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			c.queue.Clear()
			return
		case <-t.C:
			c.Tick()
		}
	}
}

// Loaded reports whether a cartridge is inserted.
func (c *Console) Loaded() bool {
	return c.cart != nil
}

// Cart returns the inserted cartridge, or nil.
func (c *Console) Cart() *Cartridge {
	return c.cart
}

// Paused reports the pause flag.
func (c *Console) Paused() bool {
	return c.paused
}

// SetPaused sets the pause flag. A paused console still drains its
// command queue; only frame stepping stops.
func (c *Console) SetPaused(paused bool) {
	c.paused = paused
}

// FrameCount returns the monotonically increasing frame counter. All
// timed input behavior is keyed to this counter, never wall-clock time.
func (c *Console) FrameCount() uint64 {
	return c.frame
}

// FPS returns the console's nominal frame rate.
func (c *Console) FPS() float64 {
	return FramesPerSecond
}

// Controller returns the raw state of a controller port.
func (c *Console) Controller(port int) uint8 {
	if port < 0 || port >= input.Ports {
		return 0
	}
	return c.joy[port]
}

// SetController sets the raw state of a controller port, as a host
// input device would.
func (c *Console) SetController(port int, state uint8) {
	if port < 0 || port >= input.Ports {
		return
	}
	c.joy[port] = state
}

// Pad returns the effective controller state last sampled through the
// overlay, i.e. what the game saw on the most recent frame.
func (c *Console) Pad(port int) uint8 {
	if port < 0 || port >= input.Ports {
		return 0
	}
	return c.pads[port]
}

// ReadByte performs a side-effect free read of the CPU address space.
// Unmapped regions (including the PPU/APU register windows, which a
// debug read must not touch) read as 0.
func (c *Console) ReadByte(addr uint16) uint8 {
	switch {
	case addr < 0x2000:
		return c.ram[addr&0x07FF]
	case addr >= 0x6000 && addr <= 0x7FFF:
		return c.sram[addr-0x6000]
	case addr >= 0x8000:
		if c.cart != nil && len(c.cart.PRG) > 0 {
			return c.cart.PRG[int(addr-0x8000)%len(c.cart.PRG)]
		}
		return 0
	default:
		return 0
	}
}

// WriteByte writes to the CPU address space. Only RAM and SRAM are
// mapped for writing; callers enforce the write-safety policy with
// WriteAllowed before mutating anything.
func (c *Console) WriteByte(addr uint16, value uint8) {
	switch {
	case addr < 0x2000:
		c.ram[addr&0x07FF] = value
	case addr >= 0x6000 && addr <= 0x7FFF:
		c.sram[addr-0x6000] = value
	}
}

// WriteAllowed reports whether [start, start+length) falls entirely
// inside the externally writable address space: main RAM always,
// cartridge SRAM only when the cartridge is battery-backed.
func (c *Console) WriteAllowed(start uint16, length int) bool {
	if length <= 0 {
		return false
	}
	end := int(start) + length
	if end > 0x10000 {
		return false
	}
	last := end - 1
	if last <= 0x07FF {
		return true
	}
	if int(start) >= 0x6000 && last <= 0x7FFF {
		return c.cart != nil && c.cart.Battery
	}
	return false
}

// ReadPPU performs a side-effect free read of the PPU address space
// (0x0000-0x3FFF).
func (c *Console) ReadPPU(addr uint16) uint8 {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		if c.cart != nil && len(c.cart.CHR) > 0 {
			return c.cart.CHR[int(addr)%len(c.cart.CHR)]
		}
		return c.chrRAM[addr]
	case addr < 0x3F00:
		return c.vram[addr&0x0FFF]
	default:
		return c.palette[paletteIndex(addr)]
	}
}

// paletteIndex folds a palette address onto the 32 byte palette RAM,
// honoring the sprite/background mirror of entries 0x10/0x14/0x18/0x1C.
func paletteIndex(addr uint16) uint16 {
	i := addr & 0x1F
	if i >= 0x10 && i%4 == 0 {
		i -= 0x10
	}
	return i
}

// Frame renders the framebuffer's palette indices through the master
// palette into an RGBA image.
func (c *Console) Frame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, ScreenWidth, ScreenHeight))
	for y := 0; y < ScreenHeight; y++ {
		for x := 0; x < ScreenWidth; x++ {
			r, g, b := paletteRGB(c.fb[y*ScreenWidth+x])
			o := img.PixOffset(x, y)
			img.Pix[o] = r
			img.Pix[o+1] = g
			img.Pix[o+2] = b
			img.Pix[o+3] = 0xFF
		}
	}
	return img
}
