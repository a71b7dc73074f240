package nes

import (
	"errors"
	"fmt"
	"os"

	"github.com/jrknox1977/fceux/internal/input"
)

// MemorySlot is the pseudo slot number holding the in-memory save
// state; slots 0-9 are files next to the ROM named <rom>.fc<slot>.
const MemorySlot = -1

const stateVersion = 1

// stateSize is the fixed serialized length of a console state.
const stateSize = 1 + 8 + 1 + input.Ports + ramSize + sramSize + vramSize + paletteSize + chrRAMSize

var errBadState = errors.New("save state data is corrupt or from an incompatible version")

// SaveState serializes the console state. Called from a queued command
// with the state lock held.
func (c *Console) SaveState() *State {
	st := NewState()
	st.Write8(stateVersion)
	st.Write64(c.frame)
	st.WriteBool(c.paused)
	st.WriteData(c.joy[:])
	st.WriteData(c.ram[:])
	st.WriteData(c.sram[:])
	st.WriteData(c.vram[:])
	st.WriteData(c.palette[:])
	st.WriteData(c.chrRAM[:])
	return st
}

// RestoreState loads a previously serialized console state.
func (c *Console) RestoreState(st *State) error {
	if st.Len() < stateSize {
		return errBadState
	}
	if v := st.Read8(); v != stateVersion {
		return fmt.Errorf("%w: version %d", errBadState, v)
	}
	c.frame = st.Read64()
	c.paused = st.ReadBool()
	st.ReadData(c.joy[:])
	st.ReadData(c.ram[:])
	st.ReadData(c.sram[:])
	st.ReadData(c.vram[:])
	st.ReadData(c.palette[:])
	st.ReadData(c.chrRAM[:])
	return nil
}

// slotFilename maps a slot number to its file path for the loaded
// cartridge.
func (c *Console) slotFilename(slot int) string {
	base := "savestate"
	if c.cart != nil && c.cart.Filename != "" {
		base = c.cart.Filename
	}
	return fmt.Sprintf("%s.fc%d", base, slot)
}

// SaveSlot saves the console state to a slot: MemorySlot keeps the
// bytes in memory, slots 0-9 write a file next to the ROM. Returns the
// filename written, empty for the memory slot.
func (c *Console) SaveSlot(slot int) (string, error) {
	if c.cart == nil {
		return "", ErrNoGame
	}
	st := c.SaveState()
	if slot == MemorySlot {
		c.memoryState = st.Bytes()
		return "", nil
	}
	filename := c.slotFilename(slot)
	if err := st.SaveToFile(filename); err != nil {
		return "", fmt.Errorf("save state failed: %w", err)
	}
	return filename, nil
}

// LoadSlot restores the console state from a slot. Returns the filename
// read, empty for the memory slot.
func (c *Console) LoadSlot(slot int) (string, error) {
	if c.cart == nil {
		return "", ErrNoGame
	}
	if slot == MemorySlot {
		if c.memoryState == nil {
			return "", errors.New("no in-memory save state")
		}
		return "", c.RestoreState(StateFromBytes(c.memoryState))
	}
	filename := c.slotFilename(slot)
	raw, err := os.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("load state failed: %w", err)
	}
	return filename, c.RestoreState(StateFromBytes(raw))
}

// LoadStateBytes restores the console state from a raw serialized blob,
// as uploaded by a client.
func (c *Console) LoadStateBytes(raw []byte) error {
	if c.cart == nil {
		return ErrNoGame
	}
	return c.RestoreState(StateFromBytes(raw))
}

// SavedSlot describes one existing save slot.
type SavedSlot struct {
	Slot     int
	Filename string
	Size     int64
}

// SavedSlots lists the save slots that exist for the loaded cartridge,
// including the in-memory slot when populated.
func (c *Console) SavedSlots() []SavedSlot {
	var slots []SavedSlot
	if c.memoryState != nil {
		slots = append(slots, SavedSlot{Slot: MemorySlot, Size: int64(len(c.memoryState))})
	}
	for slot := 0; slot <= 9; slot++ {
		filename := c.slotFilename(slot)
		if info, err := os.Stat(filename); err == nil {
			slots = append(slots, SavedSlot{Slot: slot, Filename: filename, Size: info.Size()})
		}
	}
	return slots
}
