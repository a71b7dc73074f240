package input

// Ports is the number of controller ports on the console.
const Ports = 4

// Overlay forces controller state onto the console without touching the
// underlying device. Each port carries an AND mask (forceOff) and an OR
// mask (forceOn); the effective state sampled by the console is
// (raw & forceOff) | forceOn. The overlay is applied exactly once: the
// masks reset to pass-through after each sample, so a press lasts a
// single frame unless re-armed by the release Scheduler or a new press.
//
// The overlay carries no lock of its own. It is mutated only while the
// console state lock is held, either by a draining command or by the
// per-frame scheduler tick.
type Overlay struct {
	forceOff [Ports]uint8 // AND mask: 1 passes through, 0 forces a button off
	forceOn  [Ports]uint8 // OR mask: 1 forces a button on
}

func NewOverlay() *Overlay {
	o := &Overlay{}
	o.ClearAll()
	return o
}

// SetForced arms mask on port: force on sets bits in the OR mask, force
// off clears bits in the AND mask. Calls before the next sample
// accumulate rather than overwrite.
func (o *Overlay) SetForced(port int, mask uint8, force bool) {
	if port < 0 || port >= Ports {
		return
	}
	if force {
		o.forceOn[port] |= mask
	} else {
		o.forceOff[port] &^= mask
	}
}

// Release clears mask from the port's force-on bits. Clearing bits that
// a sample already reset is a harmless no-op.
func (o *Overlay) Release(port int, mask uint8) {
	if port < 0 || port >= Ports {
		return
	}
	o.forceOn[port] &^= mask
}

// Sample applies the overlay to the raw controller state and resets
// both masks to pass-through. This is the only place the overlay clears
// its own masks.
func (o *Overlay) Sample(port int, raw uint8) uint8 {
	if port < 0 || port >= Ports {
		return raw
	}
	effective := (raw & o.forceOff[port]) | o.forceOn[port]
	o.forceOff[port] = 0xFF
	o.forceOn[port] = 0x00
	return effective
}

// Forced returns the force-on mask currently armed for port.
func (o *Overlay) Forced(port int) uint8 {
	if port < 0 || port >= Ports {
		return 0
	}
	return o.forceOn[port]
}

// Clear resets one port to pass-through.
func (o *Overlay) Clear(port int) {
	if port < 0 || port >= Ports {
		return
	}
	o.forceOff[port] = 0xFF
	o.forceOn[port] = 0x00
}

// ClearAll resets every port to pass-through.
func (o *Overlay) ClearAll() {
	for i := 0; i < Ports; i++ {
		o.Clear(i)
	}
}
