package input

// pendingRelease clears force-on bits when the frame counter reaches
// the target frame.
type pendingRelease struct {
	port  int
	mask  uint8
	frame uint64
}

// Scheduler tracks pending button releases keyed to the console's frame
// counter, so press durations are measured in emulated frames rather
// than wall-clock time and stay correct under fast-forward or pause.
//
// Entries are cleared by bitmask, not by owner: two overlapping presses
// of the same button will both lose the bit when the earlier release
// fires. The scheduler, like the Overlay, is only touched while the
// console state lock is held and needs no lock of its own.
type Scheduler struct {
	overlay *Overlay
	pending []pendingRelease
}

func NewScheduler(overlay *Overlay) *Scheduler {
	return &Scheduler{overlay: overlay}
}

// Schedule registers mask on port for release at releaseFrame.
func (s *Scheduler) Schedule(port int, mask uint8, releaseFrame uint64) {
	if port < 0 || port >= Ports || mask == 0 {
		return
	}
	s.pending = append(s.pending, pendingRelease{port: port, mask: mask, frame: releaseFrame})
}

// Tick runs once per frame. Entries that have reached their release
// frame clear their bits from the port's force-on mask and are dropped;
// entries still pending re-arm their bits so the press survives the
// per-sample overlay reset. A linear scan is fine at this size.
func (s *Scheduler) Tick(currentFrame uint64) {
	if len(s.pending) == 0 {
		return
	}
	kept := s.pending[:0]
	for _, p := range s.pending {
		if currentFrame >= p.frame {
			s.overlay.Release(p.port, p.mask)
		} else {
			s.overlay.SetForced(p.port, p.mask, true)
			kept = append(kept, p)
		}
	}
	s.pending = kept
}

// CancelBits removes mask bits from every pending entry on port, so an
// explicit release is not undone by a later scheduler re-arm. Entries
// left without bits are dropped.
func (s *Scheduler) CancelBits(port int, mask uint8) {
	kept := s.pending[:0]
	for _, p := range s.pending {
		if p.port == port {
			p.mask &^= mask
			if p.mask == 0 {
				continue
			}
		}
		kept = append(kept, p)
	}
	s.pending = kept
}

// Clear drops every pending release.
func (s *Scheduler) Clear() {
	s.pending = s.pending[:0]
}

// Pending reports the number of scheduled releases.
func (s *Scheduler) Pending() int {
	return len(s.pending)
}

// DurationToFrames converts a wall-clock duration in milliseconds to a
// frame count at the console's nominal 60 Hz rate (~16.67 ms/frame),
// rounding up with a minimum of one frame.
func DurationToFrames(ms int) uint64 {
	frames := (ms + 16) / 17
	if frames < 1 {
		frames = 1
	}
	return uint64(frames)
}
