package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jrknox1977/fceux/internal/command"
	"github.com/jrknox1977/fceux/internal/input"
	"github.com/jrknox1977/fceux/internal/nes"
)

// defaultPressMs is the press duration applied when a request omits
// duration_ms: one frame.
const defaultPressMs = 16

// parsePort validates the {port} path segment. The API exposes the two
// standard controller ports as 1 and 2; the returned index is 0-based.
func parsePort(r *http.Request) (int, error) {
	switch r.PathValue("port") {
	case "1":
		return 0, nil
	case "2":
		return 1, nil
	default:
		return 0, badRequestf("invalid port number: %s (must be 1 or 2)", r.PathValue("port"))
	}
}

type inputPortStatus struct {
	Connected bool            `json:"connected"`
	Buttons   map[string]bool `json:"buttons"`
}

type inputStatusResult struct {
	Port1 inputPortStatus `json:"port1"`
	Port2 inputPortStatus `json:"port2"`
}

// handleInputStatus reports the effective controller state the game saw
// on the most recent frame, overlay included.
func (s *Server) handleInputStatus(w http.ResponseWriter, r *http.Request) {
	result, err := command.Submit(s.queue, "input.status", readTimeout, func() (inputStatusResult, error) {
		if !s.console.Loaded() {
			return inputStatusResult{}, nes.ErrNoGame
		}
		return inputStatusResult{
			Port1: inputPortStatus{Connected: true, Buttons: input.ButtonStates(s.console.Pad(0))},
			Port2: inputPortStatus{Connected: true, Buttons: input.ButtonStates(s.console.Pad(1))},
		}, nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type inputPressRequest struct {
	Buttons    []string `json:"buttons"`
	DurationMs int      `json:"duration_ms"`
}

type inputPressResult struct {
	Success        bool     `json:"success"`
	Port           int      `json:"port"`
	ButtonsPressed []string `json:"buttons_pressed"`
	DurationMs     int      `json:"duration_ms"`
}

// handleInputPress forces buttons down and schedules their release a
// number of frames ahead, derived from duration_ms at the nominal frame
// rate. The release is keyed to the frame counter, so it lands on the
// same emulated frame whether the console is running, paused or
// fast-forwarded.
func (s *Server) handleInputPress(w http.ResponseWriter, r *http.Request) {
	port, err := parsePort(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	req := inputPressRequest{DurationMs: defaultPressMs}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, badRequestf("invalid request body: %v", err))
		return
	}
	if len(req.Buttons) == 0 {
		s.writeError(w, badRequestf("missing or empty 'buttons' array"))
		return
	}
	if req.DurationMs < 0 {
		s.writeError(w, badRequestf("duration_ms must not be negative"))
		return
	}
	mask, err := input.ButtonsToMask(req.Buttons)
	if err != nil {
		s.writeError(w, badRequestf("%v", err))
		return
	}
	result, err := command.Submit(s.queue, "input.press", readTimeout, func() (inputPressResult, error) {
		if !s.console.Loaded() {
			return inputPressResult{}, nes.ErrNoGame
		}
		s.console.Overlay().SetForced(port, mask, true)
		frames := input.DurationToFrames(req.DurationMs)
		s.console.Scheduler().Schedule(port, mask, s.console.FrameCount()+frames)
		return inputPressResult{
			Success:        true,
			Port:           port + 1,
			ButtonsPressed: input.MaskToButtons(mask),
			DurationMs:     req.DurationMs,
		}, nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type inputReleaseRequest struct {
	Buttons []string `json:"buttons"`
}

type inputReleaseResult struct {
	Success         bool     `json:"success"`
	Port            int      `json:"port"`
	ButtonsReleased []string `json:"buttons_released"`
}

// handleInputRelease clears forced buttons ahead of their scheduled
// release. An empty or absent body releases everything on the port.
// Matching pending-release bits are cancelled so the scheduler does not
// re-arm what was just released.
func (s *Server) handleInputRelease(w http.ResponseWriter, r *http.Request) {
	port, err := parsePort(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req inputReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, badRequestf("invalid request body: %v", err))
		return
	}
	mask := uint8(0xFF)
	if len(req.Buttons) > 0 {
		mask, err = input.ButtonsToMask(req.Buttons)
		if err != nil {
			s.writeError(w, badRequestf("%v", err))
			return
		}
	}
	result, err := command.Submit(s.queue, "input.release", readTimeout, func() (inputReleaseResult, error) {
		if !s.console.Loaded() {
			return inputReleaseResult{}, nes.ErrNoGame
		}
		s.console.Overlay().Release(port, mask)
		s.console.Scheduler().CancelBits(port, mask)
		return inputReleaseResult{
			Success:         true,
			Port:            port + 1,
			ButtonsReleased: input.MaskToButtons(mask),
		}, nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type inputStateResult struct {
	Success bool            `json:"success"`
	Port    int             `json:"port"`
	State   map[string]bool `json:"state"`
}

// handleInputState sets the full controller state in one shot: buttons
// named true are forced on, every other button is forced off. Any
// pending timed releases on the port are cancelled first.
func (s *Server) handleInputState(w http.ResponseWriter, r *http.Request) {
	port, err := parsePort(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var states map[string]bool
	if err := json.NewDecoder(r.Body).Decode(&states); err != nil {
		s.writeError(w, badRequestf("invalid request body: %v", err))
		return
	}
	if len(states) == 0 {
		s.writeError(w, badRequestf("no button states provided"))
		return
	}
	var press uint8
	for name, pressed := range states {
		m, err := input.ButtonsToMask([]string{name})
		if err != nil {
			s.writeError(w, badRequestf("%v", err))
			return
		}
		if pressed {
			press |= m
		}
	}
	// every button not named as pressed is forced off, so the state is
	// complete and raw host input cannot leak through
	clear := ^press
	result, err := command.Submit(s.queue, "input.state", readTimeout, func() (inputStateResult, error) {
		if !s.console.Loaded() {
			return inputStateResult{}, nes.ErrNoGame
		}
		s.console.Scheduler().CancelBits(port, 0xFF)
		s.console.Overlay().Clear(port)
		if press != 0 {
			s.console.Overlay().SetForced(port, press, true)
		}
		if clear != 0 {
			s.console.Overlay().SetForced(port, clear, false)
		}
		return inputStateResult{
			Success: true,
			Port:    port + 1,
			State:   input.ButtonStates(press),
		}, nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
