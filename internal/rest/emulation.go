package rest

import (
	"net/http"

	"github.com/jrknox1977/fceux/internal/command"
	"github.com/jrknox1977/fceux/internal/nes"
)

type emulationControlResult struct {
	Success bool   `json:"success"`
	State   string `json:"state"`
}

func (s *Server) handleEmulationPause(w http.ResponseWriter, r *http.Request) {
	result, err := command.Submit(s.queue, "emulation.pause", writeTimeout, func() (emulationControlResult, error) {
		if !s.console.Loaded() {
			return emulationControlResult{}, nes.ErrNoGame
		}
		s.console.SetPaused(true)
		return emulationControlResult{Success: true, State: "paused"}, nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEmulationResume(w http.ResponseWriter, r *http.Request) {
	result, err := command.Submit(s.queue, "emulation.resume", writeTimeout, func() (emulationControlResult, error) {
		if !s.console.Loaded() {
			return emulationControlResult{}, nes.ErrNoGame
		}
		s.console.SetPaused(false)
		return emulationControlResult{Success: true, State: "resumed"}, nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type emulationStatusResult struct {
	Running    bool    `json:"running"`
	Paused     bool    `json:"paused"`
	ROMLoaded  bool    `json:"rom_loaded"`
	FPS        float64 `json:"fps"`
	FrameCount uint64  `json:"frame_count"`
}

// emulationStatus snapshots the console state through the queue. Shared
// by the status endpoint and the event broadcaster.
func (s *Server) emulationStatus() (emulationStatusResult, error) {
	return command.Submit(s.queue, "emulation.status", readTimeout, func() (emulationStatusResult, error) {
		loaded := s.console.Loaded()
		return emulationStatusResult{
			Running:    loaded && !s.console.Paused(),
			Paused:     s.console.Paused(),
			ROMLoaded:  loaded,
			FPS:        s.console.FPS(),
			FrameCount: s.console.FrameCount(),
		}, nil
	})
}

func (s *Server) handleEmulationStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.emulationStatus()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
