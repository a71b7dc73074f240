package rest

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/jrknox1977/fceux/internal/command"
	"github.com/jrknox1977/fceux/internal/nes"
)

type savestateRequest struct {
	Slot int    `json:"slot"`
	Data string `json:"data"`
}

type savestateResult struct {
	Success   bool   `json:"success"`
	Slot      int    `json:"slot"`
	Filename  string `json:"filename,omitempty"`
	Timestamp string `json:"timestamp"`
}

func validSlot(slot int) error {
	if slot < nes.MemorySlot || slot > 9 {
		return badRequestf("invalid slot number: %d (must be -1 for memory or 0-9)", slot)
	}
	return nil
}

func (s *Server) handleSaveState(w http.ResponseWriter, r *http.Request) {
	var req savestateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, badRequestf("invalid request body: %v", err))
		return
	}
	if err := validSlot(req.Slot); err != nil {
		s.writeError(w, err)
		return
	}
	result, err := command.Submit(s.queue, "savestate.save", writeTimeout, func() (savestateResult, error) {
		filename, err := s.console.SaveSlot(req.Slot)
		if err != nil {
			return savestateResult{}, err
		}
		return savestateResult{
			Success:   true,
			Slot:      req.Slot,
			Filename:  filename,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}, nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleLoadState restores a slot, or raw uploaded state bytes when the
// request carries a data field.
func (s *Server) handleLoadState(w http.ResponseWriter, r *http.Request) {
	var req savestateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, badRequestf("invalid request body: %v", err))
		return
	}
	var raw []byte
	if req.Data != "" {
		var err error
		raw, err = base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			s.writeError(w, badRequestf("invalid base64 data: %v", err))
			return
		}
	} else if err := validSlot(req.Slot); err != nil {
		s.writeError(w, err)
		return
	}
	result, err := command.Submit(s.queue, "savestate.load", writeTimeout, func() (savestateResult, error) {
		if raw != nil {
			if err := s.console.LoadStateBytes(raw); err != nil {
				return savestateResult{}, err
			}
			return savestateResult{
				Success:   true,
				Slot:      req.Slot,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}, nil
		}
		filename, err := s.console.LoadSlot(req.Slot)
		if err != nil {
			return savestateResult{}, err
		}
		return savestateResult{
			Success:   true,
			Slot:      req.Slot,
			Filename:  filename,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}, nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type savedSlotInfo struct {
	Slot     int    `json:"slot"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size"`
}

type savestateListResult struct {
	States []savedSlotInfo `json:"states"`
}

func (s *Server) handleSaveStateList(w http.ResponseWriter, r *http.Request) {
	result, err := command.Submit(s.queue, "savestate.list", readTimeout, func() (savestateListResult, error) {
		if !s.console.Loaded() {
			return savestateListResult{}, nes.ErrNoGame
		}
		slots := s.console.SavedSlots()
		states := make([]savedSlotInfo, 0, len(slots))
		for _, slot := range slots {
			states = append(states, savedSlotInfo{Slot: slot.Slot, Filename: slot.Filename, Size: slot.Size})
		}
		return savestateListResult{States: states}, nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
