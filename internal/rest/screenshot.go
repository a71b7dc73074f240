package rest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/cespare/xxhash"
	"github.com/jrknox1977/fceux/internal/command"
	"github.com/jrknox1977/fceux/internal/nes"
)

type screenshotRequest struct {
	Format string `json:"format"`
}

type screenshotResult struct {
	Success   bool   `json:"success"`
	Format    string `json:"format"`
	Encoding  string `json:"encoding"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Data      string `json:"data"`
	Hash      string `json:"hash"`
	Timestamp string `json:"timestamp"`
}

// handleScreenshot renders the current frame inside a queued command so
// the pixels belong to exactly one frame, then encodes and hashes it.
func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	req := screenshotRequest{Format: "png"}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, badRequestf("invalid request body: %v", err))
		return
	}
	switch req.Format {
	case "png", "jpg", "jpeg":
	case "":
		req.Format = "png"
	default:
		s.writeError(w, badRequestf("unsupported format: %s (png, jpg)", req.Format))
		return
	}
	result, err := command.Submit(s.queue, "screenshot", writeTimeout, func() (screenshotResult, error) {
		if !s.console.Loaded() {
			return screenshotResult{}, nes.ErrNoGame
		}
		img := s.console.Frame()
		var buf bytes.Buffer
		var err error
		switch req.Format {
		case "png":
			err = png.Encode(&buf, img)
		default:
			err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
		}
		if err != nil {
			return screenshotResult{}, fmt.Errorf("encode screenshot: %w", err)
		}
		return screenshotResult{
			Success:   true,
			Format:    req.Format,
			Encoding:  "base64",
			Width:     nes.ScreenWidth,
			Height:    nes.ScreenHeight,
			Data:      base64.StdEncoding.EncodeToString(buf.Bytes()),
			Hash:      fmt.Sprintf("%016x", xxhash.Sum64(buf.Bytes())),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}, nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.mu.Lock()
	s.lastScreenshot = &result
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleScreenshotLast(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	last := s.lastScreenshot
	s.mu.Unlock()
	if last == nil {
		s.writeError(w, &apiError{status: http.StatusNotFound, msg: "no screenshot has been taken yet"})
		return
	}
	s.writeJSON(w, http.StatusOK, last)
}
