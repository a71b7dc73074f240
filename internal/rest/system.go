package rest

import (
	"net/http"
	"runtime"
	"time"
)

// Version is the emulator core version reported by the API.
const Version = "0.1.0"

// apiVersion is the REST API contract version.
const apiVersion = "1.0.0"

func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":     Version,
		"api_version": apiVersion,
		"go_version":  runtime.Version(),
		"platform":    runtime.GOOS,
		"arch":        runtime.GOARCH,
	})
}

func (s *Server) handleSystemPing(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSystemCapabilities(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"api_version": apiVersion,
		"endpoints": []string{
			"/api/system/info",
			"/api/system/ping",
			"/api/system/capabilities",
			"/api/emulation/pause",
			"/api/emulation/resume",
			"/api/emulation/status",
			"/api/rom/info",
			"/api/memory/{address}",
			"/api/memory/range/{start}/{length}",
			"/api/memory/range/{start}",
			"/api/memory/batch",
			"/api/ppu/memory/{address}",
			"/api/ppu/memory/range/{start}/{length}",
			"/api/input/status",
			"/api/input/port/{port}/press",
			"/api/input/port/{port}/release",
			"/api/input/port/{port}/state",
			"/api/screenshot",
			"/api/screenshot/last",
			"/api/savestate",
			"/api/loadstate",
			"/api/savestate/list",
			"/api/events",
		},
		"features": map[string]bool{
			"memory_read":    true,
			"memory_write":   true,
			"memory_batch":   true,
			"ppu_read":       true,
			"input_overlay":  true,
			"timed_input":    true,
			"screenshots":    true,
			"save_states":    true,
			"events":         true,
			"cheats":         false,
			"movie_playback": false,
		},
	})
}
