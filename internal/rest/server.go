// Package rest exposes the console to HTTP clients. Handlers never
// touch emulator state directly: each request is translated into a
// command pushed onto the console's queue, and the handler blocks on
// the command's one-shot promise with a per-endpoint timeout while the
// console drains the queue once per tick.
package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jrknox1977/fceux/internal/command"
	"github.com/jrknox1977/fceux/internal/nes"
	"github.com/jrknox1977/fceux/pkg/log"
)

// Per-endpoint command timeouts. Reads and input are quick; writes,
// screenshots and save states get more headroom; batches the most.
const (
	readTimeout  = 1 * time.Second
	writeTimeout = 2 * time.Second
	batchTimeout = 5 * time.Second
)

// Server serves the REST API for one console.
type Server struct {
	console *nes.Console
	queue   *command.Queue
	log     log.Logger
	addr    string

	srv *http.Server
	ln  net.Listener
	hub *hub

	cancelBroadcast context.CancelFunc

	mu             sync.Mutex
	lastScreenshot *screenshotResult
}

type ServerOpt func(s *Server)

// WithLogger sets the server logger.
func WithLogger(l log.Logger) ServerOpt {
	return func(s *Server) {
		s.log = l
	}
}

// WithAddr sets the listen address. Defaults to 127.0.0.1:8080; the
// server binds loopback only.
func WithAddr(addr string) ServerOpt {
	return func(s *Server) {
		s.addr = addr
	}
}

// NewServer returns a server for console. Start must be called before
// the server accepts connections.
func NewServer(console *nes.Console, opts ...ServerOpt) *Server {
	s := &Server{
		console: console,
		queue:   console.Queue(),
		log:     log.New(),
		addr:    "127.0.0.1:8080",
		hub:     newHub(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the listen address and begins serving in the background.
// A bind failure (port in use) is reported here, not later.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rest: %w", err)
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelBroadcast = cancel

	go s.hub.run()
	go s.broadcastStatus(ctx)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("rest: server stopped: %v", err)
		}
	}()

	s.log.Infof("rest: listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Stop shuts the server down and cancels every still-queued command so
// no in-flight request is left waiting on an unresolved promise.
func (s *Server) Stop(ctx context.Context) error {
	if s.cancelBroadcast != nil {
		s.cancelBroadcast()
	}
	var err error
	if s.srv != nil {
		err = s.srv.Shutdown(ctx)
	}
	s.hub.close()
	s.queue.Clear()
	return err
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/system/info", s.handleSystemInfo)
	mux.HandleFunc("GET /api/system/ping", s.handleSystemPing)
	mux.HandleFunc("GET /api/system/capabilities", s.handleSystemCapabilities)

	mux.HandleFunc("POST /api/emulation/pause", s.handleEmulationPause)
	mux.HandleFunc("POST /api/emulation/resume", s.handleEmulationResume)
	mux.HandleFunc("GET /api/emulation/status", s.handleEmulationStatus)

	mux.HandleFunc("GET /api/rom/info", s.handleRomInfo)

	mux.HandleFunc("GET /api/memory/{address}", s.handleMemoryRead)
	mux.HandleFunc("GET /api/memory/range/{start}/{length}", s.handleMemoryRangeRead)
	mux.HandleFunc("POST /api/memory/range/{start}", s.handleMemoryRangeWrite)
	mux.HandleFunc("POST /api/memory/batch", s.handleMemoryBatch)

	mux.HandleFunc("GET /api/ppu/memory/{address}", s.handlePPURead)
	mux.HandleFunc("GET /api/ppu/memory/range/{start}/{length}", s.handlePPURangeRead)

	mux.HandleFunc("GET /api/input/status", s.handleInputStatus)
	mux.HandleFunc("POST /api/input/port/{port}/press", s.handleInputPress)
	mux.HandleFunc("POST /api/input/port/{port}/release", s.handleInputRelease)
	mux.HandleFunc("POST /api/input/port/{port}/state", s.handleInputState)

	mux.HandleFunc("POST /api/screenshot", s.handleScreenshot)
	mux.HandleFunc("GET /api/screenshot/last", s.handleScreenshotLast)

	mux.HandleFunc("POST /api/savestate", s.handleSaveState)
	mux.HandleFunc("POST /api/loadstate", s.handleLoadState)
	mux.HandleFunc("GET /api/savestate/list", s.handleSaveStateList)

	mux.HandleFunc("GET /api/events", s.handleEvents)

	mux.HandleFunc("/", s.handleNotFound)

	return mux
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusNotFound, map[string]string{
		"error":  "Not Found",
		"path":   r.URL.Path,
		"method": r.Method,
	})
}
