package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jrknox1977/fceux/internal/command"
	"github.com/jrknox1977/fceux/internal/nes"
)

// apiError is an error with a fixed HTTP status, raised for validation
// failures detected either at the handler or inside a command.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func badRequestf(format string, args ...interface{}) error {
	return &apiError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

// statusFor maps the error taxonomy onto HTTP statuses: validation and
// unsafe writes 400, no game loaded 503, execution timeout 504, queue
// full and anything unexpected 500.
func statusFor(err error) int {
	var ae *apiError
	switch {
	case errors.As(err, &ae):
		return ae.status
	case errors.Is(err, nes.ErrNoGame):
		return http.StatusServiceUnavailable
	case errors.Is(err, command.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorf("rest: encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
}
