package rest

import (
	"net/http"

	"github.com/jrknox1977/fceux/internal/command"
)

type romInfoResult struct {
	Loaded    bool   `json:"loaded"`
	Filename  string `json:"filename,omitempty"`
	Name      string `json:"name,omitempty"`
	Size      int    `json:"size,omitempty"`
	Mapper    int    `json:"mapper"`
	Mirroring string `json:"mirroring,omitempty"`
	Battery   bool   `json:"battery"`
	MD5       string `json:"md5,omitempty"`
}

func (s *Server) handleRomInfo(w http.ResponseWriter, r *http.Request) {
	result, err := command.Submit(s.queue, "rom.info", readTimeout, func() (romInfoResult, error) {
		cart := s.console.Cart()
		if cart == nil {
			return romInfoResult{Loaded: false}, nil
		}
		return romInfoResult{
			Loaded:    true,
			Filename:  cart.Filename,
			Name:      cart.Name,
			Size:      cart.Size(),
			Mapper:    int(cart.Mapper),
			Mirroring: cart.Mirror.String(),
			Battery:   cart.Battery,
			MD5:       cart.MD5,
		}, nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
