package rest

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/jrknox1977/fceux/internal/command"
	"github.com/jrknox1977/fceux/internal/nes"
)

// ppuRegion classifies a PPU address into its architectural region.
func ppuRegion(addr uint16) string {
	switch {
	case addr < 0x2000:
		return "pattern_table"
	case addr < 0x3000:
		return "nametable"
	case addr < 0x3F00:
		return "nametable_mirror"
	default:
		return "palette"
	}
}

// ppuDescription names the specific table or palette area at addr.
func ppuDescription(addr uint16) string {
	switch {
	case addr < 0x1000:
		return "Pattern Table 0"
	case addr < 0x2000:
		return "Pattern Table 1"
	case addr < 0x2400:
		return "Name Table 0"
	case addr < 0x2800:
		return "Name Table 1"
	case addr < 0x2C00:
		return "Name Table 2"
	case addr < 0x3000:
		return "Name Table 3"
	case addr < 0x3F00:
		return "Name Table Mirror"
	case addr < 0x3F20:
		return "Palette RAM"
	default:
		return "Palette Mirror"
	}
}

type ppuReadResult struct {
	Address     string `json:"address"`
	Value       string `json:"value"`
	Decimal     int    `json:"decimal"`
	Binary      string `json:"binary"`
	Region      string `json:"region"`
	Description string `json:"description"`
}

func (s *Server) handlePPURead(w http.ResponseWriter, r *http.Request) {
	addr, err := parsePPUAddress(r.PathValue("address"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := command.Submit(s.queue, "ppu.read", readTimeout, func() (ppuReadResult, error) {
		if !s.console.Loaded() {
			return ppuReadResult{}, nes.ErrNoGame
		}
		value := s.console.ReadPPU(addr)
		return ppuReadResult{
			Address:     fmt.Sprintf("0x%04x", addr),
			Value:       fmt.Sprintf("0x%02x", value),
			Decimal:     int(value),
			Binary:      fmt.Sprintf("%08b", value),
			Region:      ppuRegion(addr),
			Description: ppuDescription(addr),
		}, nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type ppuRangeResult struct {
	Start    string `json:"start"`
	Length   int    `json:"length"`
	Region   string `json:"region"`
	Data     string `json:"data"`
	Checksum string `json:"checksum"`
}

func (s *Server) handlePPURangeRead(w http.ResponseWriter, r *http.Request) {
	start, err := parsePPUAddress(r.PathValue("start"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	length, err := parseLength(r.PathValue("length"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if length <= 0 {
		s.writeError(w, badRequestf("length must be greater than 0"))
		return
	}
	if length > maxRangeLength {
		s.writeError(w, badRequestf("length exceeds maximum allowed (%d bytes)", maxRangeLength))
		return
	}
	if int(start)+length > 0x4000 {
		s.writeError(w, badRequestf("address range exceeds PPU memory bounds"))
		return
	}
	result, err := command.Submit(s.queue, "ppu.range.read", writeTimeout, func() (ppuRangeResult, error) {
		if !s.console.Loaded() {
			return ppuRangeResult{}, nes.ErrNoGame
		}
		data := make([]byte, length)
		for i := range data {
			data[i] = s.console.ReadPPU(start + uint16(i))
		}
		var checksum uint8
		for _, b := range data {
			checksum ^= b
		}
		return ppuRangeResult{
			Start:    fmt.Sprintf("0x%04x", start),
			Length:   length,
			Region:   ppuRegion(start),
			Data:     base64.StdEncoding.EncodeToString(data),
			Checksum: fmt.Sprintf("0x%02x", checksum),
		}, nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
