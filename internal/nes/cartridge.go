package nes

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Mirroring describes the nametable arrangement requested by the
// cartridge.
type Mirroring uint8

const (
	MirrorHorizontal Mirroring = iota
	MirrorVertical
	MirrorFourScreen
	MirrorNone
)

func (m Mirroring) String() string {
	switch m {
	case MirrorHorizontal:
		return "horizontal"
	case MirrorVertical:
		return "vertical"
	case MirrorFourScreen:
		return "4screen"
	case MirrorNone:
		return "none"
	}
	return "unknown"
}

const inesHeaderSize = 16

// ErrInvalidROM is returned when the ROM image is not a valid iNES
// file.
var ErrInvalidROM = errors.New("invalid iNES ROM image")

// Cartridge holds a parsed iNES ROM image. PRG is the program ROM
// mapped at 0x8000, CHR the character ROM visible in PPU pattern table
// space (empty when the board uses CHR RAM instead).
type Cartridge struct {
	Filename string
	Name     string
	PRG      []byte
	CHR      []byte
	Mapper   uint8
	Mirror   Mirroring
	Battery  bool
	MD5      string
}

// NewCartridge parses an iNES ROM image. filename is recorded for
// save-state naming and ROM info reporting.
func NewCartridge(rom []byte, filename string) (*Cartridge, error) {
	if len(rom) < inesHeaderSize || string(rom[0:4]) != "NES\x1a" {
		return nil, ErrInvalidROM
	}

	prgSize := int(rom[4]) * 16384
	chrSize := int(rom[5]) * 8192
	flags6 := rom[6]
	flags7 := rom[7]

	offset := inesHeaderSize
	if flags6&0x04 != 0 {
		// skip the 512 byte trainer
		offset += 512
	}

	if len(rom) < offset+prgSize+chrSize {
		return nil, fmt.Errorf("%w: truncated (%d bytes, need %d)", ErrInvalidROM, len(rom), offset+prgSize+chrSize)
	}

	mirror := MirrorHorizontal
	if flags6&0x08 != 0 {
		mirror = MirrorFourScreen
	} else if flags6&0x01 != 0 {
		mirror = MirrorVertical
	}

	sum := md5.Sum(rom)

	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &Cartridge{
		Filename: filename,
		Name:     name,
		PRG:      rom[offset : offset+prgSize],
		CHR:      rom[offset+prgSize : offset+prgSize+chrSize],
		Mapper:   flags6>>4 | flags7&0xF0,
		Mirror:   mirror,
		Battery:  flags6&0x02 != 0,
		MD5:      hex.EncodeToString(sum[:]),
	}, nil
}

// Size returns the combined PRG and CHR ROM size in bytes.
func (c *Cartridge) Size() int {
	return len(c.PRG) + len(c.CHR)
}
