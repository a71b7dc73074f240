package rest

import (
	"strconv"
	"strings"
)

// Address parsing for URL path segments. A 0x prefix or any hex letter
// forces hex. Bare digit strings are ambiguous; they are resolved by
// checking which interpretation lands in a valid region, preferring hex
// for round values like "0300" that read naturally as addresses.

func isHexDigits(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func hasHexLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F') {
			return true
		}
	}
	return false
}

func isDecDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// cpuAddressable reports whether a CPU address is in a region the API
// exposes: main RAM or cartridge SRAM.
func cpuAddressable(v uint64) bool {
	return v <= 0x07FF || (v >= 0x6000 && v <= 0x7FFF)
}

// parseCPUAddress parses a CPU address path segment and validates it
// against the exposed regions.
func parseCPUAddress(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, badRequestf("invalid address: empty")
	}

	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") {
		v, err := strconv.ParseUint(lower[2:], 16, 64)
		if err != nil || v > 0xFFFF {
			return 0, badRequestf("invalid address format: %s", s)
		}
		return checkCPURegion(v)
	}

	if !isHexDigits(s) {
		return 0, badRequestf("invalid address format: %s", s)
	}
	if hasHexLetter(s) {
		v, err := strconv.ParseUint(lower, 16, 64)
		if err != nil || v > 0xFFFF {
			return 0, badRequestf("invalid address format: %s", s)
		}
		return checkCPURegion(v)
	}

	// All decimal digits: both readings parse, so pick by validity.
	hexV, _ := strconv.ParseUint(s, 16, 64)
	decV, _ := strconv.ParseUint(s, 10, 64)
	hexOK := hexV <= 0xFFFF && cpuAddressable(hexV)
	decOK := decV <= 0xFFFF && cpuAddressable(decV)
	switch {
	case hexOK && decOK:
		// "0300" or "0700" style round values read as hex RAM
		// addresses; otherwise decimal wins.
		if strings.HasSuffix(s, "00") && hexV <= 0x07FF {
			return uint16(hexV), nil
		}
		return uint16(decV), nil
	case hexOK:
		return uint16(hexV), nil
	case decOK:
		return uint16(decV), nil
	default:
		return checkCPURegion(decV)
	}
}

func checkCPURegion(v uint64) (uint16, error) {
	if !cpuAddressable(v) {
		return 0, badRequestf("address 0x%04x not in valid memory range (RAM: 0x0000-0x07FF, SRAM: 0x6000-0x7FFF)", v)
	}
	return uint16(v), nil
}

// parsePPUAddress parses a PPU address path segment. The PPU space is
// 0x0000-0x3FFF; every address in it is readable.
func parsePPUAddress(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, badRequestf("invalid address: empty")
	}

	lower := strings.ToLower(s)
	var v uint64
	var err error
	switch {
	case strings.HasPrefix(lower, "0x"):
		v, err = strconv.ParseUint(lower[2:], 16, 64)
	case hasHexLetter(s) && isHexDigits(s):
		v, err = strconv.ParseUint(lower, 16, 64)
	case isDecDigits(s):
		// A leading zero or a round "..00" tail reads as hex.
		if strings.HasPrefix(s, "0") || strings.HasSuffix(s, "00") {
			v, err = strconv.ParseUint(s, 16, 64)
		} else {
			v, err = strconv.ParseUint(s, 10, 64)
		}
	default:
		return 0, badRequestf("invalid address format: %s", s)
	}
	if err != nil || v > 0x3FFF {
		return 0, badRequestf("address out of PPU memory range (0x0000-0x3FFF): %s", s)
	}
	return uint16(v), nil
}

// parseLength parses a decimal range length path segment.
func parseLength(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, badRequestf("invalid length: %s", s)
	}
	return n, nil
}
