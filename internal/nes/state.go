package nes

import "os"

// State is a flat byte serialization of console state, used to save and
// load states between runs and to carry in-memory save slots.
type State struct {
	raw           []byte // raw state data (for serialization)
	readPosition  int    // current read position
	writePosition int    // current write position
}

// NewState creates a new empty state.
func NewState() *State {
	return &State{
		raw: make([]byte, 0),
	}
}

// StateFromBytes creates a new state from the given bytes.
func StateFromBytes(raw []byte) *State {
	return &State{
		raw: raw,
	}
}

func (s *State) Write8(value uint8) {
	s.raw = append(s.raw, value)
	s.writePosition++
}

func (s *State) Write64(value uint64) {
	s.raw = append(s.raw,
		byte(value), byte(value>>8), byte(value>>16), byte(value>>24),
		byte(value>>32), byte(value>>40), byte(value>>48), byte(value>>56))
	s.writePosition += 8
}

func (s *State) WriteBool(value bool) {
	if value {
		s.raw = append(s.raw, 1)
	} else {
		s.raw = append(s.raw, 0)
	}
	s.writePosition++
}

func (s *State) WriteData(data []byte) {
	s.raw = append(s.raw, data...)
	s.writePosition += len(data)
}

func (s *State) Read8() uint8 {
	value := s.raw[s.readPosition]
	s.readPosition++
	return value
}

func (s *State) Read64() uint64 {
	var value uint64
	for i := 0; i < 8; i++ {
		value |= uint64(s.raw[s.readPosition+i]) << (8 * i)
	}
	s.readPosition += 8
	return value
}

func (s *State) ReadBool() bool {
	value := s.raw[s.readPosition] != 0
	s.readPosition++
	return value
}

func (s *State) ReadData(p []byte) {
	copy(p, s.raw[s.readPosition:])
	s.readPosition += len(p)
}

// Len returns the number of serialized bytes.
func (s *State) Len() int {
	return len(s.raw)
}

func (s *State) SaveToFile(filename string) error {
	return os.WriteFile(filename, s.raw, 0644)
}

func (s *State) Bytes() []byte {
	return s.raw
}
