package rest

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jrknox1977/fceux/internal/command"
	"github.com/jrknox1977/fceux/internal/nes"
)

const (
	// maxRangeLength caps a single range read or write.
	maxRangeLength = 4096
	// maxBatchOps caps the operations in one batch request.
	maxBatchOps = 100
	// hexPreviewBytes is how much of a range read appears in the hex
	// preview field before truncation.
	hexPreviewBytes = 64
)

type memoryReadResult struct {
	Address string `json:"address"`
	Value   string `json:"value"`
	Decimal int    `json:"decimal"`
	Binary  string `json:"binary"`
}

func (s *Server) handleMemoryRead(w http.ResponseWriter, r *http.Request) {
	addr, err := parseCPUAddress(r.PathValue("address"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := command.Submit(s.queue, "memory.read", readTimeout, func() (memoryReadResult, error) {
		if !s.console.Loaded() {
			return memoryReadResult{}, nes.ErrNoGame
		}
		return readResult(addr, s.console.ReadByte(addr)), nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func readResult(addr uint16, value uint8) memoryReadResult {
	return memoryReadResult{
		Address: fmt.Sprintf("0x%04x", addr),
		Value:   fmt.Sprintf("0x%02x", value),
		Decimal: int(value),
		Binary:  fmt.Sprintf("%08b", value),
	}
}

// validateRange checks a range's length and that it stays inside the
// 64K address space.
func validateRange(start uint16, length int) error {
	if length <= 0 {
		return badRequestf("length must be greater than 0")
	}
	if length > maxRangeLength {
		return badRequestf("length exceeds maximum allowed (%d bytes)", maxRangeLength)
	}
	if int(start)+length > 0x10000 {
		return badRequestf("address range exceeds memory bounds")
	}
	return nil
}

type memoryRangeResult struct {
	Start    string `json:"start"`
	Length   int    `json:"length"`
	Data     string `json:"data"`
	Hex      string `json:"hex"`
	Checksum string `json:"checksum"`
}

func rangeResult(start uint16, data []byte) memoryRangeResult {
	preview := data
	truncated := false
	if len(preview) > hexPreviewBytes {
		preview = preview[:hexPreviewBytes]
		truncated = true
	}
	h := hex.EncodeToString(preview)
	if truncated {
		h += "..."
	}
	var checksum uint8
	for _, b := range data {
		checksum ^= b
	}
	return memoryRangeResult{
		Start:    fmt.Sprintf("0x%04x", start),
		Length:   len(data),
		Data:     base64.StdEncoding.EncodeToString(data),
		Hex:      h,
		Checksum: fmt.Sprintf("0x%02x", checksum),
	}
}

func (s *Server) handleMemoryRangeRead(w http.ResponseWriter, r *http.Request) {
	start, err := parseCPUAddress(r.PathValue("start"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	length, err := parseLength(r.PathValue("length"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := validateRange(start, length); err != nil {
		s.writeError(w, err)
		return
	}
	result, err := command.Submit(s.queue, "memory.range.read", writeTimeout, func() (memoryRangeResult, error) {
		if !s.console.Loaded() {
			return memoryRangeResult{}, nes.ErrNoGame
		}
		data := make([]byte, length)
		for i := range data {
			data[i] = s.console.ReadByte(start + uint16(i))
		}
		return rangeResult(start, data), nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type memoryWriteRequest struct {
	Data string `json:"data"`
}

type memoryWriteResult struct {
	Success      bool   `json:"success"`
	Start        string `json:"start"`
	BytesWritten int    `json:"bytes_written"`
}

func (s *Server) handleMemoryRangeWrite(w http.ResponseWriter, r *http.Request) {
	start, err := parseCPUAddress(r.PathValue("start"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req memoryWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, badRequestf("invalid request body: %v", err))
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		s.writeError(w, badRequestf("invalid base64 data: %v", err))
		return
	}
	if len(data) == 0 {
		s.writeError(w, badRequestf("no data to write"))
		return
	}
	if err := validateRange(start, len(data)); err != nil {
		s.writeError(w, err)
		return
	}
	result, err := command.Submit(s.queue, "memory.range.write", writeTimeout, func() (memoryWriteResult, error) {
		if !s.console.Loaded() {
			return memoryWriteResult{}, nes.ErrNoGame
		}
		// All-or-nothing: refuse the whole range before touching any
		// byte of it.
		if !s.console.WriteAllowed(start, len(data)) {
			return memoryWriteResult{}, badRequestf("memory range 0x%04x-0x%04x is not safe to write", start, int(start)+len(data)-1)
		}
		for i, b := range data {
			s.console.WriteByte(start+uint16(i), b)
		}
		return memoryWriteResult{
			Success:      true,
			Start:        fmt.Sprintf("0x%04x", start),
			BytesWritten: len(data),
		}, nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type batchOp struct {
	Type    string `json:"type"`
	Address string `json:"address"`
	Length  int    `json:"length"`
	Data    string `json:"data"`
}

type batchOpResult struct {
	Type         string `json:"type"`
	Address      string `json:"address"`
	Success      bool   `json:"success"`
	Data         string `json:"data,omitempty"`
	BytesWritten int    `json:"bytes_written,omitempty"`
	Error        string `json:"error,omitempty"`
}

type batchRequest struct {
	Operations []batchOp `json:"operations"`
}

type batchResult struct {
	Results []batchOpResult `json:"results"`
}

// handleMemoryBatch runs up to maxBatchOps reads and writes inside one
// queued command, so the whole batch sees a single consistent memory
// snapshot. Failures are isolated per operation: a bad address in one
// entry fails that entry's result, not the request.
func (s *Server) handleMemoryBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, badRequestf("invalid request body: %v", err))
		return
	}
	if len(req.Operations) == 0 {
		s.writeError(w, badRequestf("no operations provided"))
		return
	}
	if len(req.Operations) > maxBatchOps {
		s.writeError(w, badRequestf("too many operations (maximum %d)", maxBatchOps))
		return
	}
	result, err := command.Submit(s.queue, "memory.batch", batchTimeout, func() (batchResult, error) {
		if !s.console.Loaded() {
			return batchResult{}, nes.ErrNoGame
		}
		results := make([]batchOpResult, 0, len(req.Operations))
		for _, op := range req.Operations {
			results = append(results, s.executeBatchOp(op))
		}
		return batchResult{Results: results}, nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) executeBatchOp(op batchOp) batchOpResult {
	fail := func(err error) batchOpResult {
		return batchOpResult{Type: op.Type, Address: op.Address, Error: err.Error()}
	}
	switch op.Type {
	case "read":
		addr, err := parseCPUAddress(op.Address)
		if err != nil {
			return fail(err)
		}
		length := op.Length
		if length == 0 {
			length = 1
		}
		if err := validateRange(addr, length); err != nil {
			return fail(err)
		}
		data := make([]byte, length)
		for i := range data {
			data[i] = s.console.ReadByte(addr + uint16(i))
		}
		return batchOpResult{
			Type:    op.Type,
			Address: fmt.Sprintf("0x%04x", addr),
			Success: true,
			Data:    base64.StdEncoding.EncodeToString(data),
		}
	case "write":
		addr, err := parseCPUAddress(op.Address)
		if err != nil {
			return fail(err)
		}
		data, err := base64.StdEncoding.DecodeString(op.Data)
		if err != nil {
			return fail(badRequestf("invalid base64 data: %v", err))
		}
		if len(data) == 0 {
			return fail(badRequestf("no data to write"))
		}
		if err := validateRange(addr, len(data)); err != nil {
			return fail(err)
		}
		if !s.console.WriteAllowed(addr, len(data)) {
			return fail(badRequestf("memory range 0x%04x-0x%04x is not safe to write", addr, int(addr)+len(data)-1))
		}
		for i, b := range data {
			s.console.WriteByte(addr+uint16(i), b)
		}
		return batchOpResult{
			Type:         op.Type,
			Address:      fmt.Sprintf("0x%04x", addr),
			Success:      true,
			BytesWritten: len(data),
		}
	default:
		return fail(badRequestf("unknown operation type: %s", op.Type))
	}
}
