package rest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jrknox1977/fceux/internal/input"
	"github.com/jrknox1977/fceux/internal/nes"
	"github.com/jrknox1977/fceux/pkg/log"
)

// testROM builds a minimal iNES image: one 16K PRG bank, no CHR.
func testROM(flags6 uint8) []byte {
	rom := make([]byte, 16+16384)
	copy(rom, "NES\x1a")
	rom[4] = 1
	rom[6] = flags6
	return rom
}

// newTestServer spins up a console with a background tick loop and an
// httptest server in front of the API routes.
func newTestServer(t *testing.T, withCart bool, flags6 uint8) (*Server, *httptest.Server) {
	t.Helper()
	console := nes.New(nes.WithLogger(log.NewNullLogger()))
	if withCart {
		cart, err := nes.NewCartridge(testROM(flags6), filepath.Join(t.TempDir(), "game.nes"))
		if err != nil {
			t.Fatalf("building test cartridge: %v", err)
		}
		console.Insert(cart)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				console.Queue().Clear()
				return
			case <-ticker.C:
				console.Tick()
			}
		}
	}()

	s := NewServer(console, WithLogger(log.NewNullLogger()))
	go s.hub.run()
	t.Cleanup(s.hub.close)
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, ts *httptest.Server, path string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("GET %s: decoding body: %v", path, err)
	}
	return resp.StatusCode, body
}

func postJSON(t *testing.T, ts *httptest.Server, path string, req interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if req != nil {
		if err := json.NewEncoder(&buf).Encode(req); err != nil {
			t.Fatalf("POST %s: encoding request: %v", path, err)
		}
	}
	resp, err := http.Post(ts.URL+path, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("POST %s: decoding body: %v", path, err)
	}
	return resp.StatusCode, body
}

func TestMemoryReadNoGame(t *testing.T) {
	_, ts := newTestServer(t, false, 0)
	status, body := getJSON(t, ts, "/api/memory/0x0300")
	if status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d (%v)", status, body)
	}
	if body["error"] == "" {
		t.Fatal("expected an error body")
	}
}

func TestMemoryWriteThenRead(t *testing.T) {
	_, ts := newTestServer(t, true, 0)

	status, body := postJSON(t, ts, "/api/memory/range/0x0300", map[string]string{
		"data": base64.StdEncoding.EncodeToString([]byte{42}),
	})
	if status != http.StatusOK {
		t.Fatalf("write: expected 200, got %d (%v)", status, body)
	}
	if body["success"] != true || body["bytes_written"] != float64(1) {
		t.Fatalf("unexpected write result: %v", body)
	}

	status, body = getJSON(t, ts, "/api/memory/0x0300")
	if status != http.StatusOK {
		t.Fatalf("read: expected 200, got %d (%v)", status, body)
	}
	if body["address"] != "0x0300" || body["value"] != "0x2a" {
		t.Fatalf("unexpected read result: %v", body)
	}
	if body["decimal"] != float64(42) || body["binary"] != "00101010" {
		t.Fatalf("unexpected read result: %v", body)
	}
}

func TestMemoryRangeRead(t *testing.T) {
	_, ts := newTestServer(t, true, 0)
	payload := []byte{0x11, 0x22, 0x33}
	postJSON(t, ts, "/api/memory/range/0x0300", map[string]string{
		"data": base64.StdEncoding.EncodeToString(payload),
	})

	status, body := getJSON(t, ts, "/api/memory/range/0x0300/3")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	data, err := base64.StdEncoding.DecodeString(body["data"].(string))
	if err != nil {
		t.Fatalf("decoding data field: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("expected %x, got %x", payload, data)
	}
	// checksum is the xor of all bytes
	if body["checksum"] != "0x00" {
		t.Fatalf("expected checksum 0x00, got %v", body["checksum"])
	}
	if body["hex"] != "112233" {
		t.Fatalf("expected hex preview 112233, got %v", body["hex"])
	}
}

func TestMemoryRangeValidation(t *testing.T) {
	_, ts := newTestServer(t, true, 0)

	if status, _ := getJSON(t, ts, "/api/memory/range/0x0000/0"); status != http.StatusBadRequest {
		t.Fatalf("length 0: expected 400, got %d", status)
	}
	if status, _ := getJSON(t, ts, "/api/memory/range/0x0000/4097"); status != http.StatusBadRequest {
		t.Fatalf("length 4097: expected 400, got %d", status)
	}
	if status, _ := getJSON(t, ts, "/api/memory/range/0x0000/4096"); status != http.StatusOK {
		t.Fatalf("length 4096: expected 200, got %d", status)
	}
	if status, _ := getJSON(t, ts, "/api/memory/range/0x0000/bogus"); status != http.StatusBadRequest {
		t.Fatalf("bad length: expected 400, got %d", status)
	}
}

func TestMemoryWriteUnsafe(t *testing.T) {
	// no battery, so SRAM is not writable
	_, ts := newTestServer(t, true, 0)
	status, body := postJSON(t, ts, "/api/memory/range/0x6000", map[string]string{
		"data": base64.StdEncoding.EncodeToString([]byte{1}),
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%v)", status, body)
	}
	if !strings.Contains(body["error"].(string), "not safe") {
		t.Fatalf("unexpected error: %v", body["error"])
	}
}

func TestMemoryWriteSRAMWithBattery(t *testing.T) {
	_, ts := newTestServer(t, true, 0x02)
	status, body := postJSON(t, ts, "/api/memory/range/0x6000", map[string]string{
		"data": base64.StdEncoding.EncodeToString([]byte{0xAA}),
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	if _, body = getJSON(t, ts, "/api/memory/0x6000"); body["value"] != "0xaa" {
		t.Fatalf("sram write not visible: %v", body)
	}
}

func TestMemoryBatchIsolation(t *testing.T) {
	_, ts := newTestServer(t, true, 0)
	status, body := postJSON(t, ts, "/api/memory/batch", map[string]interface{}{
		"operations": []map[string]interface{}{
			{"type": "read", "address": "0x0300", "length": 2},
			{"type": "read", "address": "0x5000", "length": 1},
			{"type": "write", "address": "0x0200", "data": base64.StdEncoding.EncodeToString([]byte{7})},
		},
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	results := body["results"].([]interface{})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	first := results[0].(map[string]interface{})
	second := results[1].(map[string]interface{})
	third := results[2].(map[string]interface{})
	if first["success"] != true {
		t.Fatalf("first op should succeed: %v", first)
	}
	if second["success"] == true || second["error"] == nil {
		t.Fatalf("second op should fail with an error: %v", second)
	}
	if third["success"] != true || third["bytes_written"] != float64(1) {
		t.Fatalf("third op should succeed: %v", third)
	}
}

func TestMemoryBatchLimits(t *testing.T) {
	_, ts := newTestServer(t, true, 0)

	status, _ := postJSON(t, ts, "/api/memory/batch", map[string]interface{}{
		"operations": []map[string]interface{}{},
	})
	if status != http.StatusBadRequest {
		t.Fatalf("empty batch: expected 400, got %d", status)
	}

	ops := make([]map[string]interface{}, 101)
	for i := range ops {
		ops[i] = map[string]interface{}{"type": "read", "address": "0x0000", "length": 1}
	}
	status, _ = postJSON(t, ts, "/api/memory/batch", map[string]interface{}{"operations": ops})
	if status != http.StatusBadRequest {
		t.Fatalf("oversize batch: expected 400, got %d", status)
	}
}

func TestPPURead(t *testing.T) {
	_, ts := newTestServer(t, true, 0)
	status, body := getJSON(t, ts, "/api/ppu/memory/0x3F00")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	if body["region"] != "palette" || body["description"] != "Palette RAM" {
		t.Fatalf("expected palette region, got %v / %v", body["region"], body["description"])
	}

	if status, _ = getJSON(t, ts, "/api/ppu/memory/0x4000"); status != http.StatusBadRequest {
		t.Fatalf("out of range: expected 400, got %d", status)
	}

	status, body = getJSON(t, ts, "/api/ppu/memory/range/0x2000/16")
	if status != http.StatusOK {
		t.Fatalf("range: expected 200, got %d (%v)", status, body)
	}
	if body["region"] != "nametable" {
		t.Fatalf("expected nametable region, got %v", body["region"])
	}
}

func TestInputPress(t *testing.T) {
	_, ts := newTestServer(t, true, 0)
	status, body := postJSON(t, ts, "/api/input/port/1/press", map[string]interface{}{
		"buttons":     []string{"A", "Start"},
		"duration_ms": 100,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	if body["success"] != true || body["port"] != float64(1) {
		t.Fatalf("unexpected result: %v", body)
	}
	pressed := body["buttons_pressed"].([]interface{})
	if len(pressed) != 2 || pressed[0] != "A" || pressed[1] != "Start" {
		t.Fatalf("unexpected buttons_pressed: %v", pressed)
	}
	if body["duration_ms"] != float64(100) {
		t.Fatalf("unexpected duration: %v", body["duration_ms"])
	}
}

func TestInputValidation(t *testing.T) {
	_, ts := newTestServer(t, true, 0)

	status, _ := postJSON(t, ts, "/api/input/port/3/press", map[string]interface{}{
		"buttons": []string{"A"},
	})
	if status != http.StatusBadRequest {
		t.Fatalf("invalid port: expected 400, got %d", status)
	}

	status, _ = postJSON(t, ts, "/api/input/port/1/press", map[string]interface{}{
		"buttons": []string{"Turbo"},
	})
	if status != http.StatusBadRequest {
		t.Fatalf("invalid button: expected 400, got %d", status)
	}

	status, _ = postJSON(t, ts, "/api/input/port/1/press", map[string]interface{}{
		"buttons": []string{},
	})
	if status != http.StatusBadRequest {
		t.Fatalf("empty buttons: expected 400, got %d", status)
	}
}

func TestInputReleaseAndState(t *testing.T) {
	_, ts := newTestServer(t, true, 0)

	postJSON(t, ts, "/api/input/port/1/press", map[string]interface{}{
		"buttons":     []string{"A", "B"},
		"duration_ms": 5000,
	})

	status, body := postJSON(t, ts, "/api/input/port/1/release", map[string]interface{}{
		"buttons": []string{"B"},
	})
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("release failed: %d %v", status, body)
	}

	status, body = postJSON(t, ts, "/api/input/port/1/state", map[string]bool{
		"Up":    true,
		"Start": false,
	})
	if status != http.StatusOK {
		t.Fatalf("state failed: %d %v", status, body)
	}
	state := body["state"].(map[string]interface{})
	if state["Up"] != true || state["A"] != false {
		t.Fatalf("unexpected state: %v", state)
	}

	status, _ = postJSON(t, ts, "/api/input/port/1/state", map[string]bool{"Warp": true})
	if status != http.StatusBadRequest {
		t.Fatalf("invalid state button: expected 400, got %d", status)
	}
}

func TestInputStateOverridesRawInput(t *testing.T) {
	// manually ticked console, so the one-frame forced state is observable
	console := nes.New(nes.WithLogger(log.NewNullLogger()))
	cart, err := nes.NewCartridge(testROM(0), "game.nes")
	if err != nil {
		t.Fatalf("building test cartridge: %v", err)
	}
	console.Insert(cart)
	console.SetController(0, input.ButtonA) // raw A held by the host

	s := NewServer(console, WithLogger(log.NewNullLogger()))
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)

	done := make(chan error, 1)
	go func() {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(map[string]bool{"B": true}); err != nil {
			done <- err
			return
		}
		resp, err := http.Post(ts.URL+"/api/input/port/1/state", "application/json", &buf)
		if err == nil {
			resp.Body.Close()
		}
		done <- err
	}()
	for console.Queue().Empty() {
		time.Sleep(time.Millisecond)
	}
	console.Tick()
	if err := <-done; err != nil {
		t.Fatalf("posting state: %v", err)
	}

	// buttons not named in the state are forced off, so the held A must
	// not leak into the sampled pad
	if got := console.Pad(0); got != input.ButtonB {
		t.Fatalf("expected only B forced, got 0x%02x", got)
	}
}

func TestInputStatusNoGame(t *testing.T) {
	_, ts := newTestServer(t, false, 0)
	if status, _ := getJSON(t, ts, "/api/input/status"); status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", status)
	}
}

func TestEmulationPauseResume(t *testing.T) {
	_, ts := newTestServer(t, true, 0)

	status, body := postJSON(t, ts, "/api/emulation/pause", nil)
	if status != http.StatusOK || body["state"] != "paused" {
		t.Fatalf("pause: %d %v", status, body)
	}

	status, body = getJSON(t, ts, "/api/emulation/status")
	if status != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", status)
	}
	if body["paused"] != true || body["running"] != false || body["rom_loaded"] != true {
		t.Fatalf("unexpected status: %v", body)
	}

	status, body = postJSON(t, ts, "/api/emulation/resume", nil)
	if status != http.StatusOK || body["state"] != "resumed" {
		t.Fatalf("resume: %d %v", status, body)
	}

	status, body = getJSON(t, ts, "/api/emulation/status")
	if status != http.StatusOK || body["paused"] != false {
		t.Fatalf("status after resume: %d %v", status, body)
	}
}

func TestEmulationControlNoGame(t *testing.T) {
	_, ts := newTestServer(t, false, 0)
	if status, _ := postJSON(t, ts, "/api/emulation/pause", nil); status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", status)
	}
	// status still answers without a game
	status, body := getJSON(t, ts, "/api/emulation/status")
	if status != http.StatusOK || body["rom_loaded"] != false {
		t.Fatalf("status without game: %d %v", status, body)
	}
}

func TestRomInfo(t *testing.T) {
	_, ts := newTestServer(t, true, 0x02)
	status, body := getJSON(t, ts, "/api/rom/info")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["loaded"] != true || body["name"] != "game" {
		t.Fatalf("unexpected rom info: %v", body)
	}
	if body["battery"] != true || body["mapper"] != float64(0) {
		t.Fatalf("unexpected rom info: %v", body)
	}

	_, ts = newTestServer(t, false, 0)
	status, body = getJSON(t, ts, "/api/rom/info")
	if status != http.StatusOK || body["loaded"] != false {
		t.Fatalf("no game rom info: %d %v", status, body)
	}
}

func TestSaveLoadState(t *testing.T) {
	_, ts := newTestServer(t, true, 0)

	postJSON(t, ts, "/api/memory/range/0x0300", map[string]string{
		"data": base64.StdEncoding.EncodeToString([]byte{0x42}),
	})
	status, body := postJSON(t, ts, "/api/savestate", map[string]int{"slot": -1})
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("save: %d %v", status, body)
	}

	postJSON(t, ts, "/api/memory/range/0x0300", map[string]string{
		"data": base64.StdEncoding.EncodeToString([]byte{0x13}),
	})
	status, body = postJSON(t, ts, "/api/loadstate", map[string]int{"slot": -1})
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("load: %d %v", status, body)
	}

	_, body = getJSON(t, ts, "/api/memory/0x0300")
	if body["value"] != "0x42" {
		t.Fatalf("state not restored: %v", body)
	}

	status, body = getJSON(t, ts, "/api/savestate/list")
	if status != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", status)
	}
	states := body["states"].([]interface{})
	if len(states) != 1 || states[0].(map[string]interface{})["slot"] != float64(-1) {
		t.Fatalf("unexpected state list: %v", states)
	}
}

func TestSaveStateInvalidSlot(t *testing.T) {
	_, ts := newTestServer(t, true, 0)
	if status, _ := postJSON(t, ts, "/api/savestate", map[string]int{"slot": 10}); status != http.StatusBadRequest {
		t.Fatalf("slot 10: expected 400, got %d", status)
	}
	if status, _ := postJSON(t, ts, "/api/savestate", map[string]int{"slot": -2}); status != http.StatusBadRequest {
		t.Fatalf("slot -2: expected 400, got %d", status)
	}
}

func TestScreenshot(t *testing.T) {
	_, ts := newTestServer(t, true, 0)

	status, body := postJSON(t, ts, "/api/screenshot", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	if body["format"] != "png" || body["width"] != float64(256) || body["height"] != float64(240) {
		t.Fatalf("unexpected screenshot metadata: %v", body)
	}
	data, err := base64.StdEncoding.DecodeString(body["data"].(string))
	if err != nil {
		t.Fatalf("decoding screenshot: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Fatal("screenshot data is not a png")
	}
	if len(body["hash"].(string)) != 16 {
		t.Fatalf("unexpected hash: %v", body["hash"])
	}

	status, last := getJSON(t, ts, "/api/screenshot/last")
	if status != http.StatusOK || last["hash"] != body["hash"] {
		t.Fatalf("last screenshot mismatch: %d %v", status, last)
	}

	status, _ = postJSON(t, ts, "/api/screenshot", map[string]string{"format": "bmp"})
	if status != http.StatusBadRequest {
		t.Fatalf("bad format: expected 400, got %d", status)
	}
}

func TestScreenshotLastEmpty(t *testing.T) {
	_, ts := newTestServer(t, true, 0)
	if status, _ := getJSON(t, ts, "/api/screenshot/last"); status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestSystemEndpoints(t *testing.T) {
	_, ts := newTestServer(t, false, 0)

	status, body := getJSON(t, ts, "/api/system/ping")
	if status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("ping: %d %v", status, body)
	}

	status, body = getJSON(t, ts, "/api/system/info")
	if status != http.StatusOK || body["api_version"] != apiVersion {
		t.Fatalf("info: %d %v", status, body)
	}

	status, body = getJSON(t, ts, "/api/system/capabilities")
	if status != http.StatusOK {
		t.Fatalf("capabilities: expected 200, got %d", status)
	}
	if len(body["endpoints"].([]interface{})) == 0 {
		t.Fatal("capabilities lists no endpoints")
	}
}

func TestNotFound(t *testing.T) {
	_, ts := newTestServer(t, false, 0)
	status, body := getJSON(t, ts, "/api/nope")
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if body["error"] != "Not Found" {
		t.Fatalf("unexpected body: %v", body)
	}
}
