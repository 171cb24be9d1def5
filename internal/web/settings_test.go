package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"binnacle/internal/config"
	"binnacle/internal/units"
)

func writeTempConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return p
}

func validSettingsBody() map[string]string {
	return map[string]string{
		"depth":       "ft",
		"speed":       "kn",
		"temperature": "F",
		"pressure":    "hPa",
		"volume":      "gal",
		"distance":    "nm",
		"coordinate":  "dd",
		"clock":       "12h",
	}
}

func postSettings(t *testing.T, url string, body []byte) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, url+"/api/settings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /api/settings error: %v", err)
	}
	return resp
}

func TestSettingsPOST_AppliesAndSaves(t *testing.T) {
	cfgPath := writeTempConfigFile(t, "units:\n  depth: m\n")

	appliedCh := make(chan config.Config, 1)
	store := SettingsStore{
		ConfigPath: cfgPath,
		Apply: func(cfg config.Config) error {
			appliedCh <- cfg
			return nil
		},
	}

	ts := httptest.NewServer(store.Handler())
	defer ts.Close()

	b, _ := json.Marshal(validSettingsBody())
	resp := postSettings(t, ts.URL, b)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}

	select {
	case got := <-appliedCh:
		if got.Units.Depth != units.UnitFoot {
			t.Fatalf("applied depth=%q", got.Units.Depth)
		}
		if got.Units.Temperature != units.UnitFahr {
			t.Fatalf("applied temperature=%q", got.Units.Temperature)
		}
		if got.Units.Clock != units.Clock12 {
			t.Fatalf("applied clock=%q", got.Units.Clock)
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timed out waiting for Apply")
	}

	// Ensure it persisted.
	onDisk, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	text := string(onDisk)
	if !strings.Contains(text, "depth: ft") {
		t.Fatalf("expected saved depth in yaml, got: %s", text)
	}
	if !strings.Contains(text, "clock: 12h") {
		t.Fatalf("expected saved clock in yaml, got: %s", text)
	}

	// The rewritten file still loads.
	if _, err := config.Load(cfgPath); err != nil {
		t.Fatalf("reload saved config: %v", err)
	}
}

func TestSettingsGET_ReturnsCurrent(t *testing.T) {
	cfgPath := writeTempConfigFile(t, "units:\n  depth: ft\n")
	store := SettingsStore{ConfigPath: cfgPath}

	ts := httptest.NewServer(store.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/settings")
	if err != nil {
		t.Fatalf("GET /api/settings error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	var payload SettingsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if payload.Depth != "ft" {
		t.Fatalf("depth=%q", payload.Depth)
	}
	// Unset preferences come back defaulted.
	if payload.Speed != "kn" || payload.Clock != "24h" {
		t.Fatalf("defaults missing: speed=%q clock=%q", payload.Speed, payload.Clock)
	}
}

func TestSettingsPOST_ApplyFailureDoesNotSave(t *testing.T) {
	original := "units:\n  depth: m\n"
	cfgPath := writeTempConfigFile(t, original)

	store := SettingsStore{
		ConfigPath: cfgPath,
		Apply: func(cfg config.Config) error {
			return errors.New("boom")
		},
	}

	ts := httptest.NewServer(store.Handler())
	defer ts.Close()

	b, _ := json.Marshal(validSettingsBody())
	resp := postSettings(t, ts.URL, b)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}

	onDisk, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(onDisk) != original {
		t.Fatalf("expected config unchanged; got: %s", string(onDisk))
	}
}

func TestSettingsPOST_MissingKeyRejected(t *testing.T) {
	original := "units:\n  depth: m\n"
	cfgPath := writeTempConfigFile(t, original)

	store := SettingsStore{ConfigPath: cfgPath}
	ts := httptest.NewServer(store.Handler())
	defer ts.Close()

	// All keys are required; dropping one is a schema violation, not a
	// partial update.
	body := validSettingsBody()
	delete(body, "clock")
	b, _ := json.Marshal(body)

	resp := postSettings(t, ts.URL, b)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}

	onDisk, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(onDisk) != original {
		t.Fatalf("expected config unchanged; got: %s", string(onDisk))
	}
}

func TestSettingsPOST_DuplicateKeysRejected(t *testing.T) {
	original := "units:\n  depth: m\n"
	cfgPath := writeTempConfigFile(t, original)

	store := SettingsStore{ConfigPath: cfgPath}
	ts := httptest.NewServer(store.Handler())
	defer ts.Close()

	dup := []byte(`{
		"depth": "ft",
		"depth": "m",
		"speed": "kn",
		"temperature": "F",
		"pressure": "hPa",
		"volume": "gal",
		"distance": "nm",
		"coordinate": "dd",
		"clock": "12h"
	}`)

	resp := postSettings(t, ts.URL, dup)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}

	onDisk, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(onDisk) != original {
		t.Fatalf("expected config unchanged; got: %s", string(onDisk))
	}
}

func TestSettingsPOST_UnknownUnitRejected(t *testing.T) {
	original := "units:\n  depth: m\n"
	cfgPath := writeTempConfigFile(t, original)

	store := SettingsStore{ConfigPath: cfgPath}
	ts := httptest.NewServer(store.Handler())
	defer ts.Close()

	body := validSettingsBody()
	body["depth"] = "furlong"
	b, _ := json.Marshal(body)

	resp := postSettings(t, ts.URL, b)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	onDisk, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(onDisk) != original {
		t.Fatalf("expected config unchanged; got: %s", string(onDisk))
	}
}

func TestSettingsPOST_WrongContentTypeRejected(t *testing.T) {
	cfgPath := writeTempConfigFile(t, "units:\n  depth: m\n")
	store := SettingsStore{ConfigPath: cfgPath}
	ts := httptest.NewServer(store.Handler())
	defer ts.Close()

	b, _ := json.Marshal(validSettingsBody())
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/settings", bytes.NewReader(b))
	req.Header.Set("Content-Type", "text/plain")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestSettingsUnavailableWithoutConfigPath(t *testing.T) {
	store := SettingsStore{}
	ts := httptest.NewServer(store.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/settings")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}
