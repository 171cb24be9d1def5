package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"binnacle/internal/config"
	"binnacle/internal/units"
)

// SettingsPayload is the display-unit preferences as served to and
// accepted from the UI.
type SettingsPayload struct {
	Depth       string `json:"depth"`
	Speed       string `json:"speed"`
	Temperature string `json:"temperature"`
	Pressure    string `json:"pressure"`
	Volume      string `json:"volume"`
	Distance    string `json:"distance"`
	Coordinate  string `json:"coordinate"`
	Clock       string `json:"clock"`
}

// SettingsPayloadIn is the strict POST schema. All fields are required;
// partial updates are rejected.
type SettingsPayloadIn struct {
	Depth       *string `json:"depth"`
	Speed       *string `json:"speed"`
	Temperature *string `json:"temperature"`
	Pressure    *string `json:"pressure"`
	Volume      *string `json:"volume"`
	Distance    *string `json:"distance"`
	Coordinate  *string `json:"coordinate"`
	Clock       *string `json:"clock"`
}

var settingsPostKeys = []string{
	"depth",
	"speed",
	"temperature",
	"pressure",
	"volume",
	"distance",
	"coordinate",
	"clock",
}

func decodeSettingsPayloadInStrict(body []byte) (SettingsPayloadIn, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	// First pass: stream tokens to enforce strict object rules and
	// detect duplicate keys.
	allowed := make(map[string]struct{}, len(settingsPostKeys))
	for _, k := range settingsPostKeys {
		allowed[k] = struct{}{}
	}
	seen := make(map[string]struct{}, len(settingsPostKeys))

	tok, err := dec.Token()
	if err != nil {
		return SettingsPayloadIn{}, fmt.Errorf("invalid json: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return SettingsPayloadIn{}, errors.New("invalid json: expected object")
	}

	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: %w", err)
		}
		key, ok := kt.(string)
		if !ok {
			return SettingsPayloadIn{}, errors.New("invalid json: expected string key")
		}
		if _, ok := allowed[key]; !ok {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: unknown key %q", key)
		}
		if _, dup := seen[key]; dup {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: duplicate key %q", key)
		}
		seen[key] = struct{}{}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: %w", err)
		}
		if strings.TrimSpace(string(raw)) == "null" {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: %q cannot be null", key)
		}
	}

	end, err := dec.Token()
	if err != nil {
		return SettingsPayloadIn{}, fmt.Errorf("invalid json: %w", err)
	}
	delim, ok = end.(json.Delim)
	if !ok || delim != '}' {
		return SettingsPayloadIn{}, errors.New("invalid json: expected end of object")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return SettingsPayloadIn{}, errors.New("invalid json: trailing data")
	}

	for _, k := range settingsPostKeys {
		if _, ok := seen[k]; !ok {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: missing required key %q", k)
		}
	}

	// Second pass: decode into the typed struct.
	var out SettingsPayloadIn
	dec2 := json.NewDecoder(bytes.NewReader(body))
	dec2.DisallowUnknownFields()
	if err := dec2.Decode(&out); err != nil {
		return SettingsPayloadIn{}, fmt.Errorf("invalid json: %w", err)
	}
	if err := dec2.Decode(&struct{}{}); err != io.EOF {
		return SettingsPayloadIn{}, errors.New("invalid json: trailing data")
	}

	return out, nil
}

func configToSettingsPayload(cfg config.Config) SettingsPayload {
	return SettingsPayload{
		Depth:       string(cfg.Units.Depth),
		Speed:       string(cfg.Units.Speed),
		Temperature: string(cfg.Units.Temperature),
		Pressure:    string(cfg.Units.Pressure),
		Volume:      string(cfg.Units.Volume),
		Distance:    string(cfg.Units.Distance),
		Coordinate:  string(cfg.Units.Coordinate),
		Clock:       string(cfg.Units.Clock),
	}
}

func validateSettingsPayloadIn(p SettingsPayloadIn) error {
	fields := []struct {
		name string
		val  *string
	}{
		{"depth", p.Depth},
		{"speed", p.Speed},
		{"temperature", p.Temperature},
		{"pressure", p.Pressure},
		{"volume", p.Volume},
		{"distance", p.Distance},
		{"coordinate", p.Coordinate},
		{"clock", p.Clock},
	}
	for _, f := range fields {
		if f.val == nil {
			return fmt.Errorf("%s is required", f.name)
		}
		if strings.TrimSpace(*f.val) == "" {
			return fmt.Errorf("%s must be non-empty", f.name)
		}
	}
	return nil
}

// applySettingsPayload copies the payload into the config. Whether each
// unit actually belongs to its category is checked afterwards by
// config.DefaultAndValidate.
func applySettingsPayload(cfg *config.Config, p SettingsPayloadIn) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := validateSettingsPayloadIn(p); err != nil {
		return err
	}

	cfg.Units.Depth = units.Unit(strings.TrimSpace(*p.Depth))
	cfg.Units.Speed = units.Unit(strings.TrimSpace(*p.Speed))
	cfg.Units.Temperature = units.Unit(strings.TrimSpace(*p.Temperature))
	cfg.Units.Pressure = units.Unit(strings.TrimSpace(*p.Pressure))
	cfg.Units.Volume = units.Unit(strings.TrimSpace(*p.Volume))
	cfg.Units.Distance = units.Unit(strings.TrimSpace(*p.Distance))
	cfg.Units.Coordinate = units.CoordinateStyle(strings.TrimSpace(*p.Coordinate))
	cfg.Units.Clock = units.ClockStyle(strings.TrimSpace(*p.Clock))
	return nil
}

type SettingsStore struct {
	ConfigPath string
	// Apply, when set, is called after validation and before saving.
	// If Apply returns an error, the config is not saved.
	// Apply is expected to make the new config effective immediately.
	Apply func(cfg config.Config) error
}

func (s SettingsStore) load() (config.Config, error) {
	return config.Load(s.ConfigPath)
}

func (s SettingsStore) save(cfg config.Config) error {
	if err := config.DefaultAndValidate(&cfg); err != nil {
		return err
	}
	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	// Temp file in the same directory so the final rename is atomic.
	dir := filepath.Dir(s.ConfigPath)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.ConfigPath)+".tmp.*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.ConfigPath)
}

func (s SettingsStore) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(s.ConfigPath) == "" {
			http.Error(w, "settings not available (no config path)", http.StatusNotImplemented)
			return
		}

		switch r.Method {
		case http.MethodGet:
			cfg, err := s.load()
			if err != nil {
				http.Error(w, fmt.Sprintf("load failed: %v", err), http.StatusInternalServerError)
				return
			}
			writeJSON(w, configToSettingsPayload(cfg))
			return

		case http.MethodPost:
			if ct := strings.TrimSpace(r.Header.Get("Content-Type")); ct != "application/json" {
				http.Error(w, "content-type must be application/json", http.StatusUnsupportedMediaType)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, fmt.Sprintf("read failed: %v", err), http.StatusBadRequest)
				return
			}
			p, err := decodeSettingsPayloadInStrict(body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			oldCfg, err := s.load()
			if err != nil {
				http.Error(w, fmt.Sprintf("load failed: %v", err), http.StatusInternalServerError)
				return
			}

			cfg := oldCfg
			if err := applySettingsPayload(&cfg, p); err != nil {
				http.Error(w, fmt.Sprintf("invalid settings: %v", err), http.StatusBadRequest)
				return
			}
			if err := config.DefaultAndValidate(&cfg); err != nil {
				http.Error(w, fmt.Sprintf("invalid config: %v", err), http.StatusBadRequest)
				return
			}

			if s.Apply != nil {
				if err := s.Apply(cfg); err != nil {
					http.Error(w, fmt.Sprintf("apply failed: %v", err), http.StatusBadRequest)
					return
				}
			}

			if err := s.save(cfg); err != nil {
				// Roll the runtime back so it matches what is on disk.
				if s.Apply != nil {
					_ = s.Apply(oldCfg)
				}
				http.Error(w, fmt.Sprintf("save failed: %v", err), http.StatusInternalServerError)
				return
			}

			writeJSON(w, configToSettingsPayload(cfg))
			return

		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
	}
}
