package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"binnacle/internal/units"
)

type Config struct {
	Web       WebConfig         `yaml:"web"`
	Cache     CacheConfig       `yaml:"cache"`
	Feed      FeedConfig        `yaml:"feed"`
	Record    RecordConfig      `yaml:"record"`
	Schema    string            `yaml:"schema"`
	Instances map[string]int    `yaml:"instances"`
	Tanks     []TankConfig      `yaml:"tanks"`
	Units     units.Preferences `yaml:"units"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

// CacheConfig controls sensor staleness. A negative TTL disables expiry
// entirely; zero takes the default.
type CacheConfig struct {
	TTL   time.Duration `yaml:"ttl"`
	Sweep time.Duration `yaml:"sweep"`
}

type FeedConfig struct {
	Stdin  bool         `yaml:"stdin"`
	Replay ReplayConfig `yaml:"replay"`
	Demo   DemoConfig   `yaml:"demo"`
}

type ReplayConfig struct {
	Enable bool    `yaml:"enable"`
	Path   string  `yaml:"path"`
	Speed  float64 `yaml:"speed"`
	Loop   bool    `yaml:"loop"`
}

type DemoConfig struct {
	Enable   bool          `yaml:"enable"`
	Interval time.Duration `yaml:"interval"`
	Lat      float64       `yaml:"lat"`
	Lon      float64       `yaml:"lon"`
	// Script names a keyframe scenario file. When set it drives the
	// demo instead of the free-running generator.
	Script string `yaml:"script"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

// TankConfig declares a tank's usable capacity in liters so volume
// transducers can be turned into level readings.
type TankConfig struct {
	Instance int     `yaml:"instance"`
	Capacity float64 `yaml:"capacity"`
}

// Default is the built-in configuration used when no file is given:
// web UI on :8080, one minute staleness, no feeds enabled.
func Default() Config {
	cfg := Config{}
	_ = DefaultAndValidate(&cfg)
	return cfg
}

// Load reads and validates a config file. Unknown fields are an error
// so a typo never silently becomes a default.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		var te *yaml.TypeError
		if errors.As(err, &te) {
			return Config{}, fmt.Errorf("config contains unknown fields: %s", joinTypeErrors(te))
		}
		return Config{}, err
	}

	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func joinTypeErrors(te *yaml.TypeError) string {
	msgs := make([]string, 0, len(te.Errors))
	for _, e := range te.Errors {
		// Strip the "line N: " prefix; the field path says enough.
		if strings.HasPrefix(e, "line ") {
			if i := strings.Index(e, ": "); i != -1 {
				e = e[i+2:]
			}
		}
		msgs = append(msgs, e)
	}
	return strings.Join(msgs, "; ")
}

// DefaultAndValidate fills in defaults and rejects configs the daemon
// cannot run with. It is called both on load and before a settings
// save.
func DefaultAndValidate(cfg *Config) error {
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 60 * time.Second
	}
	if cfg.Cache.Sweep == 0 {
		cfg.Cache.Sweep = 5 * time.Second
	}
	if cfg.Cache.Sweep < 0 {
		return fmt.Errorf("cache.sweep must be > 0")
	}

	if cfg.Feed.Replay.Enable {
		if cfg.Feed.Replay.Path == "" {
			return fmt.Errorf("feed.replay.path is required when feed.replay.enable is true")
		}
		if cfg.Feed.Replay.Speed == 0 {
			cfg.Feed.Replay.Speed = 1
		}
		if cfg.Feed.Replay.Speed < 0 {
			return fmt.Errorf("feed.replay.speed must be > 0")
		}
	}

	if cfg.Feed.Demo.Interval == 0 {
		cfg.Feed.Demo.Interval = 1 * time.Second
	}
	if cfg.Feed.Demo.Interval < 0 {
		return fmt.Errorf("feed.demo.interval must be > 0")
	}
	if cfg.Feed.Demo.Lat == 0 && cfg.Feed.Demo.Lon == 0 {
		// Shilshole Bay. Any stretch of open water does.
		cfg.Feed.Demo.Lat = 47.68
		cfg.Feed.Demo.Lon = -122.41
	}
	if cfg.Feed.Demo.Lat < -90 || cfg.Feed.Demo.Lat > 90 {
		return fmt.Errorf("feed.demo.lat must be within [-90, 90]")
	}
	if cfg.Feed.Demo.Lon < -180 || cfg.Feed.Demo.Lon > 180 {
		return fmt.Errorf("feed.demo.lon must be within [-180, 180]")
	}

	if cfg.Record.Enable {
		if cfg.Record.Path == "" {
			return fmt.Errorf("record.path is required when record.enable is true")
		}
		if cfg.Feed.Replay.Enable {
			return fmt.Errorf("record and feed.replay cannot both be enabled")
		}
	}

	for key, inst := range cfg.Instances {
		if inst < 0 {
			return fmt.Errorf("instances[%s] must be >= 0", key)
		}
	}

	seen := make(map[int]bool, len(cfg.Tanks))
	for _, tank := range cfg.Tanks {
		if tank.Instance < 0 {
			return fmt.Errorf("tanks: instance must be >= 0")
		}
		if tank.Capacity <= 0 {
			return fmt.Errorf("tanks: capacity for instance %d must be > 0", tank.Instance)
		}
		if seen[tank.Instance] {
			return fmt.Errorf("tanks: instance %d declared twice", tank.Instance)
		}
		seen[tank.Instance] = true
	}

	if err := cfg.Units.DefaultAndValidate(); err != nil {
		return err
	}
	return nil
}

// TankCapacities flattens the tank declarations for the ingest layer.
func (c Config) TankCapacities() map[int]float64 {
	if len(c.Tanks) == 0 {
		return nil
	}
	out := make(map[int]float64, len(c.Tanks))
	for _, t := range c.Tanks {
		out[t.Instance] = t.Capacity
	}
	return out
}
