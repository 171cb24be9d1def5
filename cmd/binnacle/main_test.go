package main

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"binnacle/internal/config"
	"binnacle/internal/web"
)

func TestFeedNames(t *testing.T) {
	var cfg config.Config
	if got := feedNames(cfg); len(got) != 0 {
		t.Fatalf("feedNames(empty)=%v", got)
	}

	cfg.Feed.Stdin = true
	cfg.Feed.Demo.Enable = true
	if got := feedNames(cfg); !reflect.DeepEqual(got, []string{"stdin", "demo"}) {
		t.Fatalf("feedNames=%v", got)
	}

	cfg = config.Config{}
	cfg.Feed.Replay.Enable = true
	if got := feedNames(cfg); !reflect.DeepEqual(got, []string{"replay"}) {
		t.Fatalf("feedNames=%v", got)
	}
}

func TestLoadSchema_BuiltinByDefault(t *testing.T) {
	reg, err := loadSchema("")
	if err != nil {
		t.Fatalf("loadSchema(\"\"): %v", err)
	}
	if len(reg.Types()) == 0 {
		t.Fatalf("builtin schema has no types")
	}

	if _, err := loadSchema(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing schema file")
	}
}

// Full wiring: demo feed through the pipeline into the cache with the
// web server up, then a clean shutdown.
func TestRun_StartsAndStops(t *testing.T) {
	var cfg config.Config
	if err := config.DefaultAndValidate(&cfg); err != nil {
		t.Fatalf("DefaultAndValidate: %v", err)
	}
	cfg.Web.Listen = "127.0.0.1:0"
	cfg.Feed.Demo.Enable = true

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(250*time.Millisecond, cancel)

	if err := run(ctx, cfg, "", web.NewLogBuffer(100)); err != nil {
		t.Fatalf("run: %v", err)
	}
}
