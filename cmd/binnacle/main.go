package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"binnacle/internal/config"
	"binnacle/internal/ingest"
	"binnacle/internal/replay"
	"binnacle/internal/schema"
	"binnacle/internal/sensors"
	"binnacle/internal/web"
)

func main() {
	var (
		configPath    string
		stdinFeed     bool
		demoFeed      bool
		summarizePath string
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML config (empty: built-in defaults)")
	flag.BoolVar(&stdinFeed, "stdin", false, "Read NMEA sentences from stdin")
	flag.BoolVar(&demoFeed, "demo", false, "Generate a demo sentence feed")
	flag.StringVar(&summarizePath, "summarize", "", "Print a summary of an NMEA replay log and exit")
	flag.Parse()

	if summarizePath != "" {
		if err := printLogSummary(summarizePath); err != nil {
			log.Fatalf("summarize failed: %v", err)
		}
		return
	}

	logBuf := web.NewLogBuffer(2000)
	log.SetOutput(io.MultiWriter(os.Stderr, logBuf))

	var cfg config.Config
	resolvedPath := ""
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatalf("config load failed: %v", err)
		}
		resolvedPath = configPath
		if abs, err := filepath.Abs(configPath); err == nil {
			resolvedPath = abs
		}
	} else if err := config.DefaultAndValidate(&cfg); err != nil {
		log.Fatalf("default config invalid: %v", err)
	}

	if stdinFeed {
		cfg.Feed.Stdin = true
	}
	if demoFeed {
		cfg.Feed.Demo.Enable = true
	}
	if configPath == "" && !cfg.Feed.Stdin && !cfg.Feed.Replay.Enable && !cfg.Feed.Demo.Enable {
		// Bare invocation: show something rather than an empty cache.
		log.Printf("no config and no feed flags, enabling the demo feed")
		cfg.Feed.Demo.Enable = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("binnacle starting")

	if err := run(ctx, cfg, resolvedPath, logBuf); err != nil {
		log.Fatalf("binnacle: %v", err)
	}
	log.Printf("binnacle stopped")
}

func run(ctx context.Context, cfg config.Config, configPath string, logBuf *web.LogBuffer) error {
	sreg, err := loadSchema(cfg.Schema)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ttl := cfg.Cache.TTL
	if ttl < 0 {
		// Negative TTL keeps instances forever.
		ttl = 0
	}
	cache := sensors.NewCache(sreg, sensors.Config{
		TTL:         ttl,
		Preferences: cfg.Units,
		Metrics:     sensors.NewMetrics(promReg),
	})

	sweeper := sensors.NewSweeper(cache, sensors.SweeperConfig{Interval: cfg.Cache.Sweep})
	if err := sweeper.Start(ctx); err != nil {
		return err
	}
	defer sweeper.Close()

	caps := make(map[sensors.InstanceID]float64)
	for inst, liters := range cfg.TankCapacities() {
		caps[sensors.InstanceID(inst)] = liters
	}
	pipe, err := ingest.NewPipeline(ingest.PipelineConfig{
		Cache:        cache,
		Resolver:     ingest.NewResolver(cfg.Instances),
		TankCapacity: caps,
		Metrics:      ingest.NewMetrics(promReg),
	})
	if err != nil {
		return err
	}

	status := web.NewStatus()
	status.SetStatic(cfg.Web.Listen, feedNames(cfg))

	var rec *replay.Writer
	if cfg.Record.Enable {
		rec, err = replay.CreateWriter(cfg.Record.Path)
		if err != nil {
			return fmt.Errorf("record: %w", err)
		}
		defer func() {
			if cerr := rec.Close(); cerr != nil {
				log.Printf("record: close: %v", cerr)
			}
		}()
		log.Printf("record: writing %s", cfg.Record.Path)
	}

	webCfg := web.Config{
		Cache:  cache,
		Schema: sreg,
		Status: status,
		Settings: web.SettingsStore{
			ConfigPath: configPath,
			Apply: func(next config.Config) error {
				return cache.SetPreferences(next.Units)
			},
		},
		Logs:     logBuf,
		Gatherer: promReg,
	}

	lines := make(chan feedLine, 64)
	g, gctx := errgroup.WithContext(ctx)

	log.Printf("web listening on %s", cfg.Web.Listen)
	g.Go(func() error { return web.Serve(gctx, cfg.Web.Listen, webCfg) })
	g.Go(func() error { return runIngest(gctx, pipe, status, rec, lines) })

	if cfg.Feed.Stdin {
		log.Printf("feed: stdin")
		g.Go(func() error { return runStdinFeed(gctx, os.Stdin, lines) })
	}
	if cfg.Feed.Replay.Enable {
		log.Printf("feed: replay path=%s speed=%g loop=%v",
			cfg.Feed.Replay.Path, cfg.Feed.Replay.Speed, cfg.Feed.Replay.Loop)
		g.Go(func() error { return runReplayFeed(gctx, cfg.Feed.Replay, lines) })
	}
	if cfg.Feed.Demo.Enable {
		log.Printf("feed: demo interval=%s lat=%.4f lon=%.4f",
			cfg.Feed.Demo.Interval, cfg.Feed.Demo.Lat, cfg.Feed.Demo.Lon)
		g.Go(func() error { return runDemoFeed(gctx, cfg.Feed.Demo, lines) })
	}

	// A signal-initiated stop surfaces as context.Canceled; that is a
	// clean exit, not a failure.
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func loadSchema(path string) (*schema.Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return schema.Builtin()
	}
	log.Printf("schema: %s", path)
	return schema.LoadFile(path)
}

func feedNames(cfg config.Config) []string {
	var names []string
	if cfg.Feed.Stdin {
		names = append(names, "stdin")
	}
	if cfg.Feed.Replay.Enable {
		names = append(names, "replay")
	}
	if cfg.Feed.Demo.Enable {
		names = append(names, "demo")
	}
	return names
}
