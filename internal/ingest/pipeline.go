package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"binnacle/internal/nmea"
	"binnacle/internal/sensors"
)

// Pipeline turns raw NMEA 0183 lines into cache updates: decode,
// dispatch to the sentence handler, then apply each reading. Errors are
// per sentence and never stop the pipeline; callers log them and move
// on. ProcessLine is not safe for concurrent use: all feeds funnel into
// one goroutine.
type Pipeline struct {
	cache   *sensors.Cache
	cx      Context
	metrics *Metrics
}

// PipelineConfig wires a pipeline. Cache is required; everything else
// has a zero-value default.
type PipelineConfig struct {
	Cache        *sensors.Cache
	Resolver     *Resolver
	TankCapacity map[sensors.InstanceID]float64 // liters, by tank instance
	Metrics      *Metrics
}

func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Cache == nil {
		return nil, fmt.Errorf("ingest: pipeline needs a cache")
	}
	if cfg.Resolver == nil {
		cfg.Resolver = NewResolver(nil)
	}
	return &Pipeline{
		cache: cfg.Cache,
		cx: Context{
			Resolver:     cfg.Resolver,
			TankCapacity: cfg.TankCapacity,
		},
		metrics: cfg.Metrics,
	}, nil
}

// ProcessLine runs one raw line through the pipeline and reports how
// many readings it applied. Blank lines are skipped. The returned error
// describes everything that went wrong with the sentence; any valid
// readings it carried have still been applied.
func (p *Pipeline) ProcessLine(now time.Time, line string) (int, error) {
	if strings.TrimSpace(line) == "" {
		return 0, nil
	}

	s, err := nmea.Decode(line)
	if err != nil {
		var ck *nmea.ChecksumError
		if errors.As(err, &ck) {
			p.metrics.sentence("", "checksum")
		} else {
			p.metrics.sentence("", "malformed")
		}
		return 0, err
	}

	h, ok := Lookup(s.Type)
	if !ok {
		p.metrics.sentence(s.Type, "unknown_type")
		return 0, &nmea.UnknownSentenceError{Type: s.Type}
	}

	readings, err := h(s, &p.cx)
	var errs []error
	if err != nil {
		errs = append(errs, err)
	}

	applied := 0
	for _, r := range readings {
		if _, uerr := p.cache.Update(now, r); uerr != nil {
			errs = append(errs, uerr)
			continue
		}
		applied++
	}

	combined := errors.Join(errs...)
	p.metrics.sentence(s.Type, outcome(applied, combined))
	p.metrics.readingsApplied(applied)
	return applied, combined
}

// outcome reduces a sentence's fate to one counter label.
func outcome(applied int, err error) string {
	switch {
	case err == nil && applied > 0:
		return "ok"
	case err == nil:
		return "empty"
	case applied > 0:
		return "partial"
	}
	var (
		um *nmea.UnknownMeasurementError
		mf *nmea.MalformedError
		re *sensors.RangeError
	)
	switch {
	case errors.As(err, &um):
		return "unknown_measurement"
	case errors.As(err, &mf):
		return "malformed"
	case errors.As(err, &re):
		return "range"
	}
	return "error"
}
