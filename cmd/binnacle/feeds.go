package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"binnacle/internal/config"
	"binnacle/internal/ingest"
	"binnacle/internal/replay"
	"binnacle/internal/sim"
	"binnacle/internal/web"
)

// feedLine is one raw line on its way to the pipeline, tagged with the
// feed it came from so ingest errors name their source.
type feedLine struct {
	source string
	text   string
}

// runIngest consumes the merged line channel. It is the only goroutine
// that touches the pipeline, so sentences apply in arrival order no
// matter how many feeds are running.
func runIngest(ctx context.Context, pipe *ingest.Pipeline, status *web.Status, rec *replay.Writer, lines <-chan feedLine) error {
	var flush <-chan time.Time
	if rec != nil {
		t := time.NewTicker(2 * time.Second)
		defer t.Stop()
		flush = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-flush:
			if err := rec.Flush(); err != nil {
				log.Printf("record: flush: %v", err)
			}
		case ln := <-lines:
			now := time.Now().UTC()
			applied, err := pipe.ProcessLine(now, ln.text)
			status.MarkLine(now, applied)
			if err != nil {
				log.Printf("ingest: %s: %v", ln.source, err)
			}
			if rec != nil {
				recordLine(rec, now, ln.text)
			}
		}
	}
}

// recordLine tees a raw line into the capture log. Lines that are not
// sentences are skipped; sentences that failed ingest are still
// captured.
func recordLine(rec *replay.Writer, now time.Time, text string) {
	s := strings.TrimSpace(text)
	if s == "" || (s[0] != '$' && s[0] != '!') {
		return
	}
	if err := rec.WriteSentence(now, s); err != nil {
		log.Printf("record: %v", err)
	}
}

// runStdinFeed pumps lines from r until EOF or cancellation. The
// blocking read cannot be interrupted, so on cancellation the scanner
// goroutine is abandoned; it dies with the process.
func runStdinFeed(ctx context.Context, r io.Reader, out chan<- feedLine) error {
	scanned := make(chan string)
	var scanErr error
	go func() {
		defer close(scanned)
		s := bufio.NewScanner(r)
		s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for s.Scan() {
			select {
			case scanned <- s.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr = s.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ln, ok := <-scanned:
			if !ok {
				if scanErr != nil {
					return fmt.Errorf("stdin: %w", scanErr)
				}
				log.Printf("stdin: eof")
				return nil
			}
			select {
			case out <- feedLine{source: "stdin", text: ln}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// runReplayFeed plays a recorded log into the pipeline with its
// original timing. A finished non-looping replay leaves the daemon
// serving whatever the log loaded.
func runReplayFeed(ctx context.Context, rc config.ReplayConfig, out chan<- feedLine) error {
	recs, err := replay.ReadFile(rc.Path)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	log.Printf("replay: %d records loaded from %s", len(recs), rc.Path)

	err = replay.Play(recs, rc.Speed, rc.Loop, ctxSleeper{ctx}, func(sentence string) error {
		select {
		case out <- feedLine{source: "replay", text: sentence}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("replay: %w", err)
	}
	log.Printf("replay: finished")
	return nil
}

// runDemoFeed synthesizes a sentence burst every interval, either from
// the built-in circling boat or from a scripted scenario. Scenarios
// loop; the demo never runs dry.
func runDemoFeed(ctx context.Context, dc config.DemoConfig, out chan<- feedLine) error {
	var state func(now time.Time) []string
	if strings.TrimSpace(dc.Script) != "" {
		script, err := sim.LoadScript(dc.Script)
		if err != nil {
			return fmt.Errorf("demo script: %w", err)
		}
		sc, err := sim.NewScenario(script)
		if err != nil {
			return fmt.Errorf("demo script: %w", err)
		}
		log.Printf("demo: scenario %s duration=%s", dc.Script, sc.Duration())
		start := time.Now()
		state = func(now time.Time) []string {
			return sc.StateAt(now.Sub(start), true).Sentences(now)
		}
	} else {
		boat := sim.Boat{LatDeg: dc.Lat, LonDeg: dc.Lon}
		state = boat.Sentences
	}

	emit := func(now time.Time) bool {
		for _, s := range state(now) {
			select {
			case out <- feedLine{source: "demo", text: s}:
			case <-ctx.Done():
				return false
			}
		}
		return true
	}

	// First burst right away so the API has data before the first tick.
	if !emit(time.Now().UTC()) {
		return nil
	}

	t := time.NewTicker(dc.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			if !emit(now.UTC()) {
				return nil
			}
		}
	}
}

// ctxSleeper aborts replay waits when the context ends, so shutdown is
// prompt even inside a long recorded gap.
type ctxSleeper struct{ ctx context.Context }

func (s ctxSleeper) Sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
	case <-t.C:
	}
}
