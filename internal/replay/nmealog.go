package replay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Log format: line-oriented text.
//
// - Blank lines ignored.
// - Lines starting with '#' ignored.
// - Line "START" resets the origin (next record time is relative to 0 again).
// - Timed data lines are: <t_ns>,<sentence>
//   where t_ns is nanoseconds since START (monotonic) and sentence is a
//   complete NMEA 0183 sentence including its checksum.
// - Alternatively a log may consist of bare sentences, one per line, with
//   no timestamps. Such logs play back at a fixed cadence. The two flavors
//   cannot be mixed in one file.

// untimedGap is the cadence for bare sentence logs, before the speed
// multiplier.
const untimedGap = 100 * time.Millisecond

type Record struct {
	At       time.Duration
	Timed    bool
	Sentence string // empty for START markers
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var timedMode, bareMode bool
	recs := make([]Record, 0, 1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{At: 0})
			continue
		}

		if line[0] == '$' || line[0] == '!' {
			if timedMode {
				return nil, fmt.Errorf("invalid replay line (bare sentence in timed log): %q", line)
			}
			bareMode = true
			recs = append(recs, Record{Sentence: line})
			continue
		}

		comma := strings.IndexByte(line, ',')
		if comma < 0 {
			return nil, fmt.Errorf("invalid replay line (missing comma): %q", line)
		}
		tsStr := strings.TrimSpace(line[:comma])
		sentence := strings.TrimSpace(line[comma+1:])
		if tsStr == "" || sentence == "" {
			return nil, fmt.Errorf("invalid replay line (empty field): %q", line)
		}

		tsNs, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid replay timestamp %q: %w", tsStr, err)
		}
		if tsNs < 0 {
			return nil, fmt.Errorf("invalid replay timestamp (negative): %d", tsNs)
		}
		if sentence[0] != '$' && sentence[0] != '!' {
			return nil, fmt.Errorf("invalid replay sentence (no start delimiter): %q", sentence)
		}
		if bareMode {
			return nil, fmt.Errorf("invalid replay line (timestamp in bare log): %q", line)
		}
		timedMode = true

		recs = append(recs, Record{At: time.Duration(tsNs) * time.Nanosecond, Timed: true, Sentence: sentence})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	return recs, nil
}

// ReadFile loads a whole replay log.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewReader(f).ReadAll()
}

type Writer struct {
	f      *os.File
	w      *bufio.Writer
	start  time.Time
	closed bool
}

func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := bw.WriteString("START\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, start: time.Now()}, nil
}

func (ww *Writer) WriteSentence(now time.Time, sentence string) error {
	if ww.closed {
		return errors.New("replay writer is closed")
	}
	sentence = strings.TrimRight(sentence, "\r\n")
	if sentence == "" {
		return errors.New("sentence is empty")
	}
	if sentence[0] != '$' && sentence[0] != '!' {
		return fmt.Errorf("sentence has no start delimiter: %q", sentence)
	}
	if strings.ContainsAny(sentence, "\r\n") {
		return fmt.Errorf("sentence contains a line break: %q", sentence)
	}

	// Use monotonic component of time when available.
	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	if _, err := fmt.Fprintf(ww.w, "%d,%s\n", d.Nanoseconds(), sentence); err != nil {
		return err
	}
	return nil
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}

type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Play replays records with their relative timing.
//
// The callback is invoked for each record that carries a sentence.
// START markers are honored by resetting the origin. Bare records play
// at a fixed cadence.
//
// speedMultiplier: 1.0 = real time, 2.0 = 2x speed (half waits), 0.5 = half speed.
func Play(records []Record, speedMultiplier float64, loop bool, sleeper Sleeper, cb func(sentence string) error) error {
	if speedMultiplier <= 0 {
		return fmt.Errorf("speedMultiplier must be > 0")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	if cb == nil {
		return errors.New("callback is nil")
	}
	if len(records) == 0 {
		return errors.New("no records")
	}

	for {
		var origin time.Duration
		var lastAt time.Duration
		var haveLast bool

		for _, r := range records {
			if r.Sentence == "" {
				// START marker.
				origin = r.At
				lastAt = 0
				haveLast = false
				continue
			}

			var wait time.Duration
			if r.Timed {
				at := r.At - origin
				if at < 0 {
					at = 0
				}
				if haveLast {
					wait = at - lastAt
				}
				lastAt = at
			} else if haveLast {
				wait = untimedGap
			}
			if wait < 0 {
				wait = 0
			}
			wait = time.Duration(float64(wait) / speedMultiplier)
			if wait > 0 {
				sleeper.Sleep(wait)
			}

			if err := cb(r.Sentence); err != nil {
				return err
			}
			haveLast = true
		}

		if !loop {
			return nil
		}
	}
}
