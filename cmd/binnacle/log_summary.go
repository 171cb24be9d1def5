package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"binnacle/internal/nmea"
	"binnacle/internal/replay"
)

type logSummary struct {
	Segments    int
	Sentences   int
	Timed       int
	Invalid     int
	MaxDuration time.Duration
	TypeCounts  map[string]int
}

// summarizeNMEALog tallies a replay log: segments, sentence counts per
// type, and the longest segment duration. Sentences the decoder rejects
// count as invalid; the summary is best-effort and never fails.
func summarizeNMEALog(records []replay.Record) logSummary {
	s := logSummary{TypeCounts: map[string]int{}}
	if len(records) == 0 {
		return s
	}

	origin := time.Duration(0)
	hasSentences := false
	segments := 0

	for _, r := range records {
		if r.Sentence == "" {
			segments++
			origin = r.At
			continue
		}
		hasSentences = true
		s.Sentences++

		if r.Timed {
			s.Timed++
			at := r.At - origin
			if at < 0 {
				at = 0
			}
			if at > s.MaxDuration {
				s.MaxDuration = at
			}
		}

		sent, err := nmea.Decode(r.Sentence)
		if err != nil {
			s.Invalid++
			continue
		}
		s.TypeCounts[sent.Type]++
	}
	if segments == 0 && hasSentences {
		segments = 1
	}
	s.Segments = segments

	return s
}

func printLogSummary(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}

	recs, err := replay.ReadFile(path)
	if err != nil {
		return err
	}

	s := summarizeNMEALog(recs)

	fmt.Printf("path: %s\n", path)
	fmt.Printf("segments: %d\n", s.Segments)
	fmt.Printf("sentences: %d\n", s.Sentences)
	fmt.Printf("timed: %d\n", s.Timed)
	fmt.Printf("invalid_sentences: %d\n", s.Invalid)
	fmt.Printf("max_duration: %s\n", s.MaxDuration)

	types := make([]string, 0, len(s.TypeCounts))
	for typ := range s.TypeCounts {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		fmt.Printf("sentence[%s]: %d\n", typ, s.TypeCounts[typ])
	}
	return nil
}
