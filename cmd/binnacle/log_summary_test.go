package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"binnacle/internal/replay"
)

func TestSummarizeNMEALog(t *testing.T) {
	recs := []replay.Record{
		{At: 0},
		{At: 0, Timed: true, Sentence: "$IIMTW,19.5,C*1E"},
		{At: 200 * time.Millisecond, Timed: true, Sentence: "$IIMTW,19.5,C*FF"},
		{At: 0},
		{At: 1 * time.Second, Timed: true, Sentence: "$SDDPT,2.8,0.0*5D"},
	}

	s := summarizeNMEALog(recs)
	if s.Segments != 2 {
		t.Fatalf("segments=%d want 2", s.Segments)
	}
	if s.Sentences != 3 {
		t.Fatalf("sentences=%d want 3", s.Sentences)
	}
	if s.Timed != 3 {
		t.Fatalf("timed=%d want 3", s.Timed)
	}
	if s.Invalid != 1 {
		t.Fatalf("invalid=%d want 1", s.Invalid)
	}
	if s.TypeCounts["MTW"] != 1 {
		t.Fatalf("count[MTW]=%d want 1", s.TypeCounts["MTW"])
	}
	if s.TypeCounts["DPT"] != 1 {
		t.Fatalf("count[DPT]=%d want 1", s.TypeCounts["DPT"])
	}
	if s.MaxDuration != 1*time.Second {
		t.Fatalf("maxDuration=%s want %s", s.MaxDuration, 1*time.Second)
	}
}

func TestSummarizeNMEALog_BareLog(t *testing.T) {
	recs := []replay.Record{
		{Sentence: "$IIMTW,19.5,C*1E"},
		{Sentence: "$IIMTW,19.5,C*1E"},
	}

	s := summarizeNMEALog(recs)
	if s.Segments != 1 {
		t.Fatalf("segments=%d want 1", s.Segments)
	}
	if s.Sentences != 2 {
		t.Fatalf("sentences=%d want 2", s.Sentences)
	}
	if s.Timed != 0 {
		t.Fatalf("timed=%d want 0", s.Timed)
	}
	if s.MaxDuration != 0 {
		t.Fatalf("maxDuration=%s want 0", s.MaxDuration)
	}
	if s.TypeCounts["MTW"] != 2 {
		t.Fatalf("count[MTW]=%d want 2", s.TypeCounts["MTW"])
	}
}

func TestSummarizeNMEALog_Empty(t *testing.T) {
	s := summarizeNMEALog(nil)
	if s.Segments != 0 || s.Sentences != 0 {
		t.Fatalf("summary of empty log: %+v", s)
	}
}

func TestPrintLogSummary_PrintsExpectedFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nmea.log")

	w, err := replay.CreateWriter(logPath)
	if err != nil {
		t.Fatalf("CreateWriter() error: %v", err)
	}
	now := time.Now()
	if err := w.WriteSentence(now, "$IIMTW,19.5,C*1E"); err != nil {
		_ = w.Close()
		t.Fatalf("WriteSentence() error: %v", err)
	}
	if err := w.WriteSentence(now.Add(100*time.Millisecond), "$SDDPT,2.8,0.0*5D"); err != nil {
		_ = w.Close()
		t.Fatalf("WriteSentence() error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	oldStdout := os.Stdout
	r, wpipe, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe() error: %v", err)
	}
	os.Stdout = wpipe

	printErr := printLogSummary(logPath)

	_ = wpipe.Close()
	os.Stdout = oldStdout

	if printErr != nil {
		_ = r.Close()
		t.Fatalf("printLogSummary() error: %v", printErr)
	}

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	_ = r.Close()
	out := buf.String()

	for _, want := range []string{
		"path: ",
		"segments: 1",
		"sentences: 2",
		"invalid_sentences: 0",
		"sentence[DPT]: 1",
		"sentence[MTW]: 1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output: %q", want, out)
		}
	}
}

func TestPrintLogSummary_EmptyPath(t *testing.T) {
	if err := printLogSummary("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
