package web

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLogBuffer_CollectsLines(t *testing.T) {
	b := NewLogBuffer(10)
	if _, err := b.Write([]byte("one\ntwo\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	lines, dropped := b.Snapshot(0)
	if dropped != 0 {
		t.Fatalf("dropped=%d", dropped)
	}
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Fatalf("lines=%v", lines)
	}
}

func TestLogBuffer_PartialLineWaitsForNewline(t *testing.T) {
	b := NewLogBuffer(10)
	_, _ = b.Write([]byte("par"))

	lines, _ := b.Snapshot(0)
	if len(lines) != 0 {
		t.Fatalf("partial surfaced early: %v", lines)
	}

	_, _ = b.Write([]byte("tial\nnext\n"))
	lines, _ = b.Snapshot(0)
	if len(lines) != 2 || lines[0] != "partial" || lines[1] != "next" {
		t.Fatalf("lines=%v", lines)
	}
}

func TestLogBuffer_TrimsOldestAndCounts(t *testing.T) {
	b := NewLogBuffer(3)
	for i := 1; i <= 5; i++ {
		_, _ = b.Write([]byte(fmt.Sprintf("line %d\n", i)))
	}
	lines, dropped := b.Snapshot(0)
	if dropped != 2 {
		t.Fatalf("dropped=%d want 2", dropped)
	}
	if len(lines) != 3 || lines[0] != "line 3" || lines[2] != "line 5" {
		t.Fatalf("lines=%v", lines)
	}
}

func TestLogBuffer_StripsCarriageReturnAndBlanks(t *testing.T) {
	b := NewLogBuffer(10)
	_, _ = b.Write([]byte("crlf\r\n\n\nplain\n"))
	lines, _ := b.Snapshot(0)
	if len(lines) != 2 || lines[0] != "crlf" || lines[1] != "plain" {
		t.Fatalf("lines=%v", lines)
	}
}

func TestLogBuffer_WorksAsLogOutput(t *testing.T) {
	b := NewLogBuffer(10)
	logger := log.New(b, "", 0)
	logger.Printf("feed started")
	logger.Printf("feed stopped")

	lines, _ := b.Snapshot(0)
	if len(lines) != 2 || lines[0] != "feed started" {
		t.Fatalf("lines=%v", lines)
	}
}

func TestLogsHandler_JSONAndTail(t *testing.T) {
	b := NewLogBuffer(10)
	for i := 1; i <= 5; i++ {
		_, _ = b.Write([]byte(fmt.Sprintf("line %d\n", i)))
	}
	ts := httptest.NewServer(b.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/logs?tail=2")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	var out LogsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Lines) != 2 || out.Lines[0] != "line 4" || out.Lines[1] != "line 5" {
		t.Fatalf("lines=%v", out.Lines)
	}
	if out.NowUTC == "" {
		t.Fatalf("now_utc missing")
	}

	for _, bad := range []string{"0", "5001", "x"} {
		r2, err := http.Get(ts.URL + "/api/logs?tail=" + bad)
		if err != nil {
			t.Fatalf("GET tail=%s: %v", bad, err)
		}
		_, _ = io.Copy(io.Discard, r2.Body)
		r2.Body.Close()
		if r2.StatusCode != http.StatusBadRequest {
			t.Fatalf("tail=%s status=%d", bad, r2.StatusCode)
		}
	}
}

func TestLogsHandler_TextFormat(t *testing.T) {
	b := NewLogBuffer(2)
	for i := 1; i <= 4; i++ {
		_, _ = b.Write([]byte(fmt.Sprintf("line %d\n", i)))
	}
	ts := httptest.NewServer(b.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/logs?format=text")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	text := string(body)
	if !strings.Contains(text, "[dropped=2]") {
		t.Fatalf("missing dropped banner: %s", text)
	}
	if !strings.Contains(text, "line 4") || strings.Contains(text, "line 1") {
		t.Fatalf("body=%s", text)
	}
}
