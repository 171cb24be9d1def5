package web

import (
	"sync/atomic"
	"time"

	"binnacle/internal/sensors"
)

// Status tracks feed activity for /api/status. All fields are updated
// atomically so the ingest goroutine never blocks on a reader.
type Status struct {
	startUnixNano int64
	linesTotal    uint64
	readingsTotal uint64
	lastLineNano  int64
	listen        atomic.Value // string
	feeds         atomic.Value // []string
}

func NewStatus() *Status {
	s := &Status{}
	now := time.Now().UTC()
	atomic.StoreInt64(&s.startUnixNano, now.UnixNano())
	atomic.StoreInt64(&s.lastLineNano, 0)
	s.listen.Store("")
	s.feeds.Store([]string(nil))
	return s
}

// SetStatic records the listen address and active feed names once at
// startup.
func (s *Status) SetStatic(listen string, feeds []string) {
	if listen != "" {
		s.listen.Store(listen)
	}
	if feeds != nil {
		s.feeds.Store(append([]string(nil), feeds...))
	}
}

// MarkLine records one processed sentence and the readings it produced.
func (s *Status) MarkLine(nowUTC time.Time, readings int) {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	atomic.StoreInt64(&s.lastLineNano, nowUTC.UnixNano())
	atomic.AddUint64(&s.linesTotal, 1)
	if readings > 0 {
		atomic.AddUint64(&s.readingsTotal, uint64(readings))
	}
}

// SystemSnapshot is a best-effort view of the host the daemon runs on.
// Only the linux build fills it in.
type SystemSnapshot struct {
	RootPath       string   `json:"root_path,omitempty"`
	RootTotalBytes uint64   `json:"root_total_bytes,omitempty"`
	RootFreeBytes  uint64   `json:"root_free_bytes,omitempty"`
	RootAvailBytes uint64   `json:"root_avail_bytes,omitempty"`
	MemTotalBytes  uint64   `json:"mem_total_bytes,omitempty"`
	MemFreeBytes   uint64   `json:"mem_free_bytes,omitempty"`
	HostUptimeSec  int64    `json:"host_uptime_sec,omitempty"`
	Load1          float64  `json:"load1,omitempty"`
	LocalAddrs     []string `json:"local_addrs,omitempty"`
	LastError      string   `json:"last_error,omitempty"`
}

type StatusSnapshot struct {
	Service       string          `json:"service"`
	NowUTC        string          `json:"now_utc"`
	UptimeSec     int64           `json:"uptime_sec"`
	Listen        string          `json:"listen"`
	Feeds         []string        `json:"feeds"`
	LinesTotal    uint64          `json:"lines_total"`
	ReadingsTotal uint64          `json:"readings_total"`
	LastLineUTC   string          `json:"last_line_utc,omitempty"`
	Cache         sensors.Stats   `json:"cache"`
	System        *SystemSnapshot `json:"system,omitempty"`
}

// Snapshot returns the counters. The status handler merges in cache
// occupancy and the host view before serving it.
func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()
	uptime := nowUTC.Sub(start)
	lastLine := atomic.LoadInt64(&s.lastLineNano)

	snap := StatusSnapshot{
		Service:       "binnacle",
		NowUTC:        nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:     int64(uptime.Seconds()),
		Listen:        s.listen.Load().(string),
		Feeds:         s.feeds.Load().([]string),
		LinesTotal:    atomic.LoadUint64(&s.linesTotal),
		ReadingsTotal: atomic.LoadUint64(&s.readingsTotal),
	}
	if snap.Feeds == nil {
		snap.Feeds = []string{}
	}
	if lastLine != 0 {
		snap.LastLineUTC = time.Unix(0, lastLine).UTC().Format(time.RFC3339Nano)
	}
	return snap
}
