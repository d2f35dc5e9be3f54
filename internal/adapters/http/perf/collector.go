package perf

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRingSize is the default capacity of the ring buffer.
const DefaultRingSize = 10000

// EntryKind distinguishes what was timed.
type EntryKind uint8

const (
	KindRequest EntryKind = iota // inbound HTTP request
	KindQuery                    // diagnostics database call
	KindFetch                    // outbound remote sheet fetch
)

// String names the kind for logs and JSON.
func (k EntryKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindQuery:
		return "query"
	case KindFetch:
		return "fetch"
	default:
		return "unknown"
	}
}

// Entry is a single timing record stored in the ring buffer.
type Entry struct {
	Kind       EntryKind
	Path       string // HTTP route, "ExecContext", or fetched host+sheet
	StatusCode int    // HTTP status; 0 for queries and fetches that never got a response
	Failed     bool   // fetch ended in an error
	DurationMs float64
	Timestamp  time.Time
}

// Recorder accepts timing entries. *Collector implements it.
type Recorder interface {
	Record(e Entry)
}

// Collector is a fixed-size ring buffer for timing entries.
// Writes are non-blocking; when full, oldest entries are overwritten.
// Aggregation happens only on read (Snapshot).
type Collector struct {
	mu      sync.Mutex
	entries []Entry
	size    int
	pos     int
	count   int64 // total entries ever written (atomic for stats)
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a collector with the given ring buffer capacity.
// PRE: size > 0
// POST: Returns a ready-to-use collector with pre-allocated storage
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{
		entries: make([]Entry, size),
		size:    size,
	}
}

// Record appends an entry to the ring buffer.
// PRE: e is a valid Entry
// POST: Entry stored; if buffer full, oldest entry overwritten
func (c *Collector) Record(e Entry) {
	c.mu.Lock()
	c.entries[c.pos] = e
	c.pos = (c.pos + 1) % c.size
	c.mu.Unlock()
	atomic.AddInt64(&c.count, 1)
}

// TotalRecorded returns the total number of entries ever recorded.
func (c *Collector) TotalRecorded() int64 {
	return atomic.LoadInt64(&c.count)
}

// Snapshot holds aggregated performance data computed on read.
type Snapshot struct {
	TotalRecorded  int64      `json:"total_recorded"`
	RequestP50Ms   float64    `json:"request_p50_ms"`
	RequestP95Ms   float64    `json:"request_p95_ms"`
	RequestP99Ms   float64    `json:"request_p99_ms"`
	FetchP95Ms     float64    `json:"fetch_p95_ms"`
	FetchCount     int        `json:"fetch_count"`
	FetchFailures  int        `json:"fetch_failures"`
	SlowestPaths   []PathStat `json:"slowest_paths"`
	SlowestQueries []PathStat `json:"slowest_queries"`
	SlowestFetches []PathStat `json:"slowest_fetches"`
}

// PathStat aggregates timing for a single route, query op or fetch target.
type PathStat struct {
	Path     string  `json:"path"`
	AvgMs    float64 `json:"avg_ms"`
	MaxMs    float64 `json:"max_ms"`
	Count    int     `json:"count"`
	Failures int     `json:"failures,omitempty"`
	TotalMs  float64 `json:"total_ms"`
}

type statSet map[string]*PathStat

func (s statSet) add(e Entry) {
	st, ok := s[e.Path]
	if !ok {
		st = &PathStat{Path: e.Path}
		s[e.Path] = st
	}
	st.Count++
	st.TotalMs += e.DurationMs
	if e.DurationMs > st.MaxMs {
		st.MaxMs = e.DurationMs
	}
	if e.Failed {
		st.Failures++
	}
}

// Snapshot computes aggregated stats from the ring buffer.
// Sorting makes this expensive; call it from diagnostics endpoints only.
// PRE: topN > 0
// POST: Returns a Snapshot with percentiles and top-N lists per kind
func (c *Collector) Snapshot(since time.Time, topN int) Snapshot {
	c.mu.Lock()
	buf := make([]Entry, c.size)
	copy(buf, c.entries)
	c.mu.Unlock()

	var requestDurations, fetchDurations []float64
	stats := map[EntryKind]statSet{
		KindRequest: {},
		KindQuery:   {},
		KindFetch:   {},
	}
	fetchFailures := 0

	for _, e := range buf {
		if e.Timestamp.IsZero() || e.Timestamp.Before(since) {
			continue
		}
		set, ok := stats[e.Kind]
		if !ok {
			continue
		}
		set.add(e)
		switch e.Kind {
		case KindRequest:
			requestDurations = append(requestDurations, e.DurationMs)
		case KindFetch:
			fetchDurations = append(fetchDurations, e.DurationMs)
			if e.Failed {
				fetchFailures++
			}
		}
	}

	for _, set := range stats {
		for _, s := range set {
			s.AvgMs = s.TotalMs / float64(s.Count)
		}
	}

	snap := Snapshot{
		TotalRecorded:  c.TotalRecorded(),
		FetchCount:     len(fetchDurations),
		FetchFailures:  fetchFailures,
		SlowestPaths:   topByAvg(stats[KindRequest], topN),
		SlowestQueries: topByAvg(stats[KindQuery], topN),
		SlowestFetches: topByAvg(stats[KindFetch], topN),
	}

	if len(requestDurations) > 0 {
		sort.Float64s(requestDurations)
		snap.RequestP50Ms = percentile(requestDurations, 50)
		snap.RequestP95Ms = percentile(requestDurations, 95)
		snap.RequestP99Ms = percentile(requestDurations, 99)
	}
	if len(fetchDurations) > 0 {
		sort.Float64s(fetchDurations)
		snap.FetchP95Ms = percentile(fetchDurations, 95)
	}

	return snap
}

// percentile returns the p-th percentile from a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper || upper >= len(sorted) {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// topByAvg returns the top N paths sorted by average duration (descending).
func topByAvg(stats statSet, n int) []PathStat {
	list := make([]PathStat, 0, len(stats))
	for _, s := range stats {
		list = append(list, *s)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].AvgMs == list[j].AvgMs {
			return list[i].Path < list[j].Path
		}
		return list[i].AvgMs > list[j].AvgMs
	})
	if n > 0 && len(list) > n {
		list = list[:n]
	}
	return list
}
