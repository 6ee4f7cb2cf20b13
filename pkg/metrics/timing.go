// Package metrics times the hot paths of the browse cycle: filter and
// arrange passes, the per-frame update, source loads, rendering, and
// snapshot export. Timings accumulate in-process and surface through the
// robot dump, so a scripted run can see where the time went without a
// profiler attached.
//
// Collection is on unless CANOPY_METRICS=0 is set. Recording is a couple
// of atomic adds, cheap enough to leave in the frame loop.
package metrics

import (
	"math"
	"os"
	"sync/atomic"
	"time"
)

var enabled = os.Getenv("CANOPY_METRICS") != "0"

// Enabled reports whether timings are being collected.
func Enabled() bool { return enabled }

// SetEnabled turns collection on or off at runtime.
func SetEnabled(e bool) { enabled = e }

// Timing accumulates durations for one named operation. All methods are
// safe for concurrent use.
type Timing struct {
	name  string
	count atomic.Int64
	total atomic.Int64
	max   atomic.Int64
	min   atomic.Int64
}

func newTiming(name string) *Timing {
	t := &Timing{name: name}
	t.min.Store(math.MaxInt64)
	return t
}

// Record folds one measurement into the running totals.
func (t *Timing) Record(d time.Duration) {
	if !enabled {
		return
	}
	ns := d.Nanoseconds()
	t.count.Add(1)
	t.total.Add(ns)
	for {
		max := t.max.Load()
		if ns <= max || t.max.CompareAndSwap(max, ns) {
			break
		}
	}
	for {
		min := t.min.Load()
		if ns >= min || t.min.CompareAndSwap(min, ns) {
			break
		}
	}
}

// Name returns the operation label, as it appears in dumps.
func (t *Timing) Name() string { return t.name }

// Count returns how many measurements have been recorded.
func (t *Timing) Count() int64 { return t.count.Load() }

// Reset discards everything recorded so far.
func (t *Timing) Reset() {
	t.count.Store(0)
	t.total.Store(0)
	t.max.Store(0)
	t.min.Store(math.MaxInt64)
}

// Stats snapshots the timing in milliseconds. The zero TimingStats comes
// back for a metric nothing has recorded into.
func (t *Timing) Stats() TimingStats {
	n := t.count.Load()
	if n == 0 {
		return TimingStats{Name: t.name}
	}
	total := t.total.Load()
	return TimingStats{
		Name:    t.name,
		Count:   n,
		TotalMs: float64(total) / 1e6,
		AvgMs:   float64(total/n) / 1e6,
		MaxMs:   float64(t.max.Load()) / 1e6,
		MinMs:   float64(t.min.Load()) / 1e6,
	}
}

// TimingStats is the wire form of one timing, embedded in robot dumps.
type TimingStats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
	MinMs   float64 `json:"min_ms,omitempty"`
}

// Timer starts a measurement and returns the function that stops it:
//
//	defer metrics.Timer(metrics.FilterPass)()
func Timer(t *Timing) func() {
	if !enabled || t == nil {
		return func() {}
	}
	start := time.Now()
	return func() { t.Record(time.Since(start)) }
}

// registry collects every timing declared below, in declaration order.
var registry []*Timing

func register(name string) *Timing {
	t := newTiming(name)
	registry = append(registry, t)
	return t
}

// The tracked operations.
var (
	FilterPass     = register("filter_pass")
	ArrangePass    = register("arrange_pass")
	UpdateCycle    = register("update_cycle")
	SourceLoad     = register("source_load")
	UIRender       = register("ui_render")
	SnapshotExport = register("snapshot_export")
)

// ResetAll clears every registered timing.
func ResetAll() {
	for _, t := range registry {
		t.Reset()
	}
}

// AllTimingStats returns stats for the timings that have data, in
// registration order.
func AllTimingStats() []TimingStats {
	var out []TimingStats
	for _, t := range registry {
		if t.Count() > 0 {
			out = append(out, t.Stats())
		}
	}
	return out
}
