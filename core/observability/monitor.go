package observability

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Monitor records per-route dispatch counts, errors and latency
type Monitor struct {
	enabled atomic.Bool
	routes  sync.Map // string -> *RouteMetrics
	global  struct {
		totalRequests atomic.Uint64
		totalErrors   atomic.Uint64
		totalDuration atomic.Uint64
	}
}

// RouteMetrics stores per-route metrics
type RouteMetrics struct {
	Name           string
	Count          atomic.Uint64
	Errors         atomic.Uint64
	TotalDuration  atomic.Uint64
	MinDuration    atomic.Uint64
	MaxDuration    atomic.Uint64
	latencyBuckets [len(bucketBounds) + 1]atomic.Uint64
}

// Latency bucket upper bounds; the last bucket is unbounded
var bucketBounds = [...]time.Duration{
	time.Millisecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	5 * time.Second,
	10 * time.Second,
}

// Bottleneck is a route whose latency or error rate crossed a threshold
type Bottleneck struct {
	Type     string
	Location string
	Severity int
	Details  string
}

// NewMonitor creates an enabled monitor
func NewMonitor() *Monitor {
	m := &Monitor{}
	m.enabled.Store(true)
	return m
}

// SetEnabled turns recording on or off
func (m *Monitor) SetEnabled(on bool) {
	m.enabled.Store(on)
}

// RecordRequest records one dispatch against route
func (m *Monitor) RecordRequest(route string, duration time.Duration, isError bool) {
	if m == nil || !m.enabled.Load() {
		return
	}

	val, _ := m.routes.LoadOrStore(route, &RouteMetrics{Name: route})
	metrics := val.(*RouteMetrics)

	metrics.Count.Add(1)
	if isError {
		metrics.Errors.Add(1)
		m.global.totalErrors.Add(1)
	}

	d := uint64(duration.Nanoseconds())
	metrics.TotalDuration.Add(d)
	updateMinMax(metrics, d)
	metrics.latencyBuckets[bucketIndex(duration)].Add(1)

	m.global.totalRequests.Add(1)
	m.global.totalDuration.Add(d)
}

// Trace times fn and records it against route
func (m *Monitor) Trace(route string, fn func() error) error {
	start := time.Now()
	err := fn()
	m.RecordRequest(route, time.Since(start), err != nil)
	return err
}

func updateMinMax(m *RouteMetrics, d uint64) {
	for {
		min := m.MinDuration.Load()
		if min != 0 && d >= min {
			break
		}
		if m.MinDuration.CompareAndSwap(min, d) {
			break
		}
	}
	for {
		max := m.MaxDuration.Load()
		if d <= max {
			break
		}
		if m.MaxDuration.CompareAndSwap(max, d) {
			break
		}
	}
}

func bucketIndex(d time.Duration) int {
	for i, bound := range bucketBounds {
		if d < bound {
			return i
		}
	}
	return len(bucketBounds)
}

// RouteSnapshot is a point-in-time copy of RouteMetrics
type RouteSnapshot struct {
	Route   string
	Count   uint64
	Errors  uint64
	Average time.Duration
	Min     time.Duration
	Max     time.Duration
	Buckets []uint64
}

// Snapshot returns metrics for every recorded route sorted by name
func (m *Monitor) Snapshot() []RouteSnapshot {
	var out []RouteSnapshot
	m.routes.Range(func(_, value any) bool {
		rm := value.(*RouteMetrics)
		count := rm.Count.Load()
		s := RouteSnapshot{
			Route:   rm.Name,
			Count:   count,
			Errors:  rm.Errors.Load(),
			Min:     time.Duration(rm.MinDuration.Load()),
			Max:     time.Duration(rm.MaxDuration.Load()),
			Buckets: make([]uint64, len(rm.latencyBuckets)),
		}
		if count > 0 {
			s.Average = time.Duration(rm.TotalDuration.Load() / count)
		}
		for i := range rm.latencyBuckets {
			s.Buckets[i] = rm.latencyBuckets[i].Load()
		}
		out = append(out, s)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}

// Totals returns request and error counts across all routes
func (m *Monitor) Totals() (requests, errors uint64) {
	return m.global.totalRequests.Load(), m.global.totalErrors.Load()
}

// Bottlenecks reports routes averaging above slow or failing more than 5% of the time
func (m *Monitor) Bottlenecks(slow time.Duration) []Bottleneck {
	var bottlenecks []Bottleneck

	for _, s := range m.Snapshot() {
		if s.Count == 0 {
			continue
		}

		if s.Average > slow {
			bottlenecks = append(bottlenecks, Bottleneck{
				Type:     "latency",
				Location: s.Route,
				Severity: 8,
				Details:  fmt.Sprintf("High latency (%v avg)", s.Average),
			})
		}

		rate := float64(s.Errors) / float64(s.Count)
		if s.Errors > 0 && rate > 0.05 {
			bottlenecks = append(bottlenecks, Bottleneck{
				Type:     "errors",
				Location: s.Route,
				Severity: 10,
				Details:  fmt.Sprintf("%.1f%% error rate", rate*100),
			})
		}
	}

	return bottlenecks
}
