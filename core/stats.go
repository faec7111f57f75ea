package core

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/searchktools/segserve/core/observability"
	"github.com/searchktools/segserve/core/pools"
	"github.com/searchktools/segserve/core/router"
)

// Stats route output formats
const (
	StatsFormatJSON = "json"
	StatsFormatText = "text"
)

// Stats is a snapshot of the pool, response buffers and dispatch metrics
type Stats struct {
	Pool        pools.WorkerPoolStats
	Buffers     pools.BufferStats
	Requests    uint64
	Errors      uint64
	Routes      []observability.RouteSnapshot
	Bottlenecks []observability.Bottleneck
}

// Stats returns current server statistics
func (s *Server) Stats() Stats {
	requests, errs := s.monitor.Totals()
	return Stats{
		Pool:        s.pool.Stats(),
		Buffers:     pools.GetBufferStats(),
		Requests:    requests,
		Errors:      errs,
		Routes:      s.monitor.Snapshot(),
		Bottlenecks: s.monitor.Bottlenecks(s.slowThreshold),
	}
}

// StatsJSON renders Stats as JSON
func (s *Server) StatsJSON() (string, error) {
	stats := s.Stats()

	routes := make([]any, 0, len(stats.Routes))
	for _, r := range stats.Routes {
		routes = append(routes, map[string]any{
			"route":  r.Route,
			"count":  r.Count,
			"errors": r.Errors,
			"avg_ms": durationMs(r.Average.Nanoseconds()),
			"min_ms": durationMs(r.Min.Nanoseconds()),
			"max_ms": durationMs(r.Max.Nanoseconds()),
		})
	}

	bottlenecks := make([]any, 0, len(stats.Bottlenecks))
	for _, b := range stats.Bottlenecks {
		bottlenecks = append(bottlenecks, map[string]any{
			"type":     b.Type,
			"route":    b.Location,
			"severity": b.Severity,
			"details":  b.Details,
		})
	}

	st, err := structpb.NewStruct(map[string]any{
		"pool": map[string]any{
			"workers":   stats.Pool.NumWorkers,
			"submitted": stats.Pool.TasksSubmitted,
			"completed": stats.Pool.TasksCompleted,
			"panicked":  stats.Pool.TasksPanicked,
			"pending":   stats.Pool.TasksPending,
		},
		"buffers": map[string]any{
			"small":     stats.Buffers.SmallGets,
			"medium":    stats.Buffers.MediumGets,
			"large":     stats.Buffers.LargeGets,
			"discarded": stats.Buffers.Discarded,
		},
		"requests":    stats.Requests,
		"errors":      stats.Errors,
		"routes":      routes,
		"bottlenecks": bottlenecks,
	})
	if err != nil {
		return "", fmt.Errorf("build stats: %w", err)
	}

	data, err := protojson.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("marshal stats: %w", err)
	}
	return string(data), nil
}

// StatsText renders Stats as human-readable text
func (s *Server) StatsText() string {
	stats := s.Stats()

	var b strings.Builder
	fmt.Fprintf(&b, `Worker Pool
===========
  Workers:   %d
  Submitted: %d
  Completed: %d
  Panicked:  %d
  Pending:   %d

Requests: %d (errors: %d)
`,
		stats.Pool.NumWorkers, stats.Pool.TasksSubmitted, stats.Pool.TasksCompleted,
		stats.Pool.TasksPanicked, stats.Pool.TasksPending,
		stats.Requests, stats.Errors,
	)
	for _, r := range stats.Routes {
		fmt.Fprintf(&b, "  %-24s count=%d errors=%d avg=%v max=%v\n", r.Route, r.Count, r.Errors, r.Average, r.Max)
	}
	if len(stats.Bottlenecks) > 0 {
		b.WriteString("\nBottlenecks:\n")
		for _, bn := range stats.Bottlenecks {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", bn.Type, bn.Location, bn.Details)
		}
	}
	return b.String()
}

// StatsHandler returns a route handler serving StatsText for StatsFormatText
// and StatsJSON otherwise
func (s *Server) StatsHandler(format string) router.Handler {
	if format == StatsFormatText {
		return func() (string, error) { return s.StatsText(), nil }
	}
	return s.StatsJSON
}

func durationMs(ns int64) float64 {
	return float64(ns) / 1e6
}
