// Package metrics implements the per-generation record and rolling summary
// of spec.md §4.7 (C7).
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/zhenzou/executors"

	"github.com/looplj/harmonygate/internal/log"
	"github.com/looplj/harmonygate/llm"
)

// Summary is the rolling aggregate exposed by Tracker.Summary.
type Summary struct {
	Count              int64
	SumLatencyMS       int64
	AvgLatencyMS       float64
	MinLatencyMS       int64
	MaxLatencyMS       int64
	AvgTokensPerSecond float64
	AvgTTFTMs          float64
}

// Tracker accumulates GenerationMetrics records and exposes a rolling
// Summary, mirroring the teacher's channel-probe services
// (internal/server/biz/channel_probe.go): an in-memory accumulator guarded
// by a mutex, with an optional cron-scheduled periodic flush.
type Tracker struct {
	mu      sync.Mutex
	records []llm.GenerationMetrics

	sumLatencyMS       int64
	minLatencyMS       int64
	maxLatencyMS       int64
	sumTokensPerSecond float64
	sumTTFTMs          int64
	ttftCount          int64

	executor executors.ScheduledExecutor
}

// NewTracker constructs an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record adds a completed generation's metrics to the rolling aggregate.
// Safe for concurrent use; per spec.md §5, callers sharing a Tracker across
// tasks must not rely on it serializing engine access itself.
func (t *Tracker) Record(m llm.GenerationMetrics) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records = append(t.records, m)

	t.sumLatencyMS += m.LatencyMS
	if len(t.records) == 1 || m.LatencyMS < t.minLatencyMS {
		t.minLatencyMS = m.LatencyMS
	}

	if m.LatencyMS > t.maxLatencyMS {
		t.maxLatencyMS = m.LatencyMS
	}

	t.sumTokensPerSecond += m.TokensPerSecond

	if m.TTFTMs != nil {
		t.sumTTFTMs += *m.TTFTMs
		t.ttftCount++
	}
}

// Summary snapshots the rolling aggregate (spec.md §4.7).
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := int64(len(t.records))
	if count == 0 {
		return Summary{}
	}

	s := Summary{
		Count:        count,
		SumLatencyMS: t.sumLatencyMS,
		AvgLatencyMS: float64(t.sumLatencyMS) / float64(count),
		MinLatencyMS: t.minLatencyMS,
		MaxLatencyMS: t.maxLatencyMS,
		AvgTokensPerSecond: t.sumTokensPerSecond / float64(count),
	}

	if t.ttftCount > 0 {
		s.AvgTTFTMs = float64(t.sumTTFTMs) / float64(t.ttftCount)
	}

	return s
}

// StartPeriodicFlush schedules a cron-driven log line summarizing the
// rolling aggregate, grounded on the teacher's
// ScheduledExecutor.ScheduleFuncAtCronRate usage
// (internal/server/biz/channel_probe.go, internal/server/backup/worker.go):
// a single-concurrency pool executor runs the flush function on the given
// cron schedule until Stop is called.
func (t *Tracker) StartPeriodicFlush(ctx context.Context, cronExpr string) error {
	t.executor = executors.NewPoolScheduleExecutor(executors.WithMaxConcurrent(1))

	_, err := t.executor.ScheduleFuncAtCronRate(
		func() {
			t.logSummary(ctx)
		},
		executors.CRONRule{Expr: cronExpr},
	)

	return err
}

// Stop shuts down the periodic flush scheduler, if one was started.
func (t *Tracker) Stop(ctx context.Context) error {
	if t.executor == nil {
		return nil
	}

	return t.executor.Shutdown(ctx)
}

func (t *Tracker) logSummary(ctx context.Context) {
	s := t.Summary()
	if s.Count == 0 {
		return
	}

	log.Info(ctx, "generation metrics rolling summary",
		log.Int64("count", s.Count),
		log.Float64("avg_latency_ms", s.AvgLatencyMS),
		log.Int64("min_latency_ms", s.MinLatencyMS),
		log.Int64("max_latency_ms", s.MaxLatencyMS),
		log.Float64("avg_tokens_per_second", s.AvgTokensPerSecond),
		log.Float64("avg_ttft_ms", s.AvgTTFTMs),
	)
}

// ElapsedSince is a small convenience used by callers computing
// GenerationMetrics.LatencyMS outside the mediator (e.g. tests, the
// simulator's timing-free path does not need it).
func ElapsedSince(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
