// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"context"
	"expvar"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/corpusworks/knowledgehub/internal/common"
)

type spanKey struct{}

type span struct {
	name  string
	start time.Time
}

// MemoryLimitError is returned when a component exceeds the configured
// process memory budget.
type MemoryLimitError struct {
	Component string
	Usage     uint64
	Limit     uint64
}

func (e MemoryLimitError) Error() string {
	return fmt.Sprintf("memory limit exceeded for %s: %d > %d", e.Component, e.Usage, e.Limit)
}

var (
	initOnce sync.Once

	searchTotal     *expvar.Int
	searchRelaxed   *expvar.Int
	searchEmpty     *expvar.Int
	searchLatencyMS *expvar.Int

	embedCacheHits   *expvar.Int
	embedCacheMisses *expvar.Int

	ingestDocsTotal    *expvar.Int
	ingestChunksTotal  *expvar.Int
	ingestDroppedTotal *expvar.Int

	memoryLimitBytes uint64
	memoryLimitVar   *expvar.Int
	memoryUsageVar   *expvar.Int
)

func ensureInit() {
	initOnce.Do(func() {
		searchTotal = expvar.NewInt("khub_search_total")
		searchRelaxed = expvar.NewInt("khub_search_relaxed_total")
		searchEmpty = expvar.NewInt("khub_search_empty_total")
		searchLatencyMS = expvar.NewInt("khub_search_latency_ms")

		embedCacheHits = expvar.NewInt("khub_embed_cache_hits")
		embedCacheMisses = expvar.NewInt("khub_embed_cache_misses")

		ingestDocsTotal = expvar.NewInt("khub_ingest_docs_total")
		ingestChunksTotal = expvar.NewInt("khub_ingest_chunks_total")
		ingestDroppedTotal = expvar.NewInt("khub_ingest_dropped_chunks_total")

		memoryLimitVar = expvar.NewInt("khub_memory_limit_bytes")
		memoryUsageVar = expvar.NewInt("khub_memory_usage_bytes")

		memoryLimitBytes = loadMemoryLimit()
		memoryLimitVar.Set(int64(memoryLimitBytes))
	})
}

func loadMemoryLimit() uint64 {
	if limit := strings.TrimSpace(os.Getenv("KHUB_MEMORY_LIMIT_BYTES")); limit != "" {
		if value, err := strconv.ParseUint(limit, 10, 64); err == nil {
			return value
		}
	}
	if limitMB := strings.TrimSpace(os.Getenv("KHUB_MEMORY_LIMIT_MB")); limitMB != "" {
		if value, err := strconv.ParseUint(limitMB, 10, 64); err == nil {
			return value * 1024 * 1024
		}
	}
	return 0
}

// StartSpan begins a debug span. The returned func logs the span duration
// together with any attrs passed at completion.
func StartSpan(ctx context.Context, name string) (context.Context, func(attrs ...any)) {
	ensureInit()
	sp := &span{name: name, start: time.Now()}
	ctx = context.WithValue(ctx, spanKey{}, sp)
	logger := common.Logger()
	logger.Debug("trace: start", "span", name)
	return ctx, func(attrs ...any) {
		duration := time.Since(sp.start)
		logger.Debug("trace: end", append([]any{"span", name, "dur", duration}, attrs...)...)
	}
}

// RecordSearch captures the outcome of one retrieval call. relaxedAttempts is
// the number of threshold relaxations performed before results were returned.
func RecordSearch(results int, relaxedAttempts int, duration time.Duration) {
	ensureInit()
	searchTotal.Add(1)
	if relaxedAttempts > 0 {
		searchRelaxed.Add(int64(relaxedAttempts))
	}
	if results == 0 {
		searchEmpty.Add(1)
	}
	if duration > 0 {
		searchLatencyMS.Add(duration.Milliseconds())
	}
}

// RecordEmbedCache captures a query-embedding cache lookup.
func RecordEmbedCache(hit bool) {
	ensureInit()
	if hit {
		embedCacheHits.Add(1)
	} else {
		embedCacheMisses.Add(1)
	}
}

// RecordIngest captures the outcome of one document ingestion.
func RecordIngest(chunks, dropped int) {
	ensureInit()
	ingestDocsTotal.Add(1)
	if chunks > 0 {
		ingestChunksTotal.Add(int64(chunks))
	}
	if dropped > 0 {
		ingestDroppedTotal.Add(int64(dropped))
	}
}

// CheckMemoryBudget compares current heap usage against the configured limit.
// With no limit configured it only refreshes the usage gauge.
func CheckMemoryBudget(component string) error {
	ensureInit()
	usage := updateMemoryUsage()
	if memoryLimitBytes == 0 {
		return nil
	}
	if usage > memoryLimitBytes {
		err := MemoryLimitError{Component: component, Usage: usage, Limit: memoryLimitBytes}
		common.Logger().Warn("telemetry: memory guard tripped", "component", component, "usage", usage, "limit", memoryLimitBytes)
		return err
	}
	return nil
}

func updateMemoryUsage() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	memoryUsageVar.Set(int64(stats.Alloc))
	return stats.Alloc
}

// SpanDuration reports elapsed time for the span carried by ctx, if any.
func SpanDuration(ctx context.Context) time.Duration {
	sp, _ := ctx.Value(spanKey{}).(*span)
	if sp == nil {
		return 0
	}
	return time.Since(sp.start)
}
