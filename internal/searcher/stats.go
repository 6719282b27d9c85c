package searcher

import (
	"sync"
	"time"

	"github.com/devgraph/devgraph-mcp/internal/query"
)

// slowQueryCap bounds the slow-query ring
const slowQueryCap = 32

// SlowQuery records one query that crossed the slow threshold
type SlowQuery struct {
	Query    string            `json:"query"`
	Pattern  query.PatternType `json:"pattern"`
	Duration time.Duration     `json:"duration"`
	At       time.Time         `json:"at"`
}

// Statistics is a snapshot of the engine's running counters.
// Observability only; nothing in the engine consults these.
type Statistics struct {
	TotalQueries  int64                       `json:"total_queries"`
	AvgLatency    time.Duration               `json:"avg_latency"`
	PatternCounts map[query.PatternType]int64 `json:"pattern_counts"`
	SlowQueries   []SlowQuery                 `json:"slow_queries"`
}

type stats struct {
	mu            sync.Mutex
	totalQueries  int64
	totalLatency  time.Duration
	patternCounts map[query.PatternType]int64
	slowQueries   []SlowQuery
	slowNext      int
}

func newStats() *stats {
	return &stats{patternCounts: make(map[query.PatternType]int64)}
}

func (s *stats) record(pattern query.PatternType, raw string, elapsed, slowThreshold time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalQueries++
	s.totalLatency += elapsed
	s.patternCounts[pattern]++

	if elapsed >= slowThreshold {
		sq := SlowQuery{Query: raw, Pattern: pattern, Duration: elapsed, At: time.Now()}
		if len(s.slowQueries) < slowQueryCap {
			s.slowQueries = append(s.slowQueries, sq)
		} else {
			s.slowQueries[s.slowNext] = sq
			s.slowNext = (s.slowNext + 1) % slowQueryCap
		}
	}
}

// Stats returns a copy of the engine's running counters
func (e *Engine) Stats() Statistics {
	s := e.stats
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Statistics{
		TotalQueries:  s.totalQueries,
		PatternCounts: make(map[query.PatternType]int64, len(s.patternCounts)),
		SlowQueries:   append([]SlowQuery(nil), s.slowQueries...),
	}
	if s.totalQueries > 0 {
		out.AvgLatency = s.totalLatency / time.Duration(s.totalQueries)
	}
	for k, v := range s.patternCounts {
		out.PatternCounts[k] = v
	}
	return out
}
