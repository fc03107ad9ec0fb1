package orchestrator

import (
	"sync/atomic"
	"time"

	"xfeed/pkg/feedtypes"
)

// Stats accumulates the per-outcome counters named in §4.G:
// discovery hits by strategy, pass-through vs. synthesized counts,
// and average latency per path. All fields are updated without
// locking a shared mutex, matching the "no shared locks held across
// I/O" rule of §5.
type Stats struct {
	discoveryHits [int(feedtypes.StrategyContentMining) + 1]atomic.Uint64

	passthroughCount atomic.Uint64
	synthesizedCount atomic.Uint64

	passthroughLatencyNs atomic.Uint64
	synthesizedLatencyNs atomic.Uint64
}

func (s *Stats) recordDiscoveryHit(strategy feedtypes.Strategy) {
	if int(strategy) < 0 || int(strategy) >= len(s.discoveryHits) {
		return
	}
	s.discoveryHits[strategy].Add(1)
}

func (s *Stats) recordPassthrough(latency time.Duration) {
	s.passthroughCount.Add(1)
	s.passthroughLatencyNs.Add(uint64(latency.Nanoseconds()))
}

func (s *Stats) recordSynthesized(latency time.Duration) {
	s.synthesizedCount.Add(1)
	s.synthesizedLatencyNs.Add(uint64(latency.Nanoseconds()))
}

// StatsSnapshot is the point-in-time, JSON-friendly view of Stats
// consumed by GET /cache/stats.
type StatsSnapshot struct {
	DiscoveryHitsByStrategy map[string]uint64 `json:"discoveryHitsByStrategy"`
	PassthroughCount        uint64            `json:"passthroughCount"`
	SynthesizedCount        uint64            `json:"synthesizedCount"`
	AvgPassthroughLatencyMs float64           `json:"avgPassthroughLatencyMs"`
	AvgSynthesizedLatencyMs float64           `json:"avgSynthesizedLatencyMs"`
	CacheEntries            int               `json:"cacheEntries"`
	CacheHits               uint64            `json:"cacheHits"`
	CacheMisses             uint64            `json:"cacheMisses"`
	CacheHitRatio           float64           `json:"cacheHitRatio"`
}

func (s *Stats) snapshot() StatsSnapshot {
	byStrategy := make(map[string]uint64, len(s.discoveryHits))
	for i := range s.discoveryHits {
		if v := s.discoveryHits[i].Load(); v > 0 {
			byStrategy[feedtypes.Strategy(i).String()] = v
		}
	}

	passthrough := s.passthroughCount.Load()
	synthesized := s.synthesizedCount.Load()

	return StatsSnapshot{
		DiscoveryHitsByStrategy: byStrategy,
		PassthroughCount:        passthrough,
		SynthesizedCount:        synthesized,
		AvgPassthroughLatencyMs: avgMillis(s.passthroughLatencyNs.Load(), passthrough),
		AvgSynthesizedLatencyMs: avgMillis(s.synthesizedLatencyNs.Load(), synthesized),
	}
}

func avgMillis(totalNs, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return float64(totalNs) / float64(count) / float64(time.Millisecond)
}
