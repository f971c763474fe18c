package game

import (
	"log/slog"
	"sort"
	"time"
)

// EngineTimings tracks decision time for each kart's engine.
type EngineTimings struct {
	samples    [][]time.Duration
	maxSamples int
}

// NewEngineTimings creates a tracker keeping the last maxSamples per engine.
func NewEngineTimings(maxSamples int) *EngineTimings {
	if maxSamples < 1 {
		maxSamples = 120
	}
	return &EngineTimings{maxSamples: maxSamples}
}

// Record adds a duration sample for engine i.
func (p *EngineTimings) Record(i int, d time.Duration) {
	for len(p.samples) <= i {
		p.samples = append(p.samples, nil)
	}
	p.samples[i] = append(p.samples[i], d)
	if len(p.samples[i]) > p.maxSamples {
		p.samples[i] = p.samples[i][1:]
	}
}

// Avg returns the average decision time of engine i.
func (p *EngineTimings) Avg(i int) time.Duration {
	if i >= len(p.samples) || len(p.samples[i]) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range p.samples[i] {
		total += d
	}
	return total / time.Duration(len(p.samples[i]))
}

// Total returns the sum of all engine averages: the decide cost of one tick.
func (p *EngineTimings) Total() time.Duration {
	var total time.Duration
	for i := range p.samples {
		total += p.Avg(i)
	}
	return total
}

// Slowest returns engine indices sorted by average time (descending).
func (p *EngineTimings) Slowest() []int {
	idx := make([]int, len(p.samples))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return p.Avg(idx[a]) > p.Avg(idx[b])
	})
	return idx
}

// LogStats logs the decide cost and the slowest engine.
func (p *EngineTimings) LogStats() {
	attrs := []any{"decide_total_us", p.Total().Microseconds()}
	if s := p.Slowest(); len(s) > 0 {
		attrs = append(attrs, "slowest_kart", s[0], "slowest_us", p.Avg(s[0]).Microseconds())
	}
	slog.Info("engines", attrs...)
}
