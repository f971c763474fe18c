package telemetry

import (
	"log/slog"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/kartpilot/systems"
)

var phaseRegistry = systems.NewPhaseRegistry()

type tickSample struct {
	total  time.Duration
	phases []time.Duration
}

// PerfCollector times race ticks and their phases over a rolling window.
// Phases are the ones known to the phase registry; unknown phase ids only
// close the running phase.
type PerfCollector struct {
	phases []string
	slot   map[string]int
	simDT  float64

	samples []tickSample
	next    int
	count   int

	cur        tickSample
	tickStart  time.Time
	phaseStart time.Time
	running    int
}

// NewPerfCollector creates a collector averaging over windowSize ticks.
// simDT is the simulated time per tick, used for the realtime factor.
func NewPerfCollector(windowSize int, simDT float64) *PerfCollector {
	if windowSize < 1 {
		windowSize = 120
	}
	ids := phaseRegistry.IDs()
	p := &PerfCollector{
		phases:  ids,
		slot:    make(map[string]int, len(ids)),
		simDT:   simDT,
		samples: make([]tickSample, windowSize),
		running: -1,
	}
	for i, id := range ids {
		p.slot[id] = i
	}
	for i := range p.samples {
		p.samples[i].phases = make([]time.Duration, len(ids))
	}
	p.cur.phases = make([]time.Duration, len(ids))
	return p
}

// StartTick begins timing a tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	clear(p.cur.phases)
	p.running = -1
}

// StartPhase closes the running phase and starts timing the given one.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	p.closePhase(now)
	p.phaseStart = now
	if i, ok := p.slot[phase]; ok {
		p.running = i
	} else {
		p.running = -1
	}
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.running >= 0 {
		p.cur.phases[p.running] += now.Sub(p.phaseStart)
	}
}

// EndTick closes the tick and stores it in the window.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	p.closePhase(now)
	p.running = -1

	s := &p.samples[p.next]
	s.total = now.Sub(p.tickStart)
	copy(s.phases, p.cur.phases)

	p.next = (p.next + 1) % len(p.samples)
	if p.count < len(p.samples) {
		p.count++
	}
}

// PerfStats summarizes the current window.
type PerfStats struct {
	AvgTick time.Duration
	P95Tick time.Duration
	MaxTick time.Duration

	TicksPerSecond float64
	// RealtimeFactor is simulated seconds per wall-clock second.
	RealtimeFactor float64

	phases []string
	pct    []float64
}

// Pct returns the share of tick time spent in a phase, in percent.
func (s PerfStats) Pct(phase string) float64 {
	if i := slices.Index(s.phases, phase); i >= 0 {
		return s.pct[i]
	}
	return 0
}

// Stats computes statistics over the window.
func (p *PerfCollector) Stats() PerfStats {
	out := PerfStats{phases: p.phases, pct: make([]float64, len(p.phases))}
	if p.count == 0 {
		return out
	}

	ticks := make([]float64, p.count)
	phaseSum := make([]time.Duration, len(p.phases))
	var total time.Duration
	for i := 0; i < p.count; i++ {
		s := p.samples[i]
		total += s.total
		ticks[i] = float64(s.total)
		for j, d := range s.phases {
			phaseSum[j] += d
		}
	}
	slices.Sort(ticks)

	out.AvgTick = total / time.Duration(p.count)
	out.P95Tick = time.Duration(stat.Quantile(0.95, stat.Empirical, ticks, nil))
	out.MaxTick = time.Duration(ticks[len(ticks)-1])
	if total > 0 {
		for j, d := range phaseSum {
			out.pct[j] = float64(d) / float64(total) * 100
		}
	}
	if out.AvgTick > 0 {
		out.TicksPerSecond = float64(time.Second) / float64(out.AvgTick)
		out.RealtimeFactor = out.TicksPerSecond * p.simDT
	}
	return out
}

// LogStats logs the window with phases above 0.1% of tick time.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_tick_us", s.AvgTick.Microseconds(),
		"p95_tick_us", s.P95Tick.Microseconds(),
		"max_tick_us", s.MaxTick.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
		"realtime_x", int(s.RealtimeFactor*10) / 10.0,
	}
	for i, phase := range s.phases {
		if s.pct[i] > 0.1 {
			attrs = append(attrs, phase+"_pct", int(s.pct[i]*10)/10.0)
		}
	}
	slog.Info("perf", attrs...)
}

// PerfStatsCSV is the perf.csv row.
type PerfStatsCSV struct {
	WindowEnd      int64   `csv:"window_end"`
	AvgTickUS      int64   `csv:"avg_tick_us"`
	P95TickUS      int64   `csv:"p95_tick_us"`
	MaxTickUS      int64   `csv:"max_tick_us"`
	TicksPerSec    float64 `csv:"ticks_per_sec"`
	RealtimeFactor float64 `csv:"realtime_factor"`
	SnapshotPct    float64 `csv:"snapshot_pct"`
	DecidePct      float64 `csv:"decide_pct"`
	ActuatePct     float64 `csv:"actuate_pct"`
	PhysicsPct     float64 `csv:"physics_pct"`
	ItemsPct       float64 `csv:"items_pct"`
	ProgressPct    float64 `csv:"progress_pct"`
	TelemetryPct   float64 `csv:"telemetry_pct"`
}

// ToCSV flattens the stats for a window ending at windowEnd.
func (s PerfStats) ToCSV(windowEnd int64) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:      windowEnd,
		AvgTickUS:      s.AvgTick.Microseconds(),
		P95TickUS:      s.P95Tick.Microseconds(),
		MaxTickUS:      s.MaxTick.Microseconds(),
		TicksPerSec:    s.TicksPerSecond,
		RealtimeFactor: s.RealtimeFactor,
		SnapshotPct:    s.Pct(systems.PhaseSnapshot),
		DecidePct:      s.Pct(systems.PhaseDecide),
		ActuatePct:     s.Pct(systems.PhaseActuate),
		PhysicsPct:     s.Pct(systems.PhasePhysics),
		ItemsPct:       s.Pct(systems.PhaseItems),
		ProgressPct:    s.Pct(systems.PhaseProgress),
		TelemetryPct:   s.Pct(systems.PhaseTelemetry),
	}
}
