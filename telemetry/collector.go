// Package telemetry provides race stats windows, decision traces, bookmarks,
// performance timing and CSV output.
package telemetry

import (
	"math"

	"github.com/pthm-cable/kartpilot/components"
	"github.com/pthm-cable/kartpilot/controller"
)

// KartSample is the state of one kart sampled at window end.
type KartSample struct {
	ID       uint32
	Speed    float64
	Distance float64
	Finished bool
}

// Collector accumulates decisions within time windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int64
	dt                  float64

	// Current window tracking
	windowStartTick int64

	// Decision counters for current window
	decisions    int
	rivalCrashes int
	offTrack     int
	recoveries   int
	graphMisses  int
	skidTicks    int
	skidDeclined int
	itemsFired   int
	bombChases   int
	rescues      int
	pickups      int
	nitroTicks   int
	brakeTicks   int
	steers       []float64

	// Distance per kart at the start of the window
	lastDistance map[uint32]float64
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec, dt float64) *Collector {
	ticksPerWindow := int64(math.Round(windowDurationSec / dt))
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
		lastDistance:        make(map[uint32]float64),
	}
}

// RecordDecision folds one engine decision into the current window.
func (c *Collector) RecordDecision(d controller.Decision) {
	c.decisions++
	if d.Crash.Rival != controller.NoVehicle {
		c.rivalCrashes++
	}
	if d.Crash.OnTrack {
		c.offTrack++
	}
	if d.Recovery {
		c.recoveries++
	}
	if d.GraphMiss {
		c.graphMisses++
	}
	if d.Controls.Skid != components.SkidNone {
		c.skidTicks++
	}
	if d.WantSkid && d.Skid == controller.SkidCommittedNo {
		c.skidDeclined++
	}
	if d.Controls.Fire {
		c.itemsFired++
	}
	if d.BombChase {
		c.bombChases++
	}
	if d.Controls.Rescue {
		c.rescues++
	}
	if d.Controls.Nitro {
		c.nitroTicks++
	}
	if d.Controls.Brake > 0 {
		c.brakeTicks++
	}
	c.steers = append(c.steers, math.Abs(d.Controls.Steer))
}

// RecordPickup records a pickup collected by any kart.
func (c *Collector) RecordPickup() {
	c.pickups++
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int64) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int64, karts []KartSample) WindowStats {
	var nitroRate, brakeRate float64
	if c.decisions > 0 {
		nitroRate = float64(c.nitroTicks) / float64(c.decisions)
		brakeRate = float64(c.brakeTicks) / float64(c.decisions)
	}

	speeds := make([]float64, 0, len(karts))
	gained := make([]float64, 0, len(karts))
	finished := 0
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, k := range karts {
		speeds = append(speeds, k.Speed)
		gained = append(gained, k.Distance-c.lastDistance[k.ID])
		c.lastDistance[k.ID] = k.Distance
		if k.Finished {
			finished++
		}
		lo = math.Min(lo, k.Distance)
		hi = math.Max(hi, k.Distance)
	}
	var gap float64
	if len(karts) > 0 {
		gap = hi - lo
	}

	steer := Summarize(c.steers)
	speed := Summarize(speeds)
	progress := Summarize(gained)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,

		Karts:    len(karts),
		Finished: finished,

		Decisions:    c.decisions,
		RivalCrashes: c.rivalCrashes,
		OffTrack:     c.offTrack,
		Recoveries:   c.recoveries,
		GraphMisses:  c.graphMisses,
		SkidTicks:    c.skidTicks,
		SkidDeclined: c.skidDeclined,
		ItemsFired:   c.itemsFired,
		BombChases:   c.bombChases,
		Rescues:      c.rescues,
		Pickups:      c.pickups,
		NitroRate:    nitroRate,
		BrakeRate:    brakeRate,

		SteerMean: steer.Mean,
		SteerStd:  steer.Std,
		SteerP90:  steer.P90,

		SpeedMean: speed.Mean,
		SpeedP10:  speed.P10,
		SpeedP50:  speed.P50,
		SpeedP90:  speed.P90,

		ProgressMean: progress.Mean,
		ProgressStd:  progress.Std,
		LeaderGap:    gap,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.decisions = 0
	c.rivalCrashes = 0
	c.offTrack = 0
	c.recoveries = 0
	c.graphMisses = 0
	c.skidTicks = 0
	c.skidDeclined = 0
	c.itemsFired = 0
	c.bombChases = 0
	c.rescues = 0
	c.pickups = 0
	c.nitroTicks = 0
	c.brakeTicks = 0
	c.steers = c.steers[:0]

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int64 {
	return c.windowDurationTicks
}
