// Package game runs a headless race: an ark world of karts, one decision
// engine per kart, and the harness rules that move karts, hand out items and
// track progress.
package game

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/kartpilot/components"
	"github.com/pthm-cable/kartpilot/config"
	"github.com/pthm-cable/kartpilot/controller"
	"github.com/pthm-cable/kartpilot/systems"
	"github.com/pthm-cable/kartpilot/telemetry"
)

// Options configures a race.
type Options struct {
	Seed   int64
	Config *config.Config // nil uses config.Cfg()

	// Track overrides the generated track. Its pickups are owned by the race.
	Track *systems.Track

	// Difficulty overrides the configured profile for AI karts.
	Difficulty string

	Output        *telemetry.OutputManager
	LogStats      bool
	StatsCallback func(telemetry.WindowStats)
	Logger        *slog.Logger
}

// Race is one race session. It implements controller.World for its engines.
type Race struct {
	cfg    *config.Config
	seed   int64
	rng    *rand.Rand
	logger *slog.Logger

	graph   *systems.RouteGraph
	pickups *systems.PickupRegistry
	mode    controller.RaceMode

	// ECS
	world      *ecs.World
	kartMapper *ecs.Map6[
		components.Kart,
		components.Pose,
		components.Motion,
		components.Progress,
		components.Inventory,
		components.Controls,
	]
	kartMap     *ecs.Map1[components.Kart]
	poseMap     *ecs.Map1[components.Pose]
	motionMap   *ecs.Map1[components.Motion]
	progressMap *ecs.Map1[components.Progress]
	invMap      *ecs.Map1[components.Inventory]
	controlsMap *ecs.Map1[components.Controls]
	physics     *systems.KartPhysics

	// Indexed by kart id
	entities []ecs.Entity
	engines  []*controller.Engine
	results  []kartResult

	snap    controller.Snapshot
	intents []intent

	tick         int64
	time         float64
	leader       controller.VehicleID
	finishOrder  int
	nextElim     float64
	bombCooldown float64

	// Telemetry
	collector     *telemetry.Collector
	perf          *telemetry.PerfCollector
	timings       *EngineTimings
	bookmarks     *telemetry.BookmarkDetector
	output        *telemetry.OutputManager
	trace         []telemetry.TraceRow
	logStats      bool
	statsCallback func(telemetry.WindowStats)
}

// kartResult is per-kart bookkeeping that is not part of the ECS state.
type kartResult struct {
	finishOrder int
	finishTime  float64
	rescues     int
}

// NewRace builds the track, spawns the karts on the grid and creates their engines.
func NewRace(opts Options) (*Race, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	track := opts.Track
	if track == nil {
		var err error
		track, err = systems.GenerateTrack(cfg.Track, opts.Seed)
		if err != nil {
			return nil, fmt.Errorf("creating race: %w", err)
		}
	}

	world := ecs.NewWorld()
	r := &Race{
		cfg:     cfg,
		seed:    opts.Seed,
		rng:     rand.New(rand.NewSource(opts.Seed)),
		logger:  logger,
		graph:   track.Graph,
		pickups: track.Pickups,
		mode:    controller.ParseRaceMode(cfg.Race.Mode),

		world: world,
		kartMapper: ecs.NewMap6[
			components.Kart,
			components.Pose,
			components.Motion,
			components.Progress,
			components.Inventory,
			components.Controls,
		](world),
		kartMap:     ecs.NewMap1[components.Kart](world),
		poseMap:     ecs.NewMap1[components.Pose](world),
		motionMap:   ecs.NewMap1[components.Motion](world),
		progressMap: ecs.NewMap1[components.Progress](world),
		invMap:      ecs.NewMap1[components.Inventory](world),
		controlsMap: ecs.NewMap1[components.Controls](world),
		physics:     systems.NewKartPhysics(world, cfg.Kart, cfg.Race.ItemSlowdown),

		leader:   controller.NoVehicle,
		nextElim: cfg.Race.StartDelay + cfg.Race.EliminationInterval,

		collector:     telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Sim.DT),
		perf:          telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow, cfg.Sim.DT),
		timings:       NewEngineTimings(cfg.Telemetry.PerfCollectorWindow),
		bookmarks:     telemetry.NewBookmarkDetector(cfg.Telemetry.BookmarkHistory),
		output:        opts.Output,
		logStats:      opts.LogStats,
		statsCallback: opts.StatsCallback,
	}
	if r.mode == controller.ModeFollowLeader {
		r.leader = 0
	}

	difficulty := opts.Difficulty
	if difficulty == "" {
		difficulty = cfg.Race.Difficulty
	}
	if err := r.spawnGrid(difficulty); err != nil {
		return nil, err
	}
	r.updateRanks()
	r.buildSnapshot()

	r.logger.Info("race created",
		"seed", r.seed,
		"karts", len(r.entities),
		"mode", r.mode.String(),
		"difficulty", difficulty,
		"track_length", r.graph.TrackLength(),
	)
	return r, nil
}

// Snapshot returns the pre-tick state of the race.
func (r *Race) Snapshot() *controller.Snapshot { return &r.snap }

// Pickups appends the active pickups on route nodes from..to to dst.
func (r *Race) Pickups(from, to systems.NodeID, dst []systems.Pickup) []systems.Pickup {
	return r.pickups.InSpan(r.graph, from, to, dst)
}

// Pickup looks up a single pickup by id.
func (r *Race) Pickup(id int) (systems.Pickup, bool) {
	return r.pickups.Get(id)
}

// Actuate buffers the controls of a kart until all engines have decided.
func (r *Race) Actuate(id controller.VehicleID, c controller.Controls) {
	r.intents = append(r.intents, intent{ID: id, Controls: c})
}

var _ controller.World = (*Race)(nil)

// Step advances the race by one tick.
func (r *Race) Step() {
	dt := r.cfg.Sim.DT
	r.perf.StartTick()

	r.perf.StartPhase(systems.PhaseSnapshot)
	r.buildSnapshot()

	r.perf.StartPhase(systems.PhaseDecide)
	r.decide(dt)

	r.perf.StartPhase(systems.PhaseActuate)
	r.applyIntents()

	r.perf.StartPhase(systems.PhasePhysics)
	r.physics.Update(dt)

	r.perf.StartPhase(systems.PhaseItems)
	r.updateItems(dt)

	r.perf.StartPhase(systems.PhaseProgress)
	r.updateProgress()

	r.tick++
	r.time += dt

	r.perf.StartPhase(systems.PhaseTelemetry)
	r.flushTelemetry()

	r.perf.EndTick()
}

// Run steps the race until it is over or maxTicks is reached (0 = no limit).
func (r *Race) Run(maxTicks int64) {
	for !r.Done() && (maxTicks <= 0 || r.tick < maxTicks) {
		r.Step()
	}
}

// Done reports whether every kart still racing has finished.
func (r *Race) Done() bool {
	for _, e := range r.entities {
		p := r.progressMap.Get(e)
		if !p.Finished && !p.Eliminated {
			return false
		}
	}
	return true
}

// Tick returns the number of completed ticks.
func (r *Race) Tick() int64 { return r.tick }

// Time returns the elapsed race time in seconds.
func (r *Race) Time() float64 { return r.time }

// Graph returns the route graph of the race.
func (r *Race) Graph() *systems.RouteGraph { return r.graph }

// Engine returns the decision engine of a kart.
func (r *Race) Engine(id controller.VehicleID) *controller.Engine {
	if int(id) >= len(r.engines) {
		return nil
	}
	return r.engines[id]
}

// Karts returns the current state of every kart, sorted by id.
func (r *Race) Karts() []controller.Kinematics {
	out := make([]controller.Kinematics, len(r.entities))
	for i, e := range r.entities {
		out[i] = r.kinematics(e)
	}
	return out
}

// startPhase reports whether the race is still in its start countdown.
func (r *Race) startPhase() bool {
	return r.time < r.cfg.Race.StartDelay
}

// Results returns the standings ordered by rank.
func (r *Race) Results() []telemetry.ResultRow {
	rows := make([]telemetry.ResultRow, len(r.entities))
	for i, e := range r.entities {
		k := r.kartMap.Get(e)
		p := r.progressMap.Get(e)
		res := r.results[i]
		rows[i] = telemetry.ResultRow{
			Kart:       k.ID,
			Difficulty: k.Difficulty,
			Human:      k.Human,
			Rank:       p.Rank,
			Laps:       max(p.Lap, 0),
			Distance:   p.Distance,
			Finished:   p.Finished,
			FinishTime: res.finishTime,
			Rescues:    res.rescues,
		}
	}
	sortResults(rows)
	return rows
}

// Close flushes remaining telemetry. The output manager is owned by the caller.
func (r *Race) Close() {
	r.flushTrace()
	if err := r.output.WriteResults(r.Results()); err != nil {
		slog.Error("failed to write results", "error", err)
	}
	r.logger.Info("race finished",
		"ticks", r.tick,
		"time", r.time,
		"finished", r.finishOrder,
	)
}
