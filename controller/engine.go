package controller

import (
	"log/slog"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/kartpilot/components"
	"github.com/pthm-cable/kartpilot/systems"
)

// Engine drives one AI kart. It is not safe for concurrent use; a race steps
// its engines one after another.
type Engine struct {
	id       VehicleID
	world    World
	graph    RouteGraph
	params   Params
	logger   *slog.Logger
	seed     int64
	selector PointSelector
	skid     skidCurve

	// Independent streams so one decision's draws never shift another's.
	skidRNG    *rand.Rand
	collectRNG *rand.Rand
	boostRNG   *rand.Rand

	// Per-tick inputs
	snap *Snapshot
	self Kinematics

	// Persistent state
	controls          Controls
	trackNode         systems.NodeID
	aim               AimPoint
	aimValid          bool
	crashDirection    int // -1 left, +1 right, 0 none
	skidDecision      SkidDecision
	stuck             StuckTimer
	boost             boostState
	items             itemState
	timeSinceLastShot float64
	lastAhead         VehicleID

	// Recomputed every tick
	nearest        NearestInfo
	crashes        CrashState
	direction      TrackDirection
	avoidItemClose bool
	decision       Decision

	runScratch []systems.NodeID
}

// Option configures an Engine.
type Option func(*Engine)

// WithSeed seeds every random stream of the engine.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.seed = seed }
}

// WithPointSelector overrides the aim point algorithm chosen by Params.
func WithPointSelector(s PointSelector) Option {
	return func(e *Engine) { e.selector = s }
}

// WithLogger sets the logger for debug events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine for the kart with the given id.
func New(id VehicleID, world World, graph RouteGraph, params Params, opts ...Option) *Engine {
	e := &Engine{
		id:     id,
		world:  world,
		graph:  graph,
		params: params,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.selector == nil {
		e.selector = NewPointSelector(params.PointSelection)
	}
	e.skid = newSkidCurve(params.Difficulty.SkidDistances, params.Difficulty.SkidProbabilities)
	e.Reset()
	return e
}

// ID returns the kart this engine drives.
func (e *Engine) ID() VehicleID { return e.id }

// Params returns the engine parameters.
func (e *Engine) Params() Params { return e.params }

// Decision returns the internals of the last Update.
func (e *Engine) Decision() Decision { return e.decision }

// Reset clears all per-race state and reseeds the random streams.
func (e *Engine) Reset() {
	e.skidRNG = rand.New(rand.NewSource(e.seed))
	e.collectRNG = rand.New(rand.NewSource(e.seed + 1))
	e.boostRNG = rand.New(rand.NewSource(e.seed + 2))

	e.snap = nil
	e.self = Kinematics{}
	e.controls = Controls{}
	e.trackNode = systems.UnknownNode
	e.aim = AimPoint{Node: systems.UnknownNode}
	e.aimValid = false
	e.crashDirection = 0
	e.skidDecision = SkidUndecided
	e.stuck = StuckTimer{}
	e.boost = boostState{}
	e.items = itemState{target: -1, lastRandom: -1}
	e.timeSinceLastShot = 0
	e.lastAhead = NoVehicle

	e.nearest = NearestInfo{}
	e.crashes = CrashState{Rival: NoVehicle}
	e.direction = TrackDirection{}
	e.avoidItemClose = false
	e.decision = Decision{Node: systems.UnknownNode, Crash: CrashState{Rival: NoVehicle}, ItemTarget: -1}
}

// Update runs one decision tick and submits the resulting controls to the world.
func (e *Engine) Update(dt float64) Controls {
	snap := e.world.Snapshot()
	e.snap = snap
	e.decision = Decision{Tick: snap.Tick, Node: e.trackNode, Crash: CrashState{Rival: NoVehicle}, ItemTarget: -1}
	e.avoidItemClose = false

	self, ok := snap.Vehicle(e.id)
	if !ok || self.Eliminated || self.Finished || self.Rescuing {
		if ok && self.Rescuing {
			// The kart is respawned elsewhere; relocate from scratch next tick.
			e.stuck.Rescued()
			e.trackNode = systems.UnknownNode
			e.aimValid = false
		}
		return e.emit(Controls{})
	}
	e.self = *self
	e.timeSinceLastShot += dt

	graphMiss := e.locate()
	if e.trackNode == systems.UnknownNode {
		// Nowhere on the graph yet: drive straight and wait for a fix.
		e.decision.GraphMiss = true
		return e.emit(Controls{Accel: e.params.Difficulty.Acceleration})
	}

	e.computeNearest()
	e.checkCrashes()
	e.determineTrackDirection()

	c := Controls{Steer: e.controls.Steer}
	if e.self.Attachment == components.AttachBomb && e.nearest.Ahead != NoVehicle {
		e.handleBombChase(dt, &c)
	} else {
		e.handleSteering(dt, &c, graphMiss)
		e.handleItems(&c)
		e.handleRescue(dt, &c)
		e.handleAccelerationAndBraking(dt, &c)
	}
	e.handleBoostOverride(&c)

	e.decision.Node = e.trackNode
	e.decision.Crash = e.crashes
	e.decision.Direction = e.direction
	e.decision.Nearest = e.nearest
	e.decision.Skid = e.skidDecision
	e.decision.ItemTarget = e.items.target
	e.decision.GraphMiss = graphMiss
	return e.emit(c)
}

// locate updates the current route node. It reports a miss when the kart's
// position is not on any node; the last valid node is kept in that case.
func (e *Engine) locate() bool {
	node := e.graph.FindRoadSector(e.self.Position, e.trackNode)
	if node != systems.UnknownNode {
		e.trackNode = node
		return false
	}
	if e.trackNode == systems.UnknownNode && e.graph.Node(e.self.Node) != nil {
		e.trackNode = e.self.Node
	}
	return true
}

func (e *Engine) emit(c Controls) Controls {
	e.controls = c
	e.decision.Controls = c
	e.world.Actuate(e.id, c)
	return c
}

// handleBombChase drives straight at the kart ahead to pass the bomb on.
func (e *Engine) handleBombChase(dt float64, c *Controls) {
	target, ok := e.snap.Vehicle(e.nearest.Ahead)
	if !ok {
		return
	}
	e.decision.BombChase = true
	e.aim = AimPoint{Point: target.Position, Node: target.Node}
	e.aimValid = true
	e.decision.Aim = e.aim

	e.setSteering(e.steerToPoint(target.Position), dt, c)
	c.Accel = e.params.Difficulty.Acceleration
	c.Brake = 0
	if e.nearest.DistanceAhead > e.params.BombNitroDistance && e.self.NitroFuel > 0 {
		c.Nitro = true
	}
}

// toLocal returns p in the kart's frame: x to the right, z forward.
func (e *Engine) toLocal(p r3.Vec) (x, z float64) {
	d := systems.Flat(r3.Sub(p, e.self.Position))
	fwd := systems.Forward(e.self.Heading)
	return r3.Dot(d, systems.Right(fwd)), r3.Dot(d, fwd)
}

// nodeCenter returns the center of id, or the kart position for unknown nodes.
func (e *Engine) nodeCenter(id systems.NodeID) r3.Vec {
	if n := e.graph.Node(id); n != nil {
		return n.Center
	}
	return e.self.Position
}
