package controller

import (
	"math"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/kartpilot/components"
	"github.com/pthm-cable/kartpilot/systems"
)

// maxOnRoadSearch bounds the walk past off-road nodes during recovery.
const maxOnRoadSearch = 16

// handleSteering chooses the steering target for this tick. Recovery steers
// back to the road, a graph miss keeps the previous aim, and otherwise the
// point selector plans a new aim point.
func (e *Engine) handleSteering(dt float64, c *Controls, graphMiss bool) {
	e.items.toCollect = e.items.toCollect[:0]
	e.items.toAvoid = e.items.toAvoid[:0]
	e.avoidItemClose = false

	var angle float64
	switch {
	case graphMiss:
		target := e.aim.Point
		if !e.aimValid {
			target = e.nodeCenter(e.nextOnRoad(e.trackNode))
		}
		e.decision.Aim = AimPoint{Point: target, Node: e.aim.Node}
		angle = e.steerToPoint(target)

	case e.crashes.OnTrack || e.offCorridor():
		next := e.nextOnRoad(e.trackNode)
		e.decision.Recovery = true
		e.decision.Aim = AimPoint{Point: e.nodeCenter(next), Node: next}
		angle = e.steerToPoint(e.nodeCenter(next))

	default:
		aim := e.selector.SelectAimPoint(e.planInput())
		if e.crashes.Rival != NoVehicle {
			aim = e.avoidRival(aim)
		}
		aim = e.handleItemCollectionAndAvoidance(aim)
		e.aim = aim
		e.aimValid = true
		e.decision.Aim = aim
		angle = e.steerToPoint(aim.Point)
	}
	e.setSteering(angle, dt, c)
}

// offCorridor reports whether the kart is already outside its node's width.
func (e *Engine) offCorridor() bool {
	n := e.graph.Node(e.trackNode)
	if n == nil {
		return false
	}
	lateral, _ := e.graph.SpatialToTrack(e.self.Position, e.trackNode)
	return math.Abs(lateral) > n.Width/2+e.params.OffTrackMargin
}

// nextOnRoad returns the first on-road successor of id, or id itself.
func (e *Engine) nextOnRoad(id systems.NodeID) systems.NodeID {
	n := e.graph.Next(id)
	for i := 0; i < maxOnRoadSearch && n != systems.UnknownNode && !e.graph.IsOnRoad(n); i++ {
		n = e.graph.Next(n)
	}
	if n == systems.UnknownNode || !e.graph.IsOnRoad(n) {
		return id
	}
	return n
}

// steerToPoint returns the steering angle that drives the kart on a circle
// through p, clamped to the maximum steering angle. Points behind the kart
// get full lock toward their side.
func (e *Engine) steerToPoint(p r3.Vec) float64 {
	maxSteer := e.params.MaxSteerAngle
	x, z := e.toLocal(p)

	if z < 0 {
		if x >= 0 {
			return maxSteer
		}
		return -maxSteer
	}
	if math.Abs(x) < 1e-6 {
		return 0
	}

	radius := (x*x + z*z) / (2 * x)
	sinSteer := e.params.WheelBase / radius
	if sinSteer >= 1 {
		return maxSteer
	}
	if sinSteer <= -1 {
		return -maxSteer
	}
	return systems.Clamp(math.Asin(sinSteer), -maxSteer, maxSteer)
}

// setSteering turns a steering angle into a rate-limited steering fraction and
// decides whether to skid.
func (e *Engine) setSteering(angle, dt float64, c *Controls) {
	fraction := 0.0
	if e.params.MaxSteerAngle > 0 {
		fraction = angle / e.params.MaxSteerAngle
	}

	want := e.wantsSkid(fraction)
	c.Skid = components.SkidNone
	if e.decideSkid(want) {
		if fraction > 0 {
			c.Skid = components.SkidRight
		} else {
			c.Skid = components.SkidLeft
		}
	}

	fraction = systems.Clamp(fraction, -1, 1)
	e.decision.SteerTarget = fraction
	e.decision.WantSkid = want

	prev := e.controls.Steer
	if e.params.TimeFullSteer <= 0 || dt <= 0 {
		c.Steer = fraction
		return
	}
	maxChange := dt / e.params.TimeFullSteer
	c.Steer = prev + systems.Clamp(fraction-prev, -maxChange, maxChange)
}

// wantsSkid reports whether a power-slide would help through the current curve.
func (e *Engine) wantsSkid(fraction float64) bool {
	td := e.direction
	if td.Direction != systems.DirLeft && td.Direction != systems.DirRight {
		return false
	}
	p := &e.params
	speed := e.self.Speed
	if speed <= 0 || speed < p.MinSkidSpeedFraction*e.self.MaxSpeed {
		return false
	}
	// Only skid into the curve.
	if (td.Direction == systems.DirLeft && fraction > 0) ||
		(td.Direction == systems.DirRight && fraction < 0) {
		return false
	}

	last := systems.Flat(r3.Sub(e.nodeCenter(td.LastNode), td.Center))
	kart := systems.Flat(r3.Sub(e.self.Position, td.Center))
	angle := systems.NormalizeAngle(systems.HeadingOf(last) - systems.HeadingOf(kart))
	if td.Direction == systems.DirLeft {
		angle = -angle
	}
	if angle <= 0 {
		return false
	}

	duration := p.SkidDurationFactor * td.Radius * angle / speed
	return duration >= p.MinSkidDuration
}

// decideSkid runs the skid tri-state: one random draw per opportunity, held
// until the opportunity ends.
func (e *Engine) decideSkid(want bool) bool {
	if !want {
		e.skidDecision = SkidUndecided
		return false
	}
	if e.skidDecision == SkidUndecided {
		prob := e.skid.probability(e.nearest.DistanceToHuman)
		if e.skidRNG.Float64() < prob {
			e.skidDecision = SkidCommittedYes
		} else {
			e.skidDecision = SkidCommittedNo
		}
	}
	return e.skidDecision == SkidCommittedYes
}

// skidCurve maps distance to the nearest human onto a skid probability.
type skidCurve struct {
	xs, ys []float64
	fit    *interp.PiecewiseLinear
}

func newSkidCurve(xs, ys []float64) skidCurve {
	c := skidCurve{xs: xs, ys: ys}
	if len(xs) >= 2 && len(xs) == len(ys) {
		var pl interp.PiecewiseLinear
		if err := pl.Fit(xs, ys); err == nil {
			c.fit = &pl
		}
	}
	return c
}

func (c skidCurve) probability(x float64) float64 {
	switch {
	case len(c.ys) == 0:
		return 0
	case c.fit == nil:
		return c.ys[0]
	}
	x = systems.Clamp(x, c.xs[0], c.xs[len(c.xs)-1])
	return c.fit.Predict(x)
}
