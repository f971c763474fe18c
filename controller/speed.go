package controller

import (
	"math"

	"github.com/pthm-cable/kartpilot/components"
	"github.com/pthm-cable/kartpilot/systems"
)

// steerLockBrake is the steering fraction above which curve braking applies.
const steerLockBrake = 0.95

// boostPhase is the state of the nitro burst cycle.
type boostPhase uint8

const (
	boostIdle boostPhase = iota
	boostFirst
	boostGap
	boostSecond
	boostCooldown
)

// boostState runs nitro as paired bursts: burst, gap, burst, cooldown.
type boostState struct {
	phase boostPhase
	timer float64
}

// update advances the cycle. allowed gates nitro right now; warranted starts
// a new cycle. It reports whether nitro is on this tick.
func (b *boostState) update(dt float64, allowed, warranted bool, p *Params) bool {
	switch b.phase {
	case boostIdle:
		if allowed && warranted {
			b.phase = boostFirst
			b.timer = p.NitroBurstDuration
			return true
		}
	case boostFirst:
		b.timer -= dt
		if b.timer > 0 {
			return allowed
		}
		b.phase = boostGap
		b.timer = p.NitroBurstGap
	case boostGap:
		b.timer -= dt
		if b.timer > 0 {
			return false
		}
		if !allowed {
			b.phase = boostCooldown
			b.timer = p.NitroCooldown
			return false
		}
		b.phase = boostSecond
		b.timer = p.NitroBurstDuration
		return true
	case boostSecond:
		b.timer -= dt
		if b.timer > 0 {
			return allowed
		}
		b.phase = boostCooldown
		b.timer = p.NitroCooldown
	case boostCooldown:
		b.timer -= dt
		if b.timer <= 0 {
			b.phase = boostIdle
		}
	}
	return false
}

// handleAccelerationAndBraking sets brake, accel, nitro and zipper use.
func (e *Engine) handleAccelerationAndBraking(dt float64, c *Controls) {
	c.Brake = 0
	if e.shouldBrake(c.Steer) {
		c.Brake = 1
	}

	e.handleNitroAndZipper(dt, c)

	if c.Brake > 0 {
		c.Accel = 0
		return
	}
	c.Accel = e.params.Difficulty.Acceleration
	if e.rubberBanding() {
		c.Accel = e.params.Difficulty.RubberBandAccel
	}
}

func (e *Engine) shouldBrake(steer float64) bool {
	p := &e.params
	speed := e.self.Speed

	// Never pass the leader in follow-the-leader.
	if e.snap.Mode == ModeFollowLeader && e.id != e.snap.Leader &&
		e.nearest.DistanceLeader != FarAway && e.nearest.DistanceLeader < 0 {
		return true
	}

	if e.direction.Direction == systems.DirUndefined {
		return speed > p.MinBrakeSpeed
	}

	if e.direction.Direction == systems.DirLeft || e.direction.Direction == systems.DirRight {
		turnSpeed := math.Sqrt(e.direction.Radius * p.MaxLateralAccel)
		if speed > p.CurveBrakeFactor*turnSpeed && speed > p.MinBrakeSpeed &&
			math.Abs(steer) > steerLockBrake {
			return true
		}
	}
	return false
}

// handleNitroAndZipper decides nitro via the burst cycle and fires a held
// zipper on long straights. Hazards near the line are resolved by the
// override.
func (e *Engine) handleNitroAndZipper(dt float64, c *Controls) {
	p := &e.params
	s := &e.self
	n := &e.nearest

	allowed := e.nitroSkill() > 0 &&
		s.Speed <= p.NitroMaxSpeedFactor*s.MaxSpeed &&
		!s.ZipperActive &&
		c.Brake == 0 &&
		s.OnGround &&
		!s.Finished &&
		s.NitroFuel > 0 &&
		e.direction.Direction != systems.DirUndefined

	warranted := (n.Ahead != NoVehicle && n.DistanceAhead < p.NitroChaseDistance) ||
		(n.Behind != NoVehicle && n.DistanceBehind < p.NitroDefendDistance) ||
		(e.nitroSkill() >= 2 && e.direction.Direction == systems.DirStraight) ||
		(s.MaxNitro > 0 && s.NitroFuel >= s.MaxNitro)

	c.Nitro = e.boost.update(dt, allowed, warranted, p)

	if s.HeldItem != components.ItemZipper || s.ItemCount <= 0 ||
		s.Speed <= 1 || s.ZipperActive || c.Brake > 0 {
		return
	}
	if e.straightAhead() >= s.Speed*p.ZipperStraightTime {
		c.Fire = true
	}
}

// straightAhead is the distance from the kart's node to the end of the
// straight it is on, 0 if it is not on a straight.
func (e *Engine) straightAhead() float64 {
	n := e.graph.Node(e.trackNode)
	if n == nil || n.Direction != systems.DirStraight {
		return 0
	}
	last := e.graph.Node(n.LastSameDirection)
	if last == nil {
		return 0
	}
	d := last.DistanceFromStart - n.DistanceFromStart
	if d < 0 {
		d += e.graph.TrackLength()
	}
	return d
}

// handleBoostOverride swaps nitro for a held zipper and back when that is the
// better use of the boost.
func (e *Engine) handleBoostOverride(c *Controls) {
	s := &e.self
	zipperReady := s.HeldItem == components.ItemZipper && s.ItemCount > 0 &&
		s.Speed > 1 && !s.ZipperActive

	switch {
	case c.Nitro && zipperReady && !e.avoidItemClose:
		// Stagger zipper use right after a time-trial start.
		if e.snap.Mode != ModeTimeTrial || e.snap.Time >= e.params.TimeTrialZipperWait ||
			e.boostRNG.Intn(50) == 1 {
			c.Nitro = false
			c.Fire = true
		}
	case c.Fire && s.HeldItem == components.ItemZipper && e.avoidItemClose:
		// Hazards ahead: keep the zipper.
		c.Fire = false
		c.Nitro = s.NitroFuel > 0 && c.Brake == 0
	}
}
