package controller

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/kartpilot/systems"
)

// checkCrashes extrapolates the agent and its rivals along their current
// velocities and records the first predicted contact and whether the path
// leaves the road.
func (e *Engine) checkCrashes() {
	p := &e.params
	e.crashes = CrashState{Rival: NoVehicle}

	vel := systems.Flat(e.self.Velocity)
	speed := r3.Norm(vel)

	steps := 2
	if speed > 0 {
		steps = int(speed / p.KartLength)
		if steps < 2 {
			steps = 2
		}
	}
	steps += p.ExtraCrashSteps
	if steps > p.MaxCrashSteps {
		steps = p.MaxCrashSteps
	}

	stepTime := 0.0
	if speed > 1e-6 {
		stepTime = p.KartLength / speed
	}

	var rivalPos r3.Vec
	node := e.trackNode
	for i := 1; i < steps; i++ {
		t := stepTime * float64(i)
		pos := r3.Add(e.self.Position, r3.Scale(t, e.self.Velocity))

		if e.crashes.Rival == NoVehicle {
			for j := range e.snap.Vehicles {
				k := &e.snap.Vehicles[j]
				if k.ID == e.id || k.Eliminated || k.Finished || k.Rescuing {
					continue
				}
				// Faster karts move out of the way on their own.
				if k.Speed > e.self.Speed {
					continue
				}
				other := r3.Add(k.Position, r3.Scale(t, k.Velocity))
				if systems.Dist2D(pos, other) < p.KartLength {
					e.crashes.Rival = k.ID
					rivalPos = k.Position
					break
				}
			}
		}

		node = e.graph.FindRoadSector(pos, node)
		if node == systems.UnknownNode {
			e.crashes.OnTrack = true
			break
		}
	}

	if e.crashes.Rival == NoVehicle {
		e.crashDirection = 0
		return
	}
	if e.crashDirection == 0 {
		fwd := systems.Forward(e.self.Heading)
		lateral := r3.Dot(systems.Flat(r3.Sub(rivalPos, e.self.Position)), systems.Right(fwd))
		if lateral > 0 {
			e.crashDirection = -1
		} else {
			e.crashDirection = 1
		}
	}
}
