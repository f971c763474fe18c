package controller

import "math"

// NearestInfo describes the karts closest to the agent along the track.
type NearestInfo struct {
	Ahead          VehicleID
	Behind         VehicleID
	DistanceAhead  float64
	DistanceBehind float64

	// DistanceLeader is the leader's distance minus the agent's in
	// follow-the-leader mode, FarAway otherwise.
	DistanceLeader float64

	// DistanceToHuman is the agent's distance minus that of the closest human
	// kart (positive when the agent is ahead). Zero when there are no humans.
	DistanceToHuman float64
	HasHuman        bool
	HumansAhead     int
}

// computeNearest finds the closest active rivals ahead of and behind the agent.
func (e *Engine) computeNearest() {
	n := NearestInfo{
		Ahead:          NoVehicle,
		Behind:         NoVehicle,
		DistanceAhead:  FarAway,
		DistanceBehind: FarAway,
		DistanceLeader: FarAway,
	}

	my := e.self.DistanceAlongTrack
	closestHuman := math.Inf(1)
	for i := range e.snap.Vehicles {
		k := &e.snap.Vehicles[i]
		if k.ID == e.id || k.Eliminated || k.Finished {
			continue
		}

		d := k.DistanceAlongTrack - my
		if d >= 0 {
			if d < n.DistanceAhead {
				n.Ahead = k.ID
				n.DistanceAhead = d
			}
		} else if -d < n.DistanceBehind {
			n.Behind = k.ID
			n.DistanceBehind = -d
		}

		if e.snap.Mode == ModeFollowLeader && k.ID == e.snap.Leader {
			n.DistanceLeader = d
		}

		if k.Human {
			if d > 0 {
				n.HumansAhead++
			}
			if math.Abs(d) < math.Abs(closestHuman) {
				closestHuman = d
			}
			n.HasHuman = true
		}
	}
	if n.HasHuman {
		n.DistanceToHuman = -closestHuman
	}

	// A new target ahead restarts the shot timer.
	if n.Ahead != e.lastAhead {
		e.timeSinceLastShot = 0
		e.lastAhead = n.Ahead
	}
	e.nearest = n
}

// rubberBanding reports whether the agent is far enough ahead of every human
// to hold back.
func (e *Engine) rubberBanding() bool {
	d := e.params.Difficulty
	return e.nearest.HasHuman && e.nearest.HumansAhead == 0 &&
		d.RubberBandDistance > 0 && e.nearest.DistanceToHuman > d.RubberBandDistance
}
