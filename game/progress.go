package game

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/kartpilot/controller"
	"github.com/pthm-cable/kartpilot/systems"
	"github.com/pthm-cable/kartpilot/telemetry"
)

func nodeID(n int32) systems.NodeID { return systems.NodeID(n) }

// lapDistance returns how far pos is along the lap, measured on node's frame.
func (r *Race) lapDistance(pos r3.Vec, node systems.NodeID) float64 {
	n := r.graph.Node(node)
	if n == nil {
		return 0
	}
	_, fwd := r.graph.SpatialToTrack(pos, node)
	d := n.DistanceFromStart + math.Max(fwd, 0)
	return math.Mod(d, r.graph.TrackLength())
}

// updateProgress advances nodes, laps and ranks, and finishes karts.
func (r *Race) updateProgress() {
	length := r.graph.TrackLength()

	for i, e := range r.entities {
		p := r.progressMap.Get(e)
		if p.Finished || p.Eliminated {
			continue
		}
		pose := r.poseMap.Get(e)

		node := r.graph.FindRoadSector(pose.Position, nodeID(p.Node))
		if node == systems.UnknownNode {
			// Off the road: distance holds until the kart is back or rescued.
			continue
		}
		p.Node = int32(node)
		if r.graph.IsOnRoad(node) {
			p.LastRoadNode = int32(node)
		}

		// A jump of more than half a lap means the start line was crossed.
		d := r.lapDistance(pose.Position, node)
		prev := p.Distance - float64(p.Lap)*length
		switch delta := d - prev; {
		case delta < -length/2:
			p.Lap++
		case delta > length/2:
			p.Lap--
		}
		p.Distance = float64(p.Lap)*length + d

		if p.Lap >= r.cfg.Race.Laps {
			p.Finished = true
			r.finishOrder++
			r.results[i].finishOrder = r.finishOrder
			r.results[i].finishTime = r.time
			r.logger.Info("kart finished", "kart", i, "place", r.finishOrder, "time", r.time)
		}
	}

	if r.mode == controller.ModeFollowLeader && !r.startPhase() && r.time >= r.nextElim {
		r.eliminateLast()
		r.nextElim += r.cfg.Race.EliminationInterval
	}

	r.updateRanks()
}

// eliminateLast removes the rearmost kart behind the leader, as long as at
// least two karts besides the leader are still racing.
func (r *Race) eliminateLast() {
	last := -1
	racing := 0
	for i, e := range r.entities {
		p := r.progressMap.Get(e)
		if controller.VehicleID(i) == r.leader || p.Finished || p.Eliminated {
			continue
		}
		racing++
		if last < 0 || p.Distance < r.progressMap.Get(r.entities[last]).Distance {
			last = i
		}
	}
	if racing >= 2 {
		r.eliminate(last)
	}
}

// updateRanks orders finished karts by finishing place, then racing karts by
// distance, then eliminated karts.
func (r *Race) updateRanks() {
	order := make([]int, len(r.entities))
	for i := range order {
		order[i] = i
	}

	group := func(i int) int {
		p := r.progressMap.Get(r.entities[i])
		switch {
		case p.Finished:
			return 0
		case p.Eliminated:
			return 2
		default:
			return 1
		}
	}

	sort.SliceStable(order, func(a, b int) bool {
		ga, gb := group(order[a]), group(order[b])
		if ga != gb {
			return ga < gb
		}
		if ga == 0 {
			return r.results[order[a]].finishOrder < r.results[order[b]].finishOrder
		}
		return r.progressMap.Get(r.entities[order[a]]).Distance > r.progressMap.Get(r.entities[order[b]]).Distance
	})

	for rank, i := range order {
		r.progressMap.Get(r.entities[i]).Rank = rank + 1
	}
}

func sortResults(rows []telemetry.ResultRow) {
	sort.SliceStable(rows, func(a, b int) bool { return rows[a].Rank < rows[b].Rank })
}
