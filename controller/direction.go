package controller

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/kartpilot/systems"
)

// maxDirectionRun bounds the walk over nodes sharing one direction.
const maxDirectionRun = 20

// determineTrackDirection classifies the track just ahead of the kart and, for
// curves, estimates the turn circle.
func (e *Engine) determineTrackDirection() {
	next := e.graph.Next(e.trackNode)
	td := TrackDirection{Direction: systems.DirStraight, LastNode: next}
	if next == systems.UnknownNode {
		e.direction = td
		return
	}

	// Moving well off the track direction (spun out, driving backwards).
	trackDir := r3.Sub(e.nodeCenter(next), e.nodeCenter(e.trackNode))
	if e.self.Speed > 0 &&
		systems.AngleBetween2D(trackDir, e.self.Velocity) > e.params.UndefinedDirectionAngle {
		td.Direction = systems.DirUndefined
		e.direction = td
		return
	}

	dir, run := e.directionRun(next)
	td.LastNode = run[len(run)-1]
	if dir == systems.DirStraight || dir == systems.DirUndefined || len(run) < 2 {
		e.direction = td
		return
	}

	a := e.nodeCenter(run[0])
	b := e.nodeCenter(run[len(run)/2])
	c := e.nodeCenter(run[len(run)-1])
	if len(run) == 2 {
		b = c
		c = e.nodeCenter(e.graph.Next(run[1]))
	}
	center, radius, ok := systems.Circumcircle2D(a, b, c)
	if !ok {
		e.direction = td
		return
	}

	td.Direction = dir
	td.Radius = radius
	td.Center = center
	e.direction = td
}

// directionRun walks forward from start while nodes share start's direction.
// The returned run always contains start.
func (e *Engine) directionRun(start systems.NodeID) (systems.Direction, []systems.NodeID) {
	first := e.graph.Node(start)
	if first == nil {
		return systems.DirUndefined, []systems.NodeID{start}
	}
	run := append(e.runScratch[:0], start)
	cur := start
	for i := 0; i < maxDirectionRun; i++ {
		n := e.graph.Next(cur)
		nn := e.graph.Node(n)
		if nn == nil || n == start || nn.Direction != first.Direction {
			break
		}
		run = append(run, n)
		cur = n
	}
	e.runScratch = run
	return first.Direction, run
}
