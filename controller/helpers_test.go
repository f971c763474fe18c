package controller

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/kartpilot/systems"
)

const testDT = 1.0 / 60

// fakeWorld serves a fixed snapshot and records actuations.
type fakeWorld struct {
	snap     Snapshot
	graph    *systems.RouteGraph
	pickups  *systems.PickupRegistry
	actuated map[VehicleID]Controls
}

func newFakeWorld(g *systems.RouteGraph, karts ...Kinematics) *fakeWorld {
	return &fakeWorld{
		snap:     Snapshot{Leader: NoVehicle, Vehicles: karts},
		graph:    g,
		pickups:  systems.NewPickupRegistry(5),
		actuated: make(map[VehicleID]Controls),
	}
}

func (w *fakeWorld) Snapshot() *Snapshot { return &w.snap }

func (w *fakeWorld) Pickups(from, to systems.NodeID, dst []systems.Pickup) []systems.Pickup {
	return w.pickups.InSpan(w.graph, from, to, dst)
}

func (w *fakeWorld) Pickup(id int) (systems.Pickup, bool) { return w.pickups.Get(id) }

func (w *fakeWorld) Actuate(id VehicleID, c Controls) { w.actuated[id] = c }

// kart returns a pointer into the snapshot for in-place edits between ticks.
func (w *fakeWorld) kart(id VehicleID) *Kinematics {
	k, _ := w.snap.Vehicle(id)
	return k
}

// rectPoints returns a rectangular loop starting at the origin heading +Z.
// With mirror=false the loop turns right at each corner, otherwise left.
func rectPoints(w, h, step float64, mirror bool) []r3.Vec {
	var pts []r3.Vec
	for z := 0.0; z < h; z += step {
		pts = append(pts, r3.Vec{X: 0, Z: z})
	}
	for x := 0.0; x < w; x += step {
		pts = append(pts, r3.Vec{X: x, Z: h})
	}
	for z := h; z > 0; z -= step {
		pts = append(pts, r3.Vec{X: w, Z: z})
	}
	for x := w; x > 0; x -= step {
		pts = append(pts, r3.Vec{X: x, Z: 0})
	}
	if mirror {
		for i := range pts {
			pts[i].X = -pts[i].X
		}
	}
	return pts
}

// circlePoints returns a right-turning circular loop of radius r centered on
// the origin; node 0 is at (0, 0, r).
func circlePoints(r float64, n int) []r3.Vec {
	pts := make([]r3.Vec, n)
	for i := range pts {
		theta := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = r3.Vec{X: r * math.Sin(theta), Z: r * math.Cos(theta)}
	}
	return pts
}

func mustGraph(t *testing.T, pts []r3.Vec, width float64) *systems.RouteGraph {
	t.Helper()
	g, err := systems.NewRouteGraph(systems.LoopNodes(pts, width), 0.035, 20)
	if err != nil {
		t.Fatalf("NewRouteGraph: %v", err)
	}
	return g
}

// straightTrack is a 40x400 right-turning rectangle; karts start on the long
// left side heading +Z.
func straightTrack(t *testing.T) *systems.RouteGraph {
	return mustGraph(t, rectPoints(40, 400, 5, false), 10)
}

// leftCornerTrack mirrors straightTrack so the first corner at z=400 turns left.
func leftCornerTrack(t *testing.T) *systems.RouteGraph {
	return mustGraph(t, rectPoints(40, 400, 5, true), 10)
}

func circleTrack(t *testing.T) *systems.RouteGraph {
	return mustGraph(t, circlePoints(60, 48), 12)
}

// driving returns a kart at pos moving along heading at speed.
func driving(id VehicleID, pos r3.Vec, heading, speed float64) Kinematics {
	return Kinematics{
		ID:                 id,
		Position:           pos,
		Velocity:           r3.Scale(speed, systems.Forward(heading)),
		Heading:            heading,
		Speed:              speed,
		MaxSpeed:           24,
		DistanceAlongTrack: pos.Z,
		Node:               systems.UnknownNode,
		OnGround:           true,
		MaxNitro:           20,
	}
}

func nodeNear(t *testing.T, g *systems.RouteGraph, pos r3.Vec) systems.NodeID {
	t.Helper()
	id := g.FindNearestNode(pos)
	if id == systems.UnknownNode {
		t.Fatalf("no node at %v", pos)
	}
	return id
}
