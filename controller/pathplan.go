package controller

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/kartpilot/systems"
)

// PlanInput is what a PointSelector needs to choose an aim point.
type PlanInput struct {
	Graph         RouteGraph
	Position      r3.Vec
	Node          systems.NodeID
	KartLength    float64
	KartWidth     float64
	MaxIterations int
}

// PointSelector chooses the farthest point the kart can drive to in a
// straight line without leaving the road.
type PointSelector interface {
	SelectAimPoint(in PlanInput) AimPoint
}

// NewPointSelector returns the selector for s.
func NewPointSelector(s PointSelection) PointSelector {
	if s == SelectCorridor {
		return CorridorSelector{}
	}
	return DefaultSelector{}
}

// DefaultSelector walks successor nodes and samples the straight line to each
// one. Samples are projected onto the frame of the node before the candidate,
// which is imprecise on tight curves but matches the reference driving line.
type DefaultSelector struct{}

// SelectAimPoint implements PointSelector.
func (DefaultSelector) SelectAimPoint(in PlanInput) AimPoint {
	g := in.Graph
	sector := g.Next(in.Node)
	if g.Node(sector) == nil {
		return AimPoint{Point: centerOf(g, in.Node, in.Position), Node: in.Node}
	}

	for iter := 0; iter < in.MaxIterations; iter++ {
		target := g.Next(sector)
		tn := g.Node(target)
		if tn == nil {
			break
		}

		dir := r3.Sub(tn.Center, in.Position)
		length := r3.Norm(dir)
		steps := int(length / in.KartLength)
		if steps < 3 {
			steps = 3
		}
		if steps > 1000 {
			steps = 1000
		}
		if length > 0 {
			dir = r3.Scale(1/length, dir)
		}

		width := g.Node(sector).Width
		for i := 2; i < steps; i++ {
			step := r3.Add(in.Position, r3.Scale(in.KartLength*float64(i), dir))
			lateral, _ := g.SpatialToTrack(step, sector)
			if math.Abs(lateral)+in.KartWidth/2 > width/2 {
				return AimPoint{Point: g.Node(sector).Center, Node: sector}
			}
		}
		sector = target
	}
	return AimPoint{Point: g.Node(sector).Center, Node: sector}
}

// CorridorSelector keeps a cone from the kart to the left and right edges of
// successive nodes and narrows it node by node. When the next node's edges
// would close the cone the binding edge point becomes the aim.
type CorridorSelector struct{}

// SelectAimPoint implements PointSelector.
func (CorridorSelector) SelectAimPoint(in PlanInput) AimPoint {
	g := in.Graph
	first := g.Next(in.Node)
	fn := g.Node(first)
	if fn == nil {
		return AimPoint{Point: centerOf(g, in.Node, in.Position), Node: in.Node}
	}

	pos := in.Position
	leftEnd, rightEnd := fn.Left, fn.Right
	leftNode, rightNode := first, first
	last := first

	for iter := 0; iter < in.MaxIterations; iter++ {
		next := g.Next(last)
		nn := g.Node(next)
		if nn == nil || next == first {
			break
		}

		// Edge point inside the cone narrows it; past the other side closes it.
		if systems.Orientation(pos, leftEnd, nn.Left) > 0 {
			if systems.Orientation(pos, rightEnd, nn.Left) >= 0 {
				return corridorAim(g, rightEnd, rightNode, in.KartWidth)
			}
			leftEnd, leftNode = nn.Left, next
		}
		if systems.Orientation(pos, rightEnd, nn.Right) < 0 {
			if systems.Orientation(pos, leftEnd, nn.Right) <= 0 {
				return corridorAim(g, leftEnd, leftNode, in.KartWidth)
			}
			rightEnd, rightNode = nn.Right, next
		}
		last = next
	}
	return AimPoint{Point: g.Node(last).Center, Node: last}
}

// corridorAim pulls an edge point toward its node center by the kart width.
func corridorAim(g RouteGraph, edge r3.Vec, node systems.NodeID, kartWidth float64) AimPoint {
	n := g.Node(node)
	toCenter := r3.Sub(n.Center, edge)
	d := r3.Norm(toCenter)
	if d > kartWidth {
		edge = r3.Add(edge, r3.Scale(kartWidth/d, toCenter))
	} else {
		edge = n.Center
	}
	return AimPoint{Point: edge, Node: node}
}

func centerOf(g RouteGraph, id systems.NodeID, fallback r3.Vec) r3.Vec {
	if n := g.Node(id); n != nil {
		return n.Center
	}
	return fallback
}

// CorridorClear reports whether a kart can drive straight from 'from' to 'to'
// without any part of it leaving the road.
func CorridorClear(g RouteGraph, from, to r3.Vec, hint systems.NodeID, kartLength, kartWidth float64) bool {
	dist := systems.Dist2D(from, to)
	step := kartLength / 2
	if step <= 0 {
		step = 1
	}
	steps := int(dist/step) + 1

	node := hint
	for i := 1; i <= steps; i++ {
		t := math.Min(1, float64(i)*step/math.Max(dist, 1e-9))
		p := r3.Add(from, r3.Scale(t, r3.Sub(to, from)))
		node = g.FindRoadSector(p, node)
		n := g.Node(node)
		if n == nil {
			return false
		}
		lateral, _ := g.SpatialToTrack(p, node)
		if math.Abs(lateral)+kartWidth/2 > n.Width/2 {
			return false
		}
	}
	return true
}

// avoidRival shifts the aim point sideways, in the persisted crash direction,
// when the shifted line stays on the road.
func (e *Engine) avoidRival(aim AimPoint) AimPoint {
	if e.crashDirection == 0 {
		return aim
	}
	dir := systems.FlatUnit(r3.Sub(aim.Point, e.self.Position))
	if r3.Norm2(dir) == 0 {
		return aim
	}
	side := r3.Scale(float64(e.crashDirection), systems.Right(dir))

	p := &e.params
	for _, frac := range [...]float64{1, 0.5} {
		offset := p.AvoidOffset * p.KartWidth * frac
		cand := r3.Add(aim.Point, r3.Scale(offset, side))
		if CorridorClear(e.graph, e.self.Position, cand, e.trackNode, p.KartLength, p.KartWidth) {
			return AimPoint{Point: cand, Node: aim.Node}
		}
	}
	return aim
}

func (e *Engine) planInput() PlanInput {
	return PlanInput{
		Graph:         e.graph,
		Position:      e.self.Position,
		Node:          e.trackNode,
		KartLength:    e.params.KartLength,
		KartWidth:     e.params.KartWidth,
		MaxIterations: e.params.MaxPlanIterations,
	}
}
