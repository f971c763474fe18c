package systems

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// NodeID identifies a route node. UnknownNode marks a failed lookup.
type NodeID int32

// UnknownNode is returned when a position cannot be placed on the route graph.
const UnknownNode NodeID = -1

// Direction classifies the track geometry at a node.
type Direction uint8

const (
	DirStraight Direction = iota
	DirLeft
	DirRight
	DirUndefined
)

func (d Direction) String() string {
	switch d {
	case DirStraight:
		return "straight"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	default:
		return "undefined"
	}
}

var (
	// ErrEmptyGraph is returned when a route graph is built without nodes.
	ErrEmptyGraph = errors.New("route graph has no nodes")
	// ErrBadSuccessor is returned when a node has no successor or an out-of-range one.
	ErrBadSuccessor = errors.New("route node has an invalid successor")
)

// RouteNode is one sector of the drivable route.
type RouteNode struct {
	ID     NodeID
	Center r3.Vec
	Normal r3.Vec
	Width  float64

	// Left and Right are the edge points of the node's cross section.
	Left, Right r3.Vec

	Successors   []NodeID // Successors[0] is the main driveline
	Predecessors []NodeID

	Direction         Direction
	LastSameDirection NodeID // last node reached from here without a direction change
	DistanceFromStart float64
	OffRoad           bool
}

// RouteGraph is an immutable directed graph of route nodes with a spatial index.
// All lookups are read-only and safe for concurrent use.
type RouteGraph struct {
	nodes   []RouteNode
	grid    *SpatialGrid
	length  float64
	reach   float64 // query radius that covers any node quad
	heightT float64
}

// HeightTolerance is how far above or below a node a position may be and still
// belong to it.
const HeightTolerance = 4.0

// NewRouteGraph validates nodes and derives directions, distances, edge points
// and the spatial index. IDs are reassigned to slice indices.
// Turns sharper than straightAngle (radians) classify as curves.
func NewRouteGraph(nodes []RouteNode, straightAngle, cellSize float64) (*RouteGraph, error) {
	if len(nodes) == 0 {
		return nil, ErrEmptyGraph
	}

	g := &RouteGraph{
		nodes:   make([]RouteNode, len(nodes)),
		heightT: HeightTolerance,
	}
	copy(g.nodes, nodes)

	for i := range g.nodes {
		n := &g.nodes[i]
		n.ID = NodeID(i)
		n.Predecessors = nil
		if len(n.Successors) == 0 {
			return nil, fmt.Errorf("node %d: %w", i, ErrBadSuccessor)
		}
		for _, s := range n.Successors {
			if s < 0 || int(s) >= len(g.nodes) {
				return nil, fmt.Errorf("node %d -> %d: %w", i, s, ErrBadSuccessor)
			}
		}
		if r3.Norm2(n.Normal) == 0 {
			n.Normal = Up
		}
	}
	for i := range g.nodes {
		for _, s := range g.nodes[i].Successors {
			g.nodes[s].Predecessors = append(g.nodes[s].Predecessors, NodeID(i))
		}
	}

	g.computeEdges()
	g.computeDirections(straightAngle)
	g.computeDistances()
	g.buildIndex(cellSize)

	return g, nil
}

// computeEdges places each node's edge points along the bisector of its
// incoming and outgoing segments so consecutive quads share edges.
func (g *RouteGraph) computeEdges() {
	for i := range g.nodes {
		n := &g.nodes[i]
		out := FlatUnit(r3.Sub(g.nodes[n.Successors[0]].Center, n.Center))
		in := out
		if len(n.Predecessors) > 0 {
			in = FlatUnit(r3.Sub(n.Center, g.nodes[n.Predecessors[0]].Center))
		}
		axis := FlatUnit(r3.Add(in, out))
		if r3.Norm2(axis) == 0 {
			axis = out
		}
		right := Right(axis)
		half := n.Width / 2
		n.Right = r3.Add(n.Center, r3.Scale(half, right))
		n.Left = r3.Sub(n.Center, r3.Scale(half, right))
	}
}

func (g *RouteGraph) computeDirections(straightAngle float64) {
	for i := range g.nodes {
		n := &g.nodes[i]
		if len(n.Predecessors) == 0 {
			n.Direction = DirStraight
			continue
		}
		prev := g.nodes[n.Predecessors[0]].Center
		next := g.nodes[n.Successors[0]].Center
		in := r3.Sub(n.Center, prev)
		out := r3.Sub(next, n.Center)
		turn := NormalizeAngle(HeadingOf(out) - HeadingOf(in))
		switch {
		case math.Abs(turn) < straightAngle:
			n.Direction = DirStraight
		case turn > 0:
			n.Direction = DirRight
		default:
			n.Direction = DirLeft
		}
	}

	for i := range g.nodes {
		last := NodeID(i)
		dir := g.nodes[i].Direction
		for steps := 0; steps < len(g.nodes); steps++ {
			next := g.nodes[last].Successors[0]
			if next == NodeID(i) || g.nodes[next].Direction != dir {
				break
			}
			last = next
		}
		g.nodes[i].LastSameDirection = last
	}
}

// computeDistances walks the main driveline from node 0. Nodes off the
// driveline inherit the distance of their first predecessor.
func (g *RouteGraph) computeDistances() {
	visited := make([]bool, len(g.nodes))
	cur := NodeID(0)
	dist := 0.0
	for !visited[cur] {
		visited[cur] = true
		g.nodes[cur].DistanceFromStart = dist
		next := g.nodes[cur].Successors[0]
		seg := Dist2D(g.nodes[next].Center, g.nodes[cur].Center)
		dist += seg
		if next == 0 {
			break
		}
		cur = next
	}
	g.length = dist

	for pass := 0; pass < len(g.nodes); pass++ {
		changed := false
		for i := range g.nodes {
			if visited[i] {
				continue
			}
			for _, p := range g.nodes[i].Predecessors {
				if visited[p] {
					g.nodes[i].DistanceFromStart = g.nodes[p].DistanceFromStart +
						Dist2D(g.nodes[i].Center, g.nodes[p].Center)
					visited[i] = true
					changed = true
					break
				}
			}
		}
		if !changed {
			break
		}
	}
}

func (g *RouteGraph) buildIndex(cellSize float64) {
	minX, minZ := math.Inf(1), math.Inf(1)
	maxX, maxZ := math.Inf(-1), math.Inf(-1)
	maxSeg := 0.0
	for i := range g.nodes {
		n := &g.nodes[i]
		minX = math.Min(minX, n.Center.X)
		minZ = math.Min(minZ, n.Center.Z)
		maxX = math.Max(maxX, n.Center.X)
		maxZ = math.Max(maxZ, n.Center.Z)
		for _, s := range n.Successors {
			seg := Dist2D(n.Center, g.nodes[s].Center) + math.Max(n.Width, g.nodes[s].Width)
			maxSeg = math.Max(maxSeg, seg)
		}
	}
	g.reach = maxSeg
	if cellSize <= 0 {
		cellSize = math.Max(maxSeg, 1)
	}
	g.grid = NewSpatialGrid(minX, minZ, maxX, maxZ, cellSize)
	for i := range g.nodes {
		g.grid.Insert(int32(i), g.nodes[i].Center.X, g.nodes[i].Center.Z)
	}
}

// NumNodes returns the number of nodes in the graph.
func (g *RouteGraph) NumNodes() int { return len(g.nodes) }

// Node returns the node with the given id, or nil.
func (g *RouteGraph) Node(id NodeID) *RouteNode {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return &g.nodes[id]
}

// Next returns the main-driveline successor of id.
func (g *RouteGraph) Next(id NodeID) NodeID {
	n := g.Node(id)
	if n == nil {
		return UnknownNode
	}
	return n.Successors[0]
}

// IsOnRoad reports whether id is a valid drivable node.
func (g *RouteGraph) IsOnRoad(id NodeID) bool {
	n := g.Node(id)
	return n != nil && !n.OffRoad
}

// TrackLength returns the length of one lap along the main driveline.
func (g *RouteGraph) TrackLength() float64 { return g.length }

// SpatialToTrack projects pos onto the frame of node id. lateral is positive to
// the right of the segment towards the node's successor; forward is measured
// from the node center along that segment.
func (g *RouteGraph) SpatialToTrack(pos r3.Vec, id NodeID) (lateral, forward float64) {
	n := g.Node(id)
	if n == nil {
		return 0, 0
	}
	dir := FlatUnit(r3.Sub(g.nodes[n.Successors[0]].Center, n.Center))
	d := Flat(r3.Sub(pos, n.Center))
	return r3.Dot(d, Right(dir)), r3.Dot(d, dir)
}

// Contains reports whether pos lies inside the quad spanned by node id and its
// main successor, within the height tolerance.
func (g *RouteGraph) Contains(id NodeID, pos r3.Vec) bool {
	n := g.Node(id)
	if n == nil {
		return false
	}
	s := &g.nodes[n.Successors[0]]

	lateral, fwd := g.SpatialToTrack(pos, id)
	seg := Dist2D(s.Center, n.Center)

	// Quad corners in driving order: left, right, next right, next left.
	// Points on a shared edge can miss both quads by rounding, so the node
	// also owns [center, next center) of its own segment.
	quad := [4]r3.Vec{n.Left, n.Right, s.Right, s.Left}
	if !pointInQuad(quad, pos) && !onSegment(lateral, fwd, seg, n.Width, s.Width) {
		return false
	}

	t := 0.0
	if seg > 0 {
		t = Clamp(fwd/seg, 0, 1)
	}
	y := n.Center.Y + (s.Center.Y-n.Center.Y)*t
	return math.Abs(pos.Y-y) <= g.heightT
}

// onSegment reports whether a point given in segment coordinates lies in the
// half-open strip [0, seg) whose width blends from w0 to w1.
func onSegment(lateral, fwd, seg, w0, w1 float64) bool {
	if seg <= 0 || fwd < 0 || fwd >= seg {
		return false
	}
	half := (w0 + (w1-w0)*fwd/seg) / 2
	return math.Abs(lateral) <= half
}

// pointInQuad tests p against a quad using the crossing rule on the ground plane.
func pointInQuad(q [4]r3.Vec, p r3.Vec) bool {
	inside := false
	j := len(q) - 1
	for i := range q {
		zi, zj := q[i].Z, q[j].Z
		if (zi > p.Z) != (zj > p.Z) {
			x := q[i].X + (p.Z-zi)*(q[j].X-q[i].X)/(zj-zi)
			if p.X < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// FindNearestNode returns the node whose quad contains pos, preferring the one
// with the closest center. UnknownNode if pos is off every quad.
func (g *RouteGraph) FindNearestNode(pos r3.Vec) NodeID {
	var buf [32]int32
	candidates := g.grid.QueryRadiusInto(buf[:0], pos.X, pos.Z, g.reach)
	best := UnknownNode
	bestDist := math.Inf(1)
	for _, c := range candidates {
		id := NodeID(c)
		if !g.Contains(id, pos) {
			continue
		}
		d := r3.Norm2(r3.Sub(pos, g.nodes[id].Center))
		if d < bestDist {
			bestDist = d
			best = id
		}
	}
	return best
}

// sectorSearchDepth is how many nodes ahead of a hint are tried before the
// global lookup.
const sectorSearchDepth = 6

// FindRoadSector locates pos starting from hint: the hint itself, a few of its
// successors, then its predecessor, then a full spatial lookup.
func (g *RouteGraph) FindRoadSector(pos r3.Vec, hint NodeID) NodeID {
	if g.Node(hint) != nil {
		id := hint
		for i := 0; i < sectorSearchDepth; i++ {
			if g.Contains(id, pos) {
				return id
			}
			id = g.nodes[id].Successors[0]
		}
		for _, p := range g.nodes[hint].Predecessors {
			if g.Contains(p, pos) {
				return p
			}
		}
	}
	return g.FindNearestNode(pos)
}
