package systems

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/kartpilot/config"
)

// Track bundles a generated route graph with its pickups.
type Track struct {
	Graph   *RouteGraph
	Pickups *PickupRegistry
}

// pickupRows lists the kinds placed left to right across a pickup row.
var pickupRows = [][3]PickupKind{
	{PickupBonusBox, PickupBonusBox, PickupBonusBox},
	{PickupNitroSmall, PickupBanana, PickupNitroBig},
	{PickupBonusBox, PickupNitroSmall, PickupBanana},
	{PickupBanana, PickupBonusBox, PickupNitroSmall},
}

// GenerateTrack builds a closed loop around a noisy ellipse. The radius is
// perturbed with simplex noise sampled on a circle so the loop closes smoothly.
func GenerateTrack(cfg config.TrackConfig, seed int64) (*Track, error) {
	if cfg.Nodes < 3 {
		return nil, fmt.Errorf("generating track: need at least 3 nodes, got %d", cfg.Nodes)
	}

	noise := opensimplex.New(seed)
	points := make([]r3.Vec, cfg.Nodes)
	for i := range points {
		theta := 2 * math.Pi * float64(i) / float64(cfg.Nodes)
		nx := math.Cos(theta) * cfg.NoiseScale
		nz := math.Sin(theta) * cfg.NoiseScale
		r := 1 + cfg.NoiseAmplitude*noise.Eval2(nx, nz)

		// Clockwise seen from above so the loop turns right.
		points[i] = r3.Vec{
			X: cfg.RadiusX * r * math.Sin(theta),
			Z: cfg.RadiusZ * r * math.Cos(theta),
		}
	}
	nodes := LoopNodes(points, cfg.Width)

	g, err := NewRouteGraph(nodes, cfg.StraightAngle, cfg.GridCellSize)
	if err != nil {
		return nil, fmt.Errorf("generating track: %w", err)
	}

	pickups := NewPickupRegistry(cfg.PickupRespawn)
	if cfg.PickupRows > 0 {
		rng := rand.New(rand.NewSource(seed))
		spacing := cfg.Nodes / (cfg.PickupRows + 1)
		for row := 1; row <= cfg.PickupRows; row++ {
			id := NodeID(row * spacing)
			n := g.Node(id)
			kinds := pickupRows[rng.Intn(len(pickupRows))]
			for lane, kind := range kinds {
				t := (float64(lane) + 1) / 4
				pos := r3.Add(n.Left, r3.Scale(t, r3.Sub(n.Right, n.Left)))
				pickups.Add(kind, pos, id)
			}
		}
	}

	return &Track{Graph: g, Pickups: pickups}, nil
}

// LoopNodes turns a closed polyline of node centers into route nodes, each
// linked to the following point.
func LoopNodes(points []r3.Vec, width float64) []RouteNode {
	nodes := make([]RouteNode, len(points))
	for i, p := range points {
		nodes[i] = RouteNode{
			Center:     p,
			Normal:     Up,
			Width:      width,
			Successors: []NodeID{NodeID((i + 1) % len(points))},
		}
	}
	return nodes
}
