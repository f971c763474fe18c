package game

import (
	"fmt"
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/kartpilot/components"
	"github.com/pthm-cable/kartpilot/controller"
	"github.com/pthm-cable/kartpilot/systems"
)

// engineSeedStride spreads the engine seeds of one race apart.
const engineSeedStride = 1_000_003

// spawnGrid places all karts on the starting grid behind node 0 and creates
// their engines. Human karts take the back of the grid.
func (r *Race) spawnGrid(difficulty string) error {
	n := r.cfg.Race.Karts
	humans := r.cfg.Race.Humans

	aiParams := controller.ParamsFromConfig(r.cfg, difficulty)
	humanParams := controller.ParamsFromConfig(r.cfg, r.cfg.Race.HumanDriver)

	r.entities = make([]ecs.Entity, 0, n)
	r.engines = make([]*controller.Engine, 0, n)
	r.results = make([]kartResult, n)

	for i := 0; i < n; i++ {
		pos, heading, node, err := r.gridSlot(i)
		if err != nil {
			return err
		}

		human := i >= n-humans
		params := aiParams
		if human {
			params = humanParams
		}

		id := controller.VehicleID(i)
		r.spawnKart(id, human, params.Difficulty.Name, pos, heading, node)
		r.engines = append(r.engines, controller.New(id, r, r.graph, params,
			controller.WithSeed(r.seed*engineSeedStride+int64(i)),
			controller.WithLogger(r.logger.With("kart", i)),
		))
	}
	return nil
}

// spawnKart creates one kart entity at rest.
func (r *Race) spawnKart(id controller.VehicleID, human bool, difficulty string, pos r3.Vec, heading float64, node systems.NodeID) {
	kart := components.Kart{ID: uint32(id), Human: human, Difficulty: difficulty}
	pose := components.Pose{Position: pos, Heading: heading}
	motion := components.Motion{MaxSpeed: r.cfg.Kart.MaxSpeed, OnGround: true}

	// Grid slots sit behind the line, so the kart starts on lap -1.
	length := r.graph.TrackLength()
	progress := components.Progress{
		Node:         int32(node),
		LastRoadNode: int32(node),
		Lap:          -1,
		Distance:     r.lapDistance(pos, node) - length,
	}
	inv := components.Inventory{MaxNitro: r.cfg.Kart.MaxNitro}
	ctrl := components.Controls{}

	entity := r.kartMapper.NewEntity(&kart, &pose, &motion, &progress, &inv, &ctrl)
	r.entities = append(r.entities, entity)
}

// gridSlot returns the position, heading and node of grid slot i. Slots are
// laid out in rows of two, one row every grid spacing behind node 0.
func (r *Race) gridSlot(i int) (r3.Vec, float64, systems.NodeID, error) {
	back := float64(i/2+1) * r.cfg.Race.GridSpacing
	lane := -0.25
	if i%2 == 1 {
		lane = 0.25
	}

	cur := systems.NodeID(0)
	for steps := 0; steps < r.graph.NumNodes(); steps++ {
		n := r.graph.Node(cur)
		if len(n.Predecessors) == 0 {
			break
		}
		prev := n.Predecessors[0]
		p := r.graph.Node(prev)
		seg := systems.Dist2D(n.Center, p.Center)
		if back <= seg {
			dir := systems.FlatUnit(r3.Sub(n.Center, p.Center))
			pos := r3.Sub(n.Center, r3.Scale(back, dir))
			pos = r3.Add(pos, r3.Scale(lane*p.Width, systems.Right(dir)))
			return pos, systems.HeadingOf(dir), prev, nil
		}
		back -= seg
		cur = prev
	}
	return r3.Vec{}, 0, systems.UnknownNode, fmt.Errorf("grid slot %d does not fit on the track", i)
}

// rescueKart puts a kart back on the center of its last on-road node, facing
// along the track, and freezes it for the rescue duration.
func (r *Race) rescueKart(i int) {
	e := r.entities[i]
	pose := r.poseMap.Get(e)
	m := r.motionMap.Get(e)
	p := r.progressMap.Get(e)

	node := nodeID(p.LastRoadNode)
	n := r.graph.Node(node)
	if n == nil {
		return
	}
	dir := systems.FlatUnit(r3.Sub(r.graph.Node(r.graph.Next(node)).Center, n.Center))

	pose.Position = n.Center
	pose.Heading = systems.HeadingOf(dir)
	m.Speed = 0
	m.Velocity = r3.Vec{}
	m.Skidding = false
	m.ZipperTime = 0
	p.Node = int32(node)
	p.RescueTime = r.cfg.Kart.RescueDuration
	r.results[i].rescues++

	r.logger.Debug("kart rescued", "kart", i, "node", node, "tick", r.tick)
}

// eliminate takes a kart out of the race.
func (r *Race) eliminate(i int) {
	e := r.entities[i]
	p := r.progressMap.Get(e)
	m := r.motionMap.Get(e)
	p.Eliminated = true
	m.Speed = 0
	m.Velocity = r3.Vec{}
	r.logger.Info("kart eliminated", "kart", i, "time", math.Round(r.time*100)/100)
}
