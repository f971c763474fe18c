package game

import (
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/kartpilot/config"
	"github.com/pthm-cable/kartpilot/controller"
	"github.com/pthm-cable/kartpilot/systems"
	"github.com/pthm-cable/kartpilot/telemetry"
)

const (
	testRadius = 60.0
	testNodes  = 48
)

// circleTrack returns a right-turning circular track without pickups.
func circleTrack(t *testing.T) *systems.Track {
	t.Helper()
	pts := make([]r3.Vec, testNodes)
	for i := range pts {
		theta := 2 * math.Pi * float64(i) / testNodes
		pts[i] = r3.Vec{X: testRadius * math.Sin(theta), Z: testRadius * math.Cos(theta)}
	}
	g, err := systems.NewRouteGraph(systems.LoopNodes(pts, 14), 0.035, 24)
	if err != nil {
		t.Fatalf("NewRouteGraph: %v", err)
	}
	return &systems.Track{Graph: g, Pickups: systems.NewPickupRegistry(2)}
}

func testConfig(t *testing.T, mutate func(*config.Config)) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Race.Karts = 4
	cfg.Race.Laps = 1
	cfg.Race.BombChance = 0
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRace(t *testing.T, mutate func(*config.Config)) *Race {
	t.Helper()
	r, err := NewRace(Options{
		Seed:   1,
		Config: testConfig(t, mutate),
		Track:  circleTrack(t),
		Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewRace: %v", err)
	}
	return r
}

// midpoint returns the point halfway between node i and its successor.
func midpoint(g *systems.RouteGraph, i systems.NodeID) r3.Vec {
	a := g.Node(i).Center
	b := g.Node(g.Next(i)).Center
	return r3.Scale(0.5, r3.Add(a, b))
}

func (r *Race) place(i int, pos r3.Vec) {
	r.poseMap.Get(r.entities[i]).Position = pos
}

func TestNewRaceGrid(t *testing.T) {
	r := newTestRace(t, nil)

	karts := r.Karts()
	if len(karts) != 4 {
		t.Fatalf("karts = %d, want 4", len(karts))
	}

	seen := map[int]bool{}
	for i, k := range karts {
		if k.ID != controller.VehicleID(i) {
			t.Errorf("kart %d has id %d", i, k.ID)
		}
		if r.graph.FindNearestNode(k.Position) == systems.UnknownNode {
			t.Errorf("kart %d spawned off the road at %v", i, k.Position)
		}
		if k.DistanceAlongTrack >= 0 {
			t.Errorf("kart %d distance = %v, want behind the line", i, k.DistanceAlongTrack)
		}
		p := r.progressMap.Get(r.entities[i])
		if p.Lap != -1 {
			t.Errorf("kart %d lap = %d, want -1", i, p.Lap)
		}
		seen[k.Rank] = true
	}
	for rank := 1; rank <= 4; rank++ {
		if !seen[rank] {
			t.Errorf("rank %d not assigned", rank)
		}
	}

	// Front row ahead of the second row
	for i := 0; i < 2; i++ {
		if karts[i].Rank > 2 {
			t.Errorf("front row kart %d has rank %d", i, karts[i].Rank)
		}
	}
	if !(karts[0].DistanceAlongTrack > karts[2].DistanceAlongTrack) {
		t.Errorf("row 1 distance %v not ahead of row 2 distance %v",
			karts[0].DistanceAlongTrack, karts[2].DistanceAlongTrack)
	}
}

func TestGridTooLong(t *testing.T) {
	_, err := NewRace(Options{
		Seed: 1,
		Config: testConfig(t, func(c *config.Config) {
			c.Race.Karts = 2
			c.Race.GridSpacing = 10 * testRadius
		}),
		Track:  circleTrack(t),
		Logger: quietLogger(),
	})
	if err == nil {
		t.Error("expected error when the grid does not fit")
	}
}

func TestHumansAtBackOfGrid(t *testing.T) {
	r := newTestRace(t, func(c *config.Config) { c.Race.Humans = 1 })

	karts := r.Karts()
	for i, k := range karts {
		want := i == len(karts)-1
		if k.Human != want {
			t.Errorf("kart %d human = %v, want %v", i, k.Human, want)
		}
	}
	if got := r.Engine(3).Params().Difficulty.Name; got != "best" {
		t.Errorf("human stand-in difficulty = %q, want best", got)
	}
	if got := r.Engine(0).Params().Difficulty.Name; got != "medium" {
		t.Errorf("ai difficulty = %q, want medium", got)
	}
}

func TestStartPhaseHoldsKarts(t *testing.T) {
	r := newTestRace(t, func(c *config.Config) { c.Race.StartDelay = 1 })

	start := r.Karts()
	for r.Time() < 0.5 {
		r.Step()
	}
	for i, k := range r.Karts() {
		if k.Speed != 0 {
			t.Errorf("kart %d speed = %v during start phase", i, k.Speed)
		}
		if k.Position != start[i].Position {
			t.Errorf("kart %d moved during start phase", i)
		}
	}
}

func TestRaceProgresses(t *testing.T) {
	r := newTestRace(t, func(c *config.Config) { c.Race.StartDelay = 0.5 })

	start := r.Karts()
	r.Run(600)

	if r.Tick() != 600 {
		t.Fatalf("ticks = %d, want 600", r.Tick())
	}
	moved := 0
	for i, k := range r.Karts() {
		if k.DistanceAlongTrack > start[i].DistanceAlongTrack+10 {
			moved++
		}
	}
	if moved == 0 {
		t.Error("no kart made progress in 10 seconds")
	}
}

func TestRaceDeterministic(t *testing.T) {
	run := func() ([]controller.Kinematics, []telemetry.ResultRow) {
		r, err := NewRace(Options{
			Seed: 42,
			Config: testConfig(t, func(c *config.Config) {
				c.Race.StartDelay = 0.5
				c.Race.BombChance = 0.5
			}),
			Logger: quietLogger(),
		})
		if err != nil {
			t.Fatalf("NewRace: %v", err)
		}
		r.Run(400)
		return r.Karts(), r.Results()
	}

	k1, res1 := run()
	k2, res2 := run()
	if !reflect.DeepEqual(k1, k2) {
		t.Error("kart state differs between runs with the same seed")
	}
	if !reflect.DeepEqual(res1, res2) {
		t.Error("results differ between runs with the same seed")
	}
}

func TestLapCountingAndFinish(t *testing.T) {
	r := newTestRace(t, nil)
	length := r.graph.TrackLength()
	p := r.progressMap.Get(r.entities[0])

	// Across the line
	r.place(0, midpoint(r.graph, 1))
	r.updateProgress()
	if p.Lap != 0 {
		t.Fatalf("lap after crossing the line = %d, want 0", p.Lap)
	}
	if p.Distance <= 0 || p.Distance > length/4 {
		t.Errorf("distance = %v, want just past the line", p.Distance)
	}

	// Around the loop
	for _, n := range []systems.NodeID{12, 24, 36, 47} {
		r.place(0, midpoint(r.graph, n))
		r.updateProgress()
		if p.Lap != 0 || p.Finished {
			t.Fatalf("node %d: lap = %d finished = %v", n, p.Lap, p.Finished)
		}
	}

	r.place(0, midpoint(r.graph, 1))
	r.updateProgress()
	if !p.Finished {
		t.Fatal("kart should finish after one lap")
	}
	if p.Rank != 1 {
		t.Errorf("finished kart rank = %d, want 1", p.Rank)
	}
	if r.results[0].finishOrder != 1 {
		t.Errorf("finish order = %d, want 1", r.results[0].finishOrder)
	}
}

func TestLapCountingBackwards(t *testing.T) {
	r := newTestRace(t, nil)
	p := r.progressMap.Get(r.entities[0])

	r.place(0, midpoint(r.graph, 1))
	r.updateProgress()
	r.place(0, midpoint(r.graph, 46))
	r.updateProgress()
	if p.Lap != -1 {
		t.Errorf("lap after reversing over the line = %d, want -1", p.Lap)
	}
	if p.Distance >= 0 {
		t.Errorf("distance = %v, want negative", p.Distance)
	}
}

func TestUpdateRanks(t *testing.T) {
	r := newTestRace(t, nil)
	set := func(i int, dist float64, finished, eliminated bool, order int) {
		p := r.progressMap.Get(r.entities[i])
		p.Distance = dist
		p.Finished = finished
		p.Eliminated = eliminated
		r.results[i].finishOrder = order
	}
	set(0, 10, false, false, 0)
	set(1, 500, false, true, 0)
	set(2, 300, true, false, 2)
	set(3, 200, true, false, 1)

	r.updateRanks()

	want := []int{3, 4, 2, 1}
	for i, rank := range want {
		if got := r.progressMap.Get(r.entities[i]).Rank; got != rank {
			t.Errorf("kart %d rank = %d, want %d", i, got, rank)
		}
	}

	res := r.Results()
	for i, row := range res {
		if row.Rank != i+1 {
			t.Errorf("results[%d].Rank = %d", i, row.Rank)
		}
	}
}

func TestEliminateLast(t *testing.T) {
	tests := []struct {
		name      string
		racing    []int // indices left racing besides the leader
		wantElim  int
		distances []float64
	}{
		{"rearmost", []int{1, 2, 3}, 2, []float64{100, 50, 10, 30}},
		{"two left", []int{1, 3}, 3, []float64{100, 50, 10, 30}},
		{"one left", []int{1}, -1, []float64{100, 50, 10, 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRace(t, func(c *config.Config) { c.Race.Mode = "follow_leader" })
			if r.leader != 0 {
				t.Fatalf("leader = %d, want 0", r.leader)
			}
			racing := map[int]bool{0: true}
			for _, i := range tt.racing {
				racing[i] = true
			}
			for i, d := range tt.distances {
				p := r.progressMap.Get(r.entities[i])
				p.Distance = d
				p.Eliminated = !racing[i]
			}

			r.eliminateLast()

			for i := range tt.distances {
				p := r.progressMap.Get(r.entities[i])
				if !racing[i] {
					continue
				}
				if got, want := p.Eliminated, i == tt.wantElim; got != want {
					t.Errorf("kart %d eliminated = %v, want %v", i, got, want)
				}
			}
		})
	}
}

func TestFollowLeaderEliminatesOverTime(t *testing.T) {
	r := newTestRace(t, func(c *config.Config) {
		c.Race.Mode = "follow_leader"
		c.Race.StartDelay = 0.1
		c.Race.EliminationInterval = 0.5
	})

	for r.Time() < 0.7 {
		r.Step()
	}
	eliminated := 0
	for _, k := range r.Karts() {
		if k.Eliminated {
			eliminated++
		}
	}
	if eliminated != 1 {
		t.Errorf("eliminated = %d, want 1", eliminated)
	}
	if r.Karts()[0].Eliminated {
		t.Error("leader must never be eliminated")
	}
}

func TestRescueKart(t *testing.T) {
	r := newTestRace(t, nil)
	e := r.entities[0]
	p := r.progressMap.Get(e)
	m := r.motionMap.Get(e)

	p.LastRoadNode = 10
	m.Speed = 15
	m.ZipperTime = 1
	r.place(0, r3.Vec{X: 500, Z: 500})

	r.rescueKart(0)

	pose := r.poseMap.Get(e)
	if pose.Position != r.graph.Node(10).Center {
		t.Errorf("position = %v, want node 10 center", pose.Position)
	}
	dir := systems.FlatUnit(r3.Sub(r.graph.Node(11).Center, r.graph.Node(10).Center))
	if d := math.Abs(systems.NormalizeAngle(pose.Heading - systems.HeadingOf(dir))); d > 1e-9 {
		t.Errorf("heading off by %v", d)
	}
	if m.Speed != 0 || m.ZipperTime != 0 {
		t.Errorf("speed = %v zipper = %v, want both 0", m.Speed, m.ZipperTime)
	}
	if p.RescueTime != r.cfg.Kart.RescueDuration {
		t.Errorf("rescue time = %v", p.RescueTime)
	}
	if r.results[0].rescues != 1 {
		t.Errorf("rescues = %d, want 1", r.results[0].rescues)
	}
	if !r.kinematics(e).Rescuing {
		t.Error("kart should report rescuing")
	}
}

func TestRaceWritesOutput(t *testing.T) {
	dir := t.TempDir()
	out, err := telemetry.NewOutputManager(dir, true)
	if err != nil {
		t.Fatal(err)
	}

	var windows []telemetry.WindowStats
	r, err := NewRace(Options{
		Seed: 3,
		Config: testConfig(t, func(c *config.Config) {
			c.Race.StartDelay = 0.2
			c.Telemetry.StatsWindow = 1
		}),
		Track:         circleTrack(t),
		Output:        out,
		StatsCallback: func(s telemetry.WindowStats) { windows = append(windows, s) },
		Logger:        quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	r.Run(150)
	r.Close()
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}

	if len(windows) != 2 {
		t.Fatalf("windows = %d, want 2", len(windows))
	}
	if windows[0].Decisions != 4*60 {
		t.Errorf("decisions = %d, want %d", windows[0].Decisions, 4*60)
	}
	for _, name := range []string{"telemetry.csv", "perf.csv", "trace.csv", "results.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}
