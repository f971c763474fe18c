package systems

import (
	"math"
	"testing"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/kartpilot/components"
	"github.com/pthm-cable/kartpilot/config"
)

func testKartConfig(t *testing.T) config.KartConfig {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg.Kart
}

func TestIntegrateKartAccelerates(t *testing.T) {
	k := testKartConfig(t)
	pose := components.Pose{}
	motion := components.Motion{}
	inv := components.Inventory{}
	ctrl := components.Controls{Accel: 1}

	for i := 0; i < 60; i++ {
		IntegrateKart(k, &pose, &motion, &inv, &ctrl, 0.5, 1.0/60)
	}

	if motion.Speed <= 0 || motion.Speed > k.MaxSpeed {
		t.Errorf("Speed = %v, want in (0, %v]", motion.Speed, k.MaxSpeed)
	}
	if pose.Position.Z <= 0 || math.Abs(pose.Position.X) > 1e-9 {
		t.Errorf("Position = %v, want straight ahead along +Z", pose.Position)
	}
}

func TestIntegrateKartSteering(t *testing.T) {
	k := testKartConfig(t)

	tests := []struct {
		name     string
		steer    float64
		wantSign float64
	}{
		{"right", 0.5, 1},
		{"left", -0.5, -1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pose := components.Pose{}
			motion := components.Motion{Speed: 10}
			inv := components.Inventory{}
			ctrl := components.Controls{Accel: 0.5, Steer: tc.steer}

			IntegrateKart(k, &pose, &motion, &inv, &ctrl, 0.5, 0.1)

			if pose.Heading*tc.wantSign <= 0 {
				t.Errorf("Heading = %v, want sign %v", pose.Heading, tc.wantSign)
			}
		})
	}
}

func TestIntegrateKartSkidTightensTurn(t *testing.T) {
	k := testKartConfig(t)

	turn := func(skid components.SkidControl) float64 {
		pose := components.Pose{}
		motion := components.Motion{Speed: 15}
		ctrl := components.Controls{Steer: 0.3, Skid: skid}
		IntegrateKart(k, &pose, &motion, &components.Inventory{}, &ctrl, 0.5, 0.05)
		return pose.Heading
	}

	if plain, skid := turn(components.SkidNone), turn(components.SkidRight); skid <= plain {
		t.Errorf("skid heading %v should exceed plain heading %v", skid, plain)
	}
}

func TestIntegrateKartNitro(t *testing.T) {
	k := testKartConfig(t)
	pose := components.Pose{}
	motion := components.Motion{Speed: k.MaxSpeed}
	inv := components.Inventory{Nitro: 5}
	ctrl := components.Controls{Accel: 1, Nitro: true}

	IntegrateKart(k, &pose, &motion, &inv, &ctrl, 0.5, 0.1)

	if inv.Nitro >= 5 {
		t.Errorf("Nitro = %v, want fuel burned", inv.Nitro)
	}
	if motion.Speed <= k.MaxSpeed {
		t.Errorf("Speed = %v, want above base max %v while boosting", motion.Speed, k.MaxSpeed)
	}
}

func TestKartPhysicsFreezesRescuedKarts(t *testing.T) {
	k := testKartConfig(t)
	w := ecs.NewWorld()
	mapper := ecs.NewMap5[
		components.Pose,
		components.Motion,
		components.Progress,
		components.Inventory,
		components.Controls,
	](w)

	pose := components.Pose{Position: r3.Vec{Z: 3}}
	motion := components.Motion{Speed: 10}
	progress := components.Progress{RescueTime: 1}
	inv := components.Inventory{}
	ctrl := components.Controls{Accel: 1}
	e := mapper.NewEntity(&pose, &motion, &progress, &inv, &ctrl)

	NewKartPhysics(w, k, 0.5).Update(0.1)

	p, m, _, _, _ := mapper.Get(e)
	if m.Speed != 0 || p.Position.Z != 3 {
		t.Errorf("rescued kart moved: speed=%v pos=%v", m.Speed, p.Position)
	}
}
