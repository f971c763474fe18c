package systems

import (
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/kartpilot/components"
	"github.com/pthm-cable/kartpilot/config"
)

// minSkidSpeedFraction is the fraction of max speed below which a skid
// request has no effect.
const minSkidSpeedFraction = 0.2

// KartPhysics integrates kart motion from the applied controls.
type KartPhysics struct {
	filter ecs.Filter5[
		components.Pose,
		components.Motion,
		components.Progress,
		components.Inventory,
		components.Controls,
	]
	kart     config.KartConfig
	slowdown float64
}

// NewKartPhysics creates a new kart physics system.
func NewKartPhysics(w *ecs.World, kart config.KartConfig, slowdown float64) *KartPhysics {
	return &KartPhysics{
		filter: *ecs.NewFilter5[
			components.Pose,
			components.Motion,
			components.Progress,
			components.Inventory,
			components.Controls,
		](w),
		kart:     kart,
		slowdown: slowdown,
	}
}

// Update advances every kart by dt seconds.
func (s *KartPhysics) Update(dt float64) {
	query := s.filter.Query()
	for query.Next() {
		pose, motion, progress, inv, ctrl := query.Get()

		// Frozen karts
		if progress.Finished || progress.Eliminated || progress.RescueTime > 0 {
			motion.Speed = 0
			motion.Velocity = r3.Vec{}
			motion.Skidding = false
			continue
		}

		IntegrateKart(s.kart, pose, motion, inv, ctrl, s.slowdown, dt)
	}
}

// IntegrateKart applies one tick of a kinematic bicycle model. Nitro burns
// fuel and raises the speed cap, skidding tightens the turn, and item
// slowdown scales the cap down.
func IntegrateKart(k config.KartConfig, pose *components.Pose, m *components.Motion,
	inv *components.Inventory, c *components.Controls, slowdown, dt float64) {

	maxSpeed := k.MaxSpeed
	boosted := false

	if c.Nitro && inv.Nitro > 0 {
		maxSpeed *= k.NitroBoost
		inv.Nitro = math.Max(0, inv.Nitro-k.NitroBurn*dt)
		boosted = true
	}
	if m.ZipperTime > 0 {
		maxSpeed *= k.ZipperBoost
		m.ZipperTime = math.Max(0, m.ZipperTime-dt)
		boosted = true
	}
	if m.SlowTime > 0 {
		maxSpeed *= slowdown
		m.SlowTime = math.Max(0, m.SlowTime-dt)
	}

	accel := Clamp(c.Accel, 0, 1)*k.Acceleration - Clamp(c.Brake, 0, 1)*k.BrakeForce - k.Drag*m.Speed
	if boosted {
		accel += k.Acceleration
	}
	m.Speed += accel * dt

	// Over the cap (boost ended, slowed down): bleed speed off at brake rate
	if m.Speed > maxSpeed {
		m.Speed = math.Max(maxSpeed, m.Speed-k.BrakeForce*dt)
	}
	if m.Speed < 0 {
		m.Speed = 0
	}

	m.Skidding = c.Skid != components.SkidNone && m.Speed > minSkidSpeedFraction*k.MaxSpeed

	steer := Clamp(c.Steer, -1, 1) * k.MaxSteerAngle
	turn := m.Speed * math.Sin(steer) / k.WheelBase
	limit := k.MaxLateralAccel
	if m.Skidding {
		turn *= k.SkidTurnFactor
		limit *= k.SkidTurnFactor
	}
	if m.Speed > 0 {
		maxTurn := limit / m.Speed
		turn = Clamp(turn, -maxTurn, maxTurn)
	}

	pose.Heading = NormalizeAngle(pose.Heading + turn*dt)
	m.Velocity = r3.Scale(m.Speed, Forward(pose.Heading))
	pose.Position = r3.Add(pose.Position, r3.Scale(dt, m.Velocity))
	m.MaxSpeed = k.MaxSpeed
	m.OnGround = true
}
