package game

import (
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/kartpilot/components"
	"github.com/pthm-cable/kartpilot/controller"
	"github.com/pthm-cable/kartpilot/telemetry"
)

// intent captures the controls an engine submitted, applied after every
// engine has decided.
type intent struct {
	ID       controller.VehicleID
	Controls controller.Controls
}

// kinematics reads the engine-facing view of one kart.
func (r *Race) kinematics(e ecs.Entity) controller.Kinematics {
	k := r.kartMap.Get(e)
	pose := r.poseMap.Get(e)
	m := r.motionMap.Get(e)
	p := r.progressMap.Get(e)
	inv := r.invMap.Get(e)

	return controller.Kinematics{
		ID:                 controller.VehicleID(k.ID),
		Position:           pose.Position,
		Velocity:           m.Velocity,
		Heading:            pose.Heading,
		Speed:              m.Speed,
		MaxSpeed:           m.MaxSpeed,
		DistanceAlongTrack: p.Distance,
		Node:               nodeID(p.Node),
		Rank:               p.Rank,

		HeldItem:   inv.Item,
		ItemCount:  inv.Count,
		Attachment: inv.Attachment,
		NitroFuel:  inv.Nitro,
		MaxNitro:   inv.MaxNitro,

		Human:        k.Human,
		Eliminated:   p.Eliminated,
		Finished:     p.Finished,
		Rescuing:     p.RescueTime > 0,
		OnGround:     m.OnGround,
		ZipperActive: m.ZipperTime > 0,
		Skidding:     m.Skidding,
	}
}

// buildSnapshot captures the pre-tick state every engine reads this tick.
// Entities are kept in id order, so the vehicle table is sorted by id.
func (r *Race) buildSnapshot() {
	r.snap.Tick = r.tick
	r.snap.Time = r.time
	r.snap.Mode = r.mode
	r.snap.Leader = r.leader
	r.snap.StartPhase = r.startPhase()
	r.snap.Vehicles = r.snap.Vehicles[:0]
	for _, e := range r.entities {
		r.snap.Vehicles = append(r.snap.Vehicles, r.kinematics(e))
	}
}

// decide runs every engine in id order against the same snapshot.
func (r *Race) decide(dt float64) {
	r.intents = r.intents[:0]
	tracing := r.output.Tracing()

	for i, eng := range r.engines {
		start := time.Now()
		eng.Update(dt)
		r.timings.Record(i, time.Since(start))

		d := eng.Decision()
		r.collector.RecordDecision(d)
		if tracing {
			r.trace = append(r.trace, telemetry.NewTraceRow(eng.ID(), d))
		}
	}
}

// applyIntents writes the buffered controls back to the ECS. During the start
// countdown karts may steer but not drive or use anything.
func (r *Race) applyIntents() {
	hold := r.startPhase()
	for _, in := range r.intents {
		if int(in.ID) >= len(r.entities) {
			continue
		}
		c := r.controlsMap.Get(r.entities[in.ID])
		*c = in.Controls
		if hold {
			*c = components.Controls{Steer: in.Controls.Steer, Brake: 1}
		}
	}
}
