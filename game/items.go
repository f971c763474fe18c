package game

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/kartpilot/components"
	"github.com/pthm-cable/kartpilot/systems"
)

// Nitro refill per canister, as a fraction of the tank.
const (
	nitroBigFill   = 0.5
	nitroSmallFill = 0.15
)

// bombHandoverCooldown stops a bomb from bouncing straight back.
const bombHandoverCooldown = 1.0

// defaultItemRange applies to offensive items without a configured range.
const defaultItemRange = 50.0

// boxItems are the items a bonus box can grant.
var boxItems = []components.ItemKind{
	components.ItemBubblegum,
	components.ItemCake,
	components.ItemBowling,
	components.ItemZipper,
	components.ItemPlunger,
	components.ItemSwitch,
	components.ItemSwatter,
	components.ItemRubberBall,
	components.ItemParachute,
	components.ItemAnvil,
}

// updateItems resolves rescues, fired items, pickups and bombs.
func (r *Race) updateItems(dt float64) {
	r.bombCooldown = math.Max(0, r.bombCooldown-dt)

	for i, e := range r.entities {
		p := r.progressMap.Get(e)
		if p.Finished || p.Eliminated {
			continue
		}
		if p.RescueTime > 0 {
			p.RescueTime = math.Max(0, p.RescueTime-dt)
			continue
		}

		c := r.controlsMap.Get(e)
		if c.Rescue {
			r.rescueKart(i)
			continue
		}
		if c.Fire {
			r.useItem(i)
		}
		r.collectPickups(i)
	}

	r.updateBombs(dt)
	r.pickups.Update(dt)
}

// collectPickups lets a kart drive over the pickups around its node.
func (r *Race) collectPickups(i int) {
	e := r.entities[i]
	pose := r.poseMap.Get(e)
	p := r.progressMap.Get(e)
	node := nodeID(p.Node)
	if r.graph.Node(node) == nil {
		return
	}

	reach := r.cfg.Kart.Length/2 + r.cfg.AI.ItemRadius
	var buf [16]systems.Pickup
	for _, pk := range r.pickups.InSpan(r.graph, node, r.graph.Next(node), buf[:0]) {
		if systems.Dist2D(pk.Position, pose.Position) > reach {
			continue
		}
		if _, ok := r.pickups.Collect(pk.ID); !ok {
			continue
		}
		r.applyPickup(i, pk.Kind)
		r.collector.RecordPickup()
	}
}

// applyPickup gives a kart the effect of a pickup it drove over.
func (r *Race) applyPickup(i int, kind systems.PickupKind) {
	e := r.entities[i]
	inv := r.invMap.Get(e)
	m := r.motionMap.Get(e)

	switch kind {
	case systems.PickupBonusBox:
		if inv.Item != components.ItemNone {
			return
		}
		if inv.Attachment == components.AttachNone && r.rng.Float64() < r.cfg.Race.BombChance {
			inv.Attachment = components.AttachBomb
			inv.AttachTime = r.cfg.Race.BombTime
			return
		}
		inv.Item = boxItems[r.rng.Intn(len(boxItems))]
		inv.Count = 1
	case systems.PickupNitroBig:
		inv.Nitro = math.Min(inv.MaxNitro, inv.Nitro+nitroBigFill*inv.MaxNitro)
	case systems.PickupNitroSmall:
		inv.Nitro = math.Min(inv.MaxNitro, inv.Nitro+nitroSmallFill*inv.MaxNitro)
	case systems.PickupBanana, systems.PickupBubblegum:
		m.SlowTime = r.cfg.Race.HitTime
	}
}

// useItem fires the held item of kart i. Projectiles are not simulated: an
// offensive item hits its target at once if the target is in range.
func (r *Race) useItem(i int) {
	e := r.entities[i]
	inv := r.invMap.Get(e)
	if inv.Item == components.ItemNone || inv.Count <= 0 {
		return
	}
	item := inv.Item
	inv.Count--
	if inv.Count == 0 {
		inv.Item = components.ItemNone
	}

	switch item {
	case components.ItemZipper:
		r.motionMap.Get(e).ZipperTime = r.cfg.Kart.ZipperDuration
	case components.ItemBubblegum:
		r.dropGum(i)
	case components.ItemSwitch:
		r.pickups.Switch()
	case components.ItemParachute, components.ItemAnvil:
		if target := r.firstPlace(i); target >= 0 {
			r.hit(target)
		}
	default:
		reach, ok := r.cfg.AI.ItemRanges[item.String()]
		if !ok {
			reach = defaultItemRange
		}
		if target := r.kartAhead(i, reach); target >= 0 {
			r.hit(target)
		}
	}
	r.logger.Debug("item used", "kart", i, "item", item.String(), "tick", r.tick)
}

// dropGum leaves a bubblegum pickup behind kart i.
func (r *Race) dropGum(i int) {
	e := r.entities[i]
	pose := r.poseMap.Get(e)
	p := r.progressMap.Get(e)

	pos := r3.Sub(pose.Position, r3.Scale(1.5*r.cfg.Kart.Length, systems.Forward(pose.Heading)))
	node := r.graph.FindRoadSector(pos, nodeID(p.Node))
	if node == systems.UnknownNode {
		return
	}
	r.pickups.Drop(systems.PickupBubblegum, pos, node)
}

// hit slows a kart down.
func (r *Race) hit(i int) {
	m := r.motionMap.Get(r.entities[i])
	m.SlowTime = r.cfg.Race.HitTime
}

// kartAhead returns the closest racing kart ahead of kart i within dist along
// the track, or -1.
func (r *Race) kartAhead(i int, dist float64) int {
	own := r.progressMap.Get(r.entities[i]).Distance
	best, bestGap := -1, dist
	for j, e := range r.entities {
		if j == i {
			continue
		}
		p := r.progressMap.Get(e)
		if p.Finished || p.Eliminated {
			continue
		}
		gap := p.Distance - own
		if gap > 0 && gap <= bestGap {
			best, bestGap = j, gap
		}
	}
	return best
}

// firstPlace returns the racing kart with rank 1 if it is not kart i, or -1.
func (r *Race) firstPlace(i int) int {
	for j, e := range r.entities {
		p := r.progressMap.Get(e)
		if p.Rank == 1 && j != i && !p.Finished && !p.Eliminated {
			return j
		}
	}
	return -1
}

// updateBombs counts down attached bombs and passes them on contact.
func (r *Race) updateBombs(dt float64) {
	contact := r.cfg.Kart.Length
	received := -1

	for i, e := range r.entities {
		inv := r.invMap.Get(e)
		if inv.Attachment != components.AttachBomb || i == received {
			continue
		}
		p := r.progressMap.Get(e)
		if p.Finished || p.Eliminated {
			inv.Attachment = components.AttachNone
			continue
		}

		inv.AttachTime -= dt
		if inv.AttachTime <= 0 {
			inv.Attachment = components.AttachNone
			m := r.motionMap.Get(e)
			m.Speed = 0
			m.SlowTime = 2 * r.cfg.Race.HitTime
			r.logger.Debug("bomb exploded", "kart", i, "tick", r.tick)
			continue
		}

		if r.bombCooldown > 0 {
			continue
		}
		pos := r.poseMap.Get(e).Position
		for j, other := range r.entities {
			if j == i {
				continue
			}
			oinv := r.invMap.Get(other)
			op := r.progressMap.Get(other)
			if oinv.Attachment != components.AttachNone || op.Finished || op.Eliminated {
				continue
			}
			if systems.Dist2D(r.poseMap.Get(other).Position, pos) > contact {
				continue
			}
			oinv.Attachment = components.AttachBomb
			oinv.AttachTime = inv.AttachTime
			inv.Attachment = components.AttachNone
			r.bombCooldown = bombHandoverCooldown
			received = j
			r.logger.Debug("bomb passed", "from", i, "to", j, "tick", r.tick)
			break
		}
	}
}
