package controller

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/kartpilot/components"
	"github.com/pthm-cable/kartpilot/systems"
)

// itemState is the pickup targeting memory of an engine.
type itemState struct {
	target        int // pre-selected pickup, -1 if none
	lastRandom    int // pickup the acceptance draw was made for
	reallyCollect bool

	toCollect []systems.Pickup // sorted by distance
	toAvoid   []systems.Pickup // sorted by distance
	span      []systems.Pickup
}

// handleItemCollectionAndAvoidance may replace the aim point with a pickup to
// collect or a dodge around a hazard.
func (e *Engine) handleItemCollectionAndAvoidance(aim AimPoint) AimPoint {
	st := &e.items
	st.toCollect = st.toCollect[:0]
	st.toAvoid = st.toAvoid[:0]
	e.avoidItemClose = false

	aimDir := systems.Flat(r3.Sub(aim.Point, e.self.Position))

	if st.target >= 0 {
		if p, ok := e.selectedItemStillValid(aimDir); ok {
			return AimPoint{Point: p.Position, Node: aim.Node}
		}
		st.target = -1
	}

	last := aim.Node
	if e.graph.Node(last) == nil {
		last = e.graph.Next(e.trackNode)
	}
	st.span = e.world.Pickups(e.trackNode, last, st.span[:0])
	for _, p := range st.span {
		e.evaluateItem(p, aimDir)
	}
	e.avoidItemClose = len(st.toAvoid) > 0

	if len(st.toCollect) > 0 {
		item := st.toCollect[0]
		if item.ID != st.lastRandom {
			st.reallyCollect = e.collectRNG.Float64() < e.params.Difficulty.CollectProbability
			st.lastRandom = item.ID
		}
		if st.reallyCollect && !e.hitsBadItem(item.Position) {
			st.target = item.ID
			return AimPoint{Point: item.Position, Node: aim.Node}
		}
	}

	if len(st.toAvoid) > 0 {
		if p, ok := e.steerToAvoid(aim.Point); ok {
			return AimPoint{Point: p, Node: aim.Node}
		}
	}
	return aim
}

// selectedItemStillValid keeps a pre-selected pickup while it is active and
// still roughly in the driving direction.
func (e *Engine) selectedItemStillValid(aimDir r3.Vec) (systems.Pickup, bool) {
	p, ok := e.world.Pickup(e.items.target)
	if !ok || !p.Active {
		return systems.Pickup{}, false
	}
	toItem := systems.Flat(r3.Sub(p.Position, e.self.Position))
	if r3.Dot(toItem, aimDir) <= 0 {
		return systems.Pickup{}, false
	}
	if systems.AngleBetween2D(toItem, aimDir) > e.params.MaxItemAngle {
		return systems.Pickup{}, false
	}
	return p, true
}

// evaluateItem sorts a pickup into the collect or avoid list.
func (e *Engine) evaluateItem(p systems.Pickup, aimDir r3.Vec) {
	toItem := systems.Flat(r3.Sub(p.Position, e.self.Position))
	if r3.Dot(toItem, aimDir) <= 0 {
		return
	}

	var avoid bool
	switch p.Kind {
	case systems.PickupBanana, systems.PickupBubblegum:
		avoid = true
	case systems.PickupNitroBig, systems.PickupNitroSmall:
		if e.self.NitroFuel >= e.self.MaxNitro {
			return
		}
	case systems.PickupBonusBox:
		if e.self.HeldItem != components.ItemNone {
			return
		}
	default:
		return
	}

	if avoid {
		e.items.toAvoid = insertByDistance(e.items.toAvoid, p, e.self.Position)
		return
	}
	if systems.AngleBetween2D(toItem, aimDir) > e.params.MaxItemAngle {
		return
	}
	e.items.toCollect = insertByDistance(e.items.toCollect, p, e.self.Position)
}

func insertByDistance(list []systems.Pickup, p systems.Pickup, from r3.Vec) []systems.Pickup {
	d := systems.Dist2D(p.Position, from)
	i := len(list)
	for i > 0 && systems.Dist2D(list[i-1].Position, from) > d {
		i--
	}
	list = append(list, systems.Pickup{})
	copy(list[i+1:], list[i:])
	list[i] = p
	return list
}

// hitsBadItem reports whether driving straight to target passes over a hazard.
func (e *Engine) hitsBadItem(target r3.Vec) bool {
	clearance := e.params.ItemRadius + e.params.KartWidth/2
	for _, bad := range e.items.toAvoid {
		cp := systems.ClosestPointOnSegment(e.self.Position, target, bad.Position)
		if systems.Dist2D(cp, bad.Position) < clearance {
			return true
		}
	}
	return false
}

// steerToAvoid moves the aim point beside the closest hazard on the line to
// aim. The dodge side away from the hazard is tried first.
func (e *Engine) steerToAvoid(aim r3.Vec) (r3.Vec, bool) {
	p := &e.params
	clearance := p.ItemRadius + p.KartWidth/2
	dir := systems.FlatUnit(r3.Sub(aim, e.self.Position))
	if r3.Norm2(dir) == 0 {
		return aim, false
	}
	right := systems.Right(dir)

	for _, bad := range e.items.toAvoid {
		cp := systems.ClosestPointOnSegment(e.self.Position, aim, bad.Position)
		if systems.Dist2D(cp, bad.Position) >= clearance {
			continue
		}

		lateral := r3.Dot(systems.Flat(r3.Sub(bad.Position, e.self.Position)), right)
		side := -1.0
		if lateral < 0 {
			side = 1
		}
		shift := p.ItemRadius + p.KartWidth
		for _, s := range [...]float64{side, -side} {
			cand := r3.Add(bad.Position, r3.Scale(s*shift, right))
			if CorridorClear(e.graph, e.self.Position, cand, e.trackNode, p.KartLength, p.KartWidth) {
				return cand, true
			}
		}
		return aim, false
	}
	return aim, false
}

// handleItems decides whether to fire the held item.
func (e *Engine) handleItems(c *Controls) {
	c.Fire = false
	item := e.self.HeldItem
	if item == components.ItemNone || item == components.ItemZipper || e.self.ItemCount <= 0 {
		return
	}
	if e.timeSinceLastShot < e.shotInterval() {
		return
	}

	n := &e.nearest
	inRange := func(id VehicleID, dist float64) bool {
		r, ok := e.params.ItemRanges[item]
		return id != NoVehicle && (!ok || dist <= r)
	}

	var fire bool
	switch item {
	case components.ItemBubblegum:
		fire = e.crashes.Rival != NoVehicle ||
			(n.Behind != NoVehicle && n.DistanceBehind < e.params.GumBehindRange)
	case components.ItemCake, components.ItemPlunger, components.ItemRubberBall:
		fire = inRange(n.Ahead, n.DistanceAhead)
	case components.ItemBowling:
		fire = inRange(n.Ahead, n.DistanceAhead) && e.direction.Direction == systems.DirStraight
	case components.ItemSwatter:
		fire = inRange(n.Ahead, n.DistanceAhead) || inRange(n.Behind, n.DistanceBehind)
	case components.ItemParachute, components.ItemAnvil:
		fire = n.Ahead != NoVehicle
	case components.ItemSwitch:
		fire = len(e.items.toAvoid) >= e.params.SwitchMinAvoid &&
			len(e.items.toAvoid) > len(e.items.toCollect)
	}

	if fire {
		c.Fire = true
		e.timeSinceLastShot = 0
		e.logger.Debug("item fired", "kart", e.id, "item", item.String(), "tick", e.snap.Tick)
	}
}

// itemSkill is the profile item skill, one lower while rubber-banding.
func (e *Engine) itemSkill() int {
	s := e.params.Difficulty.ItemSkill
	if e.rubberBanding() {
		s--
	}
	return clampSkill(s)
}

func (e *Engine) nitroSkill() int {
	s := e.params.Difficulty.NitroSkill
	if e.rubberBanding() {
		s--
	}
	return clampSkill(s)
}

func clampSkill(s int) int {
	if s < 0 {
		return 0
	}
	if s > 3 {
		return 3
	}
	return s
}

// shotInterval is the minimum time between two shots at the current skill.
func (e *Engine) shotInterval() float64 {
	iv := e.params.ShotIntervals
	if len(iv) == 0 {
		return 0
	}
	s := e.itemSkill()
	if s >= len(iv) {
		s = len(iv) - 1
	}
	return iv[s]
}
