package game

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/kartpilot/components"
	"github.com/pthm-cable/kartpilot/config"
	"github.com/pthm-cable/kartpilot/systems"
)

func TestApplyPickup(t *testing.T) {
	tests := []struct {
		name  string
		kind  systems.PickupKind
		check func(t *testing.T, inv *components.Inventory, m *components.Motion)
	}{
		{"nitro big", systems.PickupNitroBig, func(t *testing.T, inv *components.Inventory, _ *components.Motion) {
			if want := nitroBigFill * inv.MaxNitro; inv.Nitro != want {
				t.Errorf("nitro = %v, want %v", inv.Nitro, want)
			}
		}},
		{"nitro small", systems.PickupNitroSmall, func(t *testing.T, inv *components.Inventory, _ *components.Motion) {
			if want := nitroSmallFill * inv.MaxNitro; inv.Nitro != want {
				t.Errorf("nitro = %v, want %v", inv.Nitro, want)
			}
		}},
		{"banana", systems.PickupBanana, func(t *testing.T, _ *components.Inventory, m *components.Motion) {
			if m.SlowTime <= 0 {
				t.Error("banana should slow the kart")
			}
		}},
		{"bonus box", systems.PickupBonusBox, func(t *testing.T, inv *components.Inventory, _ *components.Motion) {
			if inv.Item == components.ItemNone || inv.Count != 1 {
				t.Errorf("item = %v count = %d, want one item", inv.Item, inv.Count)
			}
			if inv.Attachment != components.AttachNone {
				t.Error("no bomb expected with zero bomb chance")
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRace(t, nil)
			r.applyPickup(0, tt.kind)
			e := r.entities[0]
			tt.check(t, r.invMap.Get(e), r.motionMap.Get(e))
		})
	}
}

func TestNitroCapped(t *testing.T) {
	r := newTestRace(t, nil)
	inv := r.invMap.Get(r.entities[0])
	inv.Nitro = inv.MaxNitro - 1

	r.applyPickup(0, systems.PickupNitroBig)
	if inv.Nitro != inv.MaxNitro {
		t.Errorf("nitro = %v, want capped at %v", inv.Nitro, inv.MaxNitro)
	}
}

func TestBonusBoxKeepsHeldItem(t *testing.T) {
	r := newTestRace(t, nil)
	inv := r.invMap.Get(r.entities[0])
	inv.Item = components.ItemZipper
	inv.Count = 1

	r.applyPickup(0, systems.PickupBonusBox)
	if inv.Item != components.ItemZipper {
		t.Errorf("item = %v, want zipper kept", inv.Item)
	}
}

func TestBonusBoxBomb(t *testing.T) {
	r := newTestRace(t, func(c *config.Config) { c.Race.BombChance = 1 })
	inv := r.invMap.Get(r.entities[0])

	r.applyPickup(0, systems.PickupBonusBox)
	if inv.Attachment != components.AttachBomb {
		t.Fatalf("attachment = %v, want bomb", inv.Attachment)
	}
	if inv.AttachTime != r.cfg.Race.BombTime {
		t.Errorf("bomb time = %v, want %v", inv.AttachTime, r.cfg.Race.BombTime)
	}
}

func TestCollectPickups(t *testing.T) {
	r := newTestRace(t, nil)
	pos := r.poseMap.Get(r.entities[0]).Position
	node := nodeID(r.progressMap.Get(r.entities[0]).Node)
	near := r.pickups.Add(systems.PickupNitroBig, pos, node)
	far := r.pickups.Add(systems.PickupNitroBig, r3.Add(pos, r3.Vec{X: 5}), node)

	r.collectPickups(0)

	if pk, _ := r.pickups.Get(near); pk.Active {
		t.Error("pickup under the kart should be collected")
	}
	if pk, _ := r.pickups.Get(far); !pk.Active {
		t.Error("pickup out of reach should stay")
	}
	if inv := r.invMap.Get(r.entities[0]); inv.Nitro == 0 {
		t.Error("nitro not applied")
	}
}

func TestUseItem(t *testing.T) {
	t.Run("zipper", func(t *testing.T) {
		r := newTestRace(t, nil)
		e := r.entities[0]
		inv := r.invMap.Get(e)
		inv.Item, inv.Count = components.ItemZipper, 1

		r.useItem(0)

		if r.motionMap.Get(e).ZipperTime != r.cfg.Kart.ZipperDuration {
			t.Error("zipper not applied")
		}
		if inv.Item != components.ItemNone || inv.Count != 0 {
			t.Errorf("item = %v count = %d, want empty", inv.Item, inv.Count)
		}
	})

	t.Run("cake hits kart ahead", func(t *testing.T) {
		r := newTestRace(t, nil)
		inv := r.invMap.Get(r.entities[2])
		inv.Item, inv.Count = components.ItemCake, 1

		// Kart 2 is one row behind karts 0 and 1; kart 3 shares its row.
		r.progressMap.Get(r.entities[1]).Distance -= 1
		r.progressMap.Get(r.entities[3]).Distance -= 1
		r.useItem(2)

		if r.motionMap.Get(r.entities[1]).SlowTime <= 0 {
			t.Error("closest kart ahead should be hit")
		}
		if r.motionMap.Get(r.entities[0]).SlowTime != 0 {
			t.Error("only the closest kart ahead is hit")
		}
	})

	t.Run("out of range", func(t *testing.T) {
		r := newTestRace(t, func(c *config.Config) { c.AI.ItemRanges["swatter"] = 0.5 })
		inv := r.invMap.Get(r.entities[2])
		inv.Item, inv.Count = components.ItemSwatter, 1
		r.progressMap.Get(r.entities[3]).Distance -= 1

		r.useItem(2)

		for i := range r.entities {
			if r.motionMap.Get(r.entities[i]).SlowTime != 0 {
				t.Errorf("kart %d hit from out of range", i)
			}
		}
		if inv.Item != components.ItemNone {
			t.Error("item is used up even when it misses")
		}
	})

	t.Run("anvil hits the leader", func(t *testing.T) {
		r := newTestRace(t, nil)
		leader := -1
		for i, e := range r.entities {
			if r.progressMap.Get(e).Rank == 1 {
				leader = i
			}
		}
		shooter := 3
		if leader == 3 {
			shooter = 2
		}
		inv := r.invMap.Get(r.entities[shooter])
		inv.Item, inv.Count = components.ItemAnvil, 1

		r.useItem(shooter)

		if r.motionMap.Get(r.entities[leader]).SlowTime <= 0 {
			t.Error("leader should be hit")
		}
	})

	t.Run("gum dropped behind", func(t *testing.T) {
		r := newTestRace(t, nil)
		inv := r.invMap.Get(r.entities[0])
		inv.Item, inv.Count = components.ItemBubblegum, 1
		before := r.pickups.Len()

		r.useItem(0)

		if r.pickups.Len() != before+1 {
			t.Fatalf("pickups = %d, want %d", r.pickups.Len(), before+1)
		}
		pk, ok := r.pickups.Get(before)
		if !ok || pk.Kind != systems.PickupBubblegum {
			t.Errorf("dropped pickup = %+v", pk)
		}
	})

	t.Run("switch", func(t *testing.T) {
		r := newTestRace(t, nil)
		pos := r.graph.Node(20).Center
		box := r.pickups.Add(systems.PickupBonusBox, pos, 20)
		inv := r.invMap.Get(r.entities[0])
		inv.Item, inv.Count = components.ItemSwitch, 1

		r.useItem(0)

		if pk, _ := r.pickups.Get(box); pk.Kind != systems.PickupBanana {
			t.Errorf("box became %v, want banana", pk.Kind)
		}
	})
}

func TestBombHandover(t *testing.T) {
	r := newTestRace(t, nil)
	carrier := r.invMap.Get(r.entities[0])
	carrier.Attachment = components.AttachBomb
	carrier.AttachTime = 3

	// Put kart 1 right next to kart 0.
	pos := r.poseMap.Get(r.entities[0]).Position
	r.place(1, r3.Add(pos, r3.Vec{X: 0.5}))

	r.updateBombs(0.1)

	other := r.invMap.Get(r.entities[1])
	if other.Attachment != components.AttachBomb {
		t.Fatal("bomb should pass on contact")
	}
	if carrier.Attachment != components.AttachNone {
		t.Error("carrier should lose the bomb")
	}
	if other.AttachTime > 2.95 || other.AttachTime < 2.85 {
		t.Errorf("bomb timer = %v, want the carrier's remaining time", other.AttachTime)
	}

	// Cooldown blocks an immediate pass back
	r.updateBombs(0.1)
	if carrier.Attachment != components.AttachNone {
		t.Error("bomb bounced back during cooldown")
	}
}

func TestBombExplodes(t *testing.T) {
	r := newTestRace(t, nil)
	e := r.entities[0]
	inv := r.invMap.Get(e)
	inv.Attachment = components.AttachBomb
	inv.AttachTime = 0.05
	m := r.motionMap.Get(e)
	m.Speed = 20

	r.updateBombs(0.1)

	if inv.Attachment != components.AttachNone {
		t.Error("bomb should be gone after exploding")
	}
	if m.Speed != 0 || m.SlowTime <= 0 {
		t.Errorf("speed = %v slow = %v after explosion", m.Speed, m.SlowTime)
	}
}

func TestRescueRequest(t *testing.T) {
	r := newTestRace(t, nil)
	e := r.entities[0]
	r.controlsMap.Get(e).Rescue = true

	r.updateItems(r.cfg.Sim.DT)

	p := r.progressMap.Get(e)
	if p.RescueTime != r.cfg.Kart.RescueDuration {
		t.Fatalf("rescue time = %v", p.RescueTime)
	}

	// Frozen karts count down and do nothing else
	r.controlsMap.Get(e).Rescue = false
	r.updateItems(0.5)
	if want := r.cfg.Kart.RescueDuration - 0.5; p.RescueTime < want-1e-9 || p.RescueTime > want+1e-9 {
		t.Errorf("rescue time = %v, want %v", p.RescueTime, want)
	}
}
