package systems

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestPickupCollectAndRespawn(t *testing.T) {
	reg := NewPickupRegistry(2.0)
	id := reg.Add(PickupBonusBox, r3.Vec{X: 1}, 3)

	if _, ok := reg.Collect(id); !ok {
		t.Fatal("first collect should succeed")
	}
	if _, ok := reg.Collect(id); ok {
		t.Error("second collect of inactive pickup should fail")
	}

	reg.Update(1.0)
	if p, _ := reg.Get(id); p.Active {
		t.Error("pickup respawned too early")
	}
	reg.Update(1.5)
	if p, _ := reg.Get(id); !p.Active {
		t.Error("pickup should have respawned")
	}
}

func TestDroppedPickupDoesNotRespawn(t *testing.T) {
	reg := NewPickupRegistry(0.5)
	id := reg.Drop(PickupBubblegum, r3.Vec{}, 0)

	if _, ok := reg.Collect(id); !ok {
		t.Fatal("collect should succeed")
	}
	reg.Update(10)
	if p, _ := reg.Get(id); p.Active {
		t.Error("dropped pickup should stay gone")
	}
}

func TestPickupsInSpan(t *testing.T) {
	g := newRectGraph(t)
	reg := NewPickupRegistry(1)

	last := NodeID(g.NumNodes() - 1)
	a := reg.Add(PickupBanana, g.Node(last).Center, last)
	b := reg.Add(PickupNitroBig, g.Node(1).Center, 1)
	c := reg.Add(PickupBonusBox, g.Node(5).Center, 5)

	// Span wraps over the start line
	got := reg.InSpan(g, last, 2, nil)
	if len(got) != 2 || got[0].ID != a || got[1].ID != b {
		t.Errorf("InSpan = %+v, want pickups %d and %d", got, a, b)
	}

	reg.Collect(b)
	got = reg.InSpan(g, 0, 5, got[:0])
	if len(got) != 1 || got[0].ID != c {
		t.Errorf("InSpan after collect = %+v, want only %d", got, c)
	}

	if got := reg.InSpan(g, UnknownNode, 5, nil); len(got) != 0 {
		t.Errorf("InSpan from unknown node = %+v, want empty", got)
	}
}

func TestGetOutOfRange(t *testing.T) {
	reg := NewPickupRegistry(1)
	if _, ok := reg.Get(0); ok {
		t.Error("Get on empty registry should fail")
	}
	if _, ok := reg.Collect(-1); ok {
		t.Error("Collect(-1) should fail")
	}
}

func TestSwitch(t *testing.T) {
	reg := NewPickupRegistry(1)
	box := reg.Add(PickupBonusBox, r3.Vec{}, 0)
	banana := reg.Drop(PickupBanana, r3.Vec{}, 0)
	nitro := reg.Add(PickupNitroSmall, r3.Vec{}, 0)
	taken := reg.Add(PickupBonusBox, r3.Vec{}, 0)
	reg.Collect(taken)

	reg.Switch()

	want := map[int]PickupKind{box: PickupBanana, banana: PickupBonusBox, nitro: PickupNitroSmall, taken: PickupBonusBox}
	for id, kind := range want {
		if p, _ := reg.Get(id); p.Kind != kind {
			t.Errorf("pickup %d is %v, want %v", id, p.Kind, kind)
		}
	}
}
