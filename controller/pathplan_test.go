package controller

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/kartpilot/systems"
)

func TestCorridorClear(t *testing.T) {
	g := straightTrack(t)
	from := r3.Vec{Z: 102}
	hint := nodeNear(t, g, from)

	tests := []struct {
		name string
		to   r3.Vec
		want bool
	}{
		{"down the middle", r3.Vec{Z: 300}, true},
		{"slight drift", r3.Vec{X: 3, Z: 200}, true},
		{"grazing the edge", r3.Vec{X: 4.8, Z: 200}, false},
		{"into the infield", r3.Vec{X: 20, Z: 200}, false},
		{"same point", from, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CorridorClear(g, from, tc.to, hint, 1.8, 1.2); got != tc.want {
				t.Errorf("CorridorClear(%v) = %v, want %v", tc.to, got, tc.want)
			}
		})
	}
}

func TestSelectorsOnStraight(t *testing.T) {
	g := straightTrack(t)
	pos := r3.Vec{Z: 102}
	in := PlanInput{
		Graph:         g,
		Position:      pos,
		Node:          nodeNear(t, g, pos),
		KartLength:    1.8,
		KartWidth:     1.2,
		MaxIterations: 100,
	}

	t.Run("default", func(t *testing.T) {
		aim := DefaultSelector{}.SelectAimPoint(in)
		if aim.Point != (r3.Vec{Z: 400}) {
			t.Errorf("aim = %v, want the first corner node", aim.Point)
		}
	})

	t.Run("corridor", func(t *testing.T) {
		aim := CorridorSelector{}.SelectAimPoint(in)
		// The cone closes on the inside edge of the first corner.
		if aim.Point.Z < 390 || aim.Point.X <= 0 {
			t.Errorf("aim = %v, want the inside of the first corner", aim.Point)
		}
	})

	t.Run("iteration budget", func(t *testing.T) {
		short := in
		short.MaxIterations = 3
		aim := DefaultSelector{}.SelectAimPoint(short)
		if aim.Point.Z >= 400 || aim.Point.Z <= 102 {
			t.Errorf("aim = %v, want a few nodes ahead", aim.Point)
		}
	})
}

func TestSelectorsWithoutNode(t *testing.T) {
	g := straightTrack(t)
	pos := r3.Vec{X: 20, Z: 200}
	in := PlanInput{Graph: g, Position: pos, Node: systems.UnknownNode, KartLength: 1.8, KartWidth: 1.2, MaxIterations: 10}

	for _, s := range []PointSelector{DefaultSelector{}, CorridorSelector{}} {
		if aim := s.SelectAimPoint(in); aim.Point != pos || aim.Node != systems.UnknownNode {
			t.Errorf("%T: aim = %+v, want the kart position", s, aim)
		}
	}
}

func TestParsePointSelection(t *testing.T) {
	if ParsePointSelection("corridor") != SelectCorridor {
		t.Error("corridor not parsed")
	}
	if ParsePointSelection("default") != SelectDefault || ParsePointSelection("bogus") != SelectDefault {
		t.Error("unknown names should map to the default selector")
	}
	if _, ok := NewPointSelector(SelectCorridor).(CorridorSelector); !ok {
		t.Error("NewPointSelector(SelectCorridor) is not a CorridorSelector")
	}
}
