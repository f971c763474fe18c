package telemetry

import "github.com/pthm-cable/kartpilot/controller"

// TraceRow is one kart's decision for one tick, flattened for CSV.
type TraceRow struct {
	Tick      int64   `csv:"tick"`
	Kart      uint32  `csv:"kart"`
	Node      int32   `csv:"node"`
	AimX      float64 `csv:"aim_x"`
	AimZ      float64 `csv:"aim_z"`
	AimNode   int32   `csv:"aim_node"`
	OffTrack  bool    `csv:"off_track"`
	Rival     int64   `csv:"rival"` // -1 if none
	Direction string  `csv:"direction"`
	Radius    float64 `csv:"radius"`
	Ahead     int64   `csv:"ahead"`
	DistAhead float64 `csv:"dist_ahead"`
	Skid      string  `csv:"skid"`
	WantSkid  bool    `csv:"want_skid"`
	Recovery  bool    `csv:"recovery"`
	GraphMiss bool    `csv:"graph_miss"`
	BombChase bool    `csv:"bomb_chase"`
	Item      int     `csv:"item_target"`
	Steer     float64 `csv:"steer"`
	Accel     float64 `csv:"accel"`
	Brake     float64 `csv:"brake"`
	SkidCtl   string  `csv:"skid_control"`
	Nitro     bool    `csv:"nitro"`
	Fire      bool    `csv:"fire"`
	Rescue    bool    `csv:"rescue"`
}

func vehicleColumn(id controller.VehicleID) int64 {
	if id == controller.NoVehicle {
		return -1
	}
	return int64(id)
}

// NewTraceRow flattens a decision of the given kart.
func NewTraceRow(kart controller.VehicleID, d controller.Decision) TraceRow {
	return TraceRow{
		Tick:      d.Tick,
		Kart:      uint32(kart),
		Node:      int32(d.Node),
		AimX:      d.Aim.Point.X,
		AimZ:      d.Aim.Point.Z,
		AimNode:   int32(d.Aim.Node),
		OffTrack:  d.Crash.OnTrack,
		Rival:     vehicleColumn(d.Crash.Rival),
		Direction: d.Direction.Direction.String(),
		Radius:    d.Direction.Radius,
		Ahead:     vehicleColumn(d.Nearest.Ahead),
		DistAhead: d.Nearest.DistanceAhead,
		Skid:      d.Skid.String(),
		WantSkid:  d.WantSkid,
		Recovery:  d.Recovery,
		GraphMiss: d.GraphMiss,
		BombChase: d.BombChase,
		Item:      d.ItemTarget,
		Steer:     d.Controls.Steer,
		Accel:     d.Controls.Accel,
		Brake:     d.Controls.Brake,
		SkidCtl:   d.Controls.Skid.String(),
		Nitro:     d.Controls.Nitro,
		Fire:      d.Controls.Fire,
		Rescue:    d.Controls.Rescue,
	}
}
