// Package controller implements the per-kart AI decision engine. An Engine
// reads a pre-tick snapshot of the race, plans a line along the route graph,
// and emits one set of controls per tick.
package controller

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/kartpilot/components"
	"github.com/pthm-cable/kartpilot/systems"
)

// VehicleID is the stable arena id of a kart.
type VehicleID uint32

// NoVehicle marks an absent vehicle reference.
const NoVehicle VehicleID = math.MaxUint32

// FarAway is the distance reported when no vehicle is found.
const FarAway = 9999999.9

// Controls is the actuation bundle emitted each tick.
type Controls = components.Controls

// RaceMode selects mode-specific behavior.
type RaceMode uint8

const (
	ModeNormal RaceMode = iota
	ModeTimeTrial
	ModeFollowLeader
)

// ParseRaceMode maps a config name to a race mode. Unknown names map to ModeNormal.
func ParseRaceMode(s string) RaceMode {
	switch s {
	case "time_trial":
		return ModeTimeTrial
	case "follow_leader":
		return ModeFollowLeader
	default:
		return ModeNormal
	}
}

func (m RaceMode) String() string {
	switch m {
	case ModeTimeTrial:
		return "time_trial"
	case ModeFollowLeader:
		return "follow_leader"
	default:
		return "normal"
	}
}

// Kinematics is the read-only view of one kart for a tick.
type Kinematics struct {
	ID                 VehicleID
	Position           r3.Vec
	Velocity           r3.Vec
	Heading            float64
	Speed              float64
	MaxSpeed           float64
	DistanceAlongTrack float64
	Node               systems.NodeID
	Rank               int

	HeldItem   components.ItemKind
	ItemCount  int
	Attachment components.AttachmentKind
	NitroFuel  float64
	MaxNitro   float64

	Human        bool
	Eliminated   bool
	Finished     bool
	Rescuing     bool
	OnGround     bool
	ZipperActive bool
	Skidding     bool
}

// Snapshot is the pre-tick state of the race. Vehicles are sorted by ID.
type Snapshot struct {
	Tick       int64
	Time       float64
	Mode       RaceMode
	Leader     VehicleID
	StartPhase bool
	Vehicles   []Kinematics
}

// Vehicle returns the kart with the given id.
func (s *Snapshot) Vehicle(id VehicleID) (*Kinematics, bool) {
	i := sort.Search(len(s.Vehicles), func(i int) bool { return s.Vehicles[i].ID >= id })
	if i < len(s.Vehicles) && s.Vehicles[i].ID == id {
		return &s.Vehicles[i], true
	}
	return nil, false
}

// World is the engine's view of the race.
type World interface {
	// Snapshot returns the kinematics of every kart as of the start of the tick.
	Snapshot() *Snapshot
	// Pickups appends the active pickups on route nodes from..to to dst.
	Pickups(from, to systems.NodeID, dst []systems.Pickup) []systems.Pickup
	// Pickup looks up a single pickup by id.
	Pickup(id int) (systems.Pickup, bool)
	// Actuate submits the controls for a kart.
	Actuate(id VehicleID, c Controls)
}

// RouteGraph is the read-only track topology the engine plans on.
// *systems.RouteGraph implements it.
type RouteGraph interface {
	FindNearestNode(pos r3.Vec) systems.NodeID
	FindRoadSector(pos r3.Vec, hint systems.NodeID) systems.NodeID
	Node(id systems.NodeID) *systems.RouteNode
	IsOnRoad(id systems.NodeID) bool
	Next(id systems.NodeID) systems.NodeID
	SpatialToTrack(pos r3.Vec, id systems.NodeID) (lateral, forward float64)
	TrackLength() float64
}

var _ RouteGraph = (*systems.RouteGraph)(nil)

// CrashState is the result of crash prediction for one tick.
type CrashState struct {
	OnTrack bool      // the predicted path leaves the road
	Rival   VehicleID // first kart the path runs into, or NoVehicle
}

// TrackDirection classifies the geometry just ahead of the kart.
type TrackDirection struct {
	Direction systems.Direction
	Radius    float64 // curve radius, 0 on straights
	Center    r3.Vec  // curve center
	LastNode  systems.NodeID
}

// SkidDecision is the committed choice for the current skid opportunity.
type SkidDecision uint8

const (
	SkidUndecided SkidDecision = iota
	SkidCommittedNo
	SkidCommittedYes
)

func (s SkidDecision) String() string {
	switch s {
	case SkidCommittedNo:
		return "no"
	case SkidCommittedYes:
		return "yes"
	default:
		return "undecided"
	}
}

// AimPoint is the point the kart steers toward and the node it belongs to.
type AimPoint struct {
	Point r3.Vec
	Node  systems.NodeID
}

// Decision exposes the internals of the last Update for tracing and tests.
type Decision struct {
	Tick        int64
	Node        systems.NodeID
	Aim         AimPoint
	Crash       CrashState
	Direction   TrackDirection
	Nearest     NearestInfo
	Skid        SkidDecision
	WantSkid    bool
	SteerTarget float64 // steering fraction before rate limiting
	Recovery    bool    // steering back onto the road
	GraphMiss   bool
	BombChase   bool
	ItemTarget  int // pickup id, -1 if none
	Controls    Controls
}
