// Package components defines ECS components for the race simulation.
package components

import "gonum.org/v1/gonum/spatial/r3"

// ItemKind is the item a kart holds.
type ItemKind uint8

const (
	ItemNone ItemKind = iota
	ItemBubblegum
	ItemCake
	ItemBowling
	ItemZipper
	ItemPlunger
	ItemSwitch
	ItemSwatter
	ItemRubberBall
	ItemParachute
	ItemAnvil
)

var itemNames = [...]string{
	ItemNone:       "none",
	ItemBubblegum:  "bubblegum",
	ItemCake:       "cake",
	ItemBowling:    "bowling",
	ItemZipper:     "zipper",
	ItemPlunger:    "plunger",
	ItemSwitch:     "switch",
	ItemSwatter:    "swatter",
	ItemRubberBall: "rubber_ball",
	ItemParachute:  "parachute",
	ItemAnvil:      "anvil",
}

func (k ItemKind) String() string {
	if int(k) < len(itemNames) {
		return itemNames[k]
	}
	return "unknown"
}

// ParseItemKind maps a config name to an item kind.
func ParseItemKind(name string) (ItemKind, bool) {
	for i, n := range itemNames {
		if n == name {
			return ItemKind(i), true
		}
	}
	return ItemNone, false
}

// AttachmentKind is something stuck to a kart.
type AttachmentKind uint8

const (
	AttachNone AttachmentKind = iota
	AttachBomb
	AttachParachute
	AttachAnvil
	AttachBubbleShield
)

// SkidControl is the requested skid state.
type SkidControl int8

const (
	SkidNone SkidControl = iota
	SkidLeft
	SkidRight
)

func (s SkidControl) String() string {
	switch s {
	case SkidLeft:
		return "left"
	case SkidRight:
		return "right"
	default:
		return "none"
	}
}

// Kart identifies a vehicle.
type Kart struct {
	ID         uint32
	Human      bool
	Difficulty string
}

// Pose is the kart's placement in the world.
type Pose struct {
	Position r3.Vec
	Heading  float64 // radians, 0 faces +Z
}

// Motion holds the kart's kinematic state.
type Motion struct {
	Velocity r3.Vec
	Speed    float64
	MaxSpeed float64
	OnGround bool
	Skidding bool

	ZipperTime float64 // seconds of zipper boost left
	SlowTime   float64 // seconds of item slowdown left
}

// Progress tracks the kart along the route.
type Progress struct {
	Node         int32 // last known route node
	LastRoadNode int32 // last on-road node, used for rescue placement
	Lap          int
	Distance     float64 // laps * track length + distance within the lap
	Rank         int
	Finished     bool
	Eliminated   bool
	RescueTime   float64 // seconds left while being rescued
}

// Inventory holds items, attachments and nitro.
type Inventory struct {
	Item       ItemKind
	Count      int
	Attachment AttachmentKind
	AttachTime float64
	Nitro      float64
	MaxNitro   float64
}

// Controls is the actuation bundle a driver applies for one tick.
type Controls struct {
	Steer  float64 // [-1, 1], positive steers right
	Accel  float64 // [0, 1]
	Brake  float64 // [0, 1]
	Skid   SkidControl
	Nitro  bool
	Fire   bool
	Rescue bool
}
