package systems

import "gonum.org/v1/gonum/spatial/r3"

// PickupKind is the type of an item lying on the track.
type PickupKind uint8

const (
	PickupBonusBox PickupKind = iota
	PickupBanana
	PickupNitroBig
	PickupNitroSmall
	PickupBubblegum
)

func (k PickupKind) String() string {
	switch k {
	case PickupBonusBox:
		return "bonus_box"
	case PickupBanana:
		return "banana"
	case PickupNitroBig:
		return "nitro_big"
	case PickupNitroSmall:
		return "nitro_small"
	case PickupBubblegum:
		return "bubblegum"
	default:
		return "unknown"
	}
}

// Pickup is a collectible or hazardous item placed on the route.
type Pickup struct {
	ID       int
	Kind     PickupKind
	Position r3.Vec
	Node     NodeID
	Active   bool

	// Dropped pickups were placed by a kart and vanish once collected.
	Dropped   bool
	respawnIn float64
}

// PickupRegistry owns all pickups of a race, indexed by route node.
type PickupRegistry struct {
	items   []Pickup
	byNode  map[NodeID][]int
	respawn float64
}

// NewPickupRegistry creates an empty registry. Collected track pickups
// reappear after respawn seconds.
func NewPickupRegistry(respawn float64) *PickupRegistry {
	return &PickupRegistry{
		byNode:  make(map[NodeID][]int),
		respawn: respawn,
	}
}

// Add places a permanent pickup and returns its id.
func (r *PickupRegistry) Add(kind PickupKind, pos r3.Vec, node NodeID) int {
	return r.add(kind, pos, node, false)
}

// Drop places a pickup that is removed for good when collected.
func (r *PickupRegistry) Drop(kind PickupKind, pos r3.Vec, node NodeID) int {
	return r.add(kind, pos, node, true)
}

func (r *PickupRegistry) add(kind PickupKind, pos r3.Vec, node NodeID, dropped bool) int {
	id := len(r.items)
	r.items = append(r.items, Pickup{
		ID:       id,
		Kind:     kind,
		Position: pos,
		Node:     node,
		Active:   true,
		Dropped:  dropped,
	})
	r.byNode[node] = append(r.byNode[node], id)
	return id
}

// Len returns the number of pickups ever placed.
func (r *PickupRegistry) Len() int { return len(r.items) }

// Get returns the pickup with the given id.
func (r *PickupRegistry) Get(id int) (Pickup, bool) {
	if id < 0 || id >= len(r.items) {
		return Pickup{}, false
	}
	return r.items[id], true
}

// Collect deactivates an active pickup. It reports false if the pickup was not
// available.
func (r *PickupRegistry) Collect(id int) (Pickup, bool) {
	if id < 0 || id >= len(r.items) || !r.items[id].Active {
		return Pickup{}, false
	}
	p := &r.items[id]
	p.Active = false
	if !p.Dropped {
		p.respawnIn = r.respawn
	}
	return *p, true
}

// Update advances respawn timers.
func (r *PickupRegistry) Update(dt float64) {
	for i := range r.items {
		p := &r.items[i]
		if p.Active || p.Dropped {
			continue
		}
		p.respawnIn -= dt
		if p.respawnIn <= 0 {
			p.Active = true
		}
	}
}

// InSpan appends the active pickups on nodes from..to (inclusive) following
// the main driveline of g. The walk stops after one lap.
func (r *PickupRegistry) InSpan(g *RouteGraph, from, to NodeID, dst []Pickup) []Pickup {
	if g.Node(from) == nil {
		return dst
	}
	id := from
	for steps := 0; steps < g.NumNodes(); steps++ {
		for _, pid := range r.byNode[id] {
			if r.items[pid].Active {
				dst = append(dst, r.items[pid])
			}
		}
		if id == to {
			break
		}
		id = g.Next(id)
	}
	return dst
}

// Switch turns every active bonus box into a banana and every banana into a
// bonus box.
func (r *PickupRegistry) Switch() {
	for i := range r.items {
		p := &r.items[i]
		if !p.Active {
			continue
		}
		switch p.Kind {
		case PickupBonusBox:
			p.Kind = PickupBanana
		case PickupBanana:
			p.Kind = PickupBonusBox
		}
	}
}

// Active appends all active pickups to dst.
func (r *PickupRegistry) Active(dst []Pickup) []Pickup {
	for i := range r.items {
		if r.items[i].Active {
			dst = append(dst, r.items[i])
		}
	}
	return dst
}
