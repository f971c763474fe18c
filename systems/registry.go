package systems

// PhaseInfo describes one phase of a race tick.
type PhaseInfo struct {
	ID          string // Internal identifier (used for perf tracking)
	Name        string // Display name
	Description string // What this phase does
	Category    string // Grouping (e.g., "ai", "physics")
}

// Phase identifiers, in execution order.
const (
	PhaseSnapshot  = "snapshot"
	PhaseDecide    = "decide"
	PhaseActuate   = "actuate"
	PhasePhysics   = "physics"
	PhaseItems     = "items"
	PhaseProgress  = "progress"
	PhaseTelemetry = "telemetry"
)

// PhaseRegistry holds metadata about all tick phases.
// This keeps phase naming in one place for the perf collector and its output.
type PhaseRegistry struct {
	phases []PhaseInfo
	byID   map[string]PhaseInfo
}

// NewPhaseRegistry creates a registry with all known phases.
func NewPhaseRegistry() *PhaseRegistry {
	reg := &PhaseRegistry{
		byID: make(map[string]PhaseInfo),
	}
	reg.registerDefaults()
	return reg
}

// registerDefaults adds all known phases to the registry.
// Update this when adding new phases.
func (r *PhaseRegistry) registerDefaults() {
	r.Register(PhaseInfo{ID: PhaseSnapshot, Name: "Snapshot", Description: "Builds the pre-tick vehicle table", Category: "core"})
	r.Register(PhaseInfo{ID: PhaseDecide, Name: "Decide", Description: "Runs every AI decision engine", Category: "ai"})
	r.Register(PhaseInfo{ID: PhaseActuate, Name: "Actuate", Description: "Applies buffered control intents", Category: "core"})
	r.Register(PhaseInfo{ID: PhasePhysics, Name: "Physics", Description: "Integrates kart motion", Category: "physics"})
	r.Register(PhaseInfo{ID: PhaseItems, Name: "Items", Description: "Resolves pickups and fired items", Category: "race"})
	r.Register(PhaseInfo{ID: PhaseProgress, Name: "Progress", Description: "Updates nodes, laps and ranks", Category: "race"})
	r.Register(PhaseInfo{ID: PhaseTelemetry, Name: "Telemetry", Description: "Records traces and stats", Category: "internal"})
}

// Register adds a phase to the registry.
func (r *PhaseRegistry) Register(info PhaseInfo) {
	r.phases = append(r.phases, info)
	r.byID[info.ID] = info
}

// Get returns phase info by ID.
func (r *PhaseRegistry) Get(id string) (PhaseInfo, bool) {
	info, ok := r.byID[id]
	return info, ok
}

// All returns all registered phases in registration order.
func (r *PhaseRegistry) All() []PhaseInfo {
	return r.phases
}

// IDs returns the phase identifiers in registration order.
func (r *PhaseRegistry) IDs() []string {
	ids := make([]string, len(r.phases))
	for i, p := range r.phases {
		ids[i] = p.ID
	}
	return ids
}
