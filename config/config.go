// Package config provides configuration loading and access for the race simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all race and AI configuration parameters.
type Config struct {
	Sim          SimConfig          `yaml:"sim"`
	Race         RaceConfig         `yaml:"race"`
	Track        TrackConfig        `yaml:"track"`
	Kart         KartConfig         `yaml:"kart"`
	AI           AIConfig           `yaml:"ai"`
	Difficulties []DifficultyConfig `yaml:"difficulties"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimConfig holds tick timing.
type SimConfig struct {
	DT float64 `yaml:"dt"` // seconds per tick
}

// RaceConfig holds race setup parameters.
type RaceConfig struct {
	Karts        int     `yaml:"karts"`
	Laps         int     `yaml:"laps"`
	Mode         string  `yaml:"mode"`          // normal, time_trial, follow_leader
	Difficulty   string  `yaml:"difficulty"`    // name of a difficulty profile
	StartDelay   float64 `yaml:"start_delay"`   // seconds of start phase (no stuck detection)
	GridSpacing  float64 `yaml:"grid_spacing"`  // distance between grid rows
	ItemSlowdown float64 `yaml:"item_slowdown"` // speed multiplier when hit by an item
	BombTime     float64 `yaml:"bomb_time"`     // seconds before an attached bomb explodes
	BombChance   float64 `yaml:"bomb_chance"`   // chance a bonus box attaches a bomb instead of an item
	HitTime      float64 `yaml:"hit_time"`      // seconds a hit kart stays slowed down
	Humans       int     `yaml:"humans"`        // karts flagged as human, driven by a stand-in engine
	HumanDriver  string  `yaml:"human_driver"`  // difficulty profile of the stand-in engine

	// Follow-the-leader: the last kart is eliminated every interval.
	EliminationInterval float64 `yaml:"elimination_interval"`
}

// TrackConfig holds procedural track generation parameters.
type TrackConfig struct {
	Nodes          int     `yaml:"nodes"`
	RadiusX        float64 `yaml:"radius_x"`
	RadiusZ        float64 `yaml:"radius_z"`
	Width          float64 `yaml:"width"`
	NoiseAmplitude float64 `yaml:"noise_amplitude"` // fraction of radius
	NoiseScale     float64 `yaml:"noise_scale"`
	StraightAngle  float64 `yaml:"straight_angle"` // radians; smaller turns classify as straight
	PickupRows     int     `yaml:"pickup_rows"`
	PickupRespawn  float64 `yaml:"pickup_respawn"` // seconds until a collected pickup returns
	GridCellSize   float64 `yaml:"grid_cell_size"`
}

// KartConfig holds physical kart characteristics shared by all karts.
type KartConfig struct {
	Length          float64 `yaml:"length"`
	Width           float64 `yaml:"width"`
	WheelBase       float64 `yaml:"wheel_base"`
	MaxSteerAngle   float64 `yaml:"max_steer_angle"`
	MaxSpeed        float64 `yaml:"max_speed"`
	Acceleration    float64 `yaml:"acceleration"`
	BrakeForce      float64 `yaml:"brake_force"`
	Drag            float64 `yaml:"drag"`
	MaxLateralAccel float64 `yaml:"max_lateral_accel"` // determines turn speed for a radius
	SkidTurnFactor  float64 `yaml:"skid_turn_factor"`
	MaxNitro        float64 `yaml:"max_nitro"`
	NitroBoost      float64 `yaml:"nitro_boost"`      // max speed multiplier while using nitro
	NitroBurn       float64 `yaml:"nitro_burn"`       // fuel per second
	ZipperBoost     float64 `yaml:"zipper_boost"`     // max speed multiplier while zipping
	ZipperDuration  float64 `yaml:"zipper_duration"`  // seconds
	RescueDuration  float64 `yaml:"rescue_duration"`  // seconds the kart is frozen while rescued
}

// AIConfig holds the tunables of the decision engine.
type AIConfig struct {
	PointSelection string `yaml:"point_selection"` // default or corridor

	// Steering
	TimeFullSteer           float64 `yaml:"time_full_steer"`
	OffTrackMargin          float64 `yaml:"off_track_margin"`
	UndefinedDirectionAngle float64 `yaml:"undefined_direction_angle"`

	// Crash prediction
	ExtraCrashSteps int `yaml:"extra_crash_steps"`
	MaxCrashSteps   int `yaml:"max_crash_steps"`

	// Path planning
	MaxPlanIterations int     `yaml:"max_plan_iterations"`
	AvoidOffset       float64 `yaml:"avoid_offset"` // lateral aim shift in kart widths

	// Skidding
	MinSkidSpeedFraction float64 `yaml:"min_skid_speed_fraction"`
	MinSkidDuration      float64 `yaml:"min_skid_duration"`
	SkidDurationFactor   float64 `yaml:"skid_duration_factor"`

	// Items
	MaxItemAngle    float64            `yaml:"max_item_angle"`
	ItemRadius      float64            `yaml:"item_radius"`
	ShotIntervals   []float64          `yaml:"shot_intervals"` // min seconds between shots, indexed by item skill
	ItemRanges      map[string]float64 `yaml:"item_ranges"`
	SwitchMinAvoid  int                `yaml:"switch_min_avoid"`
	GumBehindRange  float64            `yaml:"gum_behind_range"`

	// Rescue
	StuckThreshold  float64 `yaml:"stuck_threshold"`
	ProgressEpsilon float64 `yaml:"progress_epsilon"`

	// Speed and boost
	MinBrakeSpeed       float64 `yaml:"min_brake_speed"`
	CurveBrakeFactor    float64 `yaml:"curve_brake_factor"`
	NitroMaxSpeedFactor float64 `yaml:"nitro_max_speed_factor"`
	NitroChaseDistance  float64 `yaml:"nitro_chase_distance"`
	NitroDefendDistance float64 `yaml:"nitro_defend_distance"`
	NitroBurstDuration  float64 `yaml:"nitro_burst_duration"`
	NitroBurstGap       float64 `yaml:"nitro_burst_gap"`
	NitroCooldown       float64 `yaml:"nitro_cooldown"`
	ZipperStraightTime  float64 `yaml:"zipper_straight_time"`
	TimeTrialZipperWait float64 `yaml:"time_trial_zipper_wait"`
	BombNitroDistance   float64 `yaml:"bomb_nitro_distance"`
}

// DifficultyConfig defines an AI skill profile.
type DifficultyConfig struct {
	Name string `yaml:"name"`

	// Skid probability as a function of distance to the nearest human kart
	// (negative = behind the human). Points must be sorted by distance.
	SkidDistances     []float64 `yaml:"skid_distances"`
	SkidProbabilities []float64 `yaml:"skid_probabilities"`

	CollectProbability float64 `yaml:"collect_probability"`
	ItemSkill          int     `yaml:"item_skill"`  // 0..3
	NitroSkill         int     `yaml:"nitro_skill"` // 0..3
	Acceleration       float64 `yaml:"acceleration"`

	// Rubber banding: reduce acceleration when this far ahead of every human.
	RubberBandDistance float64 `yaml:"rubber_band_distance"`
	RubberBandAccel    float64 `yaml:"rubber_band_accel"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"`
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
	BookmarkHistory     int     `yaml:"bookmark_history"` // windows averaged for bookmark detection
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DifficultyIndex map[string]int // name -> index into Difficulties
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// validate rejects configurations the simulation cannot run with.
func (c *Config) validate() error {
	if c.Sim.DT <= 0 {
		return fmt.Errorf("sim.dt must be positive, got %v", c.Sim.DT)
	}
	if c.Track.Nodes < 8 {
		return fmt.Errorf("track.nodes must be at least 8, got %d", c.Track.Nodes)
	}
	if c.Race.Karts < 1 {
		return fmt.Errorf("race.karts must be at least 1, got %d", c.Race.Karts)
	}
	if c.Race.Humans < 0 || c.Race.Humans > c.Race.Karts {
		return fmt.Errorf("race.humans must be between 0 and race.karts, got %d", c.Race.Humans)
	}
	if c.Kart.Length <= 0 || c.Kart.Width <= 0 {
		return fmt.Errorf("kart length and width must be positive")
	}
	for _, d := range c.Difficulties {
		if len(d.SkidDistances) != len(d.SkidProbabilities) {
			return fmt.Errorf("difficulty %q: skid_distances and skid_probabilities differ in length", d.Name)
		}
		if !sort.Float64sAreSorted(d.SkidDistances) {
			return fmt.Errorf("difficulty %q: skid_distances must be sorted", d.Name)
		}
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	if len(c.Difficulties) == 0 {
		c.Difficulties = []DifficultyConfig{
			{
				Name:               "medium",
				SkidDistances:      []float64{-50, 0, 50},
				SkidProbabilities:  []float64{0.6, 0.4, 0.2},
				CollectProbability: 0.5,
				ItemSkill:          2,
				NitroSkill:         1,
				Acceleration:       1.0,
			},
		}
	}

	for i := range c.Difficulties {
		d := &c.Difficulties[i]
		if d.Acceleration == 0 {
			d.Acceleration = 1.0
		}
		if d.RubberBandAccel == 0 {
			d.RubberBandAccel = d.Acceleration
		}
	}

	c.Derived.DifficultyIndex = make(map[string]int, len(c.Difficulties))
	for i, d := range c.Difficulties {
		c.Derived.DifficultyIndex[d.Name] = i
	}
}

// Difficulty returns the named difficulty profile, falling back to the first one.
func (c *Config) Difficulty(name string) DifficultyConfig {
	if i, ok := c.Derived.DifficultyIndex[name]; ok {
		return c.Difficulties[i]
	}
	return c.Difficulties[0]
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
