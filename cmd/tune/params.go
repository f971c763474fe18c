package main

import (
	"math"

	"github.com/pthm-cable/kartpilot/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Integer bool    // rounded when applied
}

// ParamVector holds the set of all tunable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of tunable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Steering
			{Name: "time_full_steer", Path: "ai.time_full_steer", Min: 0.03, Max: 0.5},
			{Name: "off_track_margin", Path: "ai.off_track_margin", Min: 0.0, Max: 2.0},
			// Crash prediction
			{Name: "extra_crash_steps", Path: "ai.extra_crash_steps", Min: 1, Max: 12, Integer: true},
			{Name: "max_crash_steps", Path: "ai.max_crash_steps", Min: 8, Max: 40, Integer: true},
			// Path planning
			{Name: "avoid_offset", Path: "ai.avoid_offset", Min: 0.5, Max: 3.0},
			// Skidding
			{Name: "min_skid_duration", Path: "ai.min_skid_duration", Min: 0.2, Max: 2.0},
			{Name: "skid_duration_factor", Path: "ai.skid_duration_factor", Min: 0.5, Max: 3.0},
			// Speed and boost
			{Name: "min_brake_speed", Path: "ai.min_brake_speed", Min: 1.0, Max: 12.0},
			{Name: "curve_brake_factor", Path: "ai.curve_brake_factor", Min: 1.0, Max: 3.0},
			{Name: "nitro_max_speed_factor", Path: "ai.nitro_max_speed_factor", Min: 0.7, Max: 1.0},
			{Name: "nitro_chase_distance", Path: "ai.nitro_chase_distance", Min: 5.0, Max: 80.0},
			// Difficulty profile
			{Name: "collect_probability", Path: "difficulties[].collect_probability", Min: 0.0, Max: 1.0},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := math.Min(math.Max(v[i], spec.Min), spec.Max)
		if spec.Integer {
			val = math.Round(val)
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct. Difficulty
// values go to the named profile.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, difficulty string, values []float64) {
	clamped := pv.Clamp(values)

	// Order must match Specs order
	i := 0
	next := func() float64 {
		v := clamped[i]
		i++
		return v
	}

	ai := &cfg.AI
	ai.TimeFullSteer = next()
	ai.OffTrackMargin = next()
	ai.ExtraCrashSteps = int(next())
	ai.MaxCrashSteps = int(next())
	ai.AvoidOffset = next()
	ai.MinSkidDuration = next()
	ai.SkidDurationFactor = next()
	ai.MinBrakeSpeed = next()
	ai.CurveBrakeFactor = next()
	ai.NitroMaxSpeedFactor = next()
	ai.NitroChaseDistance = next()

	collect := next()
	if d := difficultyIndex(cfg, difficulty); d >= 0 {
		cfg.Difficulties[d].CollectProbability = collect
	}
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config, difficulty string) []float64 {
	return []float64{
		cfg.AI.TimeFullSteer,
		cfg.AI.OffTrackMargin,
		float64(cfg.AI.ExtraCrashSteps),
		float64(cfg.AI.MaxCrashSteps),
		cfg.AI.AvoidOffset,
		cfg.AI.MinSkidDuration,
		cfg.AI.SkidDurationFactor,
		cfg.AI.MinBrakeSpeed,
		cfg.AI.CurveBrakeFactor,
		cfg.AI.NitroMaxSpeedFactor,
		cfg.AI.NitroChaseDistance,
		cfg.Difficulty(difficulty).CollectProbability,
	}
}

func difficultyIndex(cfg *config.Config, name string) int {
	if i, ok := cfg.Derived.DifficultyIndex[name]; ok {
		return i
	}
	if len(cfg.Difficulties) > 0 {
		return 0
	}
	return -1
}

// copyConfig returns a copy of cfg that tuning can modify without touching
// the original. Item ranges and derived tables are shared read-only.
func copyConfig(cfg *config.Config) *config.Config {
	c := *cfg
	c.AI.ShotIntervals = append([]float64(nil), cfg.AI.ShotIntervals...)
	c.Difficulties = append([]config.DifficultyConfig(nil), cfg.Difficulties...)
	return &c
}
