package controller

import (
	"github.com/pthm-cable/kartpilot/components"
	"github.com/pthm-cable/kartpilot/config"
)

// PointSelection picks the aim point algorithm.
type PointSelection uint8

const (
	SelectDefault PointSelection = iota
	SelectCorridor
)

// ParsePointSelection maps a config name to a point selection. Unknown names
// map to SelectDefault.
func ParsePointSelection(s string) PointSelection {
	if s == "corridor" {
		return SelectCorridor
	}
	return SelectDefault
}

// Difficulty holds the skill profile of one AI driver.
type Difficulty struct {
	Name string

	SkidDistances     []float64 // distance to nearest human, negative = behind
	SkidProbabilities []float64

	CollectProbability float64
	ItemSkill          int
	NitroSkill         int
	Acceleration       float64

	RubberBandDistance float64
	RubberBandAccel    float64
}

// Params configures an Engine.
type Params struct {
	// Kart geometry
	KartLength      float64
	KartWidth       float64
	WheelBase       float64
	MaxSteerAngle   float64
	MaxLateralAccel float64

	// Steering
	TimeFullSteer           float64
	OffTrackMargin          float64
	UndefinedDirectionAngle float64

	// Crash prediction
	ExtraCrashSteps int
	MaxCrashSteps   int

	// Path planning
	PointSelection    PointSelection
	MaxPlanIterations int
	AvoidOffset       float64

	// Skidding
	MinSkidSpeedFraction float64
	MinSkidDuration      float64
	SkidDurationFactor   float64

	// Items
	MaxItemAngle   float64
	ItemRadius     float64
	ShotIntervals  []float64
	ItemRanges     map[components.ItemKind]float64
	SwitchMinAvoid int
	GumBehindRange float64

	// Rescue
	StuckThreshold  float64
	ProgressEpsilon float64

	// Speed and boost
	MinBrakeSpeed       float64
	CurveBrakeFactor    float64
	NitroMaxSpeedFactor float64
	NitroChaseDistance  float64
	NitroDefendDistance float64
	NitroBurstDuration  float64
	NitroBurstGap       float64
	NitroCooldown       float64
	ZipperStraightTime  float64
	TimeTrialZipperWait float64
	BombNitroDistance   float64

	Difficulty Difficulty
}

// DefaultParams returns params matching the embedded configuration defaults
// with the medium difficulty profile.
func DefaultParams() Params {
	return Params{
		KartLength:      1.8,
		KartWidth:       1.2,
		WheelBase:       1.2,
		MaxSteerAngle:   0.8,
		MaxLateralAccel: 28,

		TimeFullSteer:           0.1,
		OffTrackMargin:          0.5,
		UndefinedDirectionAngle: 0.6981317,

		ExtraCrashSteps: 5,
		MaxCrashSteps:   20,

		PointSelection:    SelectDefault,
		MaxPlanIterations: 100,
		AvoidOffset:       1.5,

		MinSkidSpeedFraction: 0.2,
		MinSkidDuration:      0.8,
		SkidDurationFactor:   1.5,

		MaxItemAngle:  0.3,
		ItemRadius:    1.0,
		ShotIntervals: []float64{6, 4, 2, 1},
		ItemRanges: map[components.ItemKind]float64{
			components.ItemCake:       50,
			components.ItemBowling:    25,
			components.ItemPlunger:    30,
			components.ItemSwatter:    6,
			components.ItemRubberBall: 200,
		},
		SwitchMinAvoid: 2,
		GumBehindRange: 8,

		StuckThreshold:  2,
		ProgressEpsilon: 0.01,

		MinBrakeSpeed:       5,
		CurveBrakeFactor:    1.5,
		NitroMaxSpeedFactor: 0.95,
		NitroChaseDistance:  30,
		NitroDefendDistance: 15,
		NitroBurstDuration:  0.15,
		NitroBurstGap:       0.3,
		NitroCooldown:       2,
		ZipperStraightTime:  1,
		TimeTrialZipperWait: 3,
		BombNitroDistance:   10,

		Difficulty: Difficulty{
			Name:               "medium",
			SkidDistances:      []float64{-50, 0, 50},
			SkidProbabilities:  []float64{0.6, 0.4, 0.2},
			CollectProbability: 0.5,
			ItemSkill:          2,
			NitroSkill:         1,
			Acceleration:       0.95,
			RubberBandDistance: 60,
			RubberBandAccel:    0.85,
		},
	}
}

// ParamsFromConfig builds engine params from the loaded configuration for the
// named difficulty profile.
func ParamsFromConfig(cfg *config.Config, difficulty string) Params {
	ai := cfg.AI
	d := cfg.Difficulty(difficulty)

	ranges := make(map[components.ItemKind]float64, len(ai.ItemRanges))
	for name, r := range ai.ItemRanges {
		if kind, ok := components.ParseItemKind(name); ok {
			ranges[kind] = r
		}
	}

	return Params{
		KartLength:      cfg.Kart.Length,
		KartWidth:       cfg.Kart.Width,
		WheelBase:       cfg.Kart.WheelBase,
		MaxSteerAngle:   cfg.Kart.MaxSteerAngle,
		MaxLateralAccel: cfg.Kart.MaxLateralAccel,

		TimeFullSteer:           ai.TimeFullSteer,
		OffTrackMargin:          ai.OffTrackMargin,
		UndefinedDirectionAngle: ai.UndefinedDirectionAngle,

		ExtraCrashSteps: ai.ExtraCrashSteps,
		MaxCrashSteps:   ai.MaxCrashSteps,

		PointSelection:    ParsePointSelection(ai.PointSelection),
		MaxPlanIterations: ai.MaxPlanIterations,
		AvoidOffset:       ai.AvoidOffset,

		MinSkidSpeedFraction: ai.MinSkidSpeedFraction,
		MinSkidDuration:      ai.MinSkidDuration,
		SkidDurationFactor:   ai.SkidDurationFactor,

		MaxItemAngle:   ai.MaxItemAngle,
		ItemRadius:     ai.ItemRadius,
		ShotIntervals:  append([]float64(nil), ai.ShotIntervals...),
		ItemRanges:     ranges,
		SwitchMinAvoid: ai.SwitchMinAvoid,
		GumBehindRange: ai.GumBehindRange,

		StuckThreshold:  ai.StuckThreshold,
		ProgressEpsilon: ai.ProgressEpsilon,

		MinBrakeSpeed:       ai.MinBrakeSpeed,
		CurveBrakeFactor:    ai.CurveBrakeFactor,
		NitroMaxSpeedFactor: ai.NitroMaxSpeedFactor,
		NitroChaseDistance:  ai.NitroChaseDistance,
		NitroDefendDistance: ai.NitroDefendDistance,
		NitroBurstDuration:  ai.NitroBurstDuration,
		NitroBurstGap:       ai.NitroBurstGap,
		NitroCooldown:       ai.NitroCooldown,
		ZipperStraightTime:  ai.ZipperStraightTime,
		TimeTrialZipperWait: ai.TimeTrialZipperWait,
		BombNitroDistance:   ai.BombNitroDistance,

		Difficulty: Difficulty{
			Name:               d.Name,
			SkidDistances:      append([]float64(nil), d.SkidDistances...),
			SkidProbabilities:  append([]float64(nil), d.SkidProbabilities...),
			CollectProbability: d.CollectProbability,
			ItemSkill:          d.ItemSkill,
			NitroSkill:         d.NitroSkill,
			Acceleration:       d.Acceleration,
			RubberBandDistance: d.RubberBandDistance,
			RubberBandAccel:    d.RubberBandAccel,
		},
	}
}
