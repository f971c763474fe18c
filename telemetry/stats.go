package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated race statistics for a time window.
type WindowStats struct {
	WindowStartTick int64   `csv:"-"`
	WindowEndTick   int64   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Field at window end
	Karts    int `csv:"karts"`
	Finished int `csv:"finished"`

	// Decisions during window
	Decisions     int     `csv:"decisions"`
	RivalCrashes  int     `csv:"rival_crashes"`
	OffTrack      int     `csv:"off_track"`
	Recoveries    int     `csv:"recoveries"`
	GraphMisses   int     `csv:"graph_misses"`
	SkidTicks     int     `csv:"skid_ticks"`
	SkidDeclined  int     `csv:"skid_declined"`
	ItemsFired    int     `csv:"items_fired"`
	BombChases    int     `csv:"bomb_chases"`
	Rescues       int     `csv:"rescues"`
	Pickups       int     `csv:"pickups"`
	NitroRate     float64 `csv:"nitro_rate"` // fraction of decisions with nitro
	BrakeRate     float64 `csv:"brake_rate"`

	// Steering magnitude over all decisions in the window
	SteerMean float64 `csv:"steer_mean"`
	SteerStd  float64 `csv:"steer_std"`
	SteerP90  float64 `csv:"steer_p90"`

	// Speed distribution (sampled at window end)
	SpeedMean float64 `csv:"speed_mean"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`

	// Progress gained during the window, per kart
	ProgressMean float64 `csv:"progress_mean"`
	ProgressStd  float64 `csv:"progress_std"`
	LeaderGap    float64 `csv:"leader_gap"` // distance between first and last kart
}

// Summary is the distribution of a sample.
type Summary struct {
	Mean, Std     float64
	P10, P50, P90 float64
}

// Summarize computes mean, standard deviation and empirical percentiles.
// Returns the zero Summary for an empty sample.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var s Summary
	if len(sorted) == 1 {
		s.Mean = sorted[0]
	} else {
		s.Mean, s.Std = stat.MeanStdDev(sorted, nil)
	}
	s.P10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	s.P50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	s.P90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("karts", s.Karts),
		slog.Int("finished", s.Finished),
		slog.Int("decisions", s.Decisions),
		slog.Int("rival_crashes", s.RivalCrashes),
		slog.Int("off_track", s.OffTrack),
		slog.Int("recoveries", s.Recoveries),
		slog.Int("graph_misses", s.GraphMisses),
		slog.Int("skid_ticks", s.SkidTicks),
		slog.Int("skid_declined", s.SkidDeclined),
		slog.Int("items_fired", s.ItemsFired),
		slog.Int("bomb_chases", s.BombChases),
		slog.Int("rescues", s.Rescues),
		slog.Int("pickups", s.Pickups),
		slog.Float64("nitro_rate", s.NitroRate),
		slog.Float64("brake_rate", s.BrakeRate),
		slog.Float64("steer_mean", s.SteerMean),
		slog.Float64("steer_std", s.SteerStd),
		slog.Float64("steer_p90", s.SteerP90),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_p10", s.SpeedP10),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("progress_mean", s.ProgressMean),
		slog.Float64("progress_std", s.ProgressStd),
		slog.Float64("leader_gap", s.LeaderGap),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"finished", s.Finished,
		"rival_crashes", s.RivalCrashes,
		"off_track", s.OffTrack,
		"skid_ticks", s.SkidTicks,
		"items_fired", s.ItemsFired,
		"rescues", s.Rescues,
		"speed_p50", s.SpeedP50,
		"progress_mean", s.ProgressMean,
		"leader_gap", s.LeaderGap,
	)
}
