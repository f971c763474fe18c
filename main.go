package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/pthm-cable/kartpilot/config"
	"github.com/pthm-cable/kartpilot/game"
	"github.com/pthm-cable/kartpilot/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int64("max-ticks", 0, "Stop after N ticks (0 = until every kart is done)")
	karts := flag.Int("karts", 0, "Number of karts (0 = use config)")
	humans := flag.Int("humans", -1, "Karts flagged as human (-1 = use config)")
	laps := flag.Int("laps", 0, "Number of laps (0 = use config)")
	mode := flag.String("mode", "", "Race mode: normal, time_trial, follow_leader (empty = use config)")
	difficulty := flag.String("difficulty", "", "AI difficulty profile (empty = use config)")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	trace := flag.Bool("trace", false, "Write every decision to trace.csv (needs -output-dir)")
	debug := flag.Bool("debug", false, "Log engine debug events")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// CLI overrides
	if *karts > 0 {
		cfg.Race.Karts = *karts
		cfg.Race.Humans = min(cfg.Race.Humans, *karts)
	}
	if *humans >= 0 {
		cfg.Race.Humans = min(*humans, cfg.Race.Karts)
	}
	if *laps > 0 {
		cfg.Race.Laps = *laps
	}
	if *mode != "" {
		cfg.Race.Mode = *mode
	}
	if *difficulty != "" {
		cfg.Race.Difficulty = *difficulty
	}
	if *statsWindow > 0 {
		cfg.Telemetry.StatsWindow = *statsWindow
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	output, err := telemetry.NewOutputManager(*outputDir, *trace)
	if err != nil {
		slog.Error("failed to create output manager", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := output.Close(); err != nil {
			slog.Error("failed to close output", "error", err)
		}
	}()
	if err := output.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config", "error", err)
	}

	race, err := game.NewRace(game.Options{
		Seed:     rngSeed,
		Config:   cfg,
		Output:   output,
		LogStats: *logStats,
		Logger:   logger.With("run_id", output.RunID()),
	})
	if err != nil {
		slog.Error("failed to create race", "error", err)
		os.Exit(1)
	}

	manifest := telemetry.Manifest{
		Seed:        rngSeed,
		Started:     time.Now().UTC(),
		Karts:       cfg.Race.Karts,
		Laps:        cfg.Race.Laps,
		Mode:        cfg.Race.Mode,
		Difficulty:  cfg.Race.Difficulty,
		TrackLength: race.Graph().TrackLength(),
	}
	if err := output.WriteManifest(manifest); err != nil {
		slog.Error("failed to write manifest", "error", err)
	}

	slog.Info("starting race",
		"seed", rngSeed,
		"karts", cfg.Race.Karts,
		"laps", cfg.Race.Laps,
		"max_ticks", *maxTicks,
		"output_dir", output.Dir(),
	)

	race.Run(*maxTicks)
	race.Close()

	if *maxTicks > 0 && race.Tick() >= *maxTicks && !race.Done() {
		slog.Info("max ticks reached", "tick", race.Tick())
	}

	manifest.Ticks = race.Tick()
	if err := output.WriteManifest(manifest); err != nil {
		slog.Error("failed to write manifest", "error", err)
	}

	for _, row := range race.Results() {
		slog.Info("result",
			"rank", row.Rank,
			"kart", row.Kart,
			"difficulty", row.Difficulty,
			"finished", row.Finished,
			"finish_time", row.FinishTime,
			"distance", row.Distance,
		)
	}
}
