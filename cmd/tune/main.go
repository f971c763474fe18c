// Package main provides CMA-ES tuning of the AI driver parameters on
// headless races.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/kartpilot/config"
)

// tuneLog appends one row per evaluation to tune_log.csv and tracks the best
// parameters seen. Columns follow the parameter vector, so the header is
// built at runtime.
type tuneLog struct {
	mu    sync.Mutex
	w     *csv.Writer
	f     *os.File
	evals int
	best  float64
	bestX []float64
}

func newTuneLog(path string, params *ParamVector) (*tuneLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating tune log: %w", err)
	}
	header := []string{"eval", "fitness", "score", "quality"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing tune log header: %w", err)
	}
	return &tuneLog{w: w, f: f, best: math.Inf(1)}, nil
}

// record logs the clamped values, which are the ones actually raced.
func (l *tuneLog) record(values []float64, fitness, score, quality float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.evals++
	if fitness < l.best {
		l.best = fitness
		l.bestX = values
	}

	row := []string{
		strconv.Itoa(l.evals),
		strconv.FormatFloat(fitness, 'f', 6, 64),
		strconv.FormatFloat(score, 'f', 6, 64),
		strconv.FormatFloat(quality, 'f', 6, 64),
	}
	for _, v := range values {
		row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
	}
	if err := l.w.Write(row); err != nil {
		slog.Error("failed to write tune log", "error", err)
	}
	l.w.Flush()
}

func (l *tuneLog) bestValues() ([]float64, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bestX, l.best
}

func (l *tuneLog) Close() error {
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}

// generationLogger reports CMA-ES progress once per generation.
type generationLogger struct {
	log *tuneLog
}

func (generationLogger) Init() error { return nil }

func (g generationLogger) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op != optimize.MajorIteration {
		return nil
	}
	_, best := g.log.bestValues()
	slog.Info("generation",
		"generation", stats.MajorIterations,
		"evals", stats.FuncEvaluations,
		"fitness", loc.F,
		"best_score", -best,
		"runtime", stats.Runtime.Round(time.Second).String(),
	)
	return nil
}

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	difficulty := flag.String("difficulty", "hard", "Difficulty profile to tune")
	maxTicks := flag.Int64("max-ticks", 60*60*4, "Tick limit per race")
	seeds := flag.Int("seeds", 3, "Races per evaluation")
	maxEvals := flag.Int("max-evals", 200, "Evaluation budget")
	population := flag.Int("population", 0, "CMA-ES population size (0 = 4 + 1.5 x dimensions)")
	outputDir := flag.String("output", "", "Output directory (required)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := run(*configPath, *difficulty, *maxTicks, *seeds, *maxEvals, *population, *outputDir); err != nil {
		slog.Error("tuning failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, difficulty string, maxTicks int64, seeds, maxEvals, population int, outputDir string) error {
	if outputDir == "" {
		return fmt.Errorf("-output is required")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := config.Init(configPath); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	baseCfg := config.Cfg()
	baseCfg.Race.Humans = 0
	if _, ok := baseCfg.Derived.DifficultyIndex[difficulty]; !ok {
		return fmt.Errorf("unknown difficulty %q", difficulty)
	}

	params := NewParamVector()
	evalSeeds := make([]int64, seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}
	evaluator := NewFitnessEvaluator(params, maxTicks, evalSeeds, baseCfg, difficulty)

	tlog, err := newTuneLog(filepath.Join(outputDir, "tune_log.csv"), params)
	if err != nil {
		return err
	}
	defer func() {
		if err := tlog.Close(); err != nil {
			slog.Error("failed to close tune log", "error", err)
		}
	}()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			values := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(values)
			score, quality := evaluator.Last()
			tlog.record(values, fitness, score, quality)
			return fitness
		},
	}

	if population == 0 {
		population = 4 + 3*params.Dim()/2
	}
	settings := &optimize.Settings{
		FuncEvaluations: maxEvals,
		Recorder:        generationLogger{log: tlog},
	}
	method := &optimize.CmaEsChol{InitStepSize: 0.3, Population: population}

	slog.Info("tuning",
		"difficulty", difficulty,
		"params", params.Dim(),
		"population", population,
		"max_evals", maxEvals,
		"seeds", seeds,
		"max_ticks", maxTicks,
	)

	initX := params.Normalize(params.ExtractFromConfig(baseCfg, difficulty))
	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		slog.Warn("tuning stopped", "error", err)
	}

	best, fitness := tlog.bestValues()
	if best == nil && result != nil {
		best = params.Clamp(params.Denormalize(result.X))
	}
	if best == nil {
		return fmt.Errorf("no evaluation completed")
	}

	attrs := []any{"fitness", fitness}
	for i, spec := range params.Specs {
		attrs = append(attrs, spec.Name, best[i])
	}
	slog.Info("best parameters", attrs...)

	return writeBest(configPath, difficulty, outputDir, params, best, evaluator)
}

// writeBest saves the tuned config and the standings of its best race.
func writeBest(configPath, difficulty, outputDir string, params *ParamVector, best []float64, evaluator *FitnessEvaluator) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("reloading config: %w", err)
	}
	params.ApplyToConfig(cfg, difficulty, best)
	if err := cfg.WriteYAML(filepath.Join(outputDir, "best_config.yaml")); err != nil {
		return fmt.Errorf("writing best config: %w", err)
	}

	rows := evaluator.BestResults()
	if len(rows) == 0 {
		return nil
	}
	f, err := os.Create(filepath.Join(outputDir, "best_results.csv"))
	if err != nil {
		return fmt.Errorf("creating best_results.csv: %w", err)
	}
	defer f.Close()
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("writing best results: %w", err)
	}
	slog.Info("saved", "dir", outputDir)
	return nil
}
