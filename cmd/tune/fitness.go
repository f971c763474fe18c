package main

import (
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/pthm-cable/kartpilot/config"
	"github.com/pthm-cable/kartpilot/game"
	"github.com/pthm-cable/kartpilot/telemetry"
)

// FitnessEvaluator runs headless races and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	maxTicks   int64
	seeds      []int64
	baseConfig *config.Config
	difficulty string
	logger     *slog.Logger

	// Best run tracking
	mu          sync.Mutex
	bestFitness float64
	bestResults []telemetry.ResultRow
	lastScore   float64 // mean race score of the most recent Evaluate call
	lastQuality float64
}

// NewFitnessEvaluator creates a new evaluator. Every kart in the evaluated
// races drives the given difficulty profile.
func NewFitnessEvaluator(params *ParamVector, maxTicks int64, seeds []int64, baseCfg *config.Config, difficulty string) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		difficulty:  difficulty,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		bestFitness: math.Inf(1),
	}
}

// BestResults returns the standings of the best seed of the best evaluation.
func (fe *FitnessEvaluator) BestResults() []telemetry.ResultRow {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestResults
}

// Last returns the race score and quality of the most recent evaluation.
func (fe *FitnessEvaluator) Last() (score, quality float64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastScore, fe.lastQuality
}

// runResult holds the results from a single race.
type runResult struct {
	results     []telemetry.ResultRow
	windowStats []telemetry.WindowStats // collected via StatsCallback each window
	trackLength float64
	laps        int
	raceTime    float64 // time limit of the race in seconds
	err         error
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	fitness float64
	score   float64
	quality float64
	results []telemetry.ResultRow
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := copyConfig(fe.baseConfig)
	fe.params.ApplyToConfig(cfg, fe.difficulty, x)

	// Run all seeds in parallel
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			run := fe.runRace(cfg, s)
			score := raceScore(run)
			quality := computeQuality(run.windowStats)
			results[idx] = seedResult{
				fitness: computeFitness(score, quality),
				score:   score,
				quality: quality,
				results: run.results,
			}
		}(i, seed)
	}
	wg.Wait()

	var totalFitness, totalScore, totalQuality float64
	bestSeedFitness := math.Inf(1)
	var bestSeedResults []telemetry.ResultRow

	for _, r := range results {
		totalFitness += r.fitness
		totalScore += r.score
		totalQuality += r.quality
		if r.fitness < bestSeedFitness {
			bestSeedFitness = r.fitness
			bestSeedResults = r.results
		}
	}

	n := float64(len(fe.seeds))
	avgFitness := totalFitness / n

	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
		fe.bestResults = bestSeedResults
	}
	fe.lastScore = totalScore / n
	fe.lastQuality = totalQuality / n
	fe.mu.Unlock()

	return avgFitness
}

// runRace executes a single headless race until every kart is done or the
// tick limit is reached.
func (fe *FitnessEvaluator) runRace(cfg *config.Config, seed int64) *runResult {
	result := &runResult{
		laps:     cfg.Race.Laps,
		raceTime: float64(fe.maxTicks) * cfg.Sim.DT,
	}

	r, err := game.NewRace(game.Options{
		Seed:       seed,
		Config:     cfg,
		Difficulty: fe.difficulty,
		Logger:     fe.logger,
		StatsCallback: func(stats telemetry.WindowStats) {
			result.windowStats = append(result.windowStats, stats)
		},
	})
	if err != nil {
		result.err = err
		return result
	}

	r.Run(fe.maxTicks)
	result.results = r.Results()
	result.trackLength = r.Graph().TrackLength()
	return result
}

// Score weights.
const (
	finishBonusWeight = 0.5
	rescuePenalty     = 0.02
	qualityWeight     = 0.2
)

// raceScore rates one race: the mean fraction of the race distance covered,
// a bonus for finishing early and a penalty per rescue.
func raceScore(r *runResult) float64 {
	if r.err != nil || len(r.results) == 0 || r.trackLength <= 0 || r.laps <= 0 {
		return 0
	}
	total := float64(r.laps) * r.trackLength

	var sum float64
	for _, row := range r.results {
		s := clamp01(row.Distance / total)
		if row.Finished && r.raceTime > 0 {
			s += finishBonusWeight * clamp01(1-row.FinishTime/r.raceTime)
		}
		s -= rescuePenalty * float64(row.Rescues)
		sum += s
	}
	return sum / float64(len(r.results))
}

// computeFitness calculates the scalar fitness (lower = better).
// Formula: -(score × (1.0 + 0.2 × quality))
func computeFitness(score, quality float64) float64 {
	return -(score * (1.0 + qualityWeight*quality))
}

// computeQuality rates driving quality ∈ [0, 1] from window stats: how rarely
// the engines predicted leaving the road and how rarely they needed recovery
// steering.
func computeQuality(windows []telemetry.WindowStats) float64 {
	var decisions, offTrack, recoveries int
	for _, w := range windows {
		decisions += w.Decisions
		offTrack += w.OffTrack
		recoveries += w.Recoveries
	}
	if decisions == 0 {
		return 0
	}
	offRate := float64(offTrack) / float64(decisions)
	recRate := float64(recoveries) / float64(decisions)
	return clamp01(math.Exp(-5*offRate) * math.Exp(-5*recRate))
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
