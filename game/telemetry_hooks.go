package game

import (
	"log/slog"

	"github.com/pthm-cable/kartpilot/telemetry"
)

// flushTelemetry checks if the stats window should be flushed.
func (r *Race) flushTelemetry() {
	if !r.collector.ShouldFlush(r.tick) {
		return
	}

	stats := r.collector.Flush(r.tick, r.sampleKarts())
	perfStats := r.perf.Stats()

	if r.statsCallback != nil {
		r.statsCallback(stats)
	}

	// Console output
	if r.logStats {
		stats.LogStats()
		perfStats.LogStats()
		r.timings.LogStats()
		r.logStandings()
	}

	if r.output != nil {
		if err := r.output.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := r.output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}

	for _, bm := range r.bookmarks.Check(stats) {
		if r.logStats {
			bm.LogBookmark()
		}
		if err := r.output.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
	}
	r.flushTrace()
}

// sampleKarts collects the per-kart values the stats window summarizes.
func (r *Race) sampleKarts() []telemetry.KartSample {
	out := make([]telemetry.KartSample, 0, len(r.entities))
	for _, e := range r.entities {
		k := r.kartMap.Get(e)
		p := r.progressMap.Get(e)
		if p.Eliminated {
			continue
		}
		out = append(out, telemetry.KartSample{
			ID:       k.ID,
			Speed:    r.motionMap.Get(e).Speed,
			Distance: p.Distance,
			Finished: p.Finished,
		})
	}
	return out
}

// flushTrace writes buffered decision rows.
func (r *Race) flushTrace() {
	if len(r.trace) == 0 {
		return
	}
	if err := r.output.WriteTrace(r.trace); err != nil {
		slog.Error("failed to write trace", "error", err)
	}
	r.trace = r.trace[:0]
}
