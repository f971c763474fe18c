package controller

// StuckTimer measures how long a kart has gone without making progress.
// One rescue is requested per stuck episode.
type StuckTimer struct {
	Elapsed      float64
	LastProgress float64
	Pending      bool // a rescue was requested and progress has not resumed

	started bool
}

// Update accumulates dt while progress stays within epsilon of the last
// recorded progress. It returns true exactly once when the accumulated time
// exceeds threshold.
func (s *StuckTimer) Update(dt, progress float64, startPhase bool, epsilon, threshold float64) bool {
	if !s.started {
		s.started = true
		s.LastProgress = progress
		return false
	}
	if progress-s.LastProgress > epsilon {
		s.LastProgress = progress
		s.Elapsed = 0
		s.Pending = false
		return false
	}
	if startPhase || s.Pending {
		return false
	}

	s.Elapsed += dt
	if s.Elapsed > threshold {
		s.Elapsed = 0
		s.Pending = true
		return true
	}
	return false
}

// Rescued starts a new episode after the kart was placed back on the track.
func (s *StuckTimer) Rescued() {
	*s = StuckTimer{}
}

func (e *Engine) handleRescue(dt float64, c *Controls) {
	p := &e.params
	c.Rescue = e.stuck.Update(dt, e.self.DistanceAlongTrack, e.snap.StartPhase, p.ProgressEpsilon, p.StuckThreshold)
	if c.Rescue {
		e.logger.Debug("rescue requested", "kart", e.id, "tick", e.snap.Tick, "node", e.trackNode)
	}
}
