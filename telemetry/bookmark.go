package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkCrashSpike    BookmarkType = "crash_spike"
	BookmarkOffTrackSpike BookmarkType = "off_track_spike"
	BookmarkStall         BookmarkType = "stall"
	BookmarkPackRacing    BookmarkType = "pack_racing"
	BookmarkFirstFinish   BookmarkType = "first_finish"
)

// Bookmark thresholds.
const (
	spikeFactor     = 2.0
	minSpikeCount   = 10
	stallFraction   = 0.25
	packGap         = 25.0 // meters between first and last kart
	packWindows     = 3
	minSpikeHistory = 3
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int64        `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects notable moments of a race from window stats.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	packCount   int
	anyFinished bool
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < minSpikeHistory {
		historySize = minSpikeHistory
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark
	add := func(b *Bookmark) {
		if b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	add(bd.checkSpike(stats, BookmarkCrashSpike, "Rival crash", func(s WindowStats) int { return s.RivalCrashes }))
	add(bd.checkSpike(stats, BookmarkOffTrackSpike, "Off-track", func(s WindowStats) int { return s.OffTrack }))
	add(bd.checkStall(stats))
	add(bd.checkPackRacing(stats))
	add(bd.checkFirstFinish(stats))

	bd.addToHistory(stats)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

// checkSpike fires when a per-decision rate is more than twice its rolling average.
func (bd *BookmarkDetector) checkSpike(stats WindowStats, kind BookmarkType, label string, count func(WindowStats) int) *Bookmark {
	history := bd.getHistory()
	if len(history) < minSpikeHistory || stats.Decisions == 0 {
		return nil
	}

	var total, decisions int
	for _, h := range history {
		total += count(h)
		decisions += h.Decisions
	}
	if total == 0 || decisions == 0 {
		return nil
	}

	avg := float64(total) / float64(decisions)
	current := float64(count(stats)) / float64(stats.Decisions)
	if current > avg*spikeFactor && count(stats) >= minSpikeCount {
		return &Bookmark{
			Type:        kind,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%s rate %.3f is %.1fx average (%.3f)", label, current, current/avg, avg),
		}
	}
	return nil
}

// checkStall fires when the field gains far less ground than usual.
func (bd *BookmarkDetector) checkStall(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < minSpikeHistory || stats.Karts == stats.Finished {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.ProgressMean
	}
	avg := total / float64(len(history))
	if avg <= 0 {
		return nil
	}

	if stats.ProgressMean < avg*stallFraction {
		return &Bookmark{
			Type:        BookmarkStall,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Mean progress %.1fm is %.0f%% of average (%.1fm)", stats.ProgressMean, stats.ProgressMean/avg*100, avg),
		}
	}
	return nil
}

// checkPackRacing fires once when the whole field stays close together.
func (bd *BookmarkDetector) checkPackRacing(stats WindowStats) *Bookmark {
	if stats.Karts < 2 || stats.LeaderGap > packGap {
		bd.packCount = 0
		return nil
	}

	bd.packCount++
	if bd.packCount == packWindows { // trigger exactly once per run of windows
		return &Bookmark{
			Type:        BookmarkPackRacing,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%d karts within %.1fm for %d windows", stats.Karts, stats.LeaderGap, packWindows),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkFirstFinish(stats WindowStats) *Bookmark {
	if bd.anyFinished || stats.Finished == 0 {
		return nil
	}
	bd.anyFinished = true
	return &Bookmark{
		Type:        BookmarkFirstFinish,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("First kart finished after %.1fs", stats.SimTimeSec),
	}
}
