package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/kartpilot/config"
)

// Manifest describes one race run.
type Manifest struct {
	RunID       string    `yaml:"run_id"`
	Seed        int64     `yaml:"seed"`
	Started     time.Time `yaml:"started"`
	Karts       int       `yaml:"karts"`
	Laps        int       `yaml:"laps"`
	Mode        string    `yaml:"mode"`
	Difficulty  string    `yaml:"difficulty"`
	TrackLength float64   `yaml:"track_length"`
	Ticks       int64     `yaml:"ticks,omitempty"`
}

// ResultRow is the final standing of one kart.
type ResultRow struct {
	Kart       uint32  `csv:"kart"`
	Difficulty string  `csv:"difficulty"`
	Human      bool    `csv:"human"`
	Rank       int     `csv:"rank"`
	Laps       int     `csv:"laps"`
	Distance   float64 `csv:"distance"`
	Finished   bool    `csv:"finished"`
	FinishTime float64 `csv:"finish_time"`
	Rescues    int     `csv:"rescues"`
}

// csvSink appends records to a CSV file, writing the header once.
type csvSink struct {
	file          *os.File
	headerWritten bool
}

func (s *csvSink) write(records any) error {
	if s == nil || s.file == nil {
		return nil
	}
	if !s.headerWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, s.file); err != nil {
			return err
		}
		s.headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, s.file)
}

func (s *csvSink) close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

// OutputManager handles structured race output with CSV logging.
type OutputManager struct {
	dir   string
	runID string

	telemetry *csvSink
	perf      *csvSink
	bookmarks *csvSink
	trace     *csvSink
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled). Decision traces are only
// written when trace is set.
func NewOutputManager(dir string, trace bool) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir, runID: uuid.NewString()}

	open := func(name string) (*csvSink, error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", name, err)
		}
		return &csvSink{file: f}, nil
	}

	var err error
	if om.telemetry, err = open("telemetry.csv"); err != nil {
		return nil, err
	}
	if om.perf, err = open("perf.csv"); err != nil {
		return nil, err
	}
	if om.bookmarks, err = open("bookmarks.csv"); err != nil {
		return nil, err
	}
	if trace {
		if om.trace, err = open("trace.csv"); err != nil {
			return nil, err
		}
	}

	return om, nil
}

// RunID returns the id stamped on this run's manifest.
func (om *OutputManager) RunID() string {
	if om == nil {
		return ""
	}
	return om.runID
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteManifest saves the run manifest as YAML. An empty RunID is filled in
// with the manager's id.
func (om *OutputManager) WriteManifest(m Manifest) error {
	if om == nil {
		return nil
	}
	if m.RunID == "" {
		m.RunID = om.runID
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(om.dir, "manifest.yaml"), data, 0644); err != nil {
		return fmt.Errorf("writing manifest.yaml: %w", err)
	}
	return nil
}

// WriteTelemetry writes a window stats record to telemetry.csv.
func (om *OutputManager) WriteTelemetry(stats WindowStats) error {
	if om == nil {
		return nil
	}
	if err := om.telemetry.write([]WindowStats{stats}); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int64) error {
	if om == nil {
		return nil
	}
	if err := om.perf.write([]PerfStatsCSV{stats.ToCSV(windowEnd)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteBookmark writes a bookmark record to bookmarks.csv.
func (om *OutputManager) WriteBookmark(bm Bookmark) error {
	if om == nil {
		return nil
	}
	if err := om.bookmarks.write([]Bookmark{bm}); err != nil {
		return fmt.Errorf("writing bookmark: %w", err)
	}
	return nil
}

// Tracing reports whether decision traces are recorded.
func (om *OutputManager) Tracing() bool {
	return om != nil && om.trace != nil
}

// WriteTrace appends decision rows to trace.csv.
func (om *OutputManager) WriteTrace(rows []TraceRow) error {
	if !om.Tracing() || len(rows) == 0 {
		return nil
	}
	if err := om.trace.write(rows); err != nil {
		return fmt.Errorf("writing trace: %w", err)
	}
	return nil
}

// WriteResults saves the final standings to results.csv.
func (om *OutputManager) WriteResults(rows []ResultRow) error {
	if om == nil {
		return nil
	}
	f, err := os.Create(filepath.Join(om.dir, "results.csv"))
	if err != nil {
		return fmt.Errorf("creating results.csv: %w", err)
	}
	defer f.Close()
	if err := gocsv.Marshal(rows, f); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, s := range []*csvSink{om.telemetry, om.perf, om.bookmarks, om.trace} {
		if err := s.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
