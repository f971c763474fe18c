package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
)

func TestTuneLog(t *testing.T) {
	params := NewParamVector()
	path := filepath.Join(t.TempDir(), "tune_log.csv")
	tlog, err := newTuneLog(path, params)
	if err != nil {
		t.Fatalf("newTuneLog: %v", err)
	}

	a := make([]float64, params.Dim())
	b := make([]float64, params.Dim())
	b[0] = 1
	tlog.record(a, -0.5, 0.5, 0.9)
	tlog.record(b, -0.8, 0.8, 0.7)
	tlog.record(a, -0.6, 0.6, 0.8)

	best, fitness := tlog.bestValues()
	if fitness != -0.8 || best[0] != 1 {
		t.Errorf("best = %v (fitness %v), want the second evaluation", best, fitness)
	}
	if err := tlog.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want header + 3", len(rows))
	}
	if got, want := len(rows[0]), 4+params.Dim(); got != want {
		t.Errorf("columns = %d, want %d", got, want)
	}
	if rows[0][4] != params.Specs[0].Name {
		t.Errorf("first parameter column = %q, want %q", rows[0][4], params.Specs[0].Name)
	}
	if rows[2][0] != "2" || rows[2][1] != "-0.800000" {
		t.Errorf("row 2 = %v", rows[2])
	}
}
