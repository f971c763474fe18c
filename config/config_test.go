package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load defaults: %v", err)
	}

	if cfg.Sim.DT <= 0 {
		t.Errorf("DT = %v, want > 0", cfg.Sim.DT)
	}
	if cfg.AI.PointSelection != "default" {
		t.Errorf("PointSelection = %q, want default", cfg.AI.PointSelection)
	}
	if len(cfg.Difficulties) != 4 {
		t.Errorf("len(Difficulties) = %d, want 4", len(cfg.Difficulties))
	}
	if _, ok := cfg.Derived.DifficultyIndex["hard"]; !ok {
		t.Error("expected hard difficulty to be indexed")
	}
	if cfg.AI.ItemRanges["cake"] != 50 {
		t.Errorf("cake range = %v, want 50", cfg.AI.ItemRanges["cake"])
	}
}

func TestLoadOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.yaml")
	data := []byte("race:\n  karts: 2\nai:\n  point_selection: corridor\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Race.Karts != 2 {
		t.Errorf("Karts = %d, want 2", cfg.Race.Karts)
	}
	if cfg.AI.PointSelection != "corridor" {
		t.Errorf("PointSelection = %q, want corridor", cfg.AI.PointSelection)
	}
	// Untouched fields keep their defaults
	if cfg.Race.Laps != 3 {
		t.Errorf("Laps = %d, want default 3", cfg.Race.Laps)
	}
}

func TestLoadRejectsBadSkidCurve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	data := []byte("difficulties:\n  - name: broken\n    skid_distances: [10, 0]\n    skid_probabilities: [0.1, 0.2]\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for unsorted skid distances")
	}
}

func TestDifficultyFallback(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	d := cfg.Difficulty("does-not-exist")
	if d.Name != cfg.Difficulties[0].Name {
		t.Errorf("fallback difficulty = %q, want %q", d.Name, cfg.Difficulties[0].Name)
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Race.Karts = 9

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load written config: %v", err)
	}
	if loaded.Race.Karts != 9 {
		t.Errorf("Karts = %d, want 9", loaded.Race.Karts)
	}
}
