package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg != defaults() {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	data := "backend: software\nframes: 10\nscatter: true\nmax_rows: 32\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend != "software" || cfg.Frames != 10 || !cfg.Scatter || cfg.MaxRows != 32 {
		t.Errorf("Load() = %+v", cfg)
	}
	// Unset fields keep their defaults.
	if cfg.BlocksPerFrame != defaults().BlocksPerFrame {
		t.Errorf("BlocksPerFrame = %d, want default", cfg.BlocksPerFrame)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		data string
	}{
		{"syntax", "frames: [1"},
		{"zero frames", "frames: 0"},
		{"run too long", "max_run_length: 2000"},
		{"bad scale", "scale: -1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("Load(%q) succeeded", tt.data)
			}
		})
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load(missing) succeeded")
	}
}
