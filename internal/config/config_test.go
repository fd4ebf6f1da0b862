package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestValidateDefaultConfig(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration should be valid: %v", err)
	}
}

func TestValidateDetectsInvalidConfigurations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "unknown terrain kind",
			mutate: func(cfg *Config) {
				cfg.Terrain.Kind = "flat"
			},
			wantErr: `terrain.kind "flat" must be standard or island`,
		},
		{
			name: "sea level above world",
			mutate: func(cfg *Config) {
				cfg.Terrain.SeaLevel = 64
			},
			wantErr: "terrain.seaLevel must be within the world height",
		},
		{
			name: "world taller than a chunk",
			mutate: func(cfg *Config) {
				cfg.Terrain.WorldHeight = 128
			},
			wantErr: "terrain.worldHeight must be 64",
		},
		{
			name: "no solver attempts",
			mutate: func(cfg *Config) {
				cfg.WFC.MaxAttempts = 0
			},
			wantErr: "wfc.maxAttempts must be positive",
		},
		{
			name: "ocean bias out of range",
			mutate: func(cfg *Config) {
				cfg.WFC.OceanBias = 1
			},
			wantErr: "wfc.oceanBias must be between 0 and 1",
		},
		{
			name: "unknown constraint kind",
			mutate: func(cfg *Config) {
				cfg.WFC.Constraints[2].Kind = "gravity"
			},
			wantErr: `wfc.constraints[2].kind "gravity" is unknown`,
		},
		{
			name: "no workers",
			mutate: func(cfg *Config) {
				cfg.Streaming.Workers = 0
			},
			wantErr: "streaming.workers must be positive",
		},
		{
			name: "negative hysteresis",
			mutate: func(cfg *Config) {
				cfg.Streaming.Hysteresis = -1
			},
			wantErr: "streaming.hysteresis cannot be negative",
		},
		{
			name: "disk storage without path",
			mutate: func(cfg *Config) {
				cfg.Storage.Kind = "disk"
			},
			wantErr: "storage.path must be set for disk storage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected an error, got nil")
			}
			if err.Error() != tt.wantErr {
				t.Fatalf("unexpected error: got %q want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load default config: %v", err)
	}
	if want := Default(); !reflect.DeepEqual(cfg, want) {
		t.Fatalf("default configuration mismatch:\nwant: %#v\n got: %#v", want, cfg)
	}
}

func TestLoadReadsJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.Terrain.Seed = 99
	cfg.Streaming.RenderDistance = 4

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Fatalf("loaded configuration mismatch:\nwant: %#v\n got: %#v", cfg, got)
	}
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	contents := `
terrain:
  kind: standard
  seed: 7
wfc:
  solveTimeout: 20ms
  constraints:
    - kind: height
      block: water
      min: 0
      max: 40
streaming:
  renderDistance: 3
  tickRate: 10ms
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if got.Terrain.Kind != "standard" || got.Terrain.Seed != 7 {
		t.Fatalf("unexpected terrain config: %+v", got.Terrain)
	}
	if got.Terrain.SeaLevel != 32 {
		t.Fatalf("expected sea level default to survive, got %d", got.Terrain.SeaLevel)
	}
	if got.WFC.SolveTimeout.Duration() != 20*time.Millisecond {
		t.Fatalf("unexpected solve timeout: %v", got.WFC.SolveTimeout.Duration())
	}
	if len(got.WFC.Constraints) != 1 || got.WFC.Constraints[0].Max != 40 {
		t.Fatalf("unexpected constraints: %+v", got.WFC.Constraints)
	}
	if got.Streaming.RenderDistance != 3 || got.Streaming.TickRate.Duration() != 10*time.Millisecond {
		t.Fatalf("unexpected streaming config: %+v", got.Streaming)
	}
}

func TestLoadInvalidConfiguration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.Streaming.RenderDistance = 0

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err = Load(path)
	if err == nil {
		t.Fatalf("expected load to fail")
	}
	if !strings.Contains(err.Error(), "validate config: streaming.renderDistance must be positive") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDurationDecodesNumbersAndStrings(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`"150ms"`), &d); err != nil {
		t.Fatalf("decode string: %v", err)
	}
	if d.Duration() != 150*time.Millisecond {
		t.Fatalf("unexpected duration %v", d.Duration())
	}
	if err := json.Unmarshal([]byte(`1000`), &d); err != nil {
		t.Fatalf("decode number: %v", err)
	}
	if d.Duration() != time.Microsecond {
		t.Fatalf("unexpected duration %v", d.Duration())
	}
	if err := yaml.Unmarshal([]byte(`2s`), &d); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if d.Duration() != 2*time.Second {
		t.Fatalf("unexpected duration %v", d.Duration())
	}
	if err := json.Unmarshal([]byte(`"soon"`), &d); err == nil {
		t.Fatalf("expected parse failure")
	}
}
