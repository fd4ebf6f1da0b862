package config

import (
	"encoding/base64"
	"reflect"
	"strings"
	"testing"
)

func envOf(vars map[string]string) func(string) string {
	return func(name string) string { return vars[name] }
}

func TestApplyEnvWithoutVariablesKeepsConfig(t *testing.T) {
	cfg := Default()
	applied, err := ApplyEnv(cfg, envOf(nil))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("unexpected applied variables: %v", applied)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("config changed without variables: %+v", cfg)
	}
}

func TestApplyEnvOverlaysPayloads(t *testing.T) {
	yamlDoc := "terrain:\n  kind: standard\nstreaming:\n  renderDistance: 3\n"
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"json", map[string]string{EnvConfigJSON: `{"terrain":{"kind":"standard"},"streaming":{"renderDistance":3}}`}},
		{"yaml", map[string]string{EnvConfigYAML: base64.StdEncoding.EncodeToString([]byte(yamlDoc))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if _, err := ApplyEnv(cfg, envOf(tt.vars)); err != nil {
				t.Fatalf("ApplyEnv: %v", err)
			}
			if cfg.Terrain.Kind != "standard" || cfg.Streaming.RenderDistance != 3 {
				t.Fatalf("payload not applied: %+v %+v", cfg.Terrain, cfg.Streaming)
			}
			if cfg.Terrain.SeaLevel != 32 || cfg.Streaming.Workers != 2 {
				t.Fatalf("fields missing from the payload were reset: %+v %+v", cfg.Terrain, cfg.Streaming)
			}
		})
	}
}

func TestApplyEnvScalarsWinOverPayload(t *testing.T) {
	cfg := Default()
	applied, err := ApplyEnv(cfg, envOf(map[string]string{
		EnvConfigJSON:     `{"terrain":{"seed":1}}`,
		EnvSeed:           "-77",
		EnvRenderDistance: "5",
		EnvWorkers:        "6",
		EnvStorageKind:    "leveldb",
		EnvStoragePath:    "/var/lib/voxelisle",
		EnvLogLevel:       "debug",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Terrain.Seed != -77 || cfg.Streaming.RenderDistance != 5 || cfg.Streaming.Workers != 6 {
		t.Fatalf("scalars not applied: %+v %+v", cfg.Terrain, cfg.Streaming)
	}
	if cfg.Storage.Kind != "leveldb" || cfg.Storage.Path != "/var/lib/voxelisle" || cfg.Log.Level != "debug" {
		t.Fatalf("string overrides not applied: %+v %+v", cfg.Storage, cfg.Log)
	}
	if len(applied) != 7 || applied[0] != EnvConfigJSON {
		t.Fatalf("unexpected applied list: %v", applied)
	}
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		wantErr string
	}{
		{"bad json", map[string]string{EnvConfigJSON: "{"}, EnvConfigJSON},
		{"bad base64", map[string]string{EnvConfigYAML: "%%%"}, "decode base64"},
		{"bad seed", map[string]string{EnvSeed: "abc"}, EnvSeed},
		{"bad workers", map[string]string{EnvWorkers: "many"}, EnvWorkers},
		{"invalid result", map[string]string{EnvWorkers: "0"}, "streaming.workers must be positive"},
		{"leveldb without path", map[string]string{EnvStorageKind: "leveldb"}, "storage.path must be set"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyEnv(Default(), envOf(tt.vars))
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
