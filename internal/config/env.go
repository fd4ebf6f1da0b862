package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv. The document variables overlay a
// whole (partial) config; the scalar ones override single fields after it.
const (
	EnvConfigJSON     = "VOXELISLE_CONFIG_JSON"
	EnvConfigYAML     = "VOXELISLE_CONFIG_YAML_B64"
	EnvTerrainKind    = "VOXELISLE_TERRAIN"
	EnvSeed           = "VOXELISLE_SEED"
	EnvRenderDistance = "VOXELISLE_RENDER_DISTANCE"
	EnvWorkers        = "VOXELISLE_WORKERS"
	EnvStorageKind    = "VOXELISLE_STORAGE"
	EnvStoragePath    = "VOXELISLE_STORAGE_PATH"
	EnvLogLevel       = "VOXELISLE_LOG_LEVEL"
)

// ApplyEnv overlays values from getenv onto cfg and validates the result.
// Fields a payload does not mention keep their current value. It returns the
// names of the variables that were applied.
func ApplyEnv(cfg *Config, getenv func(string) string) ([]string, error) {
	var applied []string

	if payload := getenv(EnvConfigJSON); payload != "" {
		if err := json.Unmarshal([]byte(payload), cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvConfigJSON, err)
		}
		applied = append(applied, EnvConfigJSON)
	} else if payload := getenv(EnvConfigYAML); payload != "" {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: decode base64: %w", EnvConfigYAML, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvConfigYAML, err)
		}
		applied = append(applied, EnvConfigYAML)
	}

	strs := []struct {
		name string
		dst  *string
	}{
		{EnvTerrainKind, &cfg.Terrain.Kind},
		{EnvStorageKind, &cfg.Storage.Kind},
		{EnvStoragePath, &cfg.Storage.Path},
		{EnvLogLevel, &cfg.Log.Level},
	}
	for _, s := range strs {
		if v := getenv(s.name); v != "" {
			*s.dst = v
			applied = append(applied, s.name)
		}
	}

	if v := getenv(EnvSeed); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvSeed, err)
		}
		cfg.Terrain.Seed = seed
		applied = append(applied, EnvSeed)
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{EnvRenderDistance, &cfg.Streaming.RenderDistance},
		{EnvWorkers, &cfg.Streaming.Workers},
	}
	for _, i := range ints {
		v := getenv(i.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", i.name, err)
		}
		*i.dst = n
		applied = append(applied, i.name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate env config: %w", err)
	}
	return applied, nil
}
