package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a JSON and YAML friendly wrapper around time.Duration that
// accepts human readable strings such as "50ms" in configuration files while
// still allowing numeric nanosecond values.
type Duration time.Duration

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes the duration using the canonical string representation.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes a duration from either a string (e.g. "250ms") or a
// numeric value representing nanoseconds. Empty strings and null values decode
// to zero.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("duration: empty value")
	}
	if string(b) == "null" {
		*d = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("duration: decode string: %w", err)
		}
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*d = Duration(time.Duration(n))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*d = Duration(time.Duration(f))
		return nil
	}
	return fmt.Errorf("duration: invalid value %s", string(b))
}

// MarshalYAML mirrors MarshalJSON.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!int" {
		var n int64
		if err := node.Decode(&n); err != nil {
			return fmt.Errorf("duration: decode int: %w", err)
		}
		*d = Duration(time.Duration(n))
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("duration: decode string: %w", err)
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: parse %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// WorldHeight is the only supported world height. Chunks span it exactly.
const WorldHeight = 64

// Config is the single configuration value threaded through the engine.
type Config struct {
	Terrain   TerrainConfig   `json:"terrain" yaml:"terrain"`
	WFC       WFCConfig       `json:"wfc" yaml:"wfc"`
	Streaming StreamingConfig `json:"streaming" yaml:"streaming"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

type TerrainConfig struct {
	Kind         string `json:"kind" yaml:"kind"` // "standard" or "island"
	Seed         int64  `json:"seed" yaml:"seed"`
	SeaLevel     int    `json:"seaLevel" yaml:"seaLevel"`
	WorldHeight  int    `json:"worldHeight" yaml:"worldHeight"`
	DisableCaves bool   `json:"disableCaves" yaml:"disableCaves"`
	DisableOres  bool   `json:"disableOres" yaml:"disableOres"`
}

type WFCConfig struct {
	MaxAttempts   int              `json:"maxAttempts" yaml:"maxAttempts"`
	SolveTimeout  Duration         `json:"solveTimeout" yaml:"solveTimeout"` // per attempt
	SurfaceCutoff int              `json:"surfaceCutoff" yaml:"surfaceCutoff"`
	OceanBias     float64          `json:"oceanBias" yaml:"oceanBias"`
	Verbose       bool             `json:"verbose" yaml:"verbose"`
	Constraints   []ConstraintSpec `json:"constraints" yaml:"constraints"`
}

// ConstraintSpec is the serialised form of a solver rule. Which fields are
// read depends on Kind.
type ConstraintSpec struct {
	Kind      string   `json:"kind" yaml:"kind"`
	Block     string   `json:"block,omitempty" yaml:"block,omitempty"`
	Reference string   `json:"reference,omitempty" yaml:"reference,omitempty"`
	Direction string   `json:"direction,omitempty" yaml:"direction,omitempty"`
	Allowed   []string `json:"allowed,omitempty" yaml:"allowed,omitempty"`
	Min       int      `json:"min,omitempty" yaml:"min,omitempty"`
	Max       int      `json:"max,omitempty" yaml:"max,omitempty"`
	Distance  int      `json:"distance,omitempty" yaml:"distance,omitempty"`
	Threshold float64  `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Density   float64  `json:"density,omitempty" yaml:"density,omitempty"`
	Priority  int      `json:"priority,omitempty" yaml:"priority,omitempty"`
}

type StreamingConfig struct {
	RenderDistance    int      `json:"renderDistance" yaml:"renderDistance"` // in chunks
	Hysteresis        int      `json:"hysteresis" yaml:"hysteresis"`         // extra chunks kept before eviction
	Workers           int      `json:"workers" yaml:"workers"`
	TickRate          Duration `json:"tickRate" yaml:"tickRate"` // e.g. "16ms"
	PregenerateRadius int      `json:"pregenerateRadius" yaml:"pregenerateRadius"`
}

type StorageConfig struct {
	Kind string `json:"kind" yaml:"kind"` // "memory", "disk" or "leveldb"
	Path string `json:"path" yaml:"path"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "text" or "json"
}

// Load reads configuration from a JSON or YAML file if provided. An empty
// path returns defaults. The format follows the file extension.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Terrain: TerrainConfig{
			Kind:        "island",
			Seed:        12345,
			SeaLevel:    32,
			WorldHeight: WorldHeight,
		},
		WFC: WFCConfig{
			MaxAttempts:   5,
			SolveTimeout:  Duration(50 * time.Millisecond),
			SurfaceCutoff: 25,
			OceanBias:     0.7,
			Constraints:   DefaultConstraints(),
		},
		Streaming: StreamingConfig{
			RenderDistance: 8,
			Hysteresis:     2,
			Workers:        2,
			TickRate:       Duration(16 * time.Millisecond),
		},
		Storage: StorageConfig{
			Kind: "memory",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultConstraints is the rule set used for island surfaces.
func DefaultConstraints() []ConstraintSpec {
	return []ConstraintSpec{
		{Kind: "height", Block: "water", Min: 0, Max: 40},
		{Kind: "height", Block: "air", Min: 25, Max: 64},
		{Kind: "adjacency", Block: "grass", Direction: "down", Allowed: []string{"dirt", "stone", "sand"}},
		{Kind: "proximity", Block: "sand", Reference: "water", Distance: 5},
		{Kind: "geological", Block: "iron", Reference: "stone", Threshold: 0.3},
	}
}

var constraintKinds = map[string]bool{
	"adjacency":  true,
	"height":     true,
	"proximity":  true,
	"geological": true,
	"biome":      true,
	"erosion":    true,
	"structure":  true,
}

func (c *Config) Validate() error {
	switch c.Terrain.Kind {
	case "standard", "island":
	default:
		return fmt.Errorf("terrain.kind %q must be standard or island", c.Terrain.Kind)
	}
	if c.Terrain.WorldHeight != WorldHeight {
		return fmt.Errorf("terrain.worldHeight must be %d", WorldHeight)
	}
	if c.Terrain.SeaLevel < 0 || c.Terrain.SeaLevel >= c.Terrain.WorldHeight {
		return errors.New("terrain.seaLevel must be within the world height")
	}
	if c.WFC.MaxAttempts <= 0 {
		return errors.New("wfc.maxAttempts must be positive")
	}
	if c.WFC.SolveTimeout <= 0 {
		return errors.New("wfc.solveTimeout must be positive")
	}
	if c.WFC.OceanBias <= 0 || c.WFC.OceanBias >= 1 {
		return errors.New("wfc.oceanBias must be between 0 and 1")
	}
	for i, spec := range c.WFC.Constraints {
		if !constraintKinds[spec.Kind] {
			return fmt.Errorf("wfc.constraints[%d].kind %q is unknown", i, spec.Kind)
		}
	}
	if c.Streaming.RenderDistance <= 0 {
		return errors.New("streaming.renderDistance must be positive")
	}
	if c.Streaming.Hysteresis < 0 {
		return errors.New("streaming.hysteresis cannot be negative")
	}
	if c.Streaming.Workers <= 0 {
		return errors.New("streaming.workers must be positive")
	}
	if c.Streaming.TickRate <= 0 {
		return errors.New("streaming.tickRate must be positive")
	}
	if c.Streaming.PregenerateRadius < 0 {
		return errors.New("streaming.pregenerateRadius cannot be negative")
	}
	switch c.Storage.Kind {
	case "memory":
	case "disk", "leveldb":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path must be set for %s storage", c.Storage.Kind)
		}
	default:
		return fmt.Errorf("storage.kind %q must be memory, disk or leveldb", c.Storage.Kind)
	}
	return nil
}
