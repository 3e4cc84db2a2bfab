// Package config loads the YAML run configuration and converts it into the
// settings each package consumes.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/iotaledger/hive.go/ierrors"
	"gopkg.in/yaml.v3"

	"github.com/talgya/swarm-ledger/internal/agents"
	"github.com/talgya/swarm-ledger/internal/planning"
	"github.com/talgya/swarm-ledger/internal/tokens"
	"github.com/talgya/swarm-ledger/internal/world"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = ierrors.New("invalid config")

// Config holds every tunable of a swarm run.
type Config struct {
	Seed int64 `yaml:"seed"` // 0 = random

	Grid        GridConfig        `yaml:"grid"`
	Agents      AgentsConfig      `yaml:"agents"`
	Thresholds  ThresholdsConfig  `yaml:"thresholds"`
	Weights     []float64         `yaml:"weights"`
	Observation ObservationConfig `yaml:"observation"`
	Engine      EngineConfig      `yaml:"engine"`
	API         APIConfig         `yaml:"api"`
	Recorder    RecorderConfig    `yaml:"recorder"`
}

// GridConfig configures ground-truth generation.
type GridConfig struct {
	Rows        int     `yaml:"rows"`
	Cols        int     `yaml:"cols"`
	Mode        string  `yaml:"mode"`         // maze, field
	LoopPercent float64 `yaml:"loop_percent"` // maze only
	Interest    string  `yaml:"interest"`     // uniform, noise
}

// AgentsConfig configures the swarm.
type AgentsConfig struct {
	Count              int  `yaml:"count"`
	SearchDepth        int  `yaml:"search_depth"`
	StepLength         int  `yaml:"step_length"`
	CommunicationRange int  `yaml:"communication_range"`
	AllKnowing         bool `yaml:"all_knowing"`
}

// ThresholdsConfig holds the interest readings that trigger detections.
type ThresholdsConfig struct {
	Detect    float64 `yaml:"detect"`
	Potential float64 `yaml:"potential"`
}

// ObservationConfig configures sensor noise and what gets recorded.
type ObservationConfig struct {
	NoiseAmplitude float64 `yaml:"noise_amplitude"`
	RecordPolicy   string  `yaml:"record_policy"` // true_value, reading
}

// EngineConfig configures pacing.
type EngineConfig struct {
	Ticks    uint64 `yaml:"ticks"`    // 0 = run until stopped
	Interval string `yaml:"interval"` // Go duration
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Port int `yaml:"port"`
}

// RecorderConfig configures the SQLite run recorder.
type RecorderConfig struct {
	Path string `yaml:"path"` // empty = recording disabled
}

// DefaultConfig returns the standard run: four agents in a 15x25 maze.
func DefaultConfig() *Config {
	ap := agents.DefaultParams()
	return &Config{
		Seed: 42,
		Grid: GridConfig{
			Rows:        15,
			Cols:        25,
			Mode:        world.ModeMaze.String(),
			LoopPercent: 1,
			Interest:    "uniform",
		},
		Agents: AgentsConfig{
			Count:              4,
			SearchDepth:        ap.Planning.Depth,
			StepLength:         ap.Planning.StepLength,
			CommunicationRange: ap.CommunicationRange,
		},
		Thresholds: ThresholdsConfig{
			Detect:    ap.DetectThreshold,
			Potential: ap.PotentialThreshold,
		},
		Weights: []float64{0.5, 0.8, 0.2, 0.2, 0.4, 1},
		Observation: ObservationConfig{
			NoiseAmplitude: 1,
			RecordPolicy:   ap.Record.String(),
		},
		Engine: EngineConfig{
			Ticks:    100,
			Interval: "200ms",
		},
		API: APIConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, ierrors.Wrap(err, "failed to read config")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, ierrors.Wrap(err, "failed to parse config")
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ierrors.Wrap(err, "failed to create config directory")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return ierrors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ierrors.Wrap(err, "failed to write config")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SWARMSIM_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Seed = seed
		}
	}
	if v := os.Getenv("SWARMSIM_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.API.Port = port
		}
	}
	if path := os.Getenv("SWARMSIM_DB"); path != "" {
		c.Recorder.Path = path
	}
}

// Validate checks every field that a conversion would otherwise reject later.
func (c *Config) Validate() error {
	if _, err := c.GenConfig(); err != nil {
		return err
	}
	if _, err := c.Params(); err != nil {
		return err
	}
	if _, err := c.Pipeline(); err != nil {
		return err
	}
	if _, err := c.Interval(); err != nil {
		return err
	}
	if c.Agents.Count < 1 || c.Agents.Count > c.Grid.Rows*c.Grid.Cols {
		return ierrors.Wrapf(ErrInvalid, "agents.count %d outside 1..%d", c.Agents.Count, c.Grid.Rows*c.Grid.Cols)
	}
	if c.Observation.NoiseAmplitude < 0 {
		return ierrors.Wrapf(ErrInvalid, "observation.noise_amplitude %v is negative", c.Observation.NoiseAmplitude)
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return ierrors.Wrapf(ErrInvalid, "api.port %d", c.API.Port)
	}
	return nil
}

// GenConfig converts the grid section.
func (c *Config) GenConfig() (world.GenConfig, error) {
	mode, err := world.ParseMode(c.Grid.Mode)
	if err != nil {
		return world.GenConfig{}, ierrors.Join(ErrInvalid, err)
	}
	interest, err := world.ParseInterestMode(c.Grid.Interest)
	if err != nil {
		return world.GenConfig{}, ierrors.Join(ErrInvalid, err)
	}
	if c.Grid.Rows < 1 || c.Grid.Cols < 1 {
		return world.GenConfig{}, ierrors.Wrapf(ErrInvalid, "grid %dx%d", c.Grid.Rows, c.Grid.Cols)
	}
	if c.Grid.LoopPercent < 0 || c.Grid.LoopPercent > 100 {
		return world.GenConfig{}, ierrors.Wrapf(ErrInvalid, "grid.loop_percent %v outside 0..100", c.Grid.LoopPercent)
	}

	return world.GenConfig{
		Rows:        c.Grid.Rows,
		Cols:        c.Grid.Cols,
		Mode:        mode,
		LoopPercent: c.Grid.LoopPercent,
		Interest:    interest,
		Seed:        c.Seed,
	}, nil
}

// Params converts the agent, threshold and observation sections.
func (c *Config) Params() (agents.Params, error) {
	policy, err := agents.ParseRecordPolicy(c.Observation.RecordPolicy)
	if err != nil {
		return agents.Params{}, ierrors.Join(ErrInvalid, err)
	}

	p := agents.Params{
		Planning: planning.Params{
			StepLength: c.Agents.StepLength,
			Depth:      c.Agents.SearchDepth,
		},
		DetectThreshold:    c.Thresholds.Detect,
		PotentialThreshold: c.Thresholds.Potential,
		CommunicationRange: c.Agents.CommunicationRange,
		AllKnowing:         c.Agents.AllKnowing,
		Record:             policy,
	}
	if err := p.Validate(); err != nil {
		return agents.Params{}, ierrors.Join(ErrInvalid, err)
	}
	return p, nil
}

// Pipeline builds the token pipeline from the weights.
func (c *Config) Pipeline() (*tokens.Pipeline, error) {
	p, err := tokens.NewPipeline(c.Weights)
	if err != nil {
		return nil, ierrors.Join(ErrInvalid, err)
	}
	return p, nil
}

// SpawnConfig converts everything the spawner needs.
func (c *Config) SpawnConfig() (agents.SpawnConfig, error) {
	params, err := c.Params()
	if err != nil {
		return agents.SpawnConfig{}, err
	}
	pipeline, err := c.Pipeline()
	if err != nil {
		return agents.SpawnConfig{}, err
	}

	spawn := agents.DefaultSpawnConfig()
	spawn.Seed = c.Seed
	spawn.Params = params
	spawn.Pipeline = pipeline
	spawn.NoiseAmplitude = c.Observation.NoiseAmplitude
	return spawn, nil
}

// Interval parses the engine pacing interval.
func (c *Config) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Engine.Interval)
	if err != nil {
		return 0, ierrors.Join(ErrInvalid, err)
	}
	if d <= 0 {
		return 0, ierrors.Wrapf(ErrInvalid, "engine.interval %s must be positive", d)
	}
	return d, nil
}
