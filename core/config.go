package core

import (
	"fmt"
	"math"
	"os"

	"github.com/BurntSushi/toml"
)

// SpeedMode selects the cycle driver's timing regime.
type SpeedMode int

const (
	Human SpeedMode = iota
	Fast
	Supercomputer
)

func (m SpeedMode) String() string {
	switch m {
	case Human:
		return "human"
	case Fast:
		return "fast"
	case Supercomputer:
		return "supercomputer"
	default:
		return "unknown"
	}
}

// CycleTiming configures the five-stage cognitive cycle. The stage fields
// must sum to CycleBaseMs within 1e-3 tolerance; the cycle driver divides
// every stage uniformly by the speed multiplier so stage ratios are
// invariant across speed regimes.
type CycleTiming struct {
	CycleBaseMs float64 `toml:"cycle_base_ms"`
	CycleMinMs  float64 `toml:"cycle_min_ms"`
	CycleMaxMs  float64 `toml:"cycle_max_ms"`
	TTrigger    float64 `toml:"t_trigger"`
	TAutoflow   float64 `toml:"t_autoflow"`
	TSelect     float64 `toml:"t_select"`
	TAssemble   float64 `toml:"t_assemble"`
	TAnchor     float64 `toml:"t_anchor"`

	// InterventionWindowMs is the time budget during which an assembled
	// thought may still be redirected before anchoring. Zero means derive
	// it from TAssemble (§9 open question: the source treats this both
	// ways, so both are supported).
	InterventionWindowMs float64 `toml:"intervention_window_ms"`
}

func defaultCycleTiming() CycleTiming {
	return CycleTiming{
		CycleBaseMs: 50.0,
		CycleMinMs:  1.0,
		CycleMaxMs:  1000.0,
		TTrigger:    5.0,
		TAutoflow:   10.0,
		TSelect:     15.0,
		TAssemble:   15.0,
		TAnchor:     5.0,
	}
}

func (c CycleTiming) stageSum() float64 {
	return c.TTrigger + c.TAutoflow + c.TSelect + c.TAssemble + c.TAnchor
}

func (c CycleTiming) validate() error {
	if math.Abs(c.stageSum()-c.CycleBaseMs) > 1e-3 {
		return &ConfigError{Field: "cycle_timing", Reason: fmt.Sprintf("stage sum %.6f != cycle_base_ms %.6f", c.stageSum(), c.CycleBaseMs)}
	}
	if c.CycleBaseMs < c.CycleMinMs || c.CycleBaseMs > c.CycleMaxMs {
		return &ConfigError{Field: "cycle_base_ms", Reason: "outside [cycle_min_ms, cycle_max_ms]"}
	}
	return nil
}

// InterventionWindow resolves the configured or derived intervention window.
func (c CycleTiming) InterventionWindow() float64 {
	if c.InterventionWindowMs > 0 {
		return c.InterventionWindowMs
	}
	return c.TAssemble
}

// Thresholds configures the Consolidator's fate rules (§4.8). Must satisfy
// Forget < Consolidate <= Permanent.
type Thresholds struct {
	Forget     float64 `toml:"forget"`
	Consolidate float64 `toml:"consolidate"`
	Permanent  float64 `toml:"permanent"`
}

func defaultThresholds() Thresholds {
	return Thresholds{Forget: 0.3, Consolidate: 0.7, Permanent: 0.9}
}

func (t Thresholds) validate() error {
	if !(t.Forget < t.Consolidate) {
		return &ConfigError{Field: "thresholds", Reason: "forget must be < consolidate"}
	}
	if !(t.Consolidate <= t.Permanent) {
		return &ConfigError{Field: "thresholds", Reason: "consolidate must be <= permanent"}
	}
	return nil
}

// Connection configures the alignment invariant (I2). Construction fails if
// Weight < Min.
type Connection struct {
	Weight float64 `toml:"weight"`
	Min    float64 `toml:"min"`
}

func defaultConnection() Connection {
	return Connection{Weight: 0.2, Min: 0.01}
}

func (c Connection) validate() error {
	if c.Min <= 0 {
		return &ConfigError{Field: "connection.min", Reason: "must be > 0"}
	}
	if c.Weight < c.Min {
		return &ConfigError{Field: "connection.weight", Reason: "below connection.min"}
	}
	return nil
}

// Speed configures the cycle driver's speed-ratio-invariant multiplier.
type Speed struct {
	ModeName   string  `toml:"mode"`
	Multiplier float64 `toml:"multiplier"`
}

func defaultSpeed() Speed {
	return Speed{ModeName: "human", Multiplier: 1}
}

func (s Speed) Mode() SpeedMode {
	switch s.ModeName {
	case "fast":
		return Fast
	case "supercomputer":
		return Supercomputer
	default:
		return Human
	}
}

func (s Speed) validate() error {
	if s.Multiplier < 1 || s.Multiplier > 10_000 {
		return &ConfigError{Field: "speed.multiplier", Reason: "must be in [1, 10000]"}
	}
	return nil
}

// Streams configures working-stream capacity, TTL and consumer-group name.
type Streams struct {
	WorkingMaxLen   int64   `toml:"working_maxlen"`
	WorkingTTLMs    float64 `toml:"working_ttl_ms"`
	ConsumerGroup   string  `toml:"consumer_group"`
	ConsumerName    string  `toml:"consumer_name"`
}

func defaultStreams() Streams {
	return Streams{WorkingMaxLen: 1000, WorkingTTLMs: 5000, ConsumerGroup: "attention", ConsumerName: "selector"}
}

func (s Streams) validate() error {
	if s.WorkingMaxLen <= 0 {
		return &ConfigError{Field: "streams.working_maxlen", Reason: "must be > 0"}
	}
	if s.ConsumerGroup == "" {
		return &ConfigError{Field: "streams.consumer_group", Reason: "must be non-empty"}
	}
	return nil
}

// Aggregation selects how spreading activation combines multiple paths to
// the same node.
type Aggregation int

const (
	Max Aggregation = iota
	Sum
)

// Spreading configures association-graph activation spreading (§4.9).
type Spreading struct {
	Depth          int     `toml:"depth"`
	Decay          float64 `toml:"decay"`
	MinWeight      float64 `toml:"min_weight"`
	AggregationName string `toml:"aggregation"`
	Bidirectional  bool    `toml:"bidirectional"`
	MaxActivation  float64 `toml:"max_activation"`
}

func defaultSpreading() Spreading {
	return Spreading{Depth: 2, Decay: 0.3, MinWeight: 0.1, AggregationName: "max", Bidirectional: false, MaxActivation: 1.0}
}

func (s Spreading) Aggregation() Aggregation {
	if s.AggregationName == "sum" {
		return Sum
	}
	return Max
}

func (s Spreading) validate() error {
	if s.Depth < 0 {
		return &ConfigError{Field: "spreading.depth", Reason: "must be >= 0"}
	}
	return nil
}

// Continuity configures identity flush cadence (§4.10).
type Continuity struct {
	FlushN       int `toml:"flush_n"`
	FlushSeconds int `toml:"flush_seconds"`
}

func defaultContinuity() Continuity {
	return Continuity{FlushN: 100, FlushSeconds: 30}
}

func (c Continuity) validate() error {
	if c.FlushN <= 0 || c.FlushSeconds <= 0 {
		return &ConfigError{Field: "continuity", Reason: "flush_n and flush_seconds must be > 0"}
	}
	return nil
}

// Weights are the composite-score weights for the Selector (§4.3). They
// must sum to 1 for the composite term; ConnectionWeight is carried
// separately via Connection.Weight.
type Weights struct {
	Importance float64 `toml:"importance"`
	Novelty    float64 `toml:"novelty"`
	Relevance  float64 `toml:"relevance"`
	Valence    float64 `toml:"valence"`
}

func defaultWeights() Weights {
	return Weights{Importance: 0.3, Novelty: 0.25, Relevance: 0.25, Valence: 0.2}
}

func (w Weights) validate() error {
	sum := w.Importance + w.Novelty + w.Relevance + w.Valence
	if math.Abs(sum-1.0) > 1e-6 {
		return &ConfigError{Field: "weights", Reason: fmt.Sprintf("must sum to 1, got %.6f", sum)}
	}
	return nil
}

// Config is the full, load-time-validated configuration for the cognitive
// core. MaxWindows enforces I1; MinConnection backstops I2 even if
// Connection.Min is misconfigured higher.
type Config struct {
	Name        string      `toml:"name"`
	MaxWindows  int         `toml:"max_windows"`
	VectorDim   int         `toml:"vector_dim"`
	CycleTiming CycleTiming `toml:"cycle_timing"`
	Thresholds  Thresholds  `toml:"thresholds"`
	Connection  Connection  `toml:"connection"`
	Speed       Speed       `toml:"speed"`
	Streams     Streams     `toml:"streams"`
	Spreading   Spreading   `toml:"spreading"`
	Continuity  Continuity  `toml:"continuity"`
	Weights     Weights     `toml:"weights"`
}

// MinConnection is the floor for connection_relevance and connection weight
// (I2). It is a package-level constant because I2 must hold regardless of
// configuration.
const MinConnection = 0.01

// DefaultConfig returns the spec's default configuration (human speed,
// default thresholds, default weights).
func DefaultConfig() Config {
	return Config{
		Name:        "daneel",
		MaxWindows:  7,
		VectorDim:   768,
		CycleTiming: defaultCycleTiming(),
		Thresholds:  defaultThresholds(),
		Connection:  defaultConnection(),
		Speed:       defaultSpeed(),
		Streams:     defaultStreams(),
		Spreading:   defaultSpreading(),
		Continuity:  defaultContinuity(),
		Weights:     defaultWeights(),
	}
}

// Validate checks every field per §6 ("all fields validated at load").
// A failure here is a ConfigError and is fatal: the process must exit.
func (c Config) Validate() error {
	if c.MaxWindows <= 0 {
		return &ConfigError{Field: "max_windows", Reason: "must be > 0"}
	}
	if c.VectorDim <= 0 {
		return &ConfigError{Field: "vector_dim", Reason: "must be > 0"}
	}
	for _, v := range []interface{ validate() error }{
		c.CycleTiming, c.Thresholds, c.Connection, c.Speed, c.Streams, c.Spreading, c.Continuity, c.Weights,
	} {
		if err := v.validate(); err != nil {
			return err
		}
	}
	return nil
}

// LoadConfig reads a TOML config file, overlays it on DefaultConfig, and
// validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, &ConfigError{Field: "path", Reason: err.Error()}
	}
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, &ConfigError{Field: "toml", Reason: err.Error()}
	}
	return cfg, cfg.Validate()
}
