package crd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/nikita-mazotov/CubeSat-CRD-public/internal/artifact"
)

// ErrInvalidConfig wraps every config decoding or validation error.
var ErrInvalidConfig = errors.New("invalid config")

// EnvPrefix prefixes every environment override, e.g. CRD_EVENTS.
const EnvPrefix = "CRD_"

type LogCfg struct {
	Level  string `json:"level" yaml:"level" env:"LEVEL" validate:"omitempty,oneof=trace debug info warn warning error disabled off"`
	Format string `json:"format" yaml:"format" env:"FORMAT" validate:"omitempty,oneof=console json"`
}

type OutputCfg struct {
	Driver    artifact.Driver   `json:"driver" yaml:"driver" env:"DRIVER" validate:"omitempty,oneof=fs memory s3"`
	Dir       string            `json:"dir" yaml:"dir" env:"DIR"`
	Name      string            `json:"name" yaml:"name" env:"NAME"`
	Timestamp bool              `json:"timestamp" yaml:"timestamp" env:"TIMESTAMP"`
	Overwrite *bool             `json:"overwrite,omitempty" yaml:"overwrite,omitempty" env:"OVERWRITE"`
	Precision int               `json:"precision" yaml:"precision" env:"PRECISION" validate:"gte=0,lte=17"`
	SQLite    string            `json:"sqlite" yaml:"sqlite" env:"SQLITE"`
	S3        artifact.S3Config `json:"s3" yaml:"s3" envPrefix:"S3_"`
}

type SourceCfg struct {
	StepsPerEvent  int  `json:"steps_per_event" yaml:"steps_per_event" env:"STEPS_PER_EVENT" validate:"gte=0"`
	PhotonFraction Real `json:"photon_fraction" yaml:"photon_fraction" env:"PHOTON_FRACTION" validate:"gte=0,lte=1"`
	MeanDepositEV  Real `json:"mean_deposit_ev" yaml:"mean_deposit_ev" env:"MEAN_DEPOSIT_EV" validate:"gte=0"`
	PhotonEnergyEV Real `json:"photon_energy_ev" yaml:"photon_energy_ev" env:"PHOTON_ENERGY_EV" validate:"gte=0"`
	TimeSpanNS     Real `json:"time_span_ns" yaml:"time_span_ns" env:"TIME_SPAN_NS" validate:"gte=0"`
}

// RetentionCfg holds one policy per category.
type RetentionCfg struct {
	Step RetentionPolicy `json:"step" yaml:"step"`
	SiPM RetentionPolicy `json:"sipm" yaml:"sipm"`
	MC   RetentionPolicy `json:"mc" yaml:"mc"`
}

// Policies returns the policies indexed by category.
func (r RetentionCfg) Policies() [NumCategories]RetentionPolicy {
	var p [NumCategories]RetentionPolicy
	p[CategoryStep], p[CategorySiPM], p[CategoryMC] = r.Step, r.SiPM, r.MC
	return p
}

// Config is a complete run configuration.
type Config struct {
	Events         int          `json:"events" yaml:"events" env:"EVENTS" validate:"gte=0"`
	Workers        int          `json:"workers" yaml:"workers" env:"WORKERS" validate:"gte=0"`
	Seed           int64        `json:"seed" yaml:"seed" env:"SEED"`
	ScoringVolume  string       `json:"scoring_volume" yaml:"scoring_volume" env:"SCORING_VOLUME" validate:"required"`
	DetectorVolume string       `json:"detector_volume" yaml:"detector_volume" env:"DETECTOR_VOLUME" validate:"required"`
	MetricsAddr    string       `json:"metrics_addr" yaml:"metrics_addr" env:"METRICS_ADDR" validate:"omitempty,hostname_port"`
	Log            LogCfg       `json:"log" yaml:"log" envPrefix:"LOG_"`
	Output         OutputCfg    `json:"output" yaml:"output" envPrefix:"OUTPUT_"`
	Source         SourceCfg    `json:"source" yaml:"source" envPrefix:"SOURCE_"`
	Retention      RetentionCfg `json:"retention" yaml:"retention"`
	Geometry       []VolumeCfg  `json:"geometry,omitempty" yaml:"geometry,omitempty" validate:"omitempty,dive"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{Events: Events}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads path (JSON, or YAML for .yaml/.yml), overlays CRD_*
// environment variables, fills defaults and validates. An empty path
// means defaults plus environment. Events is preset so that an explicit
// zero from the file or CRD_EVENTS gives an empty run, like --events 0.
func LoadConfig(path string) (*Config, error) {
	cfg := Config{Events: Events}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := decodeConfig(path, data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrInvalidConfig, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeConfig(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(cfg)
	}
}

func (c *Config) applyDefaults() {
	if c.ScoringVolume == "" {
		c.ScoringVolume = ScoringVolumeName
	}
	if c.DetectorVolume == "" {
		c.DetectorVolume = DetectorVolumeName
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Output.Driver == "" {
		c.Output.Driver = artifact.DriverFilesystem
	}
	if c.Output.Dir == "" {
		c.Output.Dir = OutputDir
	}
	if c.Output.Name == "" {
		c.Output.Name = OutputName
	}
	if c.Output.Overwrite == nil {
		on := true
		c.Output.Overwrite = &on
	}
	if c.Output.Precision <= 0 {
		c.Output.Precision = CSVPrecision
	}
	if c.Source.StepsPerEvent <= 0 {
		c.Source.StepsPerEvent = StepsPerEvent
	}
	if c.Source.PhotonFraction <= 0 {
		c.Source.PhotonFraction = PhotonFraction
	}
	if c.Source.MeanDepositEV <= 0 {
		c.Source.MeanDepositEV = MeanDepositEV
	}
	if c.Source.PhotonEnergyEV <= 0 {
		c.Source.PhotonEnergyEV = PhotonEnergyEV
	}
	if c.Source.TimeSpanNS <= 0 {
		c.Source.TimeSpanNS = TimeSpanNS
	}
	if len(c.Geometry) == 0 {
		c.Geometry = DefaultVolumes()
	}
}

// Validate checks struct tags, retention policies and the S3 settings.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for _, p := range []struct {
		name string
		p    RetentionPolicy
	}{{"step", c.Retention.Step}, {"sipm", c.Retention.SiPM}, {"mc", c.Retention.MC}} {
		if err := p.p.Validate(); err != nil {
			return fmt.Errorf("%w: retention.%s: %w", ErrInvalidConfig, p.name, err)
		}
	}
	if c.Output.Driver == artifact.DriverS3 && c.Output.S3.Bucket == "" {
		return fmt.Errorf("%w: output.s3.bucket is required for the s3 driver", ErrInvalidConfig)
	}
	return nil
}

// Overwrite reports whether an existing artifact may be replaced.
func (c *Config) Overwrite() bool { return c.Output.Overwrite == nil || *c.Output.Overwrite }

// ArtifactConfig returns the store settings of the output section.
func (c *Config) ArtifactConfig() artifact.Config {
	return artifact.Config{Driver: c.Output.Driver, Dir: c.Output.Dir, S3: c.Output.S3}
}

// UniformSource builds the stand-in step source over g.
func (c *Config) UniformSource(g *BoxGeometry) *UniformSource {
	return &UniformSource{
		Geometry:       g,
		Steps:          c.Source.StepsPerEvent,
		PhotonFraction: c.Source.PhotonFraction,
		MeanDeposit:    c.Source.MeanDepositEV,
		PhotonEnergy:   c.Source.PhotonEnergyEV,
		TimeSpan:       c.Source.TimeSpanNS,
	}
}
