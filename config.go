package wgrender

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gekko3d/wgrender/gpu"
)

// Config tunes a Renderer. Keys omitted from a YAML file keep their
// DefaultConfig value.
type Config struct {
	ClearColor  [4]float64        `yaml:"clear_color"`
	DepthFormat gpu.TextureFormat `yaml:"depth_format"`
	// FramesInFlight is how many queue submissions a replaced GPU handle
	// survives before it is released.
	FramesInFlight int `yaml:"frames_in_flight"`
	// ObjectCapacity is the initial number of per-object uniform slots.
	ObjectCapacity int `yaml:"object_capacity"`
	// FrustumCulling skips single-instance renderables whose bounds are
	// outside the camera frustum.
	FrustumCulling  bool `yaml:"frustum_culling"`
	ValidateShaders bool `yaml:"validate_shaders"`
	// Debug turns on per-pipeline and per-frame debug logging regardless
	// of LogLevel.
	Debug     bool   `yaml:"debug"`
	LogLevel  Level  `yaml:"log_level"`
	LogPrefix string `yaml:"log_prefix"`
}

func DefaultConfig() Config {
	return Config{
		ClearColor:      [4]float64{0.1, 0.1, 0.1, 1},
		DepthFormat:     gpu.TextureFormatDepth24Plus,
		FramesInFlight:  2,
		ObjectCapacity:  256,
		ValidateShaders: true,
		LogLevel:        LevelInfo,
		LogPrefix:       "wgrender",
	}
}

type ConfigError struct {
	Field string
	Value string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("wgrender: invalid config %s=%q", e.Field, e.Value)
}

func (c Config) Validate() error {
	if c.FramesInFlight < 1 {
		return &ConfigError{Field: "frames_in_flight", Value: fmt.Sprint(c.FramesInFlight)}
	}
	if c.ObjectCapacity < 1 {
		return &ConfigError{Field: "object_capacity", Value: fmt.Sprint(c.ObjectCapacity)}
	}
	if c.DepthFormat != gpu.TextureFormatUndefined && !c.DepthFormat.IsDepth() {
		return &ConfigError{Field: "depth_format", Value: c.DepthFormat.String()}
	}
	if !c.LogLevel.valid() {
		return &ConfigError{Field: "log_level", Value: c.LogLevel.String()}
	}
	return nil
}

// logger is the renderer's logger when no WithLogger option is given.
func (c Config) logger() *DefaultLogger {
	level := c.LogLevel
	if c.Debug {
		level = LevelDebug
	}
	return NewLogger(c.LogPrefix, level, os.Stdout, os.Stderr)
}

// ParseConfig reads YAML over DefaultConfig, so omitted keys keep their
// defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("wgrender: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("wgrender: load config: %w", err)
	}
	return ParseConfig(data)
}

type Option func(*Renderer)

func WithLogger(l Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.log = l
		}
	}
}
