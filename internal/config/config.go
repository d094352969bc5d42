// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

// Package config holds the YAML configuration of the gnssnav command.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Input formats
const (
	FormatNavLog = "navlog" // text log of raw navigation frames
	FormatUBX    = "ubx"    // u-blox binary (RXM-SFRBX)
)

type Config struct {
	Input   InputConfig   `yaml:"input"`
	Decoder DecoderConfig `yaml:"decoder"`
	Output  OutputConfig  `yaml:"output"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// Source of raw frames: a file, or a serial device when Device is set
type InputConfig struct {
	Format string `yaml:"format"`
	File   string `yaml:"file"`
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

type DecoderConfig struct {
	// Nil means the format default: on for navlog, off for ubx (the receiver strips the inversion)
	ParityCheck   *bool `yaml:"parity_check"`
	MaxIdleFrames int   `yaml:"max_idle_frames"`
	// Reference week for the 10-bit week number, 0 means the system clock
	RefWeek int `yaml:"ref_week"`
}

type OutputConfig struct {
	RinexNav string   `yaml:"rinex_nav"`
	Exclude  []string `yaml:"exclude"` // satellites, e.g. G01
	RunBy    string   `yaml:"run_by"`
}

type LogConfig struct {
	Level  string `yaml:"level"` // debug, info, warn, error
	JSON   bool   `yaml:"json"`
	Source bool   `yaml:"source"` // Add source file:line to records
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // e.g. ":9100", empty disables the endpoint
}

func Default() *Config {
	return &Config{
		Input: InputConfig{
			Format: FormatNavLog,
			Baud:   115200,
		},
		Decoder: DecoderConfig{
			MaxIdleFrames: 3000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load a YAML configuration, missing keys keep their defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	switch c.Input.Format {
	case FormatNavLog, FormatUBX:
	default:
		return fmt.Errorf("config: unknown input format %q", c.Input.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	if c.Decoder.MaxIdleFrames < 0 || c.Decoder.RefWeek < 0 {
		return fmt.Errorf("config: negative decoder setting")
	}
	return nil
}

// Parity check to apply for the configured input format
func (c *Config) ParityCheck() bool {
	if c.Decoder.ParityCheck != nil {
		return *c.Decoder.ParityCheck
	}
	return c.Input.Format != FormatUBX
}

func applyDefaults(c *Config) {
	d := Default()
	if c.Input.Format == "" {
		c.Input.Format = d.Input.Format
	}
	if c.Input.Baud == 0 {
		c.Input.Baud = d.Input.Baud
	}
	if c.Decoder.MaxIdleFrames == 0 {
		c.Decoder.MaxIdleFrames = d.Decoder.MaxIdleFrames
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}
