// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the top-level mend configuration, loaded from YAML.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after creation.
type Config struct {
	// LLM contains gateway settings.
	LLM LLMConfig `json:"llm" yaml:"llm"`

	// Agent contains episode loop settings.
	Agent AgentConfig `json:"agent" yaml:"agent"`

	// Sandbox contains Python executor settings.
	Sandbox SandboxConfig `json:"sandbox" yaml:"sandbox"`

	// Logging contains log output settings.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// LLMConfig selects and tunes the gateway backend. Credentials and
// endpoints come from the environment (OLLAMA_BASE_URL, OLLAMA_MODEL,
// OPENAI_API_KEY, OPENAI_MODEL), not the file.
type LLMConfig struct {
	Backend     string   `json:"backend" yaml:"backend" validate:"required,oneof=ollama openai"`
	Temperature *float32 `json:"temperature" yaml:"temperature" validate:"omitempty,gte=0,lte=2"`
	TopP        *float32 `json:"top_p" yaml:"top_p" validate:"omitempty,gt=0,lte=1"`
	MaxTokens   *int     `json:"max_tokens" yaml:"max_tokens" validate:"omitempty,gt=0"`
	Stop        []string `json:"stop" yaml:"stop"`
}

// AgentConfig tunes the episode loop.
type AgentConfig struct {
	MaxIterations int    `json:"max_iterations" yaml:"max_iterations" validate:"gt=0,lte=64"`
	Policy        string `json:"policy" yaml:"policy" validate:"oneof=verify_first accept_final"`
	FailureMarker string `json:"failure_marker" yaml:"failure_marker" validate:"required"`
	NudgeBound    int    `json:"nudge_bound" yaml:"nudge_bound" validate:"gte=0,lte=10"`
}

// SandboxConfig tunes the Python executor.
type SandboxConfig struct {
	Python         string `json:"python" yaml:"python" validate:"required"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds" validate:"gt=0,lte=600"`
	MaxOutputBytes int    `json:"max_output_bytes" yaml:"max_output_bytes" validate:"gt=0"`
}

// LoggingConfig controls log output. LogDir enables a JSON log file
// in addition to stderr; ~ expands to the home directory.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	LogDir string `json:"log_dir" yaml:"log_dir"`
	JSON   bool   `json:"json" yaml:"json"`
	Quiet  bool   `json:"quiet" yaml:"quiet"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Backend: "ollama",
		},
		Agent: AgentConfig{
			MaxIterations: 8,
			Policy:        "verify_first",
			FailureMarker: "ASSERTION_FAILED",
			NudgeBound:    2,
		},
		Sandbox: SandboxConfig{
			Python:         "python3",
			TimeoutSeconds: 10,
			MaxOutputBytes: 64 * 1024,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file over the defaults and validates the
// result. An empty path returns the validated defaults.
//
// Outputs:
//
//	Config - The effective configuration
//	error - Read, parse, or validation failure
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read the config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse the config file: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
