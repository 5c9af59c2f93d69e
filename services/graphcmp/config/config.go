// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the graphcmp service configuration.
//
// Configuration comes from three layers, later ones winning: built-in
// defaults, an optional YAML file, and GRAPHCMP_* environment variables.
// The merged result is validated with struct tags before use.
//
//	server:
//	  addr: ":8090"
//	  rate_limit: 20
//	  burst: 40
//	logging:
//	  level: info
//	compare:
//	  checks: [precisions, tensor_names, attributes]
//	accuracy:
//	  rel_threshold: 0.0001
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/graphcmp/services/graphcmp/accuracy"
	"github.com/AleutianAI/graphcmp/services/graphcmp/policy"
	"github.com/AleutianAI/graphcmp/services/graphcmp/telemetry"
)

// ErrInvalidConfig wraps every validation and override failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Logging   LoggingConfig    `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Compare   CompareConfig    `yaml:"compare"`
	Accuracy  accuracy.Config  `yaml:"accuracy"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8090".
	Addr string `yaml:"addr" validate:"required"`
	// RateLimit is the sustained request rate per second. Zero disables
	// limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	// Burst is the token bucket size.
	Burst int `yaml:"burst" validate:"gte=0"`
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes" validate:"gt=0"`
	// MaxNodes caps each decoded graph. Zero means unlimited.
	MaxNodes int `yaml:"max_nodes" validate:"gte=0"`
	// MaxBatch caps the pairs of one batch request.
	MaxBatch int `yaml:"max_batch" validate:"gte=1"`
	// Concurrency bounds pairs compared at once in a batch.
	Concurrency int `yaml:"concurrency" validate:"gte=1,lte=256"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	// Dir enables JSON file logging when set.
	Dir  string `yaml:"dir"`
	JSON bool   `yaml:"json"`
}

// CompareConfig selects the default comparison policy.
type CompareConfig struct {
	// Checks are policy flag names, "all" or "default".
	Checks []string `yaml:"checks" validate:"dive,policyflag"`
}

// Policy returns the policy named by Checks.
func (c CompareConfig) Policy() (policy.Policy, error) {
	return policy.Parse(c.Checks...)
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("policyflag", validatePolicyFlag)
}

func validatePolicyFlag(fl validator.FieldLevel) bool {
	_, err := policy.Parse(fl.Field().String())
	return err == nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8090",
			RateLimit:    20,
			Burst:        40,
			MaxBodyBytes: 32 << 20,
			MaxBatch:     64,
			Concurrency:  4,
		},
		Logging:   LoggingConfig{Level: "info"},
		Telemetry: telemetry.DefaultConfig(),
		Compare:   CompareConfig{Checks: []string{"default"}},
		Accuracy:  accuracy.DefaultConfig(),
	}
}

// Validate checks every struct tag.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path and
// the environment.
//
// Description:
//
//	An empty path skips the file layer. Unknown YAML keys are rejected so
//	typos surface instead of silently falling back to defaults.
//
// Inputs:
//
//	path - YAML file path, or "".
//
// Outputs:
//
//	Config - The validated configuration.
//	error - Read, decode, override or validation failure.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overrides fields from GRAPHCMP_* variables.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("GRAPHCMP_ADDR", &cfg.Server.Addr)
	str("GRAPHCMP_LOG_LEVEL", &cfg.Logging.Level)
	str("GRAPHCMP_LOG_DIR", &cfg.Logging.Dir)

	if v, ok := lookup("GRAPHCMP_CHECKS"); ok && v != "" {
		cfg.Compare.Checks = strings.Split(v, ",")
	}
	if v, ok := lookup("GRAPHCMP_RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: GRAPHCMP_RATE_LIMIT: %v", ErrInvalidConfig, err)
		}
		cfg.Server.RateLimit = f
	}
	if v, ok := lookup("GRAPHCMP_REL_THRESHOLD"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: GRAPHCMP_REL_THRESHOLD: %v", ErrInvalidConfig, err)
		}
		cfg.Accuracy.RelThreshold = f
	}
	return nil
}
