// Package config holds runtime configuration for the batching engine, split
// between compiled-in defaults (Default), environment variable overrides
// (FromEnv), and an optional YAML file (LoadFile).
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// KafkaConfig configures the optional Kafka sink. It is disabled unless
// Brokers is non-empty and Topic is set.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Enabled reports whether the Kafka sink should be wired in.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

// Config holds everything needed to stand up a Registry.
type Config struct {
	// BulkSize is the default flat batch size for new contexts created
	// through the demo CLI; the facade's Connect still takes an explicit
	// bulk size per spec.md §6.
	BulkSize int `yaml:"bulk_size"`

	// ConsoleWorkers is the worker count for the shared console sink
	// (default 1, per spec.md §3).
	ConsoleWorkers int `yaml:"console_workers"`

	// FileWorkers is the worker count for the shared file sink (default
	// hardware concurrency, per spec.md §3).
	FileWorkers int `yaml:"file_workers"`

	// FileDir is the directory bulk<...>.log files are written to.
	FileDir string `yaml:"file_dir"`

	// ConsoleRateLimit caps console writes per second; 0 disables limiting.
	ConsoleRateLimit float64 `yaml:"console_rate_limit"`

	// Kafka optionally enables a third sink publishing bulks to a topic.
	Kafka KafkaConfig `yaml:"kafka"`

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// MetricsAddr, if non-empty, is the address the demo CLI serves
	// /metrics on.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns a sensible configuration for local/demo use.
func Default() *Config {
	return &Config{
		BulkSize:         3,
		ConsoleWorkers:   1,
		FileWorkers:      runtime.NumCPU(),
		FileDir:          ".",
		ConsoleRateLimit: 0,
		LogLevel:         "info",
		MetricsAddr:      "",
	}
}

// FromEnv layers environment variable overrides onto Default().
func FromEnv() *Config {
	cfg := Default()

	if v := os.Getenv("BULKD_BULK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BulkSize = n
		}
	}
	if v := os.Getenv("BULKD_CONSOLE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ConsoleWorkers = n
		}
	}
	if v := os.Getenv("BULKD_FILE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FileWorkers = n
		}
	}
	if v := os.Getenv("BULKD_FILE_DIR"); v != "" {
		cfg.FileDir = v
	}
	if v := os.Getenv("BULKD_CONSOLE_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.ConsoleRateLimit = f
		}
	}
	if v := os.Getenv("BULKD_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("BULKD_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("BULKD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BULKD_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}

	return cfg
}

// LoadFile reads a YAML configuration file, layering it onto Default().
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
