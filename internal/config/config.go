// Hasher: Neural Inference Engine Powered by SHA-256 ASICs
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package config loads run configuration from a .env file (if present,
// walking up from the working directory to find one) and environment
// variable overrides.
package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the set of knobs a usbsim run reads from the environment.
type Config struct {
	// DefaultFirmware is used when no firmware image is given on the
	// command line.
	DefaultFirmware string

	// MaxROMSize bounds how large a firmware image LoadROM will accept.
	MaxROMSize int

	// TraceCSVPath, if set, is where a CSV trace dump is written.
	TraceCSVPath string

	// HistoryDBPath is where the scenario-run history store lives.
	HistoryDBPath string

	// StatusAddr holds USBSIM_STATUS_ADDR. Nothing in usbsim reads it; the
	// status HTTP API starts only through "usbsim monitor --serve <addr>".
	StatusAddr string
}

var (
	loaded *Config
)

// Load reads .env (if found) once per process, then environment variable
// overrides, and returns the merged Config. Subsequent calls return the
// cached result.
func Load() *Config {
	if loaded != nil {
		return loaded
	}

	root := findProjectRoot()
	envPath := filepath.Join(root, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("config: no .env file found at %s", envPath)
	}

	cfg := &Config{
		DefaultFirmware: "firmware.bin",
		MaxROMSize:      64 * 1024,
		HistoryDBPath:   filepath.Join(root, "usbsim-history.db"),
	}

	if v := os.Getenv("USBSIM_DEFAULT_FIRMWARE"); v != "" {
		cfg.DefaultFirmware = v
	}
	if v := os.Getenv("USBSIM_MAX_ROM_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxROMSize = n
		}
	}
	if v := os.Getenv("USBSIM_TRACE_CSV"); v != "" {
		cfg.TraceCSVPath = v
	}
	if v := os.Getenv("USBSIM_HISTORY_DB"); v != "" {
		cfg.HistoryDBPath = v
	}
	if v := os.Getenv("USBSIM_STATUS_ADDR"); v != "" {
		cfg.StatusAddr = v
	}

	loaded = cfg
	return cfg
}

// findProjectRoot walks up from the working directory looking for a go.mod,
// checking the working directory itself first for a .env file.
func findProjectRoot() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if _, err := os.Stat(filepath.Join(cwd, ".env")); err == nil {
		return cwd
	}
	for {
		if _, err := os.Stat(filepath.Join(cwd, "go.mod")); err == nil {
			return cwd
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return cwd
		}
		cwd = parent
	}
}
