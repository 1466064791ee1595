// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// config holds settings that can come from a JSON (with comments) file.
// Command line flags override anything set here.
type config struct {
	Capacity uint32 `json:"capacity,omitempty"`
	Layout   string `json:"layout,omitempty"`
	Mapper   string `json:"mapper,omitempty"`
	History  string `json:"history,omitempty"`
	Verbose  bool   `json:"verbose,omitempty"`
}

const defaultCapacity = 1024

func defaultConfig() config {
	return config{
		Layout:   "tagged",
		Mapper:   "default",
		History:  defaultHistoryFile(),
	}
}

// capacityOrDefault returns the capacity new files are created with.
func (c config) capacityOrDefault() uint32 {
	if c.Capacity == 0 {
		return defaultCapacity
	}
	return c.Capacity
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pmapctl_history")
}

// loadConfig reads the file at path over the defaults.  Fields missing from
// the file keep their default.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return config{}, fmt.Errorf("reading config: %w", err)
	}
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return config{}, fmt.Errorf("%s: invalid JSONC: %w", path, err)
	}

	var file config
	if err := json.Unmarshal(standardized, &file); err != nil {
		return config{}, fmt.Errorf("%s: invalid JSON: %w", path, err)
	}
	return mergeConfig(cfg, file), nil
}

func mergeConfig(base, over config) config {
	if over.Capacity != 0 {
		base.Capacity = over.Capacity
	}
	if over.Layout != "" {
		base.Layout = over.Layout
	}
	if over.Mapper != "" {
		base.Mapper = over.Mapper
	}
	if over.History != "" {
		base.History = over.History
	}
	if over.Verbose {
		base.Verbose = true
	}
	return base
}
