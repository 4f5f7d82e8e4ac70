// Package config manages persistent host preferences for the duplex engine.
// Settings are stored as JSON at os.UserConfigDir()/duplexengine/config.json.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all persistent host preferences for a duplex engine instance.
type Config struct {
	EngineSampleRate int     `json:"engine_sample_rate"`
	EngineChannels   int     `json:"engine_channels"`
	FramesPerBlock   int     `json:"frames_per_block"`
	InputDeviceID    int     `json:"input_device_id"`
	OutputDeviceID   int     `json:"output_device_id"`
	DefaultRefGain   float64 `json:"default_ref_gain"`
	DefaultVocGain   float64 `json:"default_voc_gain"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		EngineSampleRate: 48000,
		EngineChannels:   2,
		FramesPerBlock:   256,
		InputDeviceID:    -1,
		OutputDeviceID:   -1,
		DefaultRefGain:   1.0,
		DefaultVocGain:   1.0,
	}
}

// Path returns the absolute path to the config file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "duplexengine", "config.json"), nil
}

// Load reads the config file and returns it. If the file is missing or
// unreadable, the default config is returned — never an error.
func Load() Config {
	path, err := Path()
	if err != nil {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default()
	}
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default()
	}
	return cfg
}

// Save writes cfg to disk, creating the directory if needed.
func Save(cfg Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
