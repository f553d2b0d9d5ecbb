package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration. Flags and env vars override whatever
// the optional YAML file sets.
type Config struct {
	Adapter     string        `yaml:"adapter"`
	FridgeAddr  string        `yaml:"fridge_addr"`
	Pollrate    time.Duration `yaml:"pollrate"`
	Timeout     time.Duration `yaml:"timeout"`
	HTTPPort    string        `yaml:"http_port"`
	StoragePath string        `yaml:"storage_path"`
	HomekitPin  string        `yaml:"homekit_pin"`
	DualZone    bool          `yaml:"dual_zone"`
}

func loadConfig(path string) (Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, nil
}
