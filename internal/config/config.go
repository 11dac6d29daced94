// Package config loads the settings of pictconv.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// DefaultPath is the configuration file read when no path is given.
const DefaultPath = "pictconv.json"

// Config represents the configuration file structure
type Config struct {
	Format    string `json:"format"`
	OutDir    string `json:"out_dir"`
	Workers   int    `json:"workers"`
	MaxPixels int    `json:"max_pixels"`
	Fit       string `json:"fit"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Format:  "png",
		Workers: runtime.NumCPU(),
	}
}

// Load reads the configuration file at path over the defaults. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the values that the converter cannot default.
func (c *Config) Validate() error {
	switch c.Format {
	case "png", "bmp", "tiff":
	default:
		return fmt.Errorf("unknown output format %q", c.Format)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.MaxPixels < 0 {
		return fmt.Errorf("max_pixels must not be negative, got %d", c.MaxPixels)
	}
	if _, _, err := ParseFit(c.Fit); err != nil {
		return err
	}
	return nil
}

// ParseFit parses a "WxH" box. The empty string means no box.
func ParseFit(s string) (w, h int, err error) {
	if s == "" {
		return 0, 0, nil
	}
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if ok {
		w, err = strconv.Atoi(ws)
		if err == nil {
			h, err = strconv.Atoi(hs)
		}
	}
	if !ok || err != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid fit %q, want WxH", s)
	}
	return w, h, nil
}
