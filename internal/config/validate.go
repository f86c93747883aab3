package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validatePresets(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.JobTimeoutSeconds < 0 {
		return errors.New("engine.job_timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validatePresets() error {
	for name := range c.Presets {
		if strings.TrimSpace(name) == "" {
			return errors.New("presets: preset names must not be empty")
		}
	}
	if c.Processing.Preset == "" {
		return nil
	}
	if _, ok := c.lookupPreset(c.Processing.Preset); !ok {
		return fmt.Errorf("processing.preset: unknown preset %q", c.Processing.Preset)
	}
	return nil
}

func (c *Config) validateProcessing() error {
	s, err := c.Settings("")
	if err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("processing: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
