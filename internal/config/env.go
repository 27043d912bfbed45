// Package config holds the CLI settings: process-wide settings from the
// environment and the YAML check list.
package config

import (
	"os"
	"time"

	"github.com/BigKAA/infraprobe/infraprobe"
)

// Settings are the global CLI settings. Flags override them.
type Settings struct {
	Timeout  time.Duration // per probe
	LogDir   string        // empty = no log file
	LogLevel string
}

// FromEnv reads INFRAPROBE_TIMEOUT, INFRAPROBE_LOG_DIR and
// INFRAPROBE_LOG_LEVEL. Unparseable or out of range values keep the default.
func FromEnv() Settings {
	timeout := infraprobe.DefaultTimeout
	if v := os.Getenv("INFRAPROBE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= infraprobe.MinTimeout && d <= infraprobe.MaxTimeout {
			timeout = d
		}
	}

	level := os.Getenv("INFRAPROBE_LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	return Settings{
		Timeout:  timeout,
		LogDir:   os.Getenv("INFRAPROBE_LOG_DIR"),
		LogLevel: level,
	}
}
