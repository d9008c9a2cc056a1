// SPDX-License-Identifier: MPL-2.0

// Package config loads the engine's environment-variable settings into a
// typed Settings struct.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvDisable disables injection entirely when set to a truthy value
	// ("1", "true", "yes", case-insensitive).
	EnvDisable = "DISABLE_RATLS_PRELOAD"

	// EnvOverride names the library path override variable.
	EnvOverride = "RATLS_PRELOAD_SO"

	// EnvOverrideLegacy is the older override name, still honored; the
	// newer EnvOverride wins when both are set.
	EnvOverrideLegacy = "RATLS_PRELOAD_PATH"

	// EnvLdconfigTimeout overrides the linker-cache query timeout, parsed
	// as a Go duration (e.g. "10s").
	EnvLdconfigTimeout = "RATLS_LDCONFIG_TIMEOUT"
)

// Settings holds the engine's runtime toggles.
type Settings struct {
	// DisablePreload skips all injection work when true.
	DisablePreload bool

	// PreloadPathOverride short-circuits library lookup when non-empty.
	PreloadPathOverride string

	// LdconfigTimeout bounds the ldconfig subprocess.
	LdconfigTimeout time.Duration
}

// Defaults returns the settings used when no environment overrides are set.
func Defaults() Settings {
	return Settings{
		LdconfigTimeout: 5 * time.Second,
	}
}

// Load reads the settings from the environment.
func Load() (Settings, error) {
	v := viper.New()

	defaults := Defaults()
	v.SetDefault("disable_preload", "")
	v.SetDefault("preload_path", "")
	v.SetDefault("ldconfig_timeout", defaults.LdconfigTimeout)

	if err := v.BindEnv("disable_preload", EnvDisable); err != nil {
		return defaults, err
	}
	if err := v.BindEnv("preload_path", EnvOverride, EnvOverrideLegacy); err != nil {
		return defaults, err
	}
	if err := v.BindEnv("ldconfig_timeout", EnvLdconfigTimeout); err != nil {
		return defaults, err
	}

	s := Defaults()
	s.DisablePreload = TruthyFlag(v.GetString("disable_preload"))
	s.PreloadPathOverride = v.GetString("preload_path")
	if d := v.GetDuration("ldconfig_timeout"); d > 0 {
		s.LdconfigTimeout = d
	}

	return s, nil
}

// TruthyFlag reports whether value matches one of the recognized disable
// flags ("1", "true", "yes"), case-insensitively.
func TruthyFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
