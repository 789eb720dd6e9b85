// internal/config/env.go
package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
)

// Env holds the process environment overrides.
type Env struct {
	ConfigPath     string `env:"ECAT_CONFIG"`
	Sim            bool   `env:"ECAT_SIM" envDefault:"false"`
	Listen         string `env:"ECAT_LISTEN"`
	StatusEndpoint string `env:"ECAT_STATUS_ENDPOINT"`
	RTDisable      bool   `env:"ECAT_RT_DISABLE" envDefault:"false"`
}

// ParseEnv reads Env from the process environment.
func ParseEnv() (Env, error) {
	return parseEnv(env.Options{})
}

func parseEnv(opts env.Options) (Env, error) {
	var e Env
	if err := env.Parse(&e, opts); err != nil {
		return Env{}, fmt.Errorf("config: env: %w", err)
	}
	return e, nil
}

// Apply overlays the environment onto cfg. Empty values change nothing.
// MUST be called before Validate.
func (e Env) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if e.Listen != "" {
		cfg.Feed.Listen = e.Listen
	}
	if e.StatusEndpoint != "" {
		if cfg.StatusMemory == nil {
			cfg.StatusMemory = &StatusMemoryConfig{}
		}
		cfg.StatusMemory.Endpoint = e.StatusEndpoint
	}
	if e.RTDisable {
		cfg.Realtime.Enabled = false
	}
}
