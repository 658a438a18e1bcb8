package hubcli

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// Config holds the hub settings. Every field can be set from the environment; command-line flags
// override the environment.
type Config struct {
	Addr              string        `env:"SYNCSTORE_HUB_ADDR" envDefault:"127.0.0.1:8470"`
	DBPath            string        `env:"SYNCSTORE_HUB_DB_PATH" envDefault:"syncstore-hub.db"`
	AuthKey           string        `env:"SYNCSTORE_HUB_AUTH_KEY"`
	ReplayLength      int           `env:"SYNCSTORE_HUB_REPLAY_LENGTH" envDefault:"100"`
	HeartbeatInterval time.Duration `env:"SYNCSTORE_HUB_HEARTBEAT_INTERVAL" envDefault:"1m"`
	LogLevel          string        `env:"SYNCSTORE_HUB_LOG_LEVEL" envDefault:"info"`
}

// LoadConfig reads the configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func logLevelFromName(name string) (ldlog.LogLevel, error) {
	switch strings.ToLower(name) {
	case "debug":
		return ldlog.Debug, nil
	case "info", "":
		return ldlog.Info, nil
	case "warn":
		return ldlog.Warn, nil
	case "error":
		return ldlog.Error, nil
	case "none":
		return ldlog.None, nil
	}
	return ldlog.None, fmt.Errorf("invalid log level %q", name)
}
