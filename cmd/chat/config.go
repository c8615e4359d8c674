package main

import (
	"time"

	"support-chat/domain/chat"
	"support-chat/infrastructure/rest"
	"support-chat/projection"
	"support-chat/services"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerURL string `envconfig:"SERVER_URL" default:"http://localhost:8080"`
	Token     string `envconfig:"TOKEN" required:"true"`
	// CHAT_COUNTERPART narrows an admin's room list to BUYER or SELLER rooms
	Counterpart string `envconfig:"COUNTERPART"`
	Clock       string `envconfig:"CLOCK" default:"24h"`
	Timezone    string `envconfig:"TIMEZONE"`
	// CHAT_COLOURS enables colorized output
	Colours     bool          `envconfig:"COLOURS" default:"true"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"WARN"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"10s"`
	MaxFailures uint32        `envconfig:"MAX_FAILURES" default:"5"`
	OpenTimeout time.Duration `envconfig:"OPEN_TIMEOUT" default:"30s"`
}

// LoadConfig reads the CHAT_ prefixed environment.
func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("chat", &cfg)
	return cfg, err
}

func (c Config) Client() rest.ClientConfig {
	return rest.ClientConfig{Timeout: c.Timeout, MaxFailures: c.MaxFailures, OpenTimeout: c.OpenTimeout}
}

func (c Config) Options() (services.Options, error) {
	opts := services.Options{Clock: projection.Clock24}
	if c.Clock == "12h" {
		opts.Clock = projection.Clock12
	}
	if c.Counterpart != "" {
		role, err := chat.ParseRole(c.Counterpart)
		if err != nil {
			return opts, err
		}
		opts.CounterpartRole = role
	}
	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return opts, err
		}
		opts.Location = loc
	}
	return opts, nil
}
