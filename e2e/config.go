package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerURL string `envconfig:"CHATD_URL"`
	// E2E_AUTH_SECRET must match the AUTH_SECRET of the running chatd
	AuthSecret string `envconfig:"E2E_AUTH_SECRET"`
	// E2E_DEBUG_JSON allows dumping every response body as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
