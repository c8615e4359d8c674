package internal

import (
	"fmt"
	"time"

	"support-chat/domain/attachment"
	"support-chat/services"

	"github.com/go-playground/validator/v10"
)

// Config is the environment of the chat backend.
type Config struct {
	Host              string        `env:"HOST,default=0.0.0.0"`
	Port              int           `env:"PORT,default=8080" validate:"min=1,max=65535"`
	PublicURL         string        `env:"PUBLIC_URL,required=true" validate:"url"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath     string        `env:"BLUGE_FILEPATH,required=true"`
	UploadDir         string        `env:"UPLOAD_DIR,required=true"`
	LimitMessages     *int          `env:"LIMIT_MESSAGES"`
	CharReplacement   string        `env:"CHARACTER_REPLACEMENT,default=*"`
	AuthSecret        string        `env:"AUTH_SECRET,required=true" validate:"min=16"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	MaxUploadBytes    int64         `env:"MAX_UPLOAD_BYTES,default=5242880" validate:"gt=0"`
	RateLimitPerMin   int           `env:"RATE_LIMIT_PER_MINUTE,default=120" validate:"gt=0"`
	RateLimitBurst    int           `env:"RATE_LIMIT_BURST,default=30" validate:"gt=0"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT,default=15s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	StatsInterval     time.Duration `env:"STATS_INTERVAL,default=10s"`
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := CharacterRune(c.CharReplacement); err != nil {
		return err
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Backend derives the backend settings. The upload size limit overrides the default policy.
func (c Config) Backend() services.BackendConfig {
	policy := attachment.DefaultPolicy()
	policy.MaxBytes = c.MaxUploadBytes
	return services.BackendConfig{
		UploadDir: c.UploadDir,
		PublicURL: c.PublicURL + "/v1/files",
		Policy:    policy,
	}
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
