package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// config is read from the environment, after the .env file has been applied.
type config struct {
	BaseURL      string        `env:"WSCLIENT_BASE_URL"`
	Service      string        `env:"WSCLIENT_SERVICE"`
	SessionToken string        `env:"WSCLIENT_SESSION_TOKEN"`
	Accept       string        `env:"WSCLIENT_ACCEPT" envDefault:"application/json"`
	ContentType  string        `env:"WSCLIENT_CONTENT_TYPE" envDefault:"application/json"`
	Timeout      time.Duration `env:"WSCLIENT_TIMEOUT" envDefault:"30s"`

	Algorithm string        `env:"WSCLIENT_JWT_ALGORITHM" envDefault:"RS256"`
	KeyPath   string        `env:"WSCLIENT_JWT_KEY_PATH"`
	Issuer    string        `env:"WSCLIENT_JWT_ISSUER"`
	Subject   string        `env:"WSCLIENT_JWT_SUBJECT"`
	TTL       time.Duration `env:"WSCLIENT_JWT_TTL" envDefault:"20m"`

	// Audience switches session tokens to Google identity tokens.
	Audience       string `env:"WSCLIENT_ID_TOKEN_AUDIENCE"`
	ServiceAccount string `env:"WSCLIENT_ID_TOKEN_SERVICE_ACCOUNT"`
}

// defaultTimeout matches the gateway's own fallback for a zero HTTP timeout.
const defaultTimeout = 30 * time.Second

// normalize fills values that flags may have zeroed.
func (c *config) normalize() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

func defaultEnvPath() string {
	if path := os.Getenv("WSCLIENT_ENV_FILE"); path != "" {
		return path
	}
	return ".env"
}

// loadConfig applies the .env file at envPath (variables already set win) and parses the environment.
func loadConfig(envPath string) (config, error) {
	if err := loadEnvFile(envPath); err != nil {
		return config{}, err
	}
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// pairs collects repeated key=value flags in order.
type pairs []string

func (p *pairs) String() string {
	return strings.Join(*p, ",")
}

func (p *pairs) Set(value string) error {
	if !strings.Contains(value, "=") {
		return fmt.Errorf("%q is not key=value", value)
	}
	*p = append(*p, value)
	return nil
}

func (p pairs) each(fn func(key, value string)) {
	for _, kv := range p {
		key, value, _ := strings.Cut(kv, "=")
		fn(strings.TrimSpace(key), value)
	}
}
