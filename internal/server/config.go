package server

import (
	"errors"
	"fmt"

	"github.com/openmined/syftvault/internal/server/blob"
)

const (
	DefaultAddr      = "127.0.0.1:8080"
	DefaultRateLimit = "600-M"
)

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	DataDir   string          `mapstructure:"data_dir"`
	Blob      blob.Config     `mapstructure:"blob"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type HTTPConfig struct {
	Addr     string `mapstructure:"addr"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

func (c *HTTPConfig) TLS() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

type RateLimitConfig struct {
	// Rate in limiter format, empty disables the limiter
	Rate string `mapstructure:"rate"`
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr required")
	}
	if (c.HTTP.CertFile == "") != (c.HTTP.KeyFile == "") {
		return errors.New("http.cert_file and http.key_file must be set together")
	}
	if c.DataDir == "" {
		return errors.New("data_dir required")
	}
	if err := c.Blob.Validate(); err != nil {
		return fmt.Errorf("blob: %w", err)
	}
	return nil
}
