// Package broker provides the Redis-backed FIFO queue adapter between the
// ingress and the worker pool.
package broker

import (
	"errors"
	"strings"

	"github.com/aggregator-io/aggregator/internal/config"
)

const defaultBrokerURL = "redis://broker:6379/0"

// ErrBrokerURLEmpty is returned when the broker url is an empty string.
var ErrBrokerURLEmpty = errors.New("broker URL cannot be empty")

// Config holds broker connection configuration.
type Config struct {
	brokerURL string
}

// LoadConfig loads broker configuration from environment variables with
// fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		brokerURL: config.GetEnvStr("BROKER_URL", defaultBrokerURL),
	}
}

// Validate checks if the broker configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.brokerURL) == "" {
		return ErrBrokerURLEmpty
	}

	return nil
}

// URL returns the raw broker connection URL.
func (c *Config) URL() string {
	return c.brokerURL
}

// MaskBrokerURL returns a masked brokerURL safe for logging.
func (c *Config) MaskBrokerURL() string {
	return maskURL(c.brokerURL)
}

// maskURL masks the password component of a connection URL, if any.
func maskURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	schemeEnd := strings.Index(rawURL, "://")
	if schemeEnd == -1 {
		return rawURL
	}

	afterScheme := rawURL[schemeEnd+3:]

	lastAtIndex := strings.LastIndex(afterScheme, "@")
	if lastAtIndex == -1 {
		return rawURL
	}

	userInfo := afterScheme[:lastAtIndex]

	colonIndex := strings.Index(userInfo, ":")
	if colonIndex == -1 {
		return rawURL
	}

	username := userInfo[:colonIndex]
	password := userInfo[colonIndex+1:]

	if password == "" {
		return rawURL
	}

	scheme := rawURL[:schemeEnd]
	hostAndRest := afterScheme[lastAtIndex:]

	return scheme + "://" + username + ":***" + hostAndRest
}
