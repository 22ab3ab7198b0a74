package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

const defaultPort = "8123"

type Config struct {
	port             string
	dBHost           string
	dBPassword       string
	dBUsername       string
	sentryDSN        string
	thingsUpstream   string
	negativeCacheTTL time.Duration
	env              environment
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) DBHost() string {
	return c.dBHost
}

func (c *Config) DBPassword() string {
	return c.dBPassword
}

func (c *Config) DBUsername() string {
	return c.dBUsername
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

// Base URL of the HTTP things service. Empty means things are read from the database.
func (c *Config) ThingsUpstreamURL() string {
	return c.thingsUpstream
}

// How long to remember that a thing does not exist. 0 disables negative caching.
func (c *Config) NegativeCacheTTL() time.Duration {
	return c.negativeCacheTTL
}

func (c *Config) Environment() string {
	return string(c.env)
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, port: %s, dbHost: %s, thingsUpstream: %s, negativeCacheTTL: %s, ...}",
		string(c.env), c.port, c.dBHost, c.thingsUpstream, c.negativeCacheTTL,
	)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}
	invalidValue := func(key, value string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, value)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("THINGCACHE_ENVIRONMENT")
	if !ok {
		return missingKey("THINGCACHE_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return invalidValue("THINGCACHE_ENVIRONMENT", rawEnv)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	dbHost := os.Getenv("DB_HOST")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbUsername := os.Getenv("DB_USERNAME")
	sentryDSN := os.Getenv("SENTRY_DSN")

	thingsUpstream := os.Getenv("THINGS_UPSTREAM_URL")
	if thingsUpstream != "" {
		parsed, err := url.Parse(thingsUpstream)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return invalidValue("THINGS_UPSTREAM_URL", thingsUpstream)
		}
	}

	var negativeCacheTTL time.Duration
	if rawTTL := os.Getenv("NEGATIVE_CACHE_TTL"); rawTTL != "" {
		parsed, err := time.ParseDuration(rawTTL)
		if err != nil || parsed < 0 {
			return invalidValue("NEGATIVE_CACHE_TTL", rawTTL)
		}
		negativeCacheTTL = parsed
	}

	if env == production || env == staging {
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
		if thingsUpstream == "" {
			if dbHost == "" {
				return missingKey("DB_HOST")
			}
			if dbUsername == "" {
				return missingKey("DB_USERNAME")
			}
			if dbPassword == "" {
				return missingKey("DB_PASSWORD")
			}
		}
	}

	return Config{
		port:             port,
		dBHost:           dbHost,
		dBPassword:       dbPassword,
		dBUsername:       dbUsername,
		sentryDSN:        sentryDSN,
		thingsUpstream:   thingsUpstream,
		negativeCacheTTL: negativeCacheTTL,
		env:              env,
	}, nil
}
