package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/Amund211/thingcache/internal/config"
	"github.com/stretchr/testify/require"
)

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

var allVariables = []string{
	"THINGCACHE_ENVIRONMENT",
	"PORT",
	"DB_HOST",
	"DB_PASSWORD",
	"DB_USERNAME",
	"SENTRY_DSN",
	"THINGS_UPSTREAM_URL",
	"NEGATIVE_CACHE_TTL",
}

var databaseVariables = []string{"DB_HOST", "DB_USERNAME", "DB_PASSWORD"}

// Clear the environment for the duration of the test
func unsetAll(t *testing.T) {
	t.Helper()
	for _, variable := range allVariables {
		t.Setenv(variable, "")
	}
}

func setDatabaseVariables(t *testing.T) {
	t.Helper()
	for _, variable := range databaseVariables {
		t.Setenv(variable, variable)
	}
}

func TestGetConfig(t *testing.T) {
	type expected struct {
		port, dbHost, dbUsername, dbPassword, sentryDSN, upstream string
		negativeCacheTTL                                          time.Duration
		env                                                       environment
	}

	compareConfig := func(t *testing.T, want expected, conf config.Config) {
		t.Helper()
		require.Equal(t, want.port, conf.Port())
		require.Equal(t, want.dbHost, conf.DBHost())
		require.Equal(t, want.dbUsername, conf.DBUsername())
		require.Equal(t, want.dbPassword, conf.DBPassword())
		require.Equal(t, want.sentryDSN, conf.SentryDSN())
		require.Equal(t, want.upstream, conf.ThingsUpstreamURL())
		require.Equal(t, want.negativeCacheTTL, conf.NegativeCacheTTL())
		require.Equal(t, string(want.env), conf.Environment())
		require.Equal(t, want.env == production, conf.IsProduction())
		require.Equal(t, want.env == staging, conf.IsStaging())
		require.Equal(t, want.env == development, conf.IsDevelopment())
	}

	t.Run("environment is missing", func(t *testing.T) {
		unsetAll(t)
		// t.Setenv restores the variable after the test
		require.NoError(t, os.Unsetenv("THINGCACHE_ENVIRONMENT"))

		_, err := config.ConfigFromEnv()
		require.ErrorIs(t, err, config.ErrMissingRequiredValue)
	})

	t.Run("development defaults", func(t *testing.T) {
		unsetAll(t)
		t.Setenv("THINGCACHE_ENVIRONMENT", "development")

		conf, err := config.ConfigFromEnv()
		require.NoError(t, err)
		compareConfig(t, expected{port: "8123", env: development}, conf)
	})

	t.Run("values are read correctly", func(t *testing.T) {
		unsetAll(t)
		setDatabaseVariables(t)
		t.Setenv("PORT", "9000")
		t.Setenv("SENTRY_DSN", "SENTRY_DSN")
		t.Setenv("THINGS_UPSTREAM_URL", "https://things.example.com")
		t.Setenv("NEGATIVE_CACHE_TTL", "30s")

		for _, env := range []environment{production, staging, development} {
			t.Run(string(env), func(t *testing.T) {
				t.Setenv("THINGCACHE_ENVIRONMENT", string(env))

				conf, err := config.ConfigFromEnv()
				require.NoError(t, err)
				compareConfig(t, expected{
					port:             "9000",
					dbHost:           "DB_HOST",
					dbUsername:       "DB_USERNAME",
					dbPassword:       "DB_PASSWORD",
					sentryDSN:        "SENTRY_DSN",
					upstream:         "https://things.example.com",
					negativeCacheTTL: 30 * time.Second,
					env:              env,
				}, conf)
			})
		}
	})

	t.Run("production and staging fail when missing variables", func(t *testing.T) {
		for _, env := range []environment{production, staging} {
			t.Run(string(env), func(t *testing.T) {
				for _, variable := range append([]string{"SENTRY_DSN"}, databaseVariables...) {
					t.Run(variable, func(t *testing.T) {
						unsetAll(t)
						setDatabaseVariables(t)
						t.Setenv("SENTRY_DSN", "placeholder_value")
						t.Setenv("THINGCACHE_ENVIRONMENT", string(env))
						t.Setenv(variable, "")

						_, err := config.ConfigFromEnv()
						require.ErrorIs(t, err, config.ErrMissingRequiredValue)
					})
				}
			})
		}
	})

	t.Run("database is optional with an upstream", func(t *testing.T) {
		unsetAll(t)
		t.Setenv("THINGCACHE_ENVIRONMENT", "production")
		t.Setenv("SENTRY_DSN", "placeholder_value")
		t.Setenv("THINGS_UPSTREAM_URL", "http://things:8080")

		conf, err := config.ConfigFromEnv()
		require.NoError(t, err)
		require.Equal(t, "http://things:8080", conf.ThingsUpstreamURL())
	})

	t.Run("invalid values", func(t *testing.T) {
		cases := []struct {
			variable string
			value    string
		}{
			{variable: "THINGCACHE_ENVIRONMENT", value: ""},
			{variable: "THINGCACHE_ENVIRONMENT", value: "invalid"},
			{variable: "THINGCACHE_ENVIRONMENT", value: "my-env"},
			{variable: "THINGS_UPSTREAM_URL", value: "not a url"},
			{variable: "THINGS_UPSTREAM_URL", value: "ftp://things.example.com"},
			{variable: "NEGATIVE_CACHE_TTL", value: "soon"},
			{variable: "NEGATIVE_CACHE_TTL", value: "-1s"},
		}
		for _, c := range cases {
			t.Run(c.variable+"="+c.value, func(t *testing.T) {
				unsetAll(t)
				t.Setenv("THINGCACHE_ENVIRONMENT", "development")
				t.Setenv(c.variable, c.value)

				_, err := config.ConfigFromEnv()
				require.ErrorIs(t, err, config.ErrInvalidValue)
			})
		}
	})

	t.Run("NonSensitiveString hides secrets", func(t *testing.T) {
		unsetAll(t)
		setDatabaseVariables(t)
		t.Setenv("THINGCACHE_ENVIRONMENT", "development")
		t.Setenv("DB_PASSWORD", "hunter2")
		t.Setenv("SENTRY_DSN", "https://secret@sentry.example.com/1")

		conf, err := config.ConfigFromEnv()
		require.NoError(t, err)
		require.NotContains(t, conf.NonSensitiveString(), "hunter2")
		require.NotContains(t, conf.NonSensitiveString(), "secret")
		require.Contains(t, conf.NonSensitiveString(), "development")
	})
}
