package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
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

type upstreamMode string

const (
	upstreamHTTP     upstreamMode = "http"
	upstreamPostgres upstreamMode = "postgres"
)

const (
	defaultListenAddr     = ":8080"
	defaultCacheTTL       = 1 * time.Minute
	defaultUpstreamRPS    = 8.0
	defaultUpstreamWindow = 5 * time.Minute
)

type Config struct {
	listenAddr          string
	cacheTTL            time.Duration
	upstreamURL         string
	upstreamRPS         float64
	upstreamWindowLimit int
	upstreamWindow      time.Duration
	allowedOrigins      []string
	sentryDSN           string
	dBUsername          string
	dBPassword          string
	dBHost              string
	dBName              string
	mode                upstreamMode
	env                 environment
}

func (c *Config) ListenAddr() string {
	return c.listenAddr
}

func (c *Config) CacheTTL() time.Duration {
	return c.cacheTTL
}

func (c *Config) UpstreamURL() string {
	return c.upstreamURL
}

func (c *Config) UpstreamRPS() float64 {
	return c.upstreamRPS
}

// UpstreamWindowLimit is the max number of upstream requests per
// UpstreamWindow. 0 disables the quota.
func (c *Config) UpstreamWindowLimit() int {
	return c.upstreamWindowLimit
}

func (c *Config) UpstreamWindow() time.Duration {
	return c.upstreamWindow
}

// AllowedOrigins lists the domain suffixes allowed by CORS. Empty means
// browser clients are not expected.
func (c *Config) AllowedOrigins() []string {
	return c.allowedOrigins
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) DBUsername() string {
	return c.dBUsername
}

func (c *Config) DBPassword() string {
	return c.dBPassword
}

func (c *Config) DBHost() string {
	return c.dBHost
}

func (c *Config) DBName() string {
	return c.dBName
}

func (c *Config) UpstreamIsHTTP() bool {
	return c.mode == upstreamHTTP
}

func (c *Config) UpstreamIsPostgres() bool {
	return c.mode == upstreamPostgres
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
	return fmt.Sprintf("Config{env: %s, mode: %s, listenAddr: %s, cacheTTL: %s, upstreamRPS: %g, ...}", string(c.env), string(c.mode), c.listenAddr, c.cacheTTL, c.upstreamRPS)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("PROXYD_ENVIRONMENT")
	if !ok {
		return missingKey("PROXYD_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: PROXYD_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	mode := upstreamHTTP
	if rawMode, ok := os.LookupEnv("PROXYD_UPSTREAM_MODE"); ok {
		switch rawMode {
		case "http":
			mode = upstreamHTTP
		case "postgres":
			mode = upstreamPostgres
		default:
			return Config{}, fmt.Errorf("%w: PROXYD_UPSTREAM_MODE (%s)", ErrInvalidValue, rawMode)
		}
	}

	listenAddr := os.Getenv("PROXYD_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}

	cacheTTL := defaultCacheTTL
	if rawTTL, ok := os.LookupEnv("PROXYD_CACHE_TTL"); ok {
		parsed, err := time.ParseDuration(rawTTL)
		if err != nil || parsed <= 0 {
			return Config{}, fmt.Errorf("%w: PROXYD_CACHE_TTL (%s)", ErrInvalidValue, rawTTL)
		}
		cacheTTL = parsed
	}

	upstreamRPS := defaultUpstreamRPS
	if rawRPS, ok := os.LookupEnv("PROXYD_UPSTREAM_RPS"); ok {
		parsed, err := strconv.ParseFloat(rawRPS, 64)
		if err != nil || parsed <= 0 {
			return Config{}, fmt.Errorf("%w: PROXYD_UPSTREAM_RPS (%s)", ErrInvalidValue, rawRPS)
		}
		upstreamRPS = parsed
	}

	upstreamWindowLimit := 0
	if rawLimit, ok := os.LookupEnv("PROXYD_UPSTREAM_WINDOW_LIMIT"); ok {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed < 0 {
			return Config{}, fmt.Errorf("%w: PROXYD_UPSTREAM_WINDOW_LIMIT (%s)", ErrInvalidValue, rawLimit)
		}
		upstreamWindowLimit = parsed
	}

	upstreamWindow := defaultUpstreamWindow
	if rawWindow, ok := os.LookupEnv("PROXYD_UPSTREAM_WINDOW"); ok {
		parsed, err := time.ParseDuration(rawWindow)
		if err != nil || parsed <= 0 {
			return Config{}, fmt.Errorf("%w: PROXYD_UPSTREAM_WINDOW (%s)", ErrInvalidValue, rawWindow)
		}
		upstreamWindow = parsed
	}

	var allowedOrigins []string
	for _, origin := range strings.Split(os.Getenv("PROXYD_ALLOWED_ORIGINS"), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins = append(allowedOrigins, origin)
		}
	}

	upstreamURL := os.Getenv("PROXYD_UPSTREAM_URL")
	sentryDSN := os.Getenv("SENTRY_DSN")
	dbUsername := os.Getenv("DB_USERNAME")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbHost := os.Getenv("DB_HOST")
	dbName := os.Getenv("DB_NAME")

	if env == production || env == staging {
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
		if mode == upstreamHTTP && upstreamURL == "" {
			return missingKey("PROXYD_UPSTREAM_URL")
		}
		if mode == upstreamPostgres {
			if dbUsername == "" {
				return missingKey("DB_USERNAME")
			}
			if dbPassword == "" {
				return missingKey("DB_PASSWORD")
			}
			if dbHost == "" {
				return missingKey("DB_HOST")
			}
			if dbName == "" {
				return missingKey("DB_NAME")
			}
		}
	}

	return Config{
		listenAddr:          listenAddr,
		cacheTTL:            cacheTTL,
		upstreamURL:         upstreamURL,
		upstreamRPS:         upstreamRPS,
		upstreamWindowLimit: upstreamWindowLimit,
		upstreamWindow:      upstreamWindow,
		allowedOrigins:      allowedOrigins,
		sentryDSN:           sentryDSN,
		dBUsername:          dbUsername,
		dBPassword:          dbPassword,
		dBHost:              dbHost,
		dBName:              dbName,
		mode:                mode,
		env:                 env,
	}, nil
}
