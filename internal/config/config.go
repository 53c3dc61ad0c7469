package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "GADGETSWAP"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "gadgetswap.db"
	defaultLogLevel     = "info"
	defaultCookieName   = "token"
	defaultTokenTTL     = time.Hour
	defaultRateLimit    = 20.0
	defaultRateBurst    = 40
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	DatabasePath      string
	LogLevel          string
	AuthSigningSecret string
	TokenTTL          time.Duration
	CookieName        string
	CookieSecure      bool
	AllowedOrigins    []string
	RequestsPerSecond float64
	RequestBurst      int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("auth.cookie_secure", false)
	configViper.SetDefault("auth.token_ttl", defaultTokenTTL)
	configViper.SetDefault("http.allowed_origins", []string{"http://localhost:3000"})
	configViper.SetDefault("http.requests_per_second", defaultRateLimit)
	configViper.SetDefault("http.request_burst", defaultRateBurst)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabasePath:      configViper.GetString("database.path"),
		LogLevel:          configViper.GetString("log.level"),
		AuthSigningSecret: configViper.GetString("auth.signing_secret"),
		TokenTTL:          configViper.GetDuration("auth.token_ttl"),
		CookieName:        configViper.GetString("auth.cookie_name"),
		CookieSecure:      configViper.GetBool("auth.cookie_secure"),
		AllowedOrigins:    configViper.GetStringSlice("http.allowed_origins"),
		RequestsPerSecond: configViper.GetFloat64("http.requests_per_second"),
		RequestBurst:      configViper.GetInt("http.request_burst"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.AuthSigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.CookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	return nil
}
