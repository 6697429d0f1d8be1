// Package config loads service configuration from a config file and
// DEVTRACK_-prefixed environment variables via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/devtrack-app/devtrack/internal/util/urlvalidator"
)

// ProviderOAuth holds one provider's OAuth application settings.
type ProviderOAuth struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

// CORSConfig controls cross-origin access for the dashboard frontend.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

// Config is the full service configuration.
type Config struct {
	Server struct {
		Addr        string `mapstructure:"addr"`
		FrontendURL string `mapstructure:"frontend_url"`
	} `mapstructure:"server"`

	Security struct {
		// EncryptionSecret is the master secret for token encryption.
		// A 64-char hex string is used directly as key material; any
		// other value is stretched with scrypt.
		EncryptionSecret string `mapstructure:"encryption_secret"`
		// CookieSigningSecret signs the transient PKCE session cookie.
		CookieSigningSecret string `mapstructure:"cookie_signing_secret"`
		CookieSecure        bool   `mapstructure:"cookie_secure"`
	} `mapstructure:"security"`

	OAuth struct {
		Vercel   ProviderOAuth `mapstructure:"vercel"`
		Supabase ProviderOAuth `mapstructure:"supabase"`
		// StateStore selects the PKCE session backing: cookie or memory.
		StateStore string `mapstructure:"state_store"`
	} `mapstructure:"oauth"`

	Upstream struct {
		Timeout        time.Duration `mapstructure:"timeout"`
		SyncWorkers    int           `mapstructure:"sync_workers"`
		DeploymentPage int           `mapstructure:"deployment_page"`
	} `mapstructure:"upstream"`

	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	CORS CORSConfig `mapstructure:"cors"`

	RateLimit struct {
		Enabled bool          `mapstructure:"enabled"`
		Max     int           `mapstructure:"max"`
		Window  time.Duration `mapstructure:"window"`
	} `mapstructure:"rate_limit"`

	Log struct {
		Level      string `mapstructure:"level"`
		Format     string `mapstructure:"format"`
		FilePath   string `mapstructure:"file_path"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAgeDays int    `mapstructure:"max_age_days"`
	} `mapstructure:"log"`
}

// Provider returns the OAuth settings for the named provider.
func (c *Config) Provider(name string) (ProviderOAuth, bool) {
	switch strings.ToLower(name) {
	case "vercel":
		return c.OAuth.Vercel, true
	case "supabase":
		return c.OAuth.Supabase, true
	}
	return ProviderOAuth{}, false
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.frontend_url", "http://localhost:3000")
	v.SetDefault("oauth.state_store", "cookie")
	v.SetDefault("upstream.timeout", 30*time.Second)
	v.SetDefault("upstream.sync_workers", 8)
	v.SetDefault("upstream.deployment_page", 100)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.max", 60)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Keys without a meaningful default still need to be known to viper,
	// otherwise AutomaticEnv cannot surface them during Unmarshal.
	for _, key := range []string{
		"security.encryption_secret", "security.cookie_signing_secret",
		"oauth.vercel.client_id", "oauth.vercel.client_secret", "oauth.vercel.redirect_uri",
		"oauth.supabase.client_id", "oauth.supabase.client_secret", "oauth.supabase.redirect_uri",
		"database.dsn", "redis.addr", "redis.password", "log.file_path",
	} {
		v.SetDefault(key, "")
	}

	v.SetEnvPrefix("DEVTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Callback handlers build redirects from this base, so it must be a
	// well-formed absolute URL without a trailing slash. Plain http stays
	// acceptable for local development.
	frontendURL, err := urlvalidator.ValidateHTTPURL(cfg.Server.FrontendURL, true,
		urlvalidator.ValidationOptions{AllowPrivate: true})
	if err != nil {
		return nil, fmt.Errorf("server.frontend_url: %w", err)
	}
	cfg.Server.FrontendURL = frontendURL

	return &cfg, nil
}
