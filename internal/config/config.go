// Package config loads securechat settings through viper and turns the
// configured credentials into secure buffers.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/longkey1/securechat/internal/secure"
)

const (
	EnvPrefix      = "SECURECHAT"
	DefaultBaseURL = "https://api.groq.com"
	DefaultModel   = "llama-3.3-70b-versatile"
	DefaultAPIKey  = "$SECURECHAT_API_KEY"
)

// Config holds the client settings.
type Config struct {
	BaseURL    string `toml:"base_url" mapstructure:"base_url"`
	APIKey     string `toml:"api_key" mapstructure:"api_key"`           // Literal key or $VAR / ${VAR}
	APIKeyFile string `toml:"api_key_file" mapstructure:"api_key_file"` // Path or "-" for stdin; wins over api_key
	Model      string `toml:"model" mapstructure:"model"`
	LockPolicy string `toml:"lock_policy" mapstructure:"lock_policy"` // "best-effort" or "required"
}

// NewDefaultConfig returns a new Config with default values
func NewDefaultConfig() *Config {
	return &Config{
		BaseURL:    DefaultBaseURL,
		APIKey:     DefaultAPIKey,
		APIKeyFile: "",
		Model:      DefaultModel,
		LockPolicy: secure.LockBestEffort.String(),
	}
}

// SetDefaults registers the default values and the environment binding
// on v.
func SetDefaults(v *viper.Viper) {
	defaults := NewDefaultConfig()
	v.SetDefault("base_url", defaults.BaseURL)
	v.SetDefault("api_key", defaults.APIKey)
	v.SetDefault("api_key_file", defaults.APIKeyFile)
	v.SetDefault("model", defaults.Model)
	v.SetDefault("lock_policy", defaults.LockPolicy)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
}

// LoadConfig loads configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load unmarshals v, expands environment references and validates the
// lock policy.
func Load(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	config.BaseURL = strings.TrimRight(expandEnvVar(config.BaseURL), "/")
	config.APIKey = expandEnvVar(config.APIKey)

	if config.APIKeyFile != "" && config.APIKeyFile != "-" {
		path, err := ResolvePath(v, expandEnvVar(config.APIKeyFile))
		if err != nil {
			return nil, fmt.Errorf("error resolving api_key_file path '%s': %w", config.APIKeyFile, err)
		}
		config.APIKeyFile = path
	}

	if _, err := secure.ParseLockPolicy(config.LockPolicy); err != nil {
		return nil, err
	}

	return config, nil
}

// Policy returns the parsed lock policy.
func (c *Config) Policy() secure.LockPolicy {
	policy, _ := secure.ParseLockPolicy(c.LockPolicy)
	return policy
}

// OpenCredentials copies the base URL and API key into buffers from a.
// The key comes from api_key_file when set, otherwise from api_key.
// The caller owns both buffers.
func (c *Config) OpenCredentials(a *secure.Allocator) (baseURL, apiKey *secure.Buffer, err error) {
	if c.BaseURL == "" {
		return nil, nil, fmt.Errorf("base URL is not configured. Set it in config file (base_url) or environment variable (%s_BASE_URL)", EnvPrefix)
	}

	switch {
	case c.APIKeyFile != "":
		apiKey, err = a.ReadFromPath(c.APIKeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("error reading api_key_file: %w", err)
		}
	case c.APIKey != "":
		apiKey, err = a.Take([]byte(c.APIKey))
		if err != nil {
			return nil, nil, fmt.Errorf("API key: %w", err)
		}
	default:
		return nil, nil, fmt.Errorf("API key is not configured. Set it in config file (api_key or api_key_file) or environment variable (%s_API_KEY)", EnvPrefix)
	}

	baseURL, err = a.Take([]byte(c.BaseURL))
	if err != nil {
		_ = apiKey.Close()
		return nil, nil, fmt.Errorf("base URL: %w", err)
	}
	return baseURL, apiKey, nil
}
