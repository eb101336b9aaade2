// Package config loads go-affect settings from defaults, an optional YAML
// file, a .env file and AFFECT_* environment variables, in that order.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/teslashibe/go-affect/pkg/audioio"
	"github.com/teslashibe/go-affect/pkg/face"
	"github.com/teslashibe/go-affect/pkg/ingest"
	"github.com/teslashibe/go-affect/pkg/prosody"
	"github.com/teslashibe/go-affect/pkg/web"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. AFFECT_SERVER_ADDR.
const EnvPrefix = "AFFECT"

// LogConfig selects log level and output format.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" json:"level"`
	Format string `yaml:"format" mapstructure:"format" json:"format"`
}

// Config is the full application configuration.
type Config struct {
	Log    LogConfig      `yaml:"log" mapstructure:"log" json:"log"`
	Server web.Config     `yaml:"server" mapstructure:"server" json:"server"`
	Face   face.Config    `yaml:"face" mapstructure:"face" json:"face"`
	Voice  prosody.Config `yaml:"voice" mapstructure:"voice" json:"voice"`
	RTP    audioio.Config `yaml:"rtp" mapstructure:"rtp" json:"rtp"`
}

// Default returns the built-in configuration.
func Default() Config {
	rtp := audioio.DefaultConfig()
	rtp.Backend = audioio.BackendRTP

	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: web.DefaultConfig(),
		Face:   face.DefaultConfig(),
		Voice:  prosody.DefaultConfig(),
		RTP:    rtp,
	}
}

// Load builds the configuration. An empty path falls back to $AFFECT_CONFIG;
// when neither is set only defaults and the environment apply.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")

	base, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if err := c.Face.Validate(); err != nil {
		return fmt.Errorf("face: %w", err)
	}
	if err := c.Voice.Validate(); err != nil {
		return fmt.Errorf("voice: %w", err)
	}
	if err := c.RTP.Validate(); err != nil {
		return fmt.Errorf("rtp: %w", err)
	}
	return nil
}

// Pipeline returns the per-connection ingest settings.
func (c *Config) Pipeline() ingest.Config {
	p := ingest.DefaultConfig()
	p.Face = c.Face
	p.Voice = c.Voice
	return p
}

// YAML renders the configuration as a YAML document.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
