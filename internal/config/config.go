// Package config loads the process configuration once at startup. Values
// come from an optional YAML file overridden by ASSISTANT_* environment
// variables; the resulting struct is injected, never read ambiently.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all settings for the server and worker processes.
type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`

	Mongo struct {
		URI      string `mapstructure:"uri"`
		Database string `mapstructure:"database"`
	} `mapstructure:"mongo"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Queue struct {
		Key string `mapstructure:"key"`
	} `mapstructure:"queue"`

	LLM struct {
		Provider string `mapstructure:"provider"` // "gemini" or "openai"
		Model    string `mapstructure:"model"`
		APIKey   string `mapstructure:"api_key"`
	} `mapstructure:"llm"`

	Bridge struct {
		URL          string        `mapstructure:"url"`
		Timeout      time.Duration `mapstructure:"timeout"`
		PollInterval time.Duration `mapstructure:"poll_interval"`
	} `mapstructure:"bridge"`

	Voice struct {
		UpstreamURL string `mapstructure:"upstream_url"`
		APIKey      string `mapstructure:"api_key"`
	} `mapstructure:"voice"`

	Docs struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"docs"`

	Owner struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"owner"`
}

// Load reads configuration from path (optional, "" skips the file) plus the
// environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "assistant")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("queue.key", "assistant:tool_calls")
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.5-pro")
	v.SetDefault("bridge.url", "http://localhost:8090")
	v.SetDefault("bridge.timeout", time.Minute)
	v.SetDefault("bridge.poll_interval", 5*time.Second)
	v.SetDefault("docs.dir", "docs")
	v.SetDefault("owner.name", "the owner")

	v.SetEnvPrefix("ASSISTANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only surfaces keys viper already knows about. Keys with no
	// default (the secrets) must be bound explicitly or their env vars are
	// ignored on Unmarshal.
	for _, key := range []string{"llm.api_key", "redis.password", "voice.upstream_url", "voice.api_key"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: bind %q: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &cfg, nil
}
