package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	AI      AIConfig      `mapstructure:"ai"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Env             string        `mapstructure:"env"`
	APIKeys         []string      `mapstructure:"api_keys"`
	BasePath        string        `mapstructure:"base_path"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	CheckUpdates    bool          `mapstructure:"check_updates"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// DebugAddr serves expvar and pprof when set, e.g. "127.0.0.1:6060"
	DebugAddr string `mapstructure:"debug_addr"`
}

// AIConfig is the only section the gateway itself sees.
type AIConfig struct {
	Provider  string `mapstructure:"provider"`
	APIKey    string `mapstructure:"api_key"`
	ChatModel string `mapstructure:"chat_model"`
	BaseURL   string `mapstructure:"base_url"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	// Environment Variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Vendor-conventional names win over nothing, lose to AI_* overrides.
	_ = v.BindEnv("ai.api_key", "AI_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("ai.chat_model", "AI_CHAT_MODEL", "ANTHROPIC_MODEL")
	_ = v.BindEnv("ai.base_url", "AI_BASE_URL", "ANTHROPIC_BASE_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	cfg.AI.APIKey = resolveEnvRef(cfg.AI.APIKey)
	cfg.Cache.Redis.Password = resolveEnvRef(cfg.Cache.Redis.Password)
	for i, k := range cfg.Server.APIKeys {
		cfg.Server.APIKeys[i] = resolveEnvRef(k)
	}

	if _, noColor := os.LookupEnv("NO_COLOR"); noColor {
		cfg.Log.Color = false
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.api_keys", []string{})
	v.SetDefault("server.base_path", "/api/ai-sdk")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.check_updates", false)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.debug_addr", "")

	v.SetDefault("ai.provider", "anthropic")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.chat_model", "")
	v.SetDefault("ai.base_url", "")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "ai-sdk-gateway")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.color", true)
}

// resolveEnvRef expands values written as "ENV:NAME".
func resolveEnvRef(val string) string {
	if name, ok := strings.CutPrefix(val, "ENV:"); ok {
		return os.Getenv(name)
	}
	return val
}

// IsProduction reports whether the server runs with production defaults.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

// Redacted returns a copy safe to print: secrets keep only their last four
// characters.
func (c Config) Redacted() Config {
	c.AI.APIKey = mask(c.AI.APIKey)
	c.Cache.Redis.Password = mask(c.Cache.Redis.Password)

	keys := make([]string, len(c.Server.APIKeys))
	for i, k := range c.Server.APIKeys {
		keys[i] = mask(k)
	}
	c.Server.APIKeys = keys
	return c
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
