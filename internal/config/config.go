package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Market    MarketConfig
	Analysis  AnalysisConfig
	Assistant AssistantConfig
	Log       LogConfig
}

// ServerConfig defines the HTTP and WebSocket server settings.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	PushInterval time.Duration `mapstructure:"push_interval"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig defines the database connection settings.
// Driver is either "memory" or "postgres".
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// RedisConfig defines the market-update cache settings.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration `mapstructure:"ttl"`
}

// MarketConfig defines the market-data provider settings.
type MarketConfig struct {
	Provider        string
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	PerPage         int           `mapstructure:"per_page"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	RequestInterval time.Duration `mapstructure:"request_interval"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// AnalysisConfig defines how opportunity analysis runs are scheduled and stored.
type AnalysisConfig struct {
	// Interval schedules standalone analysis runs; zero leaves analysis to
	// the refresh cycle.
	Interval time.Duration `mapstructure:"interval"`
	// Supersede deactivates earlier active signals for the same token and
	// direction before a new one is stored.
	Supersede bool `mapstructure:"supersede"`
}

// AssistantConfig defines the trading assistant settings. An empty key
// leaves the assistant on its rule-based fallback.
type AssistantConfig struct {
	GeminiAPIKey    string  `mapstructure:"gemini_api_key"`
	Model           string  `mapstructure:"model"`
	Temperature     float32 `mapstructure:"temperature"`
	MaxOutputTokens int32   `mapstructure:"max_output_tokens"`
}

// LogConfig defines the logger settings.
type LogConfig struct {
	Level string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.push_interval", 5*time.Second)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "tierwatch")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "tierwatch")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 10*time.Minute)

	v.SetDefault("market.provider", "coingecko")
	v.SetDefault("market.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("market.api_key", "")
	v.SetDefault("market.per_page", 250)
	v.SetDefault("market.max_tokens", 500)
	v.SetDefault("market.request_interval", time.Second)
	v.SetDefault("market.refresh_interval", 5*time.Minute)
	v.SetDefault("market.timeout", 30*time.Second)

	v.SetDefault("analysis.interval", time.Duration(0))
	v.SetDefault("analysis.supersede", true)

	v.SetDefault("assistant.gemini_api_key", "")
	v.SetDefault("assistant.model", "gemini-2.5-flash")
	v.SetDefault("assistant.temperature", 0.8)
	v.SetDefault("assistant.max_output_tokens", 2000)

	v.SetDefault("log.level", "info")
}

// LoadConfig reads configuration from file or environment variables.
// A .env file next to the config is loaded first when present, and a missing
// config file leaves the defaults in place.
func LoadConfig(path string) (config Config, err error) {
	_ = godotenv.Load(filepath.Join(path, ".env"))

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("read config: %w", err)
		}
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("decode config: %w", err)
	}
	return config, nil
}
