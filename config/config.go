package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the service configuration
type Config struct {
	Environment   string              `mapstructure:"environment"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	ServiceBus    ServiceBusConfig    `mapstructure:"servicebus"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	NewRelic      NewRelicConfig      `mapstructure:"newrelic"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	APIToken        string        `mapstructure:"api_token"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	Name     string        `mapstructure:"name"`
	SSLMode  string        `mapstructure:"ssl_mode"`
	MaxConn  int           `mapstructure:"max_conn"`
	MaxIdle  int           `mapstructure:"max_idle"`
	MaxLife  time.Duration `mapstructure:"max_life"`
	Debug    bool          `mapstructure:"debug"`
}

// RedisConfig holds the Redis configuration
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Enabled  bool          `mapstructure:"enabled"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ServiceBusConfig holds the Azure Service Bus configuration
type ServiceBusConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	ERPQueue         string `mapstructure:"erp_queue"`
	Prefix           string `mapstructure:"prefix"`
	Enabled          bool   `mapstructure:"enabled"`
}

// ElasticsearchConfig holds the Elasticsearch configuration
type ElasticsearchConfig struct {
	URLs     []string `mapstructure:"urls"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	Index    string   `mapstructure:"index"`
	Enabled  bool     `mapstructure:"enabled"`
}

// NewRelicConfig holds the New Relic configuration
type NewRelicConfig struct {
	AppName    string `mapstructure:"app_name"`
	LicenseKey string `mapstructure:"license_key"`
	Enabled    bool   `mapstructure:"enabled"`
}

// GatewayConfig holds the backend gateway client configuration used by the
// headless reconciliation commands.
type GatewayConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds the logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Load reads configuration from config.yaml with environment variable
// overrides (DN_ prefix, dots replaced by underscores).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; env vars and defaults apply.
	}

	v.SetEnvPrefix("DN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8096)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "deliverynote_db")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conn", 20)
	v.SetDefault("database.max_idle", 5)
	v.SetDefault("database.max_life", time.Hour)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.ttl", time.Hour)

	v.SetDefault("servicebus.erp_queue", "erp-dn-updates")
	v.SetDefault("servicebus.enabled", false)

	v.SetDefault("elasticsearch.urls", []string{"http://localhost:9200"})
	v.SetDefault("elasticsearch.index", "dn-submissions")
	v.SetDefault("elasticsearch.enabled", false)

	v.SetDefault("newrelic.app_name", "Delivery Note Service")
	v.SetDefault("newrelic.enabled", false)

	v.SetDefault("gateway.base_url", "http://localhost:8096")
	v.SetDefault("gateway.timeout", 15*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)
}
