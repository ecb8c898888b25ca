// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Cache         CacheConfig        `mapstructure:"cache"`
	Flow          FlowConfig         `mapstructure:"flow"`
	Camunda       CamundaConfig      `mapstructure:"camunda"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	SessionIdleTTL  int    `mapstructure:"session_idle_ttl"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	ProfileIndex string   `mapstructure:"profile_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig selects the durable cache backing the answer store.
type CacheConfig struct {
	Backend   string `mapstructure:"backend"` // "redis" or "memory"
	KeyPrefix string `mapstructure:"key_prefix"`
	TTL       int    `mapstructure:"ttl"`            // milliseconds, 0 = no expiry
	MirrorTTL int    `mapstructure:"mirror_timeout"` // milliseconds per fire-and-forget write
}

// FlowConfig wires the engine to its catalogs and remote collaborators.
type FlowConfig struct {
	CatalogPath   string `mapstructure:"catalog_path"`
	SaveURL       string `mapstructure:"save_url"`
	UniquenessURL string `mapstructure:"uniqueness_url"`
	RemoteTimeout int    `mapstructure:"remote_timeout"` // milliseconds
	MaxChildren   int    `mapstructure:"max_children"`
}

type CamundaConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	BrokerAddress   string `mapstructure:"broker_address"`
	ReviewProcessID string `mapstructure:"review_process_id"`
	RequestTimeout  int    `mapstructure:"request_timeout"` // milliseconds
}

type NotificationConfig struct {
	AWSRegion     string `mapstructure:"aws_region"`
	EmailEnabled  bool   `mapstructure:"email_enabled"`
	EmailSender   string `mapstructure:"email_sender"`
	EventsEnabled bool   `mapstructure:"events_enabled"`
	EventTopicARN string `mapstructure:"event_topic_arn"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
