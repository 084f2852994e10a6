package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the wallet services. The three
// binaries share one schema; each reads only the sections it needs.
type Config struct {
	Environment    string               `mapstructure:"environment"`
	LogLevel       string               `mapstructure:"log_level"`
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Cassandra      CassandraConfig      `mapstructure:"cassandra"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Ledger         LedgerConfig         `mapstructure:"ledger"`
	Interbank      InterbankConfig      `mapstructure:"interbank"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig is the Postgres configuration for the balance service.
type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// CassandraConfig is the event store configuration for the ledger service.
type CassandraConfig struct {
	Hosts             []string `mapstructure:"hosts"`
	Port              int      `mapstructure:"port"`
	Keyspace          string   `mapstructure:"keyspace"`
	ReplicationFactor int      `mapstructure:"replication_factor"`
	LocalDC           string   `mapstructure:"local_dc"`
	TimeoutSeconds    int      `mapstructure:"timeout_seconds"`
	ConnectAttempts   int      `mapstructure:"connect_attempts"`
}

// RedisConfig backs the optional recipient lookup cache.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LedgerConfig carries the ledger service's collaborator endpoints and
// saga budgets.
type LedgerConfig struct {
	BalanceServiceURL       string   `mapstructure:"balance_service_url"`
	DirectoryServiceURL     string   `mapstructure:"directory_service_url"`
	InterbankServiceURL     string   `mapstructure:"interbank_service_url"`
	InterbankAPIKey         string   `mapstructure:"interbank_api_key"`
	Currency                string   `mapstructure:"currency"`
	OriginBank              string   `mapstructure:"origin_bank"`
	SupportedBanks          []string `mapstructure:"supported_banks"`
	BalanceTimeoutSeconds   int      `mapstructure:"balance_timeout_seconds"`
	DirectoryTimeoutSeconds int      `mapstructure:"directory_timeout_seconds"`
	InterbankTimeoutSeconds int      `mapstructure:"interbank_timeout_seconds"`
	HistoryLimit            int      `mapstructure:"history_limit"`
	RecipientCacheTTL       int      `mapstructure:"recipient_cache_ttl"`
}

// InterbankConfig configures the peer-bank simulator.
type InterbankConfig struct {
	ExpectedAPIKey string `mapstructure:"expected_api_key"`
	TransferLimit  string `mapstructure:"transfer_limit"`
	BankCode       string `mapstructure:"bank_code"`
}

// ReconciliationConfig configures the stranded-transaction sweeper.
type ReconciliationConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Schedule          string `mapstructure:"schedule"`
	PendingAgeMinutes int    `mapstructure:"pending_age_minutes"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	// Read from config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Build database URL if not provided
	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	return &config, nil
}

// ValidateLedger checks the settings the ledger binary cannot run without.
func (c *Config) ValidateLedger() error {
	var missing []string
	if c.Ledger.BalanceServiceURL == "" {
		missing = append(missing, "BALANCE_SERVICE_URL")
	}
	if c.Ledger.DirectoryServiceURL == "" {
		missing = append(missing, "DIRECTORY_SERVICE_URL")
	}
	if c.Ledger.InterbankServiceURL == "" {
		missing = append(missing, "INTERBANK_SERVICE_URL")
	}
	if c.Ledger.InterbankAPIKey == "" {
		missing = append(missing, "INTERBANK_API_KEY")
	}
	if len(c.Cassandra.Hosts) == 0 {
		missing = append(missing, "CASSANDRA_HOSTS")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateBalance checks the settings the balance binary cannot run without.
func (c *Config) ValidateBalance() error {
	if c.Database.URL == "" {
		return fmt.Errorf("missing required configuration: DATABASE_URL")
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "pixel_balance")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	viper.SetDefault("cassandra.hosts", []string{"localhost"})
	viper.SetDefault("cassandra.port", 9042)
	viper.SetDefault("cassandra.keyspace", "wallet_ledger")
	viper.SetDefault("cassandra.replication_factor", 1)
	viper.SetDefault("cassandra.local_dc", "datacenter1")
	viper.SetDefault("cassandra.timeout_seconds", 5)
	viper.SetDefault("cassandra.connect_attempts", 20)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("ledger.currency", "PEN")
	viper.SetDefault("ledger.origin_bank", "PIXEL_MONEY")
	viper.SetDefault("ledger.supported_banks", []string{"HAPPY_MONEY"})
	viper.SetDefault("ledger.balance_timeout_seconds", 5)
	viper.SetDefault("ledger.directory_timeout_seconds", 5)
	viper.SetDefault("ledger.interbank_timeout_seconds", 15)
	viper.SetDefault("ledger.history_limit", 50)
	viper.SetDefault("ledger.recipient_cache_ttl", 300)

	viper.SetDefault("interbank.transfer_limit", "10000")
	viper.SetDefault("interbank.bank_code", "HAPPY_MONEY")

	viper.SetDefault("reconciliation.enabled", true)
	viper.SetDefault("reconciliation.schedule", "@every 5m")
	viper.SetDefault("reconciliation.pending_age_minutes", 15)
}

// overrideFromEnv maps the flat env names used in deployments onto the
// nested config keys.
func overrideFromEnv() {
	bindings := map[string]string{
		"database.url":                  "DATABASE_URL",
		"cassandra.hosts":               "CASSANDRA_HOSTS",
		"cassandra.keyspace":            "CASSANDRA_KEYSPACE",
		"cassandra.replication_factor":  "CASSANDRA_REPLICATION_FACTOR",
		"ledger.balance_service_url":    "BALANCE_SERVICE_URL",
		"ledger.directory_service_url":  "DIRECTORY_SERVICE_URL",
		"ledger.interbank_service_url":  "INTERBANK_SERVICE_URL",
		"ledger.interbank_api_key":      "INTERBANK_API_KEY",
		"interbank.expected_api_key":    "EXPECTED_API_KEY",
	}
	for key, env := range bindings {
		viper.BindEnv(key, env)
	}
}
