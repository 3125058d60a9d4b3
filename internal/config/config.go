package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreDriverMongo    = "mongo"
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

var ErrMissingSetting = errors.New("config: missing setting")

type Config struct {
	Port        string
	Environment string
	ServiceName string
	LogLevel    string

	StoreDriver   string
	MongoURI      string
	MongoDatabase string
	DatabaseURL   string

	RabbitMQURL      string
	BrokerConfigFile string
	EnableBroker     bool
	PublishAttempts  int
	ConnectTimeout   time.Duration
	PublishTimeout   time.Duration

	EnableTracing    bool
	JaegerEndpoint   string
	TraceSampleRatio float64

	PasswordHashRounds int
}

func Load() *Config {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No .env file found, using environment variables and defaults")
		} else {
			log.Printf("Error reading config file: %v", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "production")
	v.SetDefault("SERVICE_NAME", "user-service")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", StoreDriverMongo)
	v.SetDefault("MONGODB_DATABASE", "UserDatabase")
	v.SetDefault("DB_CONFIG_FILE", "db_config.json")
	v.SetDefault("BROKER_CONFIG_FILE", "config.json")
	v.SetDefault("ENABLE_BROKER", true)
	v.SetDefault("BROKER_PUBLISH_ATTEMPTS", 2)
	v.SetDefault("BROKER_CONNECT_TIMEOUT", "10s")
	v.SetDefault("BROKER_PUBLISH_TIMEOUT", "5s")
	v.SetDefault("ENABLE_TRACING", false)
	v.SetDefault("JAEGER_ENDPOINT", "localhost:4318")
	v.SetDefault("TRACE_SAMPLE_RATIO", 1.0)
	v.SetDefault("PASSWORD_HASH_ROUNDS", 29000)

	mongoURI := v.GetString("MONGODB_URI")
	if mongoURI == "" {
		// The store file is optional; a missing URI surfaces when the store connects.
		mongoURI, _ = ReadStoreFile(v.GetString("DB_CONFIG_FILE"))
	}

	databaseURL := v.GetString("DATABASE_URL")
	if databaseURL == "" && v.GetString("DB_HOST") != "" {
		databaseURL = buildDatabaseURL(v)
	}

	return &Config{
		Port:               v.GetString("PORT"),
		Environment:        v.GetString("ENVIRONMENT"),
		ServiceName:        v.GetString("SERVICE_NAME"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		StoreDriver:        v.GetString("STORE_DRIVER"),
		MongoURI:           mongoURI,
		MongoDatabase:      v.GetString("MONGODB_DATABASE"),
		DatabaseURL:        databaseURL,
		RabbitMQURL:        v.GetString("RABBITMQ_URL"),
		BrokerConfigFile:   v.GetString("BROKER_CONFIG_FILE"),
		EnableBroker:       v.GetBool("ENABLE_BROKER"),
		PublishAttempts:    v.GetInt("BROKER_PUBLISH_ATTEMPTS"),
		ConnectTimeout:     v.GetDuration("BROKER_CONNECT_TIMEOUT"),
		PublishTimeout:     v.GetDuration("BROKER_PUBLISH_TIMEOUT"),
		EnableTracing:      v.GetBool("ENABLE_TRACING"),
		JaegerEndpoint:     v.GetString("JAEGER_ENDPOINT"),
		TraceSampleRatio:   v.GetFloat64("TRACE_SAMPLE_RATIO"),
		PasswordHashRounds: v.GetInt("PASSWORD_HASH_ROUNDS"),
	}
}

// BrokerEndpoint resolves the AMQP URL. RABBITMQ_URL wins; otherwise the
// broker config file is re-read on every call so a rotated file is picked up
// the next time the connection is re-established.
func (c *Config) BrokerEndpoint() (string, error) {
	if c.RabbitMQURL != "" {
		return c.RabbitMQURL, nil
	}
	return ReadBrokerFile(c.BrokerConfigFile)
}

// ReadStoreFile reads the connection string from a {"SRVAdd": "<uri>"} file.
func ReadStoreFile(path string) (string, error) {
	return readJSONKey(path, "SRVAdd")
}

// ReadBrokerFile reads the broker URL from a {"url": "<uri>"} file.
func ReadBrokerFile(path string) (string, error) {
	return readJSONKey(path, "url")
}

func readJSONKey(path, key string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: no config file for %q", ErrMissingSetting, key)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	value := v.GetString(key)
	if value == "" {
		return "", fmt.Errorf("%w: %q in %s", ErrMissingSetting, key, path)
	}
	return value, nil
}

func buildDatabaseURL(v *viper.Viper) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		v.GetString("DB_USER"),
		v.GetString("DB_PASSWORD"),
		v.GetString("DB_HOST"),
		v.GetString("DB_PORT"),
		v.GetString("DB_NAME"),
		v.GetString("DB_SSLMODE"),
	)
}
