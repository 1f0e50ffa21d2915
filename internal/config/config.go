package config

import (
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type DBConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"5432"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	Name     string `env:"NAME"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type FacebookConfig struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	RedirectURL  string   `env:"REDIRECT_URL"`
	GraphVersion string   `env:"GRAPH_VERSION" envDefault:"v19.0"`
	Scopes       []string `env:"SCOPES" envSeparator:"," envDefault:"email,public_profile"`
}

type ResultTokenConfig struct {
	Secret     string        `env:"SECRET"`
	Expiration time.Duration `env:"TTL" envDefault:"1h"`
}

type ServerConfig struct {
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"15s"`
}

type KafkaConfig struct {
	KafkaUrl           string `env:"KAFKA_URL"`
	SchemaRegistryUrl  string `env:"SCHEMA_REGISTRY_URL"`
	AccountEventsTopic string `env:"ACCOUNT_EVENTS_TOPIC" envDefault:"account-events"`
	LinkwatchGroupID   string `env:"LINKWATCH_GROUP_ID" envDefault:"linkwatch"`
}

// FlowConfig holds the knobs of the login coordinator
type FlowConfig struct {
	TTL                  time.Duration `env:"FLOW_TTL" envDefault:"10m"`
	MainScreenURL        string        `env:"MAIN_SCREEN_URL" envDefault:"/"`
	SurfaceSessionErrors bool          `env:"SURFACE_SESSION_ERRORS" envDefault:"false"`
	SurfaceOpenErrors    bool          `env:"SURFACE_OPEN_ERRORS" envDefault:"false"`
	ProfileFetchProgress bool          `env:"PROFILE_FETCH_PROGRESS" envDefault:"false"`
}

type Config struct {
	DB                DBConfig          `envPrefix:"DB_"`
	Redis             RedisConfig       `envPrefix:"REDIS_"`
	Facebook          FacebookConfig    `envPrefix:"FACEBOOK_"`
	ResultToken       ResultTokenConfig `envPrefix:"RESULT_TOKEN_"`
	Server            ServerConfig      `envPrefix:"SERVER_"`
	Kafka             KafkaConfig
	Flow              FlowConfig
	AppPort           string        `env:"PORT" envDefault:"8080"`
	AccountStore      string        `env:"ACCOUNT_STORE" envDefault:"postgres"`
	FlowStore         string        `env:"FLOW_STORE" envDefault:"redis"`
	CredentialKey     string        `env:"CREDENTIAL_KEY"`
	HTTPClientTimeout time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"15s"`
}

func Load() (*Config, error) {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings the API server cannot start without
func (c *Config) Validate() error {
	switch c.AccountStore {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown ACCOUNT_STORE %q", c.AccountStore)
	}
	switch c.FlowStore {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown FLOW_STORE %q", c.FlowStore)
	}
	if c.ResultToken.Secret == "" {
		return fmt.Errorf("RESULT_TOKEN_SECRET is required")
	}
	if c.AccountStore == "postgres" {
		if _, err := c.CredentialKeyBytes(); err != nil {
			return err
		}
	}
	return nil
}

// CredentialKeyBytes decodes CREDENTIAL_KEY into the 32-byte sealing key
func (c *Config) CredentialKeyBytes() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.CredentialKey))
	if err != nil {
		return nil, fmt.Errorf("CREDENTIAL_KEY is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("CREDENTIAL_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// GetDSN returns the database connection string
func (c *DBConfig) GetDSN() string {
	return "postgres://" +
		c.User + ":" +
		c.Password + "@" +
		c.Host + ":" +
		c.Port + "/" +
		c.Name + "?sslmode=" +
		c.SSLMode
}
