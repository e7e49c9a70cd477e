package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	AWS      AWSConfig      `yaml:"aws"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Upload   UploadConfig   `yaml:"upload"`
	Verifier VerifierConfig `yaml:"verifier"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Demo     DemoConfig     `yaml:"demo"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port" env:"SERVER_PORT"`
	Host string `yaml:"host" env:"SERVER_HOST"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER"` // memory | postgres
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	DBName   string `yaml:"dbname" env:"DB_NAME"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE"`
}

// AWSConfig holds the image archive bucket settings. Empty bucket disables archiving.
type AWSConfig struct {
	Region    string `yaml:"region" env:"AWS_REGION"`
	S3Bucket  string `yaml:"s3_bucket" env:"AWS_S3_BUCKET"`
	AccessKey string `yaml:"access_key" env:"AWS_ACCESS_KEY_ID"`
	SecretKey string `yaml:"secret_key" env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint  string `yaml:"endpoint" env:"AWS_ENDPOINT"` // S3-compatible storage
}

// RedisConfig holds the stats cache settings. Empty address disables the cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB"`
	TTL      time.Duration `yaml:"ttl" env:"REDIS_TTL"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret" env:"JWT_SECRET"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

type UploadConfig struct {
	MaxSizeBytes int64 `yaml:"max_size_bytes" env:"UPLOAD_MAX_SIZE_BYTES"`
}

// VerifierConfig selects the verification oracle
type VerifierConfig struct {
	Mode        string        `yaml:"mode" env:"VERIFIER_MODE"` // random | fixed | gemini
	Timeout     time.Duration `yaml:"timeout" env:"VERIFIER_TIMEOUT"`
	SuccessRate float64       `yaml:"success_rate" env:"VERIFIER_SUCCESS_RATE"`
	FixedStatus string        `yaml:"fixed_status" env:"VERIFIER_FIXED_STATUS"`
	Gemini      GeminiConfig  `yaml:"gemini"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key" env:"GEMINI_API_KEY"`
	Model  string `yaml:"model" env:"GEMINI_MODEL"`
}

type ScoringConfig struct {
	Award int `yaml:"award" env:"SCORING_AWARD"`
}

// DemoConfig names the user served when a request carries no token
type DemoConfig struct {
	Username string `yaml:"username" env:"DEMO_USERNAME"`
}

// DefaultJWTSecret is a placeholder; it is refused with persistent storage
const DefaultJWTSecret = "change-me"

// Default returns the configuration used for values that neither the file nor the environment set
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080},
		Storage:  StorageConfig{Driver: "memory"},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "postgres", DBName: "plants", SSLMode: "disable"},
		AWS:      AWSConfig{Region: "us-east-1"},
		Redis:    RedisConfig{TTL: time.Hour},
		JWT:      JWTConfig{Secret: DefaultJWTSecret},
		Log:      LogConfig{Level: "info"},
		Upload:   UploadConfig{MaxSizeBytes: 10 << 20},
		Verifier: VerifierConfig{
			Mode:        "random",
			Timeout:     10 * time.Second,
			SuccessRate: 0.6,
			FixedStatus: "success",
			Gemini:      GeminiConfig{Model: "gemini-2.5-flash"},
		},
		Scoring: ScoringConfig{Award: 50},
		Demo:    DemoConfig{Username: "23bsc005"},
	}
}

// Load reads configuration from a YAML file, then applies .env and environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// .env is optional
	_ = godotenv.Load()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks option combinations that cannot work at runtime
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Verifier.Mode {
	case "random":
		if c.Verifier.SuccessRate < 0 || c.Verifier.SuccessRate > 1 {
			return fmt.Errorf("verifier success_rate must be within [0,1], got %v", c.Verifier.SuccessRate)
		}
	case "fixed":
		if c.Verifier.FixedStatus != "success" && c.Verifier.FixedStatus != "not_plant" {
			return fmt.Errorf("verifier fixed_status must be success or not_plant, got %q", c.Verifier.FixedStatus)
		}
	case "gemini":
		if c.Verifier.Gemini.APIKey == "" {
			return errors.New("verifier mode gemini requires gemini api_key")
		}
	default:
		return fmt.Errorf("unknown verifier mode %q", c.Verifier.Mode)
	}

	if c.Verifier.Timeout <= 0 {
		return errors.New("verifier timeout must be positive")
	}
	if c.Upload.MaxSizeBytes <= 0 {
		return errors.New("upload max_size_bytes must be positive")
	}
	if c.Scoring.Award <= 0 {
		return errors.New("scoring award must be positive")
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required")
	}
	if c.JWT.Secret == DefaultJWTSecret && c.Storage.Driver == "postgres" {
		return errors.New("jwt secret must be set when storage driver is postgres")
	}
	if c.Demo.Username == "" {
		return errors.New("demo username is required")
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
