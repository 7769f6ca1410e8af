package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"readTimeout"`
		WriteTimeout    time.Duration `yaml:"writeTimeout"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
		SecureCookies   bool          `yaml:"secureCookies"`
	} `yaml:"server"`

	AI struct {
		Provider string        `yaml:"provider"` // gemini | openai
		APIKey   string        `yaml:"apiKey"`
		Model    string        `yaml:"model"`
		BaseURL  string        `yaml:"baseURL"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"ai"`

	Session struct {
		Driver        string        `yaml:"driver"` // memory | redis
		TTL           time.Duration `yaml:"ttl"`
		SweepInterval time.Duration `yaml:"sweepInterval"`
	} `yaml:"session"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	History struct {
		Driver string `yaml:"driver"` // "" (off) | mysql | postgres | sqlite
	} `yaml:"history"`

	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Admin struct {
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"admin"`

	RateLimit struct {
		Requests int           `yaml:"requests"`
		Window   time.Duration `yaml:"window"`
	} `yaml:"rateLimit"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	// /v1/analyze waits for the provider
	c.Server.WriteTimeout = 150 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second
	c.AI.Provider = "gemini"
	c.AI.Timeout = 120 * time.Second
	c.Session.Driver = "memory"
	c.Session.TTL = 24 * time.Hour
	c.Session.SweepInterval = 5 * time.Minute
	c.Redis.Addr = "localhost:6379"
	c.SQLite.Path = "palmview.db"
	c.Minio.BucketName = "palmview"
	c.Minio.Region = "us-east-1"
	c.RateLimit.Requests = 10
	c.RateLimit.Window = time.Minute
	c.CORS.AllowedOrigins = []string{"*"}
	return &c
}

// Load reads the YAML file at path over the defaults, then applies env overrides.
// An empty path skips the file. A .env file in the working directory is loaded
// first when present; real environment variables win over it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	switch c.AI.Provider {
	case "openai":
		setFromEnv(&c.AI.APIKey, "OPENAI_API_KEY")
	default:
		setFromEnv(&c.AI.APIKey, "API_KEY")
		setFromEnv(&c.AI.APIKey, "GEMINI_API_KEY")
	}
	setFromEnv(&c.Redis.Password, "REDIS_PASSWORD")
	setFromEnv(&c.Database.Password, "DB_PASSWORD")
	setFromEnv(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = p
	}
	return nil
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate rejects unknown drivers and providers.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("ai.provider: unknown provider %q", c.AI.Provider)
	}
	switch c.Session.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("session.driver: unknown driver %q", c.Session.Driver)
	}
	switch c.History.Driver {
	case "", "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("history.driver: unknown driver %q", c.History.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: out of range %d", c.Server.Port)
	}
	return nil
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection string.
func (c *Config) PostgresDSN() string {
	ssl := c.Database.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		ssl,
	)
}
