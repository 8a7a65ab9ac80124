// Package config loads server configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all server settings.
type Config struct {
	Port     int            `yaml:"port"`
	DevMode  bool           `yaml:"dev_mode"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Auth     AuthConfig     `yaml:"auth"`
	Geocoder GeocoderConfig `yaml:"geocoder"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	BaseURL  string         `yaml:"base_url"`
	PageSize int            `yaml:"page_size"`
}

// MongoConfig contains MongoDB connection settings.
type MongoConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// AuthConfig contains JWT settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// GeocoderConfig contains geocoding provider settings.
type GeocoderConfig struct {
	APIKey        string `yaml:"api_key"`
	MemcachedAddr string `yaml:"memcached_addr"`
}

// SMTPConfig contains outbound mail settings.
type SMTPConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
	From string `yaml:"from"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Port:    8000,
		BaseURL: "http://localhost:8000",
		Mongo: MongoConfig{
			URL:      "mongodb://localhost:27017",
			Database: "realtyads",
		},
		PageSize: 12,
	}
}

// Load reads configuration from the YAML file at path, falling back to
// defaults if the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.PageSize < 1 {
		return nil, fmt.Errorf("page_size must be at least 1, got %d", cfg.PageSize)
	}

	return cfg, nil
}

// applyEnv overrides file values with environment variables where set.
func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("MONGO_URL"); v != "" {
		c.Mongo.URL = v
	}
	if v := os.Getenv("MONGO_DATABASE"); v != "" {
		c.Mongo.Database = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("OPENCAGE_API_KEY"); v != "" {
		c.Geocoder.APIKey = v
	}
	if v := os.Getenv("MEMCACHED_ADDR"); v != "" {
		c.Geocoder.MemcachedAddr = v
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		c.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		c.SMTP.Port = v
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		c.SMTP.User = v
	}
	if v := os.Getenv("SMTP_PASS"); v != "" {
		c.SMTP.Pass = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		c.SMTP.From = v
	}
	if v := os.Getenv("DEV_MODE"); v != "" {
		c.DevMode = v == "true" || v == "1"
	}
}
