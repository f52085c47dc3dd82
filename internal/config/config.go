package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Content struct {
		TTL string `yaml:"ttl"`
	} `yaml:"content"`
	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`
	Attempts struct {
		MaxRetries  int    `yaml:"max_retries"`
		SubmitGrace string `yaml:"submit_grace"`
	} `yaml:"attempts"`
}

// Load reads YAML config from path. Connection strings left empty in the
// file are taken from the environment so secrets can stay in .env.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	fill(&c.Mongo.URI, "MONGO_URI")
	fill(&c.Mongo.Database, "MONGO_DATABASE")
	fill(&c.Redis.Addr, "REDIS_ADDR")
	fill(&c.Redis.Password, "REDIS_PASSWORD")
	fill(&c.Postgres.URL, "POSTGRES_URL")
	fill(&c.RabbitMQ.URL, "RABBITMQ_URL")
}

func fill(dst *string, key string) {
	if *dst != "" {
		return
	}
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
