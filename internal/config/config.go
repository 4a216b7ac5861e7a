package config

import (
	"fmt"
	"os"
	"time"

	"gamification-service/internal/domain"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Env  string `yaml:"env"`
		Name string `yaml:"name"`
	} `yaml:"app"`
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Ledger struct {
		HistoryLimit int `yaml:"historyLimit"`
	} `yaml:"ledger"`
	Community struct {
		BaseURL string `yaml:"baseUrl"`
		APIKey  string `yaml:"apiKey"`
		Timeout string `yaml:"timeout"`
	} `yaml:"community"`
	Queue struct {
		RedisAddr   string `yaml:"redisAddr"`
		Concurrency int    `yaml:"concurrency"`
		MaxRetry    int    `yaml:"maxRetry"`
	} `yaml:"queue"`
	Rewards []RewardAction `yaml:"rewards"`
}

// RewardAction is the YAML form of domain.RewardAction; cooldown is a Go duration string.
type RewardAction struct {
	ID               string `yaml:"id"`
	Name             string `yaml:"name"`
	Points           int    `yaml:"points"`
	Category         string `yaml:"category"`
	Enabled          *bool  `yaml:"enabled"`
	RequiresApproval bool   `yaml:"requiresApproval"`
	MaxOccurrences   int    `yaml:"maxOccurrences"`
	Cooldown         string `yaml:"cooldown"`
}

// Load reads YAML config from path. Secrets may be supplied through the environment instead.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	overrideFromEnv(&cfg)
	return cfg, nil
}

func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("COMMUNITY_API_KEY"); v != "" {
		cfg.Community.APIKey = v
	}
}

// RewardActions converts the configured rewards. It returns nil when none are configured.
func (c Config) RewardActions() ([]domain.RewardAction, error) {
	if len(c.Rewards) == 0 {
		return nil, nil
	}
	out := make([]domain.RewardAction, 0, len(c.Rewards))
	for _, r := range c.Rewards {
		var cooldown time.Duration
		if r.Cooldown != "" {
			d, err := time.ParseDuration(r.Cooldown)
			if err != nil {
				return nil, fmt.Errorf("reward %q: cooldown: %w", r.ID, err)
			}
			cooldown = d
		}
		enabled := true
		if r.Enabled != nil {
			enabled = *r.Enabled
		}
		out = append(out, domain.RewardAction{
			ID:               r.ID,
			Name:             r.Name,
			PointValue:       r.Points,
			Category:         domain.Category(r.Category),
			IsEnabled:        enabled,
			RequiresApproval: r.RequiresApproval,
			MaxOccurrences:   r.MaxOccurrences,
			Cooldown:         cooldown,
		})
	}
	return out, nil
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
