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
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Courseware struct {
		TTL string `yaml:"ttl"`
	} `yaml:"courseware"`
	Session struct {
		SweepInterval string `yaml:"sweepInterval"`
		RaceCountdown string `yaml:"raceCountdown"`
	} `yaml:"session"`
	AI struct {
		Endpoint string `yaml:"endpoint"`
		APIKey   string `yaml:"apiKey"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"ai"`
	// Public is served verbatim by GET /config, so it must never hold secrets.
	Public map[string]string `yaml:"public"`
}

// Load reads YAML config from path, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := lookup("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := lookup("POSTGRES_URL"); ok {
		c.Postgres.URL = v
	}
	if v, ok := lookup("AI_ENDPOINT"); ok {
		c.AI.Endpoint = v
	}
	if v, ok := lookup("AI_API_KEY"); ok {
		c.AI.APIKey = v
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
