package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Data struct {
		Dir string `yaml:"dir"`
	} `yaml:"data"`
	Resolve struct {
		Threshold       float64 `yaml:"threshold"`
		MinSupport      int     `yaml:"min_support"`
		MinProb         float64 `yaml:"min_prob"`
		MinMargin       float64 `yaml:"min_margin"`
		WordLikeSpacing *bool   `yaml:"word_like_spacing"`
	} `yaml:"resolve"`
	AI struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		APIKey   string `yaml:"api_key"`
		BaseURL  string `yaml:"base_url"`
		TimeoutS int    `yaml:"timeout_s"`
	} `yaml:"ai"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	var cfg Config
	cfg.Data.Dir = "data"
	cfg.Resolve.Threshold = 0.85
	applyEnv(&cfg)
	return &cfg
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, err
	}
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = "data"
	}
	if cfg.Resolve.Threshold == 0 {
		cfg.Resolve.Threshold = 0.85
	}

	// 3. Override with Environment Variables if present
	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if apiKey := os.Getenv("HANPIN_API_KEY"); apiKey != "" {
		cfg.AI.APIKey = apiKey
	}
	if provider := os.Getenv("HANPIN_AI_PROVIDER"); provider != "" {
		cfg.AI.Provider = provider
	}
}

// WordLikeSpacing reports whether a space is forced between a reading
// and an adjacent word-like span. Defaults to on.
func (c *Config) WordLikeSpacing() bool {
	if c.Resolve.WordLikeSpacing == nil {
		return true
	}
	return *c.Resolve.WordLikeSpacing
}
