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
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Game Game `yaml:"game"`
}

// Game holds the gameplay tunables. Zero values fall back to Defaults.
type Game struct {
	QuestionCount      int    `yaml:"question_count"`
	SpareCount         int    `yaml:"spare_count"`
	QuestionTimer      string `yaml:"question_timer"`
	CoinsPerCorrect    int64  `yaml:"coins_per_correct"`
	StartReward        int64  `yaml:"start_reward"`
	LifelineSecondCost int64  `yaml:"lifeline_second_cost"`
	SwapBaseCost       int64  `yaml:"swap_base_cost"`
	SwapCostPerIndex   int64  `yaml:"swap_cost_per_index"`
	RescueGoldCost     int64  `yaml:"rescue_gold_cost"`
	AudienceBias       int    `yaml:"audience_bias"`
	VideosPerSession   int    `yaml:"videos_per_session"`
	QuestionSetTTL     string `yaml:"question_set_ttl"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty or invalid.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
