package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port      string
	DBPath    string
	BackupDir string
	Token     string
	Timezone  string

	OllamaURL   string
	OllamaModel string
	OpenAIURL   string
	OpenAIKey   string
	OpenAIModel string

	MaxDailyTypes    int
	GenProbability   float64
	LLMTimeout       time.Duration
	LLMAttempts      int
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:      getEnv("DIARY_PORT", "8080"),
		DBPath:    getEnv("DIARY_DB_PATH", ""),
		BackupDir: getEnv("DIARY_BACKUP_DIR", ""),
		Token:     getEnv("DIARY_TOKEN", ""),
		Timezone:  getEnv("DIARY_TIMEZONE", "Asia/Shanghai"),

		OllamaURL:   getEnv("DIARY_OLLAMA_URL", "http://localhost:11434"),
		OllamaModel: getEnv("DIARY_OLLAMA_MODEL", "qwen2.5:7b"),
		OpenAIURL:   getEnv("DIARY_OPENAI_URL", "https://api.openai.com"),
		OpenAIKey:   getEnv("DIARY_OPENAI_KEY", ""),
		OpenAIModel: getEnv("DIARY_OPENAI_MODEL", "gpt-4o-mini"),

		MaxDailyTypes:    getEnvInt("DIARY_MAX_DAILY_TYPES", 5),
		GenProbability:   getEnvFloat("DIARY_GEN_PROBABILITY", 1.0),
		LLMTimeout:       time.Duration(getEnvInt("DIARY_LLM_TIMEOUT_SECONDS", 30)) * time.Second,
		LLMAttempts:      getEnvInt("DIARY_LLM_ATTEMPTS", 3),
		BreakerThreshold: getEnvInt("DIARY_BREAKER_THRESHOLD", 3),
		BreakerCooldown:  time.Duration(getEnvInt("DIARY_BREAKER_COOLDOWN_SECONDS", 60)) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DIARY_DB_PATH is required")
	}
	if c.BackupDir == "" {
		return fmt.Errorf("DIARY_BACKUP_DIR is required")
	}
	if c.Token == "" {
		return fmt.Errorf("DIARY_TOKEN is required")
	}
	if c.MaxDailyTypes < 0 || c.MaxDailyTypes > 5 {
		return fmt.Errorf("DIARY_MAX_DAILY_TYPES must be between 0 and 5, got %d", c.MaxDailyTypes)
	}
	if c.GenProbability < 0 || c.GenProbability > 1 {
		return fmt.Errorf("DIARY_GEN_PROBABILITY must be between 0 and 1, got %v", c.GenProbability)
	}
	if c.LLMAttempts < 1 {
		return fmt.Errorf("DIARY_LLM_ATTEMPTS must be at least 1, got %d", c.LLMAttempts)
	}
	if c.BreakerThreshold < 1 {
		return fmt.Errorf("DIARY_BREAKER_THRESHOLD must be at least 1, got %d", c.BreakerThreshold)
	}
	return nil
}

// ValidToken checks a bearer token against the configured one.
func (c *Config) ValidToken(token string) bool {
	return c.Token != "" && token == c.Token
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
