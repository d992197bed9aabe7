package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"quizbowl-practice/internal/domain"
)

// DefaultAppID names the deployment when app.id is unset.
const DefaultAppID = "default-quizbowl-app"

type Config struct {
	App struct {
		ID string `yaml:"id"`
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
		AudioTTL string `yaml:"audioTtl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Sets struct {
		TTL  string `yaml:"ttl"`
		File string `yaml:"file"`
	} `yaml:"sets"`
	Auth struct {
		SessionSecret     string `yaml:"sessionSecret"`
		CustomTokenSecret string `yaml:"customTokenSecret"`
		Issuer            string `yaml:"issuer"`
		SessionTTL        string `yaml:"sessionTtl"`
	} `yaml:"auth"`
	Voice struct {
		// Provider is "google" for Cloud Text-to-Speech or "device" for
		// on-device synthesis in the client.
		Provider       string         `yaml:"provider"`
		APIKey         string         `yaml:"apiKey"`
		Endpoint       string         `yaml:"endpoint"`
		LanguagePrefix string         `yaml:"languagePrefix"`
		Local          []domain.Voice `yaml:"local"`
	} `yaml:"voice"`
	Practice struct {
		Countdown      int     `yaml:"countdown"`
		FeedbackTTL    string  `yaml:"feedbackTtl"`
		WordsPerMinute int     `yaml:"wordsPerMinute"`
		Rate           float64 `yaml:"rate"`
	} `yaml:"practice"`
}

// Load reads YAML config from path, then applies .env and environment
// overrides. A missing file is not an error; the environment alone can
// configure the service.
func Load(path string) (Config, error) {
	cfg := Config{}
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	if cfg.App.ID == "" {
		cfg.App.ID = DefaultAppID
	}
	if cfg.Voice.LanguagePrefix == "" {
		cfg.Voice.LanguagePrefix = "en-"
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	override(&c.App.ID, "APP_ID")
	override(&c.Voice.APIKey, "GOOGLE_TTS_API_KEY")
	override(&c.Auth.SessionSecret, "SESSION_SECRET")
	override(&c.Auth.CustomTokenSecret, "CUSTOM_TOKEN_SECRET")
	override(&c.Redis.Addr, "REDIS_ADDR")
	override(&c.Redis.Password, "REDIS_PASSWORD")
	override(&c.Postgres.URL, "POSTGRES_URL")
	override(&c.Voice.Provider, "VOICE_PROVIDER")
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		if db, err := strconv.Atoi(raw); err == nil {
			c.Redis.DB = db
		}
	}
}

func override(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
