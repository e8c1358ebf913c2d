package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime settings. Values come from the process
// environment (optionally seeded from .env) with the defaults below.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Google    GoogleConfig    `mapstructure:"google"`
	AI        AIConfig        `mapstructure:"ai"`
	Speech    SpeechConfig    `mapstructure:"speech"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Materials MaterialsConfig `mapstructure:"materials"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	TimeZone        string        `mapstructure:"timezone"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type JWTConfig struct {
	Secret    string        `mapstructure:"secret"`
	AccessTTL time.Duration `mapstructure:"access_ttl"`
}

// GoogleConfig enables sign-in with Google ID tokens when ClientID is set.
type GoogleConfig struct {
	ClientID string `mapstructure:"client_id"`
}

type AIConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxInputChars int           `mapstructure:"max_input_chars"`
	MaxWords      int           `mapstructure:"max_words"`
	MaxQuestions  int           `mapstructure:"max_questions"`
}

// SpeechConfig drives pronunciation audio through Google Cloud
// Text-to-Speech. Audio is unavailable while CredentialsFile is empty.
type SpeechConfig struct {
	CredentialsFile string        `mapstructure:"credentials_file"`
	LanguageCode    string        `mapstructure:"language_code"`
	Voice           string        `mapstructure:"voice"`
	SpeakingRate    float64       `mapstructure:"speaking_rate"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type ScraperConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxBytes         int64         `mapstructure:"max_bytes"`
	MaxRedirects     int           `mapstructure:"max_redirects"`
	AllowListEnabled bool          `mapstructure:"allow_list_enabled"`
	AllowedDomains   []string      `mapstructure:"allowed_domains"`
}

type WorkerConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	StaleAfter    time.Duration `mapstructure:"stale_after"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type MaterialsConfig struct {
	MinMembership string `mapstructure:"min_membership"`
}

// StorageConfig points at the Supabase Storage bucket that keeps uploaded
// documents. Archiving is off while URL or Key is empty.
type StorageConfig struct {
	SupabaseURL string `mapstructure:"supabase_url"`
	SupabaseKey string `mapstructure:"supabase_key"`
	Bucket      string `mapstructure:"bucket"`
}

func (s StorageConfig) Enabled() bool {
	return s.SupabaseURL != "" && s.SupabaseKey != ""
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

// Load reads configuration from environment variables. Nested keys map to
// upper-case names joined by underscores (ai.model -> AI_MODEL); a few
// conventional names are bound explicitly.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string][]string{
		"server.port":             {"PORT", "SERVER_PORT"},
		"server.mode":             {"GIN_MODE", "SERVER_MODE"},
		"database.url":            {"DATABASE_URL"},
		"database.host":           {"DB_HOST", "DATABASE_HOST"},
		"database.port":           {"DB_PORT", "DATABASE_PORT"},
		"database.user":           {"DB_USER", "DATABASE_USER"},
		"database.password":       {"DB_PASSWORD", "DATABASE_PASSWORD"},
		"database.name":           {"DB_NAME", "DATABASE_NAME"},
		"jwt.secret":              {"JWT_SECRET", "SECRET_KEY"},
		"google.client_id":        {"GOOGLE_CLIENT_ID"},
		"ai.api_key":              {"GEMINI_API_KEY", "AI_API_KEY"},
		"speech.credentials_file": {"GOOGLE_CREDENTIALS_JSON", "GOOGLE_APPLICATION_CREDENTIALS"},
		"redis.addr":              {"REDIS_ADDR"},
		"redis.password":          {"REDIS_PASSWORD"},
		"storage.supabase_url":    {"SUPABASE_URL"},
		"storage.supabase_key":    {"SUPABASE_KEY"},
		"log.mode":                {"LOG_MODE", "APP_ENV"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)
	cfg.Scraper.AllowedDomains = splitList(cfg.Scraper.AllowedDomains)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173"})

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "english_mastery")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 10*time.Minute)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "material-status")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_ttl", 24*time.Hour)

	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.max_input_chars", 8000)
	v.SetDefault("ai.max_words", 15)
	v.SetDefault("ai.max_questions", 5)

	v.SetDefault("google.client_id", "")

	v.SetDefault("speech.credentials_file", "")
	v.SetDefault("speech.language_code", "en-US")
	v.SetDefault("speech.voice", "en-US-Standard-C")
	v.SetDefault("speech.speaking_rate", 0.9)
	v.SetDefault("speech.timeout", 15*time.Second)

	v.SetDefault("scraper.timeout", 15*time.Second)
	v.SetDefault("scraper.max_bytes", 500_000)
	v.SetDefault("scraper.max_redirects", 5)
	v.SetDefault("scraper.allow_list_enabled", false)
	v.SetDefault("scraper.allowed_domains", []string{
		"bbc.com", "bbc.co.uk", "cnn.com", "nytimes.com", "theguardian.com",
		"reuters.com", "economist.com", "ted.com", "medium.com",
		"wikipedia.org", "dev.to", "techcrunch.com", "github.com",
	})

	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.stale_after", 30*time.Minute)
	v.SetDefault("worker.sweep_interval", 5*time.Minute)

	v.SetDefault("materials.min_membership", "free")

	v.SetDefault("storage.supabase_url", "")
	v.SetDefault("storage.supabase_key", "")
	v.SetDefault("storage.bucket", "uploads")

	v.SetDefault("log.mode", "development")
}

// DSN returns the postgres connection string, preferring DATABASE_URL.
func (c *Config) DSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		c.Database.Host, c.Database.User, c.Database.Password, c.Database.Name,
		c.Database.Port, c.Database.SSLMode, c.Database.TimeZone,
	)
}

// splitList accepts both real lists and a single comma separated entry,
// which is what a list-valued environment variable decodes to.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
