package infra

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	WorkerModeInProcess = "inprocess"
	WorkerModeExternal  = "external"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string `validate:"required"`
	Port               string `validate:"required,numeric"`
	DatabaseURL        string `validate:"required"`
	StoragePath        string `validate:"required"`
	SiteURL            string `validate:"required,url"`
	GeneratorProvider  string `validate:"oneof=openai gemini static"`
	OpenAIAPIKey       string
	OpenAIModel        string
	OpenAIBaseURL      string `validate:"omitempty,url"`
	OpenAIOrg          string
	GeminiAPIKey       string
	GeminiModel        string
	WorkerMode         string `validate:"oneof=inprocess external"`
	WorkerConcurrency  int    `validate:"min=1"`
	AdmissionLimit     int    `validate:"min=1"`
	WorkerPollInterval time.Duration
	MaxJobsPerOwner    int `validate:"min=0"`
	CredentialLength   int `validate:"min=4,max=12"`
	CredentialHashCost int `validate:"min=4,max=31"`
	GenerationTimeout  time.Duration
	NotifyTimeout      time.Duration
	SMTPHost           string
	SMTPPort           int `validate:"min=1,max=65535"`
	SMTPUser           string
	SMTPPassword       string
	SMTPFrom           string
	CORSOrigins        []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int `validate:"min=1"`
	ShutdownTimeout    time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	admission := getEnvInt("ADMISSION_LIMIT", defaultAdmissionLimit())
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		SiteURL:            strings.TrimRight(getEnv("SITE_URL", "https://aiinpocket.com"), "/"),
		GeneratorProvider:  strings.ToLower(getEnv("GENERATOR_PROVIDER", "openai")),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:          os.Getenv("OPENAI_ORG"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		WorkerMode:         strings.ToLower(getEnv("WORKER_MODE", WorkerModeInProcess)),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", admission),
		AdmissionLimit:     admission,
		WorkerPollInterval: time.Second * time.Duration(getEnvInt("WORKER_POLL_INTERVAL_SECONDS", 2)),
		MaxJobsPerOwner:    getEnvInt("MAX_JOBS_PER_OWNER", 5),
		CredentialLength:   getEnvInt("CREDENTIAL_LENGTH", 6),
		CredentialHashCost: getEnvInt("CREDENTIAL_HASH_COST", 10),
		GenerationTimeout:  time.Second * time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 300)),
		NotifyTimeout:      time.Second * time.Duration(getEnvInt("NOTIFY_TIMEOUT_SECONDS", 15)),
		SMTPHost:           getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:           getEnvInt("SMTP_PORT", 587),
		SMTPUser:           os.Getenv("SMTP_USER"),
		SMTPPassword:       os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:           getEnv("SMTP_FROM", "AiInPocket <noreply@aiinpocket.com>"),
		CORSOrigins:        getEnvList("CORS_ORIGINS"),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		ShutdownTimeout:    time.Second * time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 30)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SMTPConfigured reports whether outbound mail can be sent.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPUser != "" && c.SMTPPassword != ""
}

func defaultAdmissionLimit() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		return 1
	}
	return n
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
