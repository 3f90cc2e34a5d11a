package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the API server and supporting services.
type Config struct {
	ListenAddr      string
	PublicBaseURL   string
	WebhookSecret   string
	LogLevel        string
	MySQLDSN        string
	RequestTimeout  time.Duration
	CORSOrigins     []string
	GoogleClientID  string
	JWTSecret       string
	JWTTTL          time.Duration
	AdminUsername   string
	AdminPassword   string
	AstriaAPIKey    string
	AstriaBaseURL   string
	AstriaDemoTune  string
	AstriaBaseTune  string
	AstriaMaxImages int
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	EnhanceTimeout  time.Duration
	TelegramToken   string
	TelegramAdminID int64
	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	const defaultAstriaBaseURL = "https://api.astria.ai"

	cfg := Config{
		ListenAddr:      getEnv("HTTP_LISTEN_ADDR", ":3000"),
		PublicBaseURL:   strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		WebhookSecret:   os.Getenv("WEBHOOK_SECRET"),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		MySQLDSN:        os.Getenv("MYSQL_DSN"),
		RequestTimeout:  time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 60)),
		CORSOrigins:     getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		GoogleClientID:  os.Getenv("GOOGLE_CLIENT_ID"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTTTL:          time.Hour * time.Duration(getInt("JWT_TTL_HOURS", 24*7)),
		AdminUsername:   getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:   getEnv("ADMIN_PASSWORD", "change-me"),
		AstriaAPIKey:    os.Getenv("ASTRIA_API_KEY"),
		AstriaBaseURL:   normalizeBaseURL(getEnv("ASTRIA_BASE_URL", defaultAstriaBaseURL), defaultAstriaBaseURL),
		AstriaDemoTune:  os.Getenv("ASTRIA_DEMO_TUNE_ID"),
		AstriaBaseTune:  os.Getenv("ASTRIA_BASE_TUNE_ID"),
		AstriaMaxImages: getInt("ASTRIA_MAX_IMAGES", 8),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   strings.TrimRight(getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		EnhanceTimeout:  time.Second * time.Duration(getInt("ENHANCE_TIMEOUT_SECONDS", 5)),
		TelegramToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAdminID: getInt64("TELEGRAM_ADMIN_CHAT_ID", 0),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3Region:        os.Getenv("S3_REGION"),
		S3AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("S3_SECRET_KEY"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:  getBool("S3_USE_PATH_STYLE", false),
	}

	if cfg.AstriaMaxImages <= 0 {
		cfg.AstriaMaxImages = 8
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDatabase reads only what the maintenance commands need.
func LoadDatabase() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}
	cfg := Config{
		MySQLDSN: os.Getenv("MYSQL_DSN"),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
	if cfg.MySQLDSN == "" {
		return Config{}, fmt.Errorf("missing required environment variables: [MYSQL_DSN]")
	}
	return cfg, nil
}

func (c Config) validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"MYSQL_DSN", c.MySQLDSN},
		{"PUBLIC_BASE_URL", c.PublicBaseURL},
		{"GOOGLE_CLIENT_ID", c.GoogleClientID},
		{"JWT_SECRET", c.JWTSecret},
		{"ASTRIA_API_KEY", c.AstriaAPIKey},
		{"ASTRIA_DEMO_TUNE_ID", c.AstriaDemoTune},
		{"S3_REGION", c.S3Region},
		{"S3_ACCESS_KEY", c.S3AccessKey},
		{"S3_SECRET_KEY", c.S3SecretKey},
		{"S3_BUCKET", c.S3Bucket},
		{"S3_PUBLIC_BASE_URL", c.S3PublicBaseURL},
	}

	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.key)
		}
	}
	if c.TelegramToken != "" && c.TelegramAdminID == 0 {
		missing = append(missing, "TELEGRAM_ADMIN_CHAT_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}

	if _, err := url.ParseRequestURI(c.PublicBaseURL); err != nil {
		return fmt.Errorf("invalid PUBLIC_BASE_URL: %w", err)
	}
	return nil
}

// TelegramEnabled reports whether the admin bot should be started.
func (c Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramAdminID != 0
}

// normalizeBaseURL adds a missing scheme and strips trailing slashes.
func normalizeBaseURL(raw string, fallback string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		parsed.Host = parsed.Path
		parsed.Path = ""
	}

	return strings.TrimRight(parsed.String(), "/")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// loadEnvFile loads the first env file found. Running without one is fine:
// containers pass configuration through the real environment.
func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}
