package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every process-level setting of the desk service.
type Config struct {
	BackendURL string
	HTTPAddr   string
	// PublicURL prefixes fragment URLs when host pages are served elsewhere.
	PublicURL      string
	ProxyAddr      string
	SQLitePath     string
	PollInterval   time.Duration
	ViewTTL        time.Duration
	HTTPTimeout    time.Duration
	AllowedOrigins []string
	TelegramToken  string
	TelegramChatID int64
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	// The file is optional: in containers everything comes from the environment.
	if err := godotenv.Load(); err != nil {
		log.Println("config: .env not found, using process environment")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a getenv-like lookup.
func FromEnv(getenv func(string) string) (*Config, error) {
	backend := strings.TrimSpace(getenv("BACKEND_URL"))
	if backend == "" {
		return nil, fmt.Errorf("BACKEND_URL is not set")
	}
	base, err := url.Parse(backend)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("BACKEND_URL %q is not an absolute URL", backend)
	}

	poll, err := durationOr(getenv("POLL_INTERVAL"), 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("POLL_INTERVAL: %w", err)
	}
	ttl, err := durationOr(getenv("VIEW_TTL"), 2*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("VIEW_TTL: %w", err)
	}
	timeout, err := durationOr(getenv("HTTP_TIMEOUT"), 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("HTTP_TIMEOUT: %w", err)
	}

	var chatID int64
	if raw := strings.TrimSpace(getenv("TELEGRAM_CHAT_ID")); raw != "" {
		chatID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID %q is not a number", raw)
		}
	}
	token := strings.TrimSpace(getenv("TELEGRAM_TOKEN"))
	if token != "" && chatID == 0 {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set")
	}

	origins := splitList(getenv("ALLOWED_ORIGINS"))
	if len(origins) == 0 {
		origins = []string{base.Scheme + "://" + base.Host}
	}

	return &Config{
		BackendURL:     strings.TrimRight(backend, "/"),
		HTTPAddr:       withDefault(getenv("HTTP_ADDR"), ":8080"),
		PublicURL:      strings.TrimRight(strings.TrimSpace(getenv("PUBLIC_URL")), "/"),
		ProxyAddr:      strings.TrimSpace(getenv("PROXY_ADDR")),
		SQLitePath:     resolvePath(withDefault(getenv("SQLITE_PATH"), "data/desk.db")),
		PollInterval:   poll,
		ViewTTL:        ttl,
		HTTPTimeout:    timeout,
		AllowedOrigins: origins,
		TelegramToken:  token,
		TelegramChatID: chatID,
	}, nil
}

func withDefault(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func durationOr(value string, fallback time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func resolvePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == ":memory:" {
		return p
	}
	if filepath.IsAbs(p) {
		return p
	}

	if exe, err := os.Executable(); err == nil {
		base := filepath.Dir(exe)
		return filepath.Clean(filepath.Join(base, p))
	}

	if cwd, err := os.Getwd(); err == nil {
		return filepath.Clean(filepath.Join(cwd, p))
	}

	return p
}
