package config

import (
	"errors"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// MemoryStoreURL selects the in-process store instead of Redis.
const MemoryStoreURL = "memory://"

type Config struct {
	Host string
	Port int
	// ListenURL is the public base URL used to build ingestion and stream links.
	ListenURL   string
	MaxBodySize int
	// CORSAllowedOrigins holds "*" or an explicit list of origins.
	CORSAllowedOrigins []string

	RedisURL      string
	RedisPoolSize int

	SessionTTLSeconds     int
	MaxRequestsPerSession int

	LogLevel string
	DevMode  bool
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment are not overridden by the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	return FromEnv(), nil
}

func FromEnv() Config {
	cfg := Config{
		Host:                  getEnv("SERVER_HOST", "0.0.0.0"),
		Port:                  getEnvInt("SERVER_PORT", 8080),
		MaxBodySize:           getEnvInt("MAX_BODY_SIZE", 10<<20),
		CORSAllowedOrigins:    splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379"),
		RedisPoolSize:         getEnvInt("REDIS_POOL_SIZE", 10),
		SessionTTLSeconds:     getEnvInt("SESSION_TTL", 10800),
		MaxRequestsPerSession: getEnvInt("MAX_REQUESTS_PER_SESSION", 1000),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
	}
	cfg.ListenURL = strings.TrimRight(getEnv("LISTEN_URL", "http://localhost:"+strconv.Itoa(cfg.Port)), "/")
	if os.Getenv("DEV_MODE") == "1" || os.Getenv("DEV_MODE") == "true" {
		cfg.DevMode = true
	}
	return cfg
}

// Addr is the listen address in host:port form.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// UsesMemoryStore reports whether RedisURL selects the in-process store.
func (c Config) UsesMemoryStore() bool {
	return strings.HasPrefix(c.RedisURL, MemoryStoreURL)
}

// AllowsAnyOrigin reports whether CORS is open to every origin.
func (c Config) AllowsAnyOrigin() bool {
	for _, o := range c.CORSAllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// splitCSV splits comma-separated tokens trimming whitespace and skipping empties.
func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
