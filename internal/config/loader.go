package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends accepted by PAPERS_STORAGE.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Session backends accepted by PAPERS_SESSION_BACKEND.
const (
	SessionBackendCookie = "cookie"
	SessionBackendSQLite = "sqlite"
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

const minSessionSecretLength = 32

// Config captures environment driven configuration values for the papers service.
type Config struct {
	HTTPPort             int
	EndpointPath         string
	Storage              string
	SQLiteDSN            string
	SessionSecret        string
	SessionEncryptionKey string
	SessionBackend       string
	SessionTTL           time.Duration
	CookieSecure         bool
	RedisURL             string
	AdminUsername        string
	AdminPassword        string
	TypesFile            string
	LoginRate            float64
	LoginBurst           int
	LogLevel             string
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults. Every missing or malformed variable is
// collected so that a single run reports all problems at once.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:       8080,
		EndpointPath:   "/request",
		Storage:        StorageSQLite,
		SQLiteDSN:      "file:papers.db?_pragma=foreign_keys(1)",
		SessionBackend: SessionBackendSQLite,
		SessionTTL:     24 * time.Hour,
		LoginRate:      0.5,
		LoginBurst:     5,
		LogLevel:       "info",
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 4)

	if portValue := env("PAPERS_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "PAPERS_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if path := env("PAPERS_ENDPOINT_PATH"); path != "" {
		if !strings.HasPrefix(path, "/") {
			invalid = append(invalid, "PAPERS_ENDPOINT_PATH")
		} else {
			cfg.EndpointPath = path
		}
	}

	if storage := strings.ToLower(env("PAPERS_STORAGE")); storage != "" {
		switch storage {
		case StorageSQLite, StorageMemory:
			cfg.Storage = storage
		default:
			invalid = append(invalid, "PAPERS_STORAGE")
		}
	}

	if dsn := env("PAPERS_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if secret := env("PAPERS_SESSION_SECRET"); secret == "" {
		missing = append(missing, "PAPERS_SESSION_SECRET")
	} else if len(secret) < minSessionSecretLength {
		invalid = append(invalid, "PAPERS_SESSION_SECRET")
	} else {
		cfg.SessionSecret = secret
	}

	if key := env("PAPERS_SESSION_ENCRYPTION_KEY"); key != "" {
		switch len(key) {
		case 16, 24, 32:
			cfg.SessionEncryptionKey = key
		default:
			invalid = append(invalid, "PAPERS_SESSION_ENCRYPTION_KEY")
		}
	}

	if backend := strings.ToLower(env("PAPERS_SESSION_BACKEND")); backend != "" {
		switch backend {
		case SessionBackendCookie, SessionBackendSQLite, SessionBackendMemory, SessionBackendRedis:
			cfg.SessionBackend = backend
		default:
			invalid = append(invalid, "PAPERS_SESSION_BACKEND")
		}
	}

	if ttlValue := env("PAPERS_SESSION_TTL"); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "PAPERS_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if secureValue := env("PAPERS_COOKIE_SECURE"); secureValue != "" {
		secure, err := strconv.ParseBool(secureValue)
		if err != nil {
			invalid = append(invalid, "PAPERS_COOKIE_SECURE")
		} else {
			cfg.CookieSecure = secure
		}
	}

	cfg.RedisURL = env("PAPERS_REDIS_URL")
	if cfg.SessionBackend == SessionBackendRedis && cfg.RedisURL == "" {
		missing = append(missing, "PAPERS_REDIS_URL")
	}
	if cfg.SessionBackend == SessionBackendSQLite && cfg.Storage != StorageSQLite {
		invalid = append(invalid, "PAPERS_SESSION_BACKEND")
	}

	cfg.AdminUsername = env("PAPERS_ADMIN_USERNAME")
	cfg.AdminPassword = os.Getenv("PAPERS_ADMIN_PASSWORD")
	if (cfg.AdminUsername == "") != (cfg.AdminPassword == "") {
		if cfg.AdminUsername == "" {
			missing = append(missing, "PAPERS_ADMIN_USERNAME")
		} else {
			missing = append(missing, "PAPERS_ADMIN_PASSWORD")
		}
	}

	cfg.TypesFile = env("PAPERS_TYPES_FILE")

	if rateValue := env("PAPERS_LOGIN_RATE"); rateValue != "" {
		rate, err := strconv.ParseFloat(rateValue, 64)
		if err != nil || rate <= 0 {
			invalid = append(invalid, "PAPERS_LOGIN_RATE")
		} else {
			cfg.LoginRate = rate
		}
	}

	if burstValue := env("PAPERS_LOGIN_BURST"); burstValue != "" {
		burst, err := strconv.Atoi(burstValue)
		if err != nil || burst <= 0 {
			invalid = append(invalid, "PAPERS_LOGIN_BURST")
		} else {
			cfg.LoginBurst = burst
		}
	}

	if level := env("PAPERS_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
