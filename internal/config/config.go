package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"nextbus-tracker/internal/db"
)

type Config struct {
	Agency        string
	Route         string
	ThresholdFeet int

	PollInterval time.Duration
	RetryDelay   time.Duration
	FetchRetries int // 0 = retry until the run is cancelled

	// Reference timezone for window keys; windows are calendar days.
	WindowLocation *time.Location

	Detail bool
	Output string // file path, directory, or "-" for stdout
	Format string // line|csv|json

	FeedURL string

	StopsSource string // feed|db
	DatabaseURL string

	NATSURL           string
	NATSSubjectPrefix string
	LogNATSSubjects   bool

	MetricsAddr string
}

// Load reads live-tracker settings from .env and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := loadCommon()
	if err != nil {
		return nil, err
	}

	cfg.Agency = strings.TrimSpace(os.Getenv("AGENCY"))
	cfg.Route = strings.TrimSpace(os.Getenv("ROUTE"))
	if cfg.Agency == "" || cfg.Route == "" {
		return nil, errors.New("AGENCY and ROUTE must be set")
	}

	if v := os.Getenv("THRESHOLD_FEET"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid THRESHOLD_FEET: %q", v)
		}
		cfg.ThresholdFeet = n
	} else {
		cfg.ThresholdFeet = 100
	}

	cfg.PollInterval, err = durationMS("POLL_INTERVAL_MS", 10000)
	if err != nil {
		return nil, err
	}
	cfg.RetryDelay, err = durationMS("RETRY_DELAY_MS", 5000)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FETCH_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid FETCH_RETRIES: %q", v)
		}
		cfg.FetchRetries = n
	}

	cfg.FeedURL = os.Getenv("FEED_URL")

	cfg.StopsSource = getenvDefault("STOPS_SOURCE", "feed")
	switch cfg.StopsSource {
	case "feed":
	case "db":
		dsn := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN"))
		if dsn != "" {
			// PGDATABASE repoints a cluster DSN at a specific database
			if name := os.Getenv("PGDATABASE"); name != "" {
				dsn, err = db.WithDBName(dsn, name)
				if err != nil {
					return nil, fmt.Errorf("compose DSN: %v", err)
				}
			}
		}
		if dsn == "" {
			host := getenvDefault("PGHOST", "127.0.0.1")
			port := getenvDefault("PGPORT", "5432")
			user := getenvDefault("PGUSER", "postgres")
			pass := os.Getenv("PGPASSWORD")
			name := os.Getenv("PGDATABASE")
			if name == "" {
				return nil, errors.New("PGDATABASE or DATABASE_URL must be set for STOPS_SOURCE=db")
			}
			sslmode := getenvDefault("PGSSLMODE", "disable")
			if pass != "" {
				dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, name, sslmode)
			} else {
				dsn = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, name, sslmode)
			}
		}
		cfg.DatabaseURL = dsn
	default:
		return nil, fmt.Errorf("invalid STOPS_SOURCE: %q (want feed or db)", cfg.StopsSource)
	}

	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "tracker")
	cfg.LogNATSSubjects = boolEnv("LOG_NATS_SUBJECTS")
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	return cfg, nil
}

// LoadReplay reads the subset of settings the re-compaction binary uses.
func LoadReplay() (*Config, error) {
	_ = godotenv.Load()
	return loadCommon()
}

func loadCommon() (*Config, error) {
	cfg := &Config{}

	tzName := getenvDefault("WINDOW_TZ", "UTC")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid WINDOW_TZ: %v", err)
	}
	cfg.WindowLocation = loc

	cfg.Detail = boolEnv("DETAIL")
	cfg.Output = getenvDefault("OUT", "-")

	cfg.Format = getenvDefault("FORMAT", "line")
	switch cfg.Format {
	case "line", "csv", "json":
	default:
		return nil, fmt.Errorf("invalid FORMAT: %q (want line, csv or json)", cfg.Format)
	}

	return cfg, nil
}

func durationMS(key string, def int) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(def) * time.Millisecond, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func boolEnv(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
