// Package config provides functionality for managing configuration options
// for the server and the CLI client using command-line flags, an optional
// JSON config file and environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ServerOptions holds the configuration values for the backend.
type ServerOptions struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"address"`

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string `json:"database_dsn"`

	// RedisURL switches session storage to Redis when set.
	RedisURL string `json:"redis_url"`

	// SessionTTL is the lifetime of an issued session.
	SessionTTL Duration `json:"session_ttl"`

	// IdentitySecret verifies identity-provider tokens (HS256).
	IdentitySecret string `json:"identity_secret"`

	// LoginRPS limits login attempts per client address.
	LoginRPS float64 `json:"login_rps"`

	// LogLevel is the zap level name.
	LogLevel string `json:"log_level"`

	// Seed is an optional JSON file of products loaded at startup.
	Seed string `json:"seed"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

// ClientOptions holds the configuration values for the CLI client.
type ClientOptions struct {
	// BaseURL is the backend root, e.g. http://localhost:8080.
	BaseURL string `json:"url"`

	// Store selects the credential store: "file" or "bolt".
	Store string `json:"store"`

	// SessionFile is the path used by the credential store.
	SessionFile string `json:"session_file"`

	// Timeout bounds each HTTP exchange.
	Timeout Duration `json:"timeout"`

	// CacheSize is the number of cached GET responses; 0 disables the cache.
	CacheSize int `json:"cache_size"`

	// RefreshInterval enables periodic session refresh when positive.
	RefreshInterval Duration `json:"refresh_interval"`

	// LogLevel is the zap level name.
	LogLevel string `json:"log_level"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

// Duration is a time.Duration read from JSON as a string ("30s").
type Duration struct {
	time.Duration
}

// UnmarshalJSON accepts "1h30m" style strings and integer nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		d.Duration = v
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid duration %s", b)
	}
	d.Duration = time.Duration(n)
	return nil
}

// ParseServer parses args (without the program name) and the environment.
func ParseServer(args []string) (*ServerOptions, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	options := &ServerOptions{}
	flags := flag.NewFlagSet("server", flag.ContinueOnError)
	flags.StringVar(&options.Port, "a", "localhost:8080", "run on ip:port server")
	flags.StringVar(&options.DatabaseDSN, "d", "", "db address")
	flags.StringVar(&options.RedisURL, "redis", "", "redis URL for session storage")
	flags.DurationVar(&options.SessionTTL.Duration, "session-ttl", 24*time.Hour, "session lifetime")
	flags.StringVar(&options.IdentitySecret, "identity-secret", "", "HS256 secret for identity tokens")
	flags.Float64Var(&options.LoginRPS, "login-rps", 5, "login attempts per second per client")
	flags.StringVar(&options.LogLevel, "log-level", "info", "log level")
	flags.StringVar(&options.Seed, "seed", "", "JSON file of products to load")
	flags.StringVar(&options.Config, "config", "", "path to config file")
	flags.StringVar(&options.Config, "c", "", "path to config file (shorthand)")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	// Override flags with environment variables if set
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}
	if err := readFile(options.Config, options); err != nil {
		return nil, err
	}

	if serverAddress := os.Getenv("SERVER_ADDRESS"); serverAddress != "" {
		options.Port = serverAddress
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		options.DatabaseDSN = dsn
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		options.RedisURL = redisURL
	}
	if secret := os.Getenv("IDENTITY_SECRET"); secret != "" {
		options.IdentitySecret = secret
	}
	if ttl := os.Getenv("SESSION_TTL"); ttl != "" {
		v, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("SESSION_TTL: %w", err)
		}
		options.SessionTTL.Duration = v
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		options.LogLevel = level
	}

	if options.SessionTTL.Duration <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	return options, nil
}

// ParseClient parses args (without the program name) and the environment.
func ParseClient(args []string) (*ClientOptions, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	options := &ClientOptions{}
	flags := flag.NewFlagSet("client", flag.ContinueOnError)
	flags.StringVar(&options.BaseURL, "url", "http://localhost:8080", "backend base URL")
	flags.StringVar(&options.Store, "store", "file", "credential store: file or bolt")
	flags.StringVar(&options.SessionFile, "session-file", defaultSessionFile(), "credential store path")
	flags.DurationVar(&options.Timeout.Duration, "timeout", 30*time.Second, "HTTP timeout")
	flags.IntVar(&options.CacheSize, "cache-size", 64, "cached GET responses, 0 disables")
	flags.DurationVar(&options.RefreshInterval.Duration, "refresh-interval", 0, "periodic session refresh, 0 disables")
	flags.StringVar(&options.LogLevel, "log-level", "warn", "log level")
	flags.StringVar(&options.Config, "config", "", "path to config file")
	flags.StringVar(&options.Config, "c", "", "path to config file (shorthand)")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if configPath := os.Getenv("OBSERVER_CONFIG"); configPath != "" {
		options.Config = configPath
	}
	if err := readFile(options.Config, options); err != nil {
		return nil, err
	}

	if baseURL := os.Getenv("OBSERVER_URL"); baseURL != "" {
		options.BaseURL = baseURL
	}
	if store := os.Getenv("OBSERVER_STORE"); store != "" {
		options.Store = store
	}
	if file := os.Getenv("OBSERVER_SESSION_FILE"); file != "" {
		options.SessionFile = file
	}
	if size := os.Getenv("OBSERVER_CACHE_SIZE"); size != "" {
		n, err := strconv.Atoi(size)
		if err != nil {
			return nil, fmt.Errorf("OBSERVER_CACHE_SIZE: %w", err)
		}
		options.CacheSize = n
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		options.LogLevel = level
	}

	switch options.Store {
	case "file", "bolt":
	default:
		return nil, fmt.Errorf("unknown credential store %q", options.Store)
	}
	return options, nil
}

// readFile merges the JSON config at path into options. A missing file is
// not an error.
func readFile(path string, options any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}
	if err := json.Unmarshal(data, options); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	return nil
}

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".observer-session.json"
	}
	return filepath.Join(dir, "observer", "session.json")
}
