package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	defaultConfigDir = ".hotelsync"
)

type Config struct {
	Env     string
	Storage Storage
	Backend Backend
	Server  Server
	Sync    Sync
	Logger  Logger
}

type Storage struct {
	Driver      string
	SQLitePath  string
	DatabaseURI string
}

type Backend struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type Server struct {
	RunAddress string
	// APIToken protects the operator API when set.
	APIToken string
}

type Sync struct {
	AutoSync     bool
	Interval     time.Duration
	PingInterval time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

type Logger struct {
	LogLevel string
}

// MustLoad reads configuration from .env, the optional config file and the
// environment, and panics if the result is invalid.
func MustLoad() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

// Load builds the configuration. cfgFile overrides the config file lookup in
// ~/.hotelsync and the working directory.
func Load(cfgFile string) (*Config, error) {
	loadDotEnv()

	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, defaultConfigDir))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Env: v.GetString("app_env"),
		Storage: Storage{
			Driver:      v.GetString("storage.driver"),
			SQLitePath:  expandHome(v.GetString("storage.sqlite_path")),
			DatabaseURI: v.GetString("storage.database_uri"),
		},
		Backend: Backend{
			BaseURL: strings.TrimRight(v.GetString("backend.base_url"), "/"),
			Token:   v.GetString("backend.token"),
			Timeout: v.GetDuration("backend.timeout"),
		},
		Server: Server{
			RunAddress: v.GetString("server.run_address"),
			APIToken:   v.GetString("server.api_token"),
		},
		Sync: Sync{
			AutoSync:     v.GetBool("sync.auto_sync"),
			Interval:     v.GetDuration("sync.interval"),
			PingInterval: v.GetDuration("sync.ping_interval"),
			MaxRetries:   v.GetInt("sync.max_retries"),
			RetryDelay:   v.GetDuration("sync.retry_delay"),
		},
		Logger: Logger{LogLevel: v.GetString("log_level")},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", EnvLocal)
	v.SetDefault("log_level", "info")
	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.sqlite_path", filepath.Join("~", defaultConfigDir, "offline.db"))
	v.SetDefault("backend.base_url", "http://localhost:8080")
	v.SetDefault("backend.timeout", 15*time.Second)
	v.SetDefault("server.run_address", "127.0.0.1:8787")
	v.SetDefault("server.api_token", "")
	v.SetDefault("sync.auto_sync", true)
	v.SetDefault("sync.interval", 30*time.Second)
	v.SetDefault("sync.ping_interval", 5*time.Second)
	v.SetDefault("sync.max_retries", 3)
	v.SetDefault("sync.retry_delay", 2*time.Second)
}

func loadDotEnv() {
	for _, path := range []string{".env", "../.env"} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return strings.TrimPrefix(path, "~"+string(filepath.Separator))
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path must not be empty")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURI == "" {
			return fmt.Errorf("storage.database_uri must not be empty for postgres")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url must not be empty")
	}
	if c.Sync.MaxRetries < 1 {
		return fmt.Errorf("sync.max_retries must be at least 1")
	}
	return nil
}

func (c *Config) IsProd() bool {
	return c.Env == EnvProd
}

func (c *Config) IsLocal() bool {
	return c.Env == EnvLocal || c.Env == ""
}
