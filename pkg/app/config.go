package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the service settings. File values are read first, command-line flags win.
type Config struct {
	ShowVersion bool          `yaml:"-"`
	Port        int           `yaml:"port"`
	APIURL      string        `yaml:"api_url"`
	APIToken    string        `yaml:"api_token"`
	APITimeout  time.Duration `yaml:"api_timeout"`
	DBType      string        `yaml:"db_type"`
	DBPath      string        `yaml:"db_path"`
	DBDSN       string        `yaml:"db_dsn"`
	AMQPURL     string        `yaml:"amqp_url"`
	LogLevel    string        `yaml:"log_level"`
}

func defaultConfig() Config {
	return Config{
		Port:       8765,
		APIURL:     "http://localhost:8000",
		APITimeout: 5 * time.Second,
		DBType:     "memory",
		DBPath:     "bistro-receipts.json",
		LogLevel:   "info",
	}
}

// address prefers $PORT so platform schedulers can assign the listener.
func (c Config) address() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":" + strconv.Itoa(c.Port)
}

func (c Config) validate() error {
	switch c.DBType {
	case "memory":
	case "pgx":
		if c.DBDSN == "" {
			return errors.New("-db-dsn is required with -db-type pgx")
		}
	default:
		return fmt.Errorf("unsupported db type %q", c.DBType)
	}
	if c.APIURL == "" {
		return errors.New("-api-url must not be empty")
	}
	if c.Port <= 0 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// parseFlags uses a dedicated FlagSet so Run can be called from multiple entry points.
func parseFlags(args []string) (Config, error) {
	set := flag.NewFlagSet("bistro", flag.ContinueOnError)
	set.SetOutput(io.Discard)

	var (
		cfg        = defaultConfig()
		configPath string
		flags      Config
	)
	set.BoolVar(&flags.ShowVersion, "version", false, "Show the application version")
	set.StringVar(&configPath, "config", "", "Optional YAML file with default settings")
	set.IntVar(&flags.Port, "port", cfg.Port, "Port for the HTTP server")
	set.StringVar(&flags.APIURL, "api-url", cfg.APIURL, "Base URL of the restaurant API")
	set.StringVar(&flags.APIToken, "api-token", "", "Bearer token for the restaurant API (or $BISTRO_API_TOKEN)")
	set.DurationVar(&flags.APITimeout, "api-timeout", cfg.APITimeout, "Timeout for restaurant API calls")
	set.StringVar(&flags.DBType, "db-type", cfg.DBType, "Receipt archive backend: memory or pgx (PostgreSQL)")
	set.StringVar(&flags.DBPath, "db-path", cfg.DBPath, "Snapshot file for the memory backend; empty keeps receipts in RAM only")
	set.StringVar(&flags.DBDSN, "db-dsn", "", "PostgreSQL connection string for -db-type pgx")
	set.StringVar(&flags.AMQPURL, "amqp-url", "", "RabbitMQ URL for receipt events; empty disables publishing")
	set.StringVar(&flags.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")

	if err := set.Parse(args); err != nil {
		return Config{}, err
	}

	if configPath != "" {
		if err := loadFile(configPath, &cfg); err != nil {
			return Config{}, err
		}
	}
	if cfg.APIToken == "" {
		cfg.APIToken = os.Getenv("BISTRO_API_TOKEN")
	}

	set.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = flags.Port
		case "api-url":
			cfg.APIURL = flags.APIURL
		case "api-token":
			cfg.APIToken = flags.APIToken
		case "api-timeout":
			cfg.APITimeout = flags.APITimeout
		case "db-type":
			cfg.DBType = flags.DBType
		case "db-path":
			cfg.DBPath = flags.DBPath
		case "db-dsn":
			cfg.DBDSN = flags.DBDSN
		case "amqp-url":
			cfg.AMQPURL = flags.AMQPURL
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		}
	})
	cfg.ShowVersion = flags.ShowVersion
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("unable to parse config %s: %w", path, err)
	}
	return nil
}
