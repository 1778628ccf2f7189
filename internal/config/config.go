package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/psds-microservice/support-service/internal/model"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	AppHost  string
	HTTPPort string
	AppEnv   string
	LogLevel string

	// AuthJWTSecret signs caller tokens issued by the chat bridge. Empty means X-Caller-ID is trusted (development only).
	AuthJWTSecret  string
	RateLimitRPS   float64
	RateLimitBurst int

	// Static staff lists, reconciled into stored roles at every session start.
	AdminIDs  []string
	AgentIDs  []string
	RolesFile string

	KafkaBrokers     []string
	KafkaTopicNotify string
	ChatGatewayURL   string
	ChatGatewayToken string
	NotifyTimeout    time.Duration
	NotifyRate       float64
	NotifyParallel   int

	DB struct {
		Driver   string
		Host     string
		Port     string
		User     string
		Password string
		Database string
		SSLMode  string
		Path     string
	}
}

// rolesFile is the YAML layout of ROLES_FILE.
type rolesFile struct {
	Admins []string `yaml:"admins"`
	Agents []string `yaml:"agents"`
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		AppHost:          getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:         firstEnv("APP_PORT", "HTTP_PORT", "8098"),
		AppEnv:           getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		AuthJWTSecret:    getEnv("AUTH_JWT_SECRET", ""),
		AdminIDs:         splitList(getEnv("ADMIN_IDS", "")),
		AgentIDs:         splitList(getEnv("AGENT_IDS", "")),
		RolesFile:        getEnv("ROLES_FILE", ""),
		KafkaBrokers:     splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopicNotify: getEnv("KAFKA_TOPIC_NOTIFICATIONS", "support.notifications"),
		ChatGatewayURL:   strings.TrimRight(getEnv("CHAT_GATEWAY_URL", ""), "/"),
		ChatGatewayToken: getEnv("CHAT_GATEWAY_TOKEN", ""),
	}
	var err error
	if cfg.RateLimitRPS, err = getEnvFloat("RATE_LIMIT_RPS", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", 20); err != nil {
		return nil, err
	}
	if cfg.NotifyTimeout, err = getEnvDuration("NOTIFY_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.NotifyRate, err = getEnvFloat("NOTIFY_RATE", 25); err != nil {
		return nil, err
	}
	if cfg.NotifyParallel, err = getEnvInt("NOTIFY_PARALLEL", 8); err != nil {
		return nil, err
	}

	cfg.DB.Driver = strings.ToLower(getEnv("DB_DRIVER", DriverPostgres))
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "support_service")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.DB.Path = getEnv("DB_PATH", "data/support.db")

	if cfg.RolesFile != "" {
		admins, agents, err := readRolesFile(cfg.RolesFile)
		if err != nil {
			return nil, err
		}
		cfg.AdminIDs = append(cfg.AdminIDs, admins...)
		cfg.AgentIDs = append(cfg.AgentIDs, agents...)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DB.Driver {
	case DriverPostgres:
		if c.DB.Host == "" || c.DB.Database == "" {
			return errors.New("config: DB_HOST and DB_DATABASE are required")
		}
		if c.AppEnv == "production" && c.DB.Password == "" {
			return errors.New("config: in production DB_PASSWORD is required")
		}
	case DriverSQLite:
		if c.DB.Path == "" {
			return errors.New("config: DB_PATH is required for sqlite")
		}
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.AppEnv == "production" && c.AuthJWTSecret == "" {
		return errors.New("config: in production AUTH_JWT_SECRET is required")
	}
	if c.NotifyTimeout <= 0 {
		return errors.New("config: NOTIFY_TIMEOUT must be positive")
	}
	return nil
}

// Roster returns the static staff lists as the value consumed by role reconciliation.
func (c *Config) Roster() model.Roster {
	return model.NewRoster(c.AdminIDs, c.AgentIDs)
}

// DSN returns the driver-specific connection string.
func (c *Config) DSN() string {
	if c.DB.Driver == DriverSQLite {
		return "file:" + c.DB.Path + "?_foreign_keys=on&_busy_timeout=5000"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

func readRolesFile(path string) (admins, agents []string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("config: read roles file: %w", err)
	}
	var rf rolesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, nil, fmt.Errorf("config: parse roles file %s: %w", path, err)
	}
	return rf.Admins, rf.Agents, nil
}

func splitList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid integer for %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid number for %s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid duration for %s: %w", key, err)
	}
	return d, nil
}
