package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingBotToken = errors.New("BOT_TOKEN is not set")

type Config struct {
	BotToken    string
	PostgresDSN string
	HTTPAddr    string

	Redis    RedisConfig
	YooKassa YooKassaConfig
	YooMoney YooMoneyConfig
	Poll     PollConfig
	Trial    TrialConfig
	Log      LogConfig

	MetricsNamespace string
	FlowTTLHours     int

	// Warnings lists values that could not be parsed and were replaced by defaults.
	Warnings []string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Prefix   string
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type YooKassaConfig struct {
	ShopID    string
	SecretKey string
	APIURL    string
	ReturnURL string
}

type YooMoneyConfig struct {
	NotificationSecret string
}

type PollConfig struct {
	Interval    time.Duration
	ItemTimeout time.Duration
	Grace       time.Duration
	Workers     int
}

type TrialConfig struct {
	Days   int
	Server string
}

type LogConfig struct {
	Level  string
	Format string
}

// LoadEnvFiles merges the given env files into the process environment.
// Missing files are skipped and variables already set win.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func Load() (*Config, error) {
	c := &Config{}

	c.BotToken = strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	c.PostgresDSN = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	c.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	c.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       c.getEnvInt("REDIS_DB", 0),
		Prefix:   getEnv("REDIS_PREFIX", "vpn_bot"),
	}

	c.YooKassa = YooKassaConfig{
		ShopID:    strings.TrimSpace(os.Getenv("YOOKASSA_SHOP_ID")),
		SecretKey: strings.TrimSpace(os.Getenv("YOOKASSA_SECRET_KEY")),
		APIURL:    getEnv("YOOKASSA_API_URL", "https://api.yookassa.ru/v3"),
		ReturnURL: getEnv("YOOKASSA_RETURN_URL", "https://t.me"),
	}

	c.YooMoney = YooMoneyConfig{
		NotificationSecret: strings.TrimSpace(os.Getenv("YOOMONEY_NOTIFICATION_SECRET")),
	}

	c.Poll = PollConfig{
		Interval:    c.getEnvDuration("POLL_INTERVAL", 30*time.Second),
		ItemTimeout: c.getEnvDuration("POLL_ITEM_TIMEOUT", 10*time.Second),
		Grace:       c.getEnvDuration("POLL_GRACE", 10*time.Second),
		Workers:     c.getEnvInt("POLL_WORKERS", 4),
	}

	c.Trial = TrialConfig{
		Days:   c.getEnvInt("TRIAL_DAYS", 3),
		Server: getEnv("TRIAL_SERVER", "germany"),
	}

	c.Log = LogConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}

	c.MetricsNamespace = getEnv("METRICS_NAMESPACE", "vpnbot")
	c.FlowTTLHours = c.getEnvInt("FLOW_TTL_HOURS", 1)

	if c.BotToken == "" {
		return c, ErrMissingBotToken
	}
	return c, nil
}

func getEnv(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func (c *Config) getEnvInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s=%q, using %d", name, v, def))
		return def
	}
	return n
}

func (c *Config) getEnvDuration(name string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// bare numbers are seconds
		secs, convErr := strconv.Atoi(v)
		if convErr != nil {
			c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s=%q, using %s", name, v, def))
			return def
		}
		d = time.Duration(secs) * time.Second
	}
	if d <= 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s=%q, using %s", name, v, def))
		return def
	}
	return d
}
