package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database  DatabaseConfig
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
	Scraper   ScraperConfig
	Proxy     ProxyConfig
	S3        S3Config
	DBPath    string
	LogLevel  string
	Adapters  map[string]*AdapterConfig
}

type DatabaseConfig struct {
	URL string
}

type HTTPConfig struct {
	Addr string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ScraperConfig struct {
	Concurrency   int           // concurrent dealer fetches per job
	MaxPerDealer  int           // default per-dealer listing cap
	DealerTimeout time.Duration // hard bound on one adapter fetch
	MaxRetries    int           // transient-error retries per dealer
	RetryBackoff  time.Duration
	RatePerSec    float64 // adapter fetch rate across the pool
	StaleAfter    time.Duration
}

type ProxyConfig struct {
	URL string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // for DO Spaces, R2, etc.
	AccessKeyID     string
	SecretAccessKey string
}

// AdapterConfig describes one supported site layout, loaded from
// config/adapters/*.yaml. HTML adapters are driven entirely by the
// selector set; browser adapters reuse the same selectors after the
// page has rendered.
type AdapterConfig struct {
	ID           string      `yaml:"id"`
	Name         string      `yaml:"name"`
	Handler      string      `yaml:"handler"` // html or browser
	HostPatterns []string    `yaml:"host_patterns"`
	RateLimitMS  int         `yaml:"rate_limit_ms"`
	Selectors    SelectorSet `yaml:"selectors"`
}

// SelectorSet holds the CSS selectors used to pull vehicle fields out of
// one dealer site layout.
type SelectorSet struct {
	Container    string `yaml:"container"`
	VIN          string `yaml:"vin"`
	VINAttr      string `yaml:"vin_attr"`
	Title        string `yaml:"title"`
	Price        string `yaml:"price"`
	Mileage      string `yaml:"mileage"`
	Condition    string `yaml:"condition"`
	FuelType     string `yaml:"fuel_type"`
	Transmission string `yaml:"transmission"`
	StockNumber  string `yaml:"stock_number"`
	Photo        string `yaml:"photo"`
	PhotoAttr    string `yaml:"photo_attr"`
	Link         string `yaml:"link"`
	NextPage     string `yaml:"next_page"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Scraper: ScraperConfig{
			Concurrency:   getEnvInt("SCRAPE_CONCURRENCY", 3),
			MaxPerDealer:  getEnvInt("SCRAPE_MAX_PER_DEALER", 100),
			DealerTimeout: getEnvDuration("SCRAPE_DEALER_TIMEOUT", 60*time.Second),
			MaxRetries:    getEnvInt("SCRAPE_MAX_RETRIES", 2),
			RetryBackoff:  getEnvDuration("SCRAPE_RETRY_BACKOFF", 2*time.Second),
			RatePerSec:    getEnvFloat("SCRAPE_RATE_PER_SEC", 1.0),
			StaleAfter:    getEnvDuration("VEHICLE_STALE_AFTER", 72*time.Hour),
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("SCRAPE_PROXY_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		DBPath:   getEnv("DB_PATH", "lotpulse.db"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Adapters: make(map[string]*AdapterConfig),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadAdapterConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadAdapterConfigs() error {
	configDir := "config/adapters"
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var adapter AdapterConfig
		if err := yaml.Unmarshal(data, &adapter); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		c.Adapters[adapter.ID] = &adapter
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
