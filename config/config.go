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
	PostgresDSN   string
	OpsDBPath     string
	LogDir        string
	EncryptionKey string // base64, 32 bytes decoded

	ProxyURL    string
	RedisAddr   string
	MetricsAddr string

	Scheduler SchedulerConfig
	Search    SearchConfig
	Mail      MailConfig
	S3        S3Config
	OAuth     map[string]OAuthClient // keyed by provider (gmail, outlook)

	Platforms map[string]*PlatformConfig
}

// SearchConfig is the default search scope for scheduled scrapes. Commands
// may override per run.
type SearchConfig struct {
	Region  string
	Keyword string
}

type SchedulerConfig struct {
	ScrapeCron string
	SyncCron   string
	Interval   time.Duration // fallback ticker when no cron is set
}

type MailConfig struct {
	InitialBatch int // first-sync page set size, clamped to 100..500
	BodyTimeout  time.Duration
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional, for S3-compatible stores
	KeyPrefix string
	AccessKey string
	SecretKey string
}

// OAuthClient is what the token refresh call needs per provider. Secrets come
// from env, not YAML.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// PlatformConfig is one scraping platform, loaded from config/platforms/*.yaml.
type PlatformConfig struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Enabled        bool     `yaml:"enabled"`
	BaseURL        string   `yaml:"base_url"`
	SearchPath     string   `yaml:"search_path"`
	HourlyCap      int      `yaml:"hourly_cap"`
	MinDelayMS     int      `yaml:"min_delay_ms"`
	MaxDelayMS     int      `yaml:"max_delay_ms"`
	PageCap        int      `yaml:"page_cap"`
	LoginMarkers   []string `yaml:"login_markers"`   // final-URL substrings meaning "bounced to login"
	AlertDomains   []string `yaml:"alert_domains"`   // sender domains for this platform's alert mail
	RequestTimeout int      `yaml:"request_timeout"` // seconds
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		PostgresDSN:   os.Getenv("DATABASE_URL"),
		OpsDBPath:     getEnv("OPS_DB_PATH", "dealscout.db"),
		LogDir:        getEnv("LOG_DIR", "logs"),
		EncryptionKey: os.Getenv("DEALSCOUT_ENCRYPTION_KEY"),
		ProxyURL:      os.Getenv("PROXY_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		MetricsAddr:   getEnv("METRICS_ADDR", ""),
		Scheduler: SchedulerConfig{
			ScrapeCron: os.Getenv("SCRAPE_CRON"),
			SyncCron:   os.Getenv("SYNC_CRON"),
		},
		Search: SearchConfig{
			Region:  os.Getenv("SEARCH_REGION"),
			Keyword: os.Getenv("SEARCH_KEYWORD"),
		},
		Mail: MailConfig{
			InitialBatch: getEnvInt("MAIL_INITIAL_BATCH", 200),
			BodyTimeout:  time.Duration(getEnvInt("MAIL_BODY_TIMEOUT_SEC", 20)) * time.Second,
		},
		S3: S3Config{
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			KeyPrefix: getEnv("S3_KEY_PREFIX", "payloads"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
		},
		OAuth: map[string]OAuthClient{
			"gmail": {
				ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
				ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
				TokenURL:     getEnv("GOOGLE_TOKEN_URL", "https://oauth2.googleapis.com/token"),
			},
			"outlook": {
				ClientID:     os.Getenv("MS_CLIENT_ID"),
				ClientSecret: os.Getenv("MS_CLIENT_SECRET"),
				TokenURL:     getEnv("MS_TOKEN_URL", "https://login.microsoftonline.com/common/oauth2/v2.0/token"),
			},
		},
		Platforms: make(map[string]*PlatformConfig),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if cfg.Mail.InitialBatch < 100 {
		cfg.Mail.InitialBatch = 100
	}
	if cfg.Mail.InitialBatch > 500 {
		cfg.Mail.InitialBatch = 500
	}

	if err := cfg.loadPlatformConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadPlatformConfigs() error {
	configDir := "config/platforms"
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

		var platform PlatformConfig
		if err := yaml.Unmarshal(data, &platform); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if platform.ID == "" {
			return fmt.Errorf("%s: platform id is required", path)
		}
		applyPlatformDefaults(&platform)

		c.Platforms[platform.ID] = &platform
	}

	return nil
}

func applyPlatformDefaults(p *PlatformConfig) {
	if p.HourlyCap == 0 {
		p.HourlyCap = 60
	}
	if p.MinDelayMS == 0 {
		p.MinDelayMS = 3000
	}
	if p.MaxDelayMS == 0 {
		p.MaxDelayMS = 10000
	}
	if p.PageCap == 0 {
		p.PageCap = 50
	}
	if p.RequestTimeout == 0 {
		p.RequestTimeout = 30
	}
	if len(p.LoginMarkers) == 0 {
		p.LoginMarkers = []string{"/login", "/signin", "/auth", "redirect_to="}
	}
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
