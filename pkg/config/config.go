// Package config assembles the runtime configuration from the environment
// (optionally a .env file) and a JSON watch file listing the products and
// store targets to monitor. The loaded value is passed explicitly into the
// monitor; nothing here is mutated after Load returns.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"stockwatch/pkg/models"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Config struct {
	ListenAddr    string
	WatchFile     string
	Interval      time.Duration
	SettleDelay   time.Duration
	StorePause    time.Duration
	Headless      bool
	UserAgent     string
	ExportDir     string
	HistoryDBPath string

	SMTP       SMTP
	Recipients []string

	Products []models.Product
	Stores   []models.StoreTarget
}

// Load reads the environment and the watch file. A missing .env file is
// fine; a missing or invalid watch file is not.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:    getEnv("LISTEN_ADDR", ":9090"),
		WatchFile:     getEnv("WATCH_FILE", "./watch.json"),
		Headless:      getEnv("HEADLESS", "true") != "false",
		UserAgent:     getEnv("SCRAPER_USER_AGENT", defaultUserAgent),
		ExportDir:     getEnv("EXPORT_DIR", "./data"),
		HistoryDBPath: getEnv("HISTORY_DB_PATH", "./history.db"),
		SMTP: SMTP{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
		},
	}

	port, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	cfg.SMTP.Port = port

	cfg.Interval, err = parseDuration("CHECK_INTERVAL", "6h")
	if err != nil {
		return nil, err
	}
	cfg.SettleDelay, err = parseDuration("SETTLE_DELAY", "30s")
	if err != nil {
		return nil, err
	}
	cfg.StorePause, err = parseDuration("STORE_PAUSE", "1s")
	if err != nil {
		return nil, err
	}

	for _, r := range strings.Split(getEnv("RECIPIENTS", ""), ",") {
		if r = strings.TrimSpace(r); r != "" {
			cfg.Recipients = append(cfg.Recipients, r)
		}
	}

	if err := cfg.loadWatchFile(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type watchFile struct {
	Products []models.Product     `json:"products"`
	Stores   []models.StoreTarget `json:"stores"`
}

func (c *Config) loadWatchFile() error {
	data, err := os.ReadFile(c.WatchFile)
	if err != nil {
		return fmt.Errorf("read watch file: %w", err)
	}
	var wf watchFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return fmt.Errorf("decode watch file %s: %w", c.WatchFile, err)
	}

	if len(wf.Products) == 0 {
		return fmt.Errorf("watch file %s lists no products", c.WatchFile)
	}
	if len(wf.Stores) == 0 {
		return fmt.Errorf("watch file %s lists no store targets", c.WatchFile)
	}
	for i, p := range wf.Products {
		if p.Label == "" || p.URL == "" || p.SnapshotDir == "" {
			return fmt.Errorf("watch file product %d is missing label, url or snapshot_dir", i)
		}
	}
	for i, s := range wf.Stores {
		if s.Label == "" || s.SearchQuery == "" {
			return fmt.Errorf("watch file store %d is missing label or search_query", i)
		}
	}

	c.Products = wf.Products
	c.Stores = wf.Stores
	return nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
