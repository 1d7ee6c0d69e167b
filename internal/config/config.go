package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"recmerge/internal/table"
)

type Config struct {
	OutputPath  string
	IDField     string
	Placeholder string
	DBPath      string
	CSVEncoding string

	WatchIntervalSec int
	WatchSettleMs    int

	LogLevel  string
	LogFormat string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		OutputPath:  getEnv("RECMERGE_OUTPUT", "combined.csv"),
		IDField:     getEnv("RECMERGE_ID_FIELD", table.DefaultIDField),
		Placeholder: getEnv("RECMERGE_PLACEHOLDER", ""),
		DBPath:      getEnv("RECMERGE_DB_PATH", ""),
		CSVEncoding: getEnv("RECMERGE_CSV_ENCODING", "utf-8"),

		WatchIntervalSec: getEnvInt("RECMERGE_WATCH_INTERVAL_SEC", 30),
		WatchSettleMs:    getEnvInt("RECMERGE_WATCH_SETTLE_MS", 500),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if strings.TrimSpace(cfg.IDField) == "" {
		return Config{}, fmt.Errorf("RECMERGE_ID_FIELD must not be empty")
	}
	if strings.TrimSpace(cfg.OutputPath) == "" {
		return Config{}, fmt.Errorf("RECMERGE_OUTPUT must not be empty")
	}
	return cfg, nil
}

// Warnings lists settings that load but are likely mistakes.
func (c Config) Warnings() []string {
	var out []string
	if c.IDField != strings.ToUpper(c.IDField) {
		out = append(out, fmt.Sprintf("RECMERGE_ID_FIELD %q is not upper case; CSV headers are upper-cased, so CSV rows will not match it", c.IDField))
	}
	return out
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required setting: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
