// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ImageSource selects where post images come from.
type ImageSource string

// Supported image sources.
const (
	ImageSourceNone     ImageSource = "none"
	ImageSourceTemplate ImageSource = "template"
	ImageSourceOriginal ImageSource = "original"
)

// DefaultYandexEndpoint is the YandexGPT completion endpoint.
const DefaultYandexEndpoint = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"

// Config holds the application configuration.
type Config struct {
	TelegramToken string
	ChannelID     string
	FeedURLs      []string

	StateFile        string
	CheckInterval    time.Duration
	PostsPerHour     int
	MinDelay         time.Duration
	MaxEntriesKept   int
	FetchWorkers     int
	RequestTimeout   time.Duration

	DisableGPT          bool
	YandexAPIKey        string
	YandexFolderID      string
	YandexEndpoint      string
	GPTModel            string
	GPTTemperature      float64
	GPTMaxTokens        int
	GPTErrorThreshold   int

	EnableImages     bool
	ImageSource      ImageSource
	ImageFallback    bool
	ImageWorkers     int
	MaxTextLines     int
	ImageWidth       int
	ImageHeight      int

	ArchiveDatabasePath string
	MetricsAddr         string
	LogLevel            string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	channel := os.Getenv("CHANNEL_ID")
	if channel == "" {
		return nil, fmt.Errorf("CHANNEL_ID is required")
	}

	var urls []string
	for _, s := range strings.Split(os.Getenv("RSS_URLS"), ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
			return nil, fmt.Errorf("invalid feed URL %q in RSS_URLS", s)
		}
		urls = append(urls, s)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("RSS_URLS is required")
	}

	cfg := &Config{
		TelegramToken: token,
		ChannelID:     channel,
		FeedURLs:      urls,

		StateFile:      envString("STATE_FILE", "./data/state.json"),
		YandexAPIKey:   os.Getenv("YANDEX_API_KEY"),
		YandexFolderID: os.Getenv("YANDEX_FOLDER_ID"),
		YandexEndpoint: envString("YANDEX_API_ENDPOINT", DefaultYandexEndpoint),
		GPTModel:       envString("YAGPT_MODEL", "lite"),

		ArchiveDatabasePath: os.Getenv("ARCHIVE_DATABASE_PATH"),
		MetricsAddr:         os.Getenv("METRICS_ADDR"),
		LogLevel:            envString("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.CheckInterval, err = envSeconds("CHECK_INTERVAL", 300); err != nil {
		return nil, err
	}
	if cfg.MinDelay, err = envSeconds("MIN_DELAY_BETWEEN_POSTS", 0); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = envSeconds("REQUEST_TIMEOUT", 30); err != nil {
		return nil, err
	}
	if cfg.PostsPerHour, err = envInt("POSTS_PER_HOUR", 0); err != nil {
		return nil, err
	}
	if cfg.MaxEntriesKept, err = envInt("MAX_ENTRIES_HISTORY", 1000); err != nil {
		return nil, err
	}
	if cfg.FetchWorkers, err = envInt("FETCH_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.DisableGPT, err = envBool("DISABLE_YAGPT", false); err != nil {
		return nil, err
	}
	if cfg.GPTTemperature, err = envFloat("YAGPT_TEMPERATURE", 0.4); err != nil {
		return nil, err
	}
	if cfg.GPTMaxTokens, err = envInt("YAGPT_MAX_TOKENS", 2000); err != nil {
		return nil, err
	}
	if cfg.GPTErrorThreshold, err = envInt("YAGPT_ERROR_THRESHOLD", 10); err != nil {
		return nil, err
	}
	if cfg.EnableImages, err = envBool("ENABLE_IMAGE_GENERATION", false); err != nil {
		return nil, err
	}
	if cfg.ImageFallback, err = envBool("IMAGE_FALLBACK", true); err != nil {
		return nil, err
	}
	if cfg.ImageWorkers, err = envInt("IMAGE_GENERATION_WORKERS", 2); err != nil {
		return nil, err
	}
	if cfg.MaxTextLines, err = envInt("MAX_TEXT_LINES", 3); err != nil {
		return nil, err
	}
	if cfg.ImageWidth, err = envInt("MAX_IMAGE_WIDTH", 1200); err != nil {
		return nil, err
	}
	if cfg.ImageHeight, err = envInt("MAX_IMAGE_HEIGHT", 630); err != nil {
		return nil, err
	}

	switch src := ImageSource(envString("IMAGE_SOURCE", "none")); src {
	case ImageSourceNone, ImageSourceTemplate, ImageSourceOriginal:
		cfg.ImageSource = src
	default:
		return nil, fmt.Errorf("invalid IMAGE_SOURCE %q (want none, template or original)", src)
	}

	if cfg.PostsPerHour < 0 {
		return nil, fmt.Errorf("POSTS_PER_HOUR must not be negative")
	}
	if cfg.MinDelay < 0 {
		return nil, fmt.Errorf("MIN_DELAY_BETWEEN_POSTS must not be negative")
	}
	if cfg.CheckInterval <= 0 {
		return nil, fmt.Errorf("CHECK_INTERVAL must be positive")
	}
	if cfg.FetchWorkers <= 0 {
		cfg.FetchWorkers = 1
	}
	if cfg.ImageWorkers <= 0 {
		cfg.ImageWorkers = 1
	}

	return cfg, nil
}

// GPTEnabled reports whether the text rewrite step should run. Missing
// credentials deactivate the rewriter rather than failing startup.
func (c *Config) GPTEnabled() bool {
	return !c.DisableGPT && c.YandexAPIKey != "" && c.YandexFolderID != ""
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envSeconds(key string, def int) (time.Duration, error) {
	v, err := envInt(key, def)
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * time.Second, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envBool(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid %s %q: want a boolean", key, raw)
}
