package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultCommandTimeout   = 300
	DefaultHTTPTimeout      = 30
	DefaultReminderChannel  = "console"
	DefaultIntakeAddr       = "127.0.0.1:18791"
	DefaultAlertThreshold   = 70
	DefaultFetchConcurrency = 2
	DefaultFetchDelayMs     = 2000
	DefaultTimezone         = "America/New_York"
	DefaultArchiveDays      = 30
	DefaultGA4PropertyID    = "G-07WYT2HRDW"
)

type Config struct {
	DataDir   string          `json:"dataDir" toml:"dataDir"`
	Leads     LeadsConfig     `json:"leads" toml:"leads"`
	Cron      CronConfig      `json:"cron" toml:"cron"`
	News      NewsConfig      `json:"news" toml:"news"`
	Alerts    AlertsConfig    `json:"alerts" toml:"alerts"`
	Social    SocialConfig    `json:"social" toml:"social"`
	Telegram  TelegramConfig  `json:"telegram" toml:"telegram"`
	Memory    MemoryConfig    `json:"memory" toml:"memory"`
	Skills    SkillsConfig    `json:"skills" toml:"skills"`
	Analytics AnalyticsConfig `json:"analytics" toml:"analytics"`
}

type LeadsConfig struct {
	IntakeAddr string `json:"intakeAddr" toml:"intakeAddr"`
}

type CronConfig struct {
	Channel        string `json:"channel" toml:"channel"`
	CommandTimeout int    `json:"commandTimeout" toml:"commandTimeout"` // seconds
	SystemCrontab  bool   `json:"systemCrontab" toml:"systemCrontab"`
}

type NewsConfig struct {
	AlertThreshold   int  `json:"alertThreshold" toml:"alertThreshold"`
	FetchConcurrency int  `json:"fetchConcurrency" toml:"fetchConcurrency"`
	FetchDelayMs     int  `json:"fetchDelayMs" toml:"fetchDelayMs"`
	HTTPTimeout      int  `json:"httpTimeout" toml:"httpTimeout"` // seconds
	FullText         bool `json:"fullText" toml:"fullText"`
}

type AlertsConfig struct {
	ResendAPIKey string `json:"resendApiKey,omitempty" toml:"resendApiKey"`
	Email        string `json:"email,omitempty" toml:"email"`
	FromEmail    string `json:"fromEmail,omitempty" toml:"fromEmail"`
	WebhookURL   string `json:"webhookUrl,omitempty" toml:"webhookUrl"`
}

type SocialConfig struct {
	Timezone string         `json:"timezone" toml:"timezone"`
	Twitter  TwitterConfig  `json:"twitter" toml:"twitter"`
	LinkedIn LinkedInConfig `json:"linkedin" toml:"linkedin"`
	Bluesky  BlueskyConfig  `json:"bluesky" toml:"bluesky"`
}

type TwitterConfig struct {
	ConsumerKey       string `json:"consumerKey,omitempty" toml:"consumerKey"`
	ConsumerSecret    string `json:"consumerSecret,omitempty" toml:"consumerSecret"`
	AccessToken       string `json:"accessToken,omitempty" toml:"accessToken"`
	AccessTokenSecret string `json:"accessTokenSecret,omitempty" toml:"accessTokenSecret"`
}

type LinkedInConfig struct {
	AccessToken string `json:"accessToken,omitempty" toml:"accessToken"`
}

type BlueskyConfig struct {
	Handle      string `json:"handle,omitempty" toml:"handle"`
	AppPassword string `json:"appPassword,omitempty" toml:"appPassword"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled" toml:"enabled"`
	Token   string `json:"token" toml:"token"`
	ChatID  int64  `json:"chatId" toml:"chatId"`
	Proxy   string `json:"proxy,omitempty" toml:"proxy"`
}

type MemoryConfig struct {
	Dir         string `json:"dir" toml:"dir"`
	IndexPath   string `json:"indexPath,omitempty" toml:"indexPath"`
	ArchiveDays int    `json:"archiveDays" toml:"archiveDays"`
}

type SkillsConfig struct {
	Dir          string `json:"dir" toml:"dir"`
	RegistryPath string `json:"registryPath,omitempty" toml:"registryPath"`
}

type AnalyticsConfig struct {
	PropertyID      string `json:"propertyId" toml:"propertyId"`
	CredentialsPath string `json:"credentialsPath" toml:"credentialsPath"`
}

func DefaultConfig() *Config {
	dir := ConfigDir()
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir: filepath.Join(dir, "data"),
		Leads: LeadsConfig{
			IntakeAddr: DefaultIntakeAddr,
		},
		Cron: CronConfig{
			Channel:        DefaultReminderChannel,
			CommandTimeout: DefaultCommandTimeout,
		},
		News: NewsConfig{
			AlertThreshold:   DefaultAlertThreshold,
			FetchConcurrency: DefaultFetchConcurrency,
			FetchDelayMs:     DefaultFetchDelayMs,
			HTTPTimeout:      DefaultHTTPTimeout,
		},
		Social: SocialConfig{
			Timezone: DefaultTimezone,
		},
		Memory: MemoryConfig{
			Dir:         filepath.Join(dir, "workspace", "memory"),
			ArchiveDays: DefaultArchiveDays,
		},
		Skills: SkillsConfig{
			Dir: filepath.Join(dir, "workspace", "skills"),
		},
		Analytics: AnalyticsConfig{
			PropertyID:      DefaultGA4PropertyID,
			CredentialsPath: filepath.Join(home, ".config", "opsclaw-analytics", "credentials.json"),
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".opsclaw")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func tomlConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// SkillDataDir returns the per-skill data directory, e.g. <dataDir>/leads.
func (c *Config) SkillDataDir(skill string) string {
	return filepath.Join(c.DataDir, skill)
}

// DataFile returns <dataDir>/<skill>/<name>.
func (c *Config) DataFile(skill, name string) string {
	return filepath.Join(c.SkillDataDir(skill), name)
}

func (c *Config) IndexPath() string {
	if c.Memory.IndexPath != "" {
		return c.Memory.IndexPath
	}
	return filepath.Join(c.DataDir, "memory", "index.db")
}

func (c *Config) RegistryPath() string {
	if c.Skills.RegistryPath != "" {
		return c.Skills.RegistryPath
	}
	return filepath.Join(c.Skills.Dir, "registry.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(tomlConfigPath()); err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config.toml: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config.toml: %w", err)
	} else {
		data, err := os.ReadFile(ConfigPath())
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	defaults := DefaultConfig()
	if cfg.DataDir == "" {
		cfg.DataDir = defaults.DataDir
	}
	if cfg.Cron.Channel == "" {
		cfg.Cron.Channel = DefaultReminderChannel
	}
	if cfg.Cron.CommandTimeout <= 0 {
		cfg.Cron.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.News.AlertThreshold <= 0 {
		cfg.News.AlertThreshold = DefaultAlertThreshold
	}
	if cfg.News.FetchConcurrency <= 0 {
		cfg.News.FetchConcurrency = DefaultFetchConcurrency
	}
	if cfg.News.HTTPTimeout <= 0 {
		cfg.News.HTTPTimeout = DefaultHTTPTimeout
	}
	if cfg.Social.Timezone == "" {
		cfg.Social.Timezone = DefaultTimezone
	}
	if cfg.Memory.Dir == "" {
		cfg.Memory.Dir = defaults.Memory.Dir
	}
	if cfg.Memory.ArchiveDays <= 0 {
		cfg.Memory.ArchiveDays = DefaultArchiveDays
	}
	if cfg.Skills.Dir == "" {
		cfg.Skills.Dir = defaults.Skills.Dir
	}
	if cfg.Analytics.PropertyID == "" {
		cfg.Analytics.PropertyID = DefaultGA4PropertyID
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if dir := os.Getenv("OPSCLAW_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	if ch := os.Getenv("OPSCLAW_CRON_CHANNEL"); ch != "" {
		cfg.Cron.Channel = ch
	}
	if timeout := os.Getenv("OPSCLAW_CRON_TIMEOUT"); timeout != "" {
		if parsed, err := strconv.Atoi(timeout); err == nil {
			cfg.Cron.CommandTimeout = parsed
		}
	}
	if addr := os.Getenv("OPSCLAW_INTAKE_ADDR"); addr != "" {
		cfg.Leads.IntakeAddr = addr
	}
	if key := os.Getenv("RESEND_API_KEY"); key != "" {
		cfg.Alerts.ResendAPIKey = key
	}
	if email := os.Getenv("ALERT_EMAIL"); email != "" {
		cfg.Alerts.Email = email
	}
	if from := os.Getenv("FROM_EMAIL"); from != "" {
		cfg.Alerts.FromEmail = from
	}
	if hook := os.Getenv("ALERT_WEBHOOK"); hook != "" {
		cfg.Alerts.WebhookURL = hook
	}
	if v := os.Getenv("TWITTER_CONSUMER_KEY"); v != "" {
		cfg.Social.Twitter.ConsumerKey = v
	}
	if v := os.Getenv("TWITTER_CONSUMER_SECRET"); v != "" {
		cfg.Social.Twitter.ConsumerSecret = v
	}
	if v := os.Getenv("TWITTER_ACCESS_TOKEN"); v != "" {
		cfg.Social.Twitter.AccessToken = v
	}
	if v := os.Getenv("TWITTER_ACCESS_TOKEN_SECRET"); v != "" {
		cfg.Social.Twitter.AccessTokenSecret = v
	}
	if v := os.Getenv("LINKEDIN_ACCESS_TOKEN"); v != "" {
		cfg.Social.LinkedIn.AccessToken = v
	}
	if v := os.Getenv("BLUESKY_HANDLE"); v != "" {
		cfg.Social.Bluesky.Handle = v
	}
	if v := os.Getenv("BLUESKY_APP_PASSWORD"); v != "" {
		cfg.Social.Bluesky.AppPassword = v
	}
	if token := os.Getenv("OPSCLAW_TELEGRAM_TOKEN"); token != "" {
		cfg.Telegram.Token = token
		cfg.Telegram.Enabled = true
	}
	if chat := os.Getenv("OPSCLAW_TELEGRAM_CHAT_ID"); chat != "" {
		if parsed, err := strconv.ParseInt(chat, 10, 64); err == nil {
			cfg.Telegram.ChatID = parsed
		}
	}
	if id := os.Getenv("GA4_PROPERTY_ID"); id != "" {
		cfg.Analytics.PropertyID = id
	}
	if path := os.Getenv("GA4_CREDENTIALS"); path != "" {
		cfg.Analytics.CredentialsPath = path
	}
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
