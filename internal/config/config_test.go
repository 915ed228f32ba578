package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPSCLAW_DATA_DIR", "OPSCLAW_CRON_CHANNEL", "OPSCLAW_CRON_TIMEOUT",
		"RESEND_API_KEY", "ALERT_EMAIL", "FROM_EMAIL", "ALERT_WEBHOOK",
		"TWITTER_CONSUMER_KEY", "OPSCLAW_TELEGRAM_TOKEN", "GA4_PROPERTY_ID",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if cfg.Cron.Channel != DefaultReminderChannel {
		t.Errorf("channel = %q, want %q", cfg.Cron.Channel, DefaultReminderChannel)
	}
	if cfg.Cron.CommandTimeout != DefaultCommandTimeout {
		t.Errorf("commandTimeout = %d, want %d", cfg.Cron.CommandTimeout, DefaultCommandTimeout)
	}
	if cfg.News.AlertThreshold != DefaultAlertThreshold {
		t.Errorf("alertThreshold = %d, want %d", cfg.News.AlertThreshold, DefaultAlertThreshold)
	}
	if cfg.Social.Timezone != DefaultTimezone {
		t.Errorf("timezone = %q, want %q", cfg.Social.Timezone, DefaultTimezone)
	}
	if cfg.DataDir == "" {
		t.Error("dataDir should not be empty")
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	want := filepath.Join(tmpDir, ".opsclaw", "data")
	if cfg.DataDir != want {
		t.Errorf("dataDir = %q, want %q", cfg.DataDir, want)
	}
	if cfg.SkillDataDir("leads") != filepath.Join(want, "leads") {
		t.Errorf("skill data dir = %q", cfg.SkillDataDir("leads"))
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	clearEnv(t)

	cfgDir := filepath.Join(tmpDir, ".opsclaw")
	os.MkdirAll(cfgDir, 0755)

	testCfg := map[string]any{
		"cron": map[string]any{
			"channel":        "telegram",
			"commandTimeout": 60,
		},
		"alerts": map[string]any{
			"email": "ops@example.com",
		},
	}
	data, _ := json.MarshalIndent(testCfg, "", "  ")
	os.WriteFile(filepath.Join(cfgDir, "config.json"), data, 0644)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Cron.Channel != "telegram" {
		t.Errorf("channel = %q, want telegram", cfg.Cron.Channel)
	}
	if cfg.Cron.CommandTimeout != 60 {
		t.Errorf("commandTimeout = %d, want 60", cfg.Cron.CommandTimeout)
	}
	if cfg.Alerts.Email != "ops@example.com" {
		t.Errorf("email = %q, want ops@example.com", cfg.Alerts.Email)
	}
	if cfg.News.AlertThreshold != DefaultAlertThreshold {
		t.Errorf("alertThreshold = %d, want default %d", cfg.News.AlertThreshold, DefaultAlertThreshold)
	}
}

func TestLoadConfig_TOMLWins(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	clearEnv(t)

	cfgDir := filepath.Join(tmpDir, ".opsclaw")
	os.MkdirAll(cfgDir, 0755)
	os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte(`{"cron":{"channel":"json"}}`), 0644)
	toml := "[cron]\nchannel = \"toml\"\n\n[news]\nalertThreshold = 80\n"
	os.WriteFile(filepath.Join(cfgDir, "config.toml"), []byte(toml), 0644)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Cron.Channel != "toml" {
		t.Errorf("channel = %q, want toml", cfg.Cron.Channel)
	}
	if cfg.News.AlertThreshold != 80 {
		t.Errorf("alertThreshold = %d, want 80", cfg.News.AlertThreshold)
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	clearEnv(t)

	cfgDir := filepath.Join(tmpDir, ".opsclaw")
	os.MkdirAll(cfgDir, 0755)
	os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte("{not json"), 0644)

	if _, err := LoadConfig(); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	clearEnv(t)

	t.Setenv("OPSCLAW_CRON_CHANNEL", "telegram")
	t.Setenv("RESEND_API_KEY", "re_test")
	t.Setenv("ALERT_WEBHOOK", "https://hooks.example.com/x")
	t.Setenv("TWITTER_CONSUMER_KEY", "ck")
	t.Setenv("OPSCLAW_TELEGRAM_TOKEN", "123:abc")
	t.Setenv("OPSCLAW_TELEGRAM_CHAT_ID", "42")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Cron.Channel != "telegram" {
		t.Errorf("channel = %q, want telegram", cfg.Cron.Channel)
	}
	if cfg.Alerts.ResendAPIKey != "re_test" {
		t.Errorf("resendApiKey = %q, want re_test", cfg.Alerts.ResendAPIKey)
	}
	if cfg.Alerts.WebhookURL != "https://hooks.example.com/x" {
		t.Errorf("webhookUrl = %q", cfg.Alerts.WebhookURL)
	}
	if cfg.Social.Twitter.ConsumerKey != "ck" {
		t.Errorf("consumerKey = %q, want ck", cfg.Social.Twitter.ConsumerKey)
	}
	if !cfg.Telegram.Enabled || cfg.Telegram.Token != "123:abc" {
		t.Errorf("telegram = %+v, want enabled with token", cfg.Telegram)
	}
	if cfg.Telegram.ChatID != 42 {
		t.Errorf("chatId = %d, want 42", cfg.Telegram.ChatID)
	}
}

func TestSaveConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	cfg := DefaultConfig()
	cfg.Alerts.Email = "saved@example.com"

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, ".opsclaw", "config.json"))
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("unmarshal saved config: %v", err)
	}
	if loaded.Alerts.Email != "saved@example.com" {
		t.Errorf("email = %q, want saved@example.com", loaded.Alerts.Email)
	}
}

func TestConfigPaths(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	if got := ConfigDir(); got != filepath.Join(tmpDir, ".opsclaw") {
		t.Errorf("ConfigDir = %q", got)
	}
	if got := ConfigPath(); got != filepath.Join(tmpDir, ".opsclaw", "config.json") {
		t.Errorf("ConfigPath = %q", got)
	}

	cfg := DefaultConfig()
	if got := cfg.RegistryPath(); got != filepath.Join(cfg.Skills.Dir, "registry.json") {
		t.Errorf("RegistryPath = %q", got)
	}
	if got := cfg.DataFile("cron", "jobs.json"); got != filepath.Join(tmpDir, ".opsclaw", "data", "cron", "jobs.json") {
		t.Errorf("DataFile = %q", got)
	}
	cfg.Memory.IndexPath = "/tmp/x.db"
	if got := cfg.IndexPath(); got != "/tmp/x.db" {
		t.Errorf("IndexPath = %q, want /tmp/x.db", got)
	}
}
