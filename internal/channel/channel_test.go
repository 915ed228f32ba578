package channel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stellarlinkco/opsclaw/internal/config"
)

// mockTelegramBot implements TelegramBot interface for testing
type mockTelegramBot struct {
	sentMsgs []tgbotapi.MessageConfig
	sendErr  error
	failHTML bool
	self     tgbotapi.User
}

func newMockBot() *mockTelegramBot {
	return &mockTelegramBot{self: tgbotapi.User{UserName: "testbot"}}
}

func (m *mockTelegramBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg := c.(tgbotapi.MessageConfig)
	m.sentMsgs = append(m.sentMsgs, msg)
	if m.sendErr != nil {
		return tgbotapi.Message{}, m.sendErr
	}
	if m.failHTML && msg.ParseMode == tgbotapi.ModeHTML {
		return tgbotapi.Message{}, fmt.Errorf("HTML parse error")
	}
	return tgbotapi.Message{MessageID: 1}, nil
}

func (m *mockTelegramBot) GetSelf() tgbotapi.User {
	return m.self
}

func TestNewTelegram_NoToken(t *testing.T) {
	if _, err := NewTelegram(config.TelegramConfig{}); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestToTelegramHTML(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"hello", "hello"},
		{"**bold**", "<b>bold</b>"},
		{"`code`", "<code>code</code>"},
		{"*soft*", "<i>soft</i>"},
		{"a & b", "a &amp; b"},
		{"<tag>", "&lt;tag&gt;"},
		{"```go\nfunc main() {}\n```", "<pre>func main() {}\n</pre>"},
		{"```\ncode here\n```", "<pre>\ncode here\n</pre>"},
	}
	for _, tt := range tests {
		if got := toTelegramHTML(tt.input); got != tt.want {
			t.Errorf("toTelegramHTML(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTelegram_LazyInitUsesFactory(t *testing.T) {
	bot := newMockBot()
	calls := 0
	factory := func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
		calls++
		if token != "fake-token" {
			t.Errorf("token = %q, want fake-token", token)
		}
		return bot, nil
	}
	tg, err := NewTelegramWithFactory(config.TelegramConfig{Token: "fake-token", ChatID: 42}, factory)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := tg.Send(context.Background(), "", "hi"); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("factory calls = %d, want 1", calls)
	}
	if len(bot.sentMsgs) != 2 || bot.sentMsgs[0].ChatID != 42 {
		t.Errorf("sent = %+v", bot.sentMsgs)
	}
}

func TestTelegram_FactoryError(t *testing.T) {
	factory := func(string, string, *http.Client) (TelegramBot, error) {
		return nil, errors.New("unauthorized")
	}
	tg, _ := NewTelegramWithFactory(config.TelegramConfig{Token: "t", ChatID: 1}, factory)
	if err := tg.Send(context.Background(), "", "x"); err == nil {
		t.Fatal("expected factory error")
	}
}

func TestTelegram_InvalidProxy(t *testing.T) {
	tg, _ := NewTelegramWithFactory(config.TelegramConfig{Token: "t", ChatID: 1, Proxy: "://bad"}, nil)
	if err := tg.Send(context.Background(), "", "x"); err == nil || !strings.Contains(err.Error(), "proxy") {
		t.Fatalf("err = %v, want proxy error", err)
	}
}

func TestTelegram_ChatID(t *testing.T) {
	tg, _ := NewTelegram(config.TelegramConfig{Token: "t"})
	tg.SetBot(newMockBot())
	if err := tg.Send(context.Background(), "", "x"); err == nil {
		t.Error("expected error without configured chat")
	}
	if err := tg.Send(context.Background(), "not-a-number", "x"); err == nil {
		t.Error("expected error for invalid chat id")
	}
}

func TestTelegram_SendLongMessage(t *testing.T) {
	bot := newMockBot()
	tg, _ := NewTelegram(config.TelegramConfig{Token: "t"})
	tg.SetBot(bot)

	long := strings.Repeat("This is a long line of text that will be repeated.\n", 100)
	if err := tg.Send(context.Background(), "123", long); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(bot.sentMsgs) < 2 {
		t.Fatalf("expected multiple sent messages, got %d", len(bot.sentMsgs))
	}
	for _, m := range bot.sentMsgs {
		if len(m.Text) > 4000 {
			t.Errorf("chunk length = %d, want <= 4000", len(m.Text))
		}
	}
}

func TestSplitMessageNoNewline(t *testing.T) {
	parts := splitMessage(strings.Repeat("x", 5000), 4000)
	if len(parts) != 2 || len(parts[0]) != 4000 || len(parts[1]) != 1000 {
		t.Errorf("parts = %d", len(parts))
	}
}

func TestSplitMessageKeepsRunesWhole(t *testing.T) {
	s := "ab" + strings.Repeat("🔴", 3)
	parts := splitMessage(s, 8)
	if strings.Join(parts, "") != s {
		t.Fatalf("parts = %q, joined text differs", parts)
	}
	for _, p := range parts {
		if !utf8.ValidString(p) || len(p) > 8 {
			t.Errorf("part %q is not a whole-rune chunk of at most 8 bytes", p)
		}
	}
	if len(parts) != 2 || parts[0] != "ab🔴" || parts[1] != "🔴🔴" {
		t.Errorf("parts = %q, want [ab🔴 🔴🔴]", parts)
	}
}

func TestTelegram_HTMLErrorRetriesPlain(t *testing.T) {
	bot := newMockBot()
	bot.failHTML = true
	tg, _ := NewTelegram(config.TelegramConfig{Token: "t"})
	tg.SetBot(bot)

	if err := tg.Send(context.Background(), "123", "a < b"); err != nil {
		t.Fatalf("Send should succeed after retry: %v", err)
	}
	if len(bot.sentMsgs) != 2 {
		t.Fatalf("sent = %d, want 2", len(bot.sentMsgs))
	}
	if got := bot.sentMsgs[1]; got.ParseMode != "" || got.Text != "a < b" {
		t.Errorf("retry = %q (mode %q), want plain text", got.Text, got.ParseMode)
	}
}

func TestTelegram_BothFail(t *testing.T) {
	bot := newMockBot()
	bot.sendErr = fmt.Errorf("send failed")
	tg, _ := NewTelegram(config.TelegramConfig{Token: "t"})
	tg.SetBot(bot)
	if err := tg.Send(context.Background(), "123", "test"); err == nil {
		t.Error("expected error when both sends fail")
	}
}

func TestConsoleSend(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	c.Now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	if err := c.Send(context.Background(), "ops", "check backups"); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "[2026-03-01 09:30] 🔔 @ops check backups\n"; got != want {
		t.Errorf("console = %q, want %q", got, want)
	}
}

func TestManagerDeliver(t *testing.T) {
	var buf bytes.Buffer
	bot := newMockBot()
	tg, _ := NewTelegram(config.TelegramConfig{Token: "t", ChatID: 7})
	tg.SetBot(bot)
	m := NewManager(NewConsole(&buf), tg)

	if got := m.EnabledChannels(); strings.Join(got, ",") != "console,telegram" {
		t.Errorf("channels = %v", got)
	}
	if err := m.Deliver(context.Background(), "", "", "default"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "default") {
		t.Errorf("console output = %q", buf.String())
	}
	if err := m.Deliver(context.Background(), "Telegram", "", "chat"); err != nil {
		t.Fatal(err)
	}
	if len(bot.sentMsgs) != 1 {
		t.Errorf("telegram sent = %d, want 1", len(bot.sentMsgs))
	}
	if err := m.Deliver(context.Background(), "pager", "", "x"); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("err = %v, want ErrUnknownChannel", err)
	}
}

func TestNewManagerFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	m, err := NewManagerFromConfig(cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if got := m.EnabledChannels(); len(got) != 1 || got[0] != "console" {
		t.Errorf("channels = %v, want [console]", got)
	}

	cfg.Telegram.Enabled = true
	if _, err := NewManagerFromConfig(cfg, &bytes.Buffer{}); err == nil {
		t.Error("expected error for telegram without token")
	}
}
