package channel

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stellarlinkco/opsclaw/internal/config"
)

const telegramChannelName = "telegram"

// TelegramBot interface for mocking telegram bot API
type TelegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetSelf() tgbotapi.User
}

// tgBotWrapper wraps tgbotapi.BotAPI to implement TelegramBot interface
type tgBotWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgBotWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory creates TelegramBot instances (allows mocking)
type BotFactory func(token, apiEndpoint string, client *http.Client) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, err
	}
	return &tgBotWrapper{bot: bot}, nil
}

// Telegram sends reminder and alert text to a chat. The bot is created on
// first send so that commands which never notify do not hit the API.
type Telegram struct {
	token       string
	proxy       string
	defaultChat int64
	botFactory  BotFactory

	mu  sync.Mutex
	bot TelegramBot
}

func NewTelegram(cfg config.TelegramConfig) (*Telegram, error) {
	return NewTelegramWithFactory(cfg, defaultBotFactory)
}

// NewTelegramWithFactory creates a Telegram sender with custom bot factory (for testing)
func NewTelegramWithFactory(cfg config.TelegramConfig, factory BotFactory) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	return &Telegram{
		token:       cfg.Token,
		proxy:       cfg.Proxy,
		defaultChat: cfg.ChatID,
		botFactory:  factory,
	}, nil
}

func (t *Telegram) Name() string { return telegramChannelName }

func (t *Telegram) client() (TelegramBot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}

	client := http.DefaultClient
	if t.proxy != "" {
		proxyURL, err := url.Parse(t.proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		client = &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}
	}

	bot, err := t.botFactory(t.token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	t.bot = bot
	log.Printf("[telegram] authorized as @%s", bot.GetSelf().UserName)
	return bot, nil
}

// SetBot sets the bot (for testing)
func (t *Telegram) SetBot(bot TelegramBot) {
	t.mu.Lock()
	t.bot = bot
	t.mu.Unlock()
}

func (t *Telegram) chatID(target string) (int64, error) {
	if target == "" {
		if t.defaultChat == 0 {
			return 0, fmt.Errorf("telegram chat id is not configured")
		}
		return t.defaultChat, nil
	}
	id, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", target, err)
	}
	return id, nil
}

// Send delivers text to target, or to the configured chat when target is
// empty. Long text is split below the 4096 character API limit.
func (t *Telegram) Send(ctx context.Context, target, text string) error {
	chatID, err := t.chatID(target)
	if err != nil {
		return err
	}
	bot, err := t.client()
	if err != nil {
		return err
	}

	for _, chunk := range splitMessage(text, 4000) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, toTelegramHTML(chunk))
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := bot.Send(msg); err != nil {
			// Retry without HTML parse mode
			msg.ParseMode = ""
			msg.Text = chunk
			if _, err2 := bot.Send(msg); err2 != nil {
				return fmt.Errorf("send telegram message: %w", err2)
			}
		}
	}
	return nil
}

// splitMessage cuts s into pieces of at most max bytes, preferring the last
// newline before the limit. A cut never lands inside a UTF-8 sequence.
func splitMessage(s string, max int) []string {
	var out []string
	for len(s) > 0 {
		chunk := s
		if len(chunk) > max {
			if idx := strings.LastIndex(chunk[:max], "\n"); idx > 0 {
				chunk = chunk[:idx]
			} else {
				cut := max
				for cut > 0 && !utf8.RuneStart(chunk[cut]) {
					cut--
				}
				if cut == 0 {
					_, cut = utf8.DecodeRuneInString(chunk)
				}
				chunk = chunk[:cut]
			}
		}
		out = append(out, chunk)
		s = strings.TrimPrefix(s[len(chunk):], "\n")
	}
	return out
}

// toTelegramHTML converts basic markdown to Telegram HTML.
func toTelegramHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")

	// ```...``` -> <pre>...</pre>
	for {
		start := strings.Index(s, "```")
		if start == -1 {
			break
		}
		end := strings.Index(s[start+3:], "```")
		if end == -1 {
			break
		}
		end += start + 3
		code := s[start+3 : end]
		// Strip optional language tag on first line
		if nl := strings.Index(code, "\n"); nl >= 0 {
			firstLine := strings.TrimSpace(code[:nl])
			if len(firstLine) > 0 && !strings.Contains(firstLine, " ") {
				code = code[nl+1:]
			}
		}
		s = s[:start] + "<pre>" + code + "</pre>" + s[end+3:]
	}

	s = wrapPairs(s, "`", "<code>", "</code>")
	s = wrapPairs(s, "**", "<b>", "</b>")
	// single * after bold so ** is already consumed
	s = wrapPairs(s, "*", "<i>", "</i>")
	return s
}

func wrapPairs(s, marker, open, close string) string {
	for {
		start := strings.Index(s, marker)
		if start == -1 {
			return s
		}
		end := strings.Index(s[start+len(marker):], marker)
		if end == -1 {
			return s
		}
		end += start + len(marker)
		s = s[:start] + open + s[start+len(marker):end] + close + s[end+len(marker):]
	}
}
