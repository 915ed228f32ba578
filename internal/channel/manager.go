// Package channel delivers reminder and alert text to the console or a
// chat service.
package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stellarlinkco/opsclaw/internal/config"
)

var ErrUnknownChannel = errors.New("unknown channel")

// Sender delivers text to one target of a single channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, target, text string) error
}

// Console prints messages to W.
type Console struct {
	W   io.Writer
	Now func() time.Time

	mu sync.Mutex
}

func NewConsole(w io.Writer) *Console {
	return &Console{W: w, Now: time.Now}
}

func (c *Console) Name() string { return config.DefaultReminderChannel }

func (c *Console) Send(_ context.Context, target, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := "🔔"
	if target != "" {
		prefix += " @" + target
	}
	_, err := fmt.Fprintf(c.W, "[%s] %s %s\n", c.Now().Format("2006-01-02 15:04"), prefix, text)
	return err
}

// Manager routes Deliver calls to registered senders by channel name.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Sender
}

func NewManager(senders ...Sender) *Manager {
	m := &Manager{channels: make(map[string]Sender)}
	for _, s := range senders {
		m.Register(s)
	}
	return m
}

// NewManagerFromConfig registers the console on out and, when enabled,
// telegram.
func NewManagerFromConfig(cfg *config.Config, out io.Writer) (*Manager, error) {
	m := NewManager(NewConsole(out))
	if cfg.Telegram.Enabled {
		tg, err := NewTelegram(cfg.Telegram)
		if err != nil {
			return nil, fmt.Errorf("init telegram channel: %w", err)
		}
		m.Register(tg)
	}
	return m, nil
}

func (m *Manager) Register(s Sender) {
	m.mu.Lock()
	m.channels[strings.ToLower(s.Name())] = s
	m.mu.Unlock()
}

// Deliver sends text through the named channel. An empty channel name
// means the console.
func (m *Manager) Deliver(ctx context.Context, channel, target, text string) error {
	name := strings.ToLower(strings.TrimSpace(channel))
	if name == "" {
		name = config.DefaultReminderChannel
	}
	m.mu.RLock()
	s, ok := m.channels[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	if err := s.Send(ctx, target, text); err != nil {
		log.Printf("[channel-mgr] send to %s failed: %v", name, err)
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (m *Manager) EnabledChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
