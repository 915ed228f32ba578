// Package gateway runs the long-lived side of opsclaw: the cron scheduler
// with reminder delivery, the lead intake API and scheduled post
// publishing.
package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/stellarlinkco/opsclaw/internal/channel"
	"github.com/stellarlinkco/opsclaw/internal/config"
	"github.com/stellarlinkco/opsclaw/internal/cron"
	"github.com/stellarlinkco/opsclaw/internal/leads"
	"github.com/stellarlinkco/opsclaw/internal/social"
)

// Options for creating a Gateway
type Options struct {
	Out        io.Writer        // console channel output; nil means stdout
	Channels   *channel.Manager // nil builds one from config
	Poster     social.Poster    // nil uses the twitter client when configured
	IntakeAddr string           // "" uses config; "-" disables the intake API
	Tick       time.Duration    // reminder and post check interval
	SignalChan chan os.Signal   // for testing signal handling
}

type Gateway struct {
	cfg        *config.Config
	channels   *channel.Manager
	scheduler  *cron.Scheduler
	leads      *leads.Repository
	posts      *social.Scheduler
	poster     social.Poster
	intakeAddr string
	tick       time.Duration
	signalChan chan os.Signal

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Gateway with default options
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{cfg: cfg, signalChan: opts.SignalChan, tick: opts.Tick}
	if g.tick <= 0 {
		g.tick = 30 * time.Second
	}

	g.channels = opts.Channels
	if g.channels == nil {
		out := opts.Out
		if out == nil {
			out = os.Stdout
		}
		m, err := channel.NewManagerFromConfig(cfg, out)
		if err != nil {
			return nil, fmt.Errorf("create channel manager: %w", err)
		}
		g.channels = m
	}

	g.scheduler = &cron.Scheduler{
		Jobs:      cron.NewJobStore(cfg.DataFile("cron", "jobs.json")),
		History:   cron.NewHistoryStore(cfg.DataFile("cron", "history.json")),
		Reminders: cron.NewReminderStore(cfg.DataFile("cron", "reminders.json"), cfg.Cron.Channel),
		Notifier:  g.channels,
		Timeout:   time.Duration(cfg.Cron.CommandTimeout) * time.Second,
		Tick:      g.tick,
	}

	g.intakeAddr = opts.IntakeAddr
	if g.intakeAddr == "" {
		g.intakeAddr = cfg.Leads.IntakeAddr
	}
	if g.intakeAddr == "-" {
		g.intakeAddr = ""
	}
	if g.intakeAddr != "" {
		g.leads = leads.NewRepository(cfg.DataFile("leads", "leads.json"))
	}

	g.posts = social.NewScheduler(cfg.DataFile("social", "scheduled.json"), cfg.DataFile("social", "threads.json"), cfg.Social.Timezone)
	g.poster = opts.Poster
	if g.poster == nil {
		if tc, err := social.NewTwitterClient(cfg.Social.Twitter); err == nil {
			g.poster = tc
		}
	}
	return g, nil
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	defer cancel()

	if err := g.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	log.Printf("[gateway] channels: %v", g.channels.EnabledChannels())

	if g.leads != nil {
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			if err := leads.Serve(ctx, g.intakeAddr, g.leads); err != nil {
				log.Printf("[gateway] intake error: %v", err)
			}
		}()
	}

	if g.poster != nil {
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			g.postLoop(ctx)
		}()
	} else {
		log.Printf("[gateway] twitter not configured, scheduled posts stay queued")
	}

	// Use injected signal channel for testing, or create default
	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Printf("[gateway] shutting down...")
	return g.Shutdown()
}

func (g *Gateway) postLoop(ctx context.Context) {
	ticker := time.NewTicker(g.tick)
	defer ticker.Stop()
	g.postDue(ctx, time.Now())
	for {
		select {
		case now := <-ticker.C:
			g.postDue(ctx, now)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) postDue(ctx context.Context, now time.Time) {
	posted, err := g.posts.PostDue(ctx, g.poster, now)
	if err != nil {
		log.Printf("[gateway] post due tweets: %v", err)
		return
	}
	for _, p := range posted {
		if p.Status == social.StatusPosted {
			log.Printf("[gateway] posted %s", p.ID)
		} else {
			log.Printf("[gateway] post %s failed: %s", p.ID, p.Error)
		}
	}
}

func (g *Gateway) Shutdown() error {
	if g.cancel != nil {
		g.cancel()
	}
	g.scheduler.Stop()
	g.wg.Wait()
	log.Printf("[gateway] shutdown complete")
	return nil
}
