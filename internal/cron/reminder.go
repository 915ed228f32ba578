package cron

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/stellarlinkco/opsclaw/internal/store"
)

const (
	ReminderActive    = "active"
	ReminderCancelled = "cancelled"
	ReminderCompleted = "completed"
)

var (
	ErrReminderNotFound = errors.New("reminder not found")
	ErrUnparsableTime   = errors.New("could not parse time")
)

// Recurrence repeats a reminder every Interval Units.
type Recurrence struct {
	Recurring bool   `json:"recurring"`
	Unit      string `json:"unit"` // minutes, hours, days, weeks
	Interval  int    `json:"interval"`
}

func (r Recurrence) Duration() time.Duration {
	n := time.Duration(r.Interval)
	switch r.Unit {
	case "minutes":
		return n * time.Minute
	case "hours":
		return n * time.Hour
	case "days":
		return n * 24 * time.Hour
	case "weeks":
		return n * 7 * 24 * time.Hour
	}
	return 0
}

// When is either a single instant or a recurrence.
type When struct {
	At        *time.Time
	Recurring *Recurrence
}

var (
	relativeTime = regexp.MustCompile(`^\+(\d+)([mhd])$`)
	everyN       = regexp.MustCompile(`^every (\d+) (minute|hour)s?$`)
)

// ParseWhen understands "+30m", "+2h", "+1d", "2026-02-03 14:30", "14:30"
// (today, or tomorrow once passed) and the recurring forms "every N
// minutes", "every N hours", "hourly", "daily" and "weekly".
func ParseWhen(s string, now time.Time) (When, error) {
	s = strings.TrimSpace(s)
	if m := relativeTime.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		var d time.Duration
		switch m[2] {
		case "m":
			d = time.Duration(n) * time.Minute
		case "h":
			d = time.Duration(n) * time.Hour
		case "d":
			d = time.Duration(n) * 24 * time.Hour
		}
		at := now.Add(d)
		return When{At: &at}, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, now.Location()); err == nil {
		return When{At: &t}, nil
	}
	if t, err := time.ParseInLocation("15:04", s, now.Location()); err == nil {
		at := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
		if at.Before(now) {
			at = at.AddDate(0, 0, 1)
		}
		return When{At: &at}, nil
	}

	lower := strings.ToLower(strings.Join(strings.Fields(s), " "))
	if m := everyN.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n < 1 {
			return When{}, fmt.Errorf("%w: %q", ErrUnparsableTime, s)
		}
		return When{Recurring: &Recurrence{Recurring: true, Unit: m[2] + "s", Interval: n}}, nil
	}
	switch lower {
	case "hourly", "every hour":
		return When{Recurring: &Recurrence{Recurring: true, Unit: "hours", Interval: 1}}, nil
	case "daily", "every day":
		return When{Recurring: &Recurrence{Recurring: true, Unit: "days", Interval: 1}}, nil
	case "weekly", "every week":
		return When{Recurring: &Recurrence{Recurring: true, Unit: "weeks", Interval: 1}}, nil
	}
	return When{}, fmt.Errorf("%w: %q (formats: '2026-02-03 14:30', '14:30', '+30m', '+2h', '+1d', 'every 2 hours', 'daily')", ErrUnparsableTime, s)
}

type Reminder struct {
	ID        string      `json:"id"`
	Message   string      `json:"message"`
	Time      *time.Time  `json:"time,omitempty"`
	Recurring *Recurrence `json:"recurring,omitempty"`
	NextAt    time.Time   `json:"next_at"`
	Channel   string      `json:"channel"`
	Target    string      `json:"target,omitempty"`
	RelatedTo string      `json:"related_to,omitempty"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	LastSent  *time.Time  `json:"last_sent,omitempty"`
}

type NewReminder struct {
	Message   string
	When      When
	Channel   string
	Target    string
	RelatedTo string
}

type remindersDoc struct {
	Reminders []Reminder `json:"reminders"`
}

type ReminderStore struct {
	file           *store.JSONFile[remindersDoc]
	defaultChannel string
	now            func() time.Time
}

// NewReminderStore uses defaultChannel for reminders added without one.
func NewReminderStore(path, defaultChannel string) *ReminderStore {
	if defaultChannel == "" {
		defaultChannel = "console"
	}
	return &ReminderStore{
		file:           store.NewJSONFile[remindersDoc](path, nil),
		defaultChannel: defaultChannel,
		now:            time.Now,
	}
}

func (s *ReminderStore) Add(in NewReminder) (Reminder, error) {
	if strings.TrimSpace(in.Message) == "" {
		return Reminder{}, errors.New("reminder message is required")
	}
	if in.When.At == nil && in.When.Recurring == nil {
		return Reminder{}, fmt.Errorf("%w: empty time", ErrUnparsableTime)
	}
	now := s.now()
	r := Reminder{
		ID:        shortID(),
		Message:   in.Message,
		Time:      in.When.At,
		Recurring: in.When.Recurring,
		Channel:   in.Channel,
		Target:    in.Target,
		RelatedTo: in.RelatedTo,
		Status:    ReminderActive,
		CreatedAt: now,
	}
	if r.Channel == "" {
		r.Channel = s.defaultChannel
	}
	if r.Time != nil {
		r.NextAt = *r.Time
	} else {
		r.NextAt = now.Add(r.Recurring.Duration())
	}
	err := s.file.Update(func(doc *remindersDoc) error {
		doc.Reminders = append(doc.Reminders, r)
		return nil
	})
	return r, err
}

// List returns reminders with the given status, or all when status is "".
func (s *ReminderStore) List(status string) ([]Reminder, error) {
	doc, err := s.file.Load()
	if err != nil {
		return nil, err
	}
	var out []Reminder
	for _, r := range doc.Reminders {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *ReminderStore) Cancel(id string) (Reminder, error) {
	return s.mutate(id, func(r *Reminder) { r.Status = ReminderCancelled })
}

// Complete marks a reminder done, recurring or not, so it never fires again.
func (s *ReminderStore) Complete(id string) (Reminder, error) {
	return s.mutate(id, func(r *Reminder) { r.Status = ReminderCompleted })
}

// Due lists active reminders whose next fire time is not after now.
func (s *ReminderStore) Due(now time.Time) ([]Reminder, error) {
	active, err := s.List(ReminderActive)
	if err != nil {
		return nil, err
	}
	var out []Reminder
	for _, r := range active {
		if !r.NextAt.After(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

// MarkSent records a delivery. One-shot reminders complete; recurring ones
// move NextAt forward past sentAt.
func (s *ReminderStore) MarkSent(id string, sentAt time.Time) (Reminder, error) {
	return s.mutate(id, func(r *Reminder) {
		t := sentAt
		r.LastSent = &t
		if r.Recurring == nil || r.Recurring.Duration() <= 0 {
			r.Status = ReminderCompleted
			return
		}
		step := r.Recurring.Duration()
		for !r.NextAt.After(sentAt) {
			r.NextAt = r.NextAt.Add(step)
		}
	})
}

func (s *ReminderStore) mutate(id string, fn func(*Reminder)) (Reminder, error) {
	var out Reminder
	err := s.file.Update(func(doc *remindersDoc) error {
		for i := range doc.Reminders {
			if doc.Reminders[i].ID == id {
				fn(&doc.Reminders[i])
				out = doc.Reminders[i]
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrReminderNotFound, id)
	})
	return out, err
}
