package leads

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/stellarlinkco/opsclaw/internal/store"
)

const (
	DefaultFollowUpDays = 3
	DefaultUpcomingDays = 7
)

// NewLead carries the caller-supplied fields for Add and Import.
type NewLead struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	Source  string `json:"source"`
	Status  string `json:"status"`
	Notes   string `json:"notes"`
}

// Patch lists the optional changes for Update; nil fields are left alone.
type Patch struct {
	Status  *string
	Phone   *string
	Company *string
	Note    string
}

type Filter struct {
	Status   string
	Source   string
	MinScore int
	Limit    int
}

type Repository struct {
	file *store.JSONFile[leadDoc]
	now  func() time.Time
}

func NewRepository(path string) *Repository {
	return &Repository{
		file: store.NewJSONFile(path, func() leadDoc { return leadDoc{NextID: 1} }),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *Repository) Path() string {
	return r.file.Path()
}

func (r *Repository) Add(in NewLead) (Lead, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Lead{}, fmt.Errorf("%w: name is required", ErrInvalidLead)
	}
	status := in.Status
	if status == "" {
		status = StatusNew
	}
	if err := validateStatus(status); err != nil {
		return Lead{}, err
	}

	var added Lead
	err := r.file.Update(func(doc *leadDoc) error {
		if doc.NextID < 1 {
			doc.NextID = 1
		}
		now := r.now()
		added = Lead{
			ID:        doc.NextID,
			Name:      strings.TrimSpace(in.Name),
			Email:     strings.TrimSpace(in.Email),
			Phone:     strings.TrimSpace(in.Phone),
			Company:   strings.TrimSpace(in.Company),
			Source:    in.Source,
			Status:    status,
			Notes:     in.Notes,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if added.Source == "" {
			added.Source = DefaultSource
		}
		added.Score = Score(added)
		doc.NextID++
		doc.Leads = append(doc.Leads, added)
		return nil
	})
	if err != nil {
		return Lead{}, fmt.Errorf("add lead: %w", err)
	}
	return added, nil
}

func (r *Repository) Get(id int) (Lead, error) {
	doc, err := r.file.Load()
	if err != nil {
		return Lead{}, err
	}
	for _, l := range doc.Leads {
		if l.ID == id {
			return l, nil
		}
	}
	return Lead{}, fmt.Errorf("%w: %d", ErrNotFound, id)
}

// Update applies p to the lead and rescores it. Notes are appended as a
// dated line, never replaced.
func (r *Repository) Update(id int, p Patch) (Lead, error) {
	if p.Status != nil {
		if err := validateStatus(*p.Status); err != nil {
			return Lead{}, err
		}
	}
	var updated Lead
	err := r.file.Update(func(doc *leadDoc) error {
		i := indexOf(doc.Leads, id)
		if i < 0 {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		l := &doc.Leads[i]
		now := r.now()
		if p.Status != nil {
			l.Status = *p.Status
		}
		if p.Phone != nil {
			l.Phone = *p.Phone
		}
		if p.Company != nil {
			l.Company = *p.Company
		}
		if note := strings.TrimSpace(p.Note); note != "" {
			l.Notes += fmt.Sprintf("\n[%s] %s", now.Format("2006-01-02"), note)
		}
		l.Score = Score(*l)
		l.UpdatedAt = now
		updated = *l
		return nil
	})
	if err != nil {
		return Lead{}, err
	}
	return updated, nil
}

func (r *Repository) Delete(id int) (Lead, error) {
	var removed Lead
	err := r.file.Update(func(doc *leadDoc) error {
		i := indexOf(doc.Leads, id)
		if i < 0 {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		removed = doc.Leads[i]
		doc.Leads = append(doc.Leads[:i], doc.Leads[i+1:]...)
		return nil
	})
	return removed, err
}

// List returns matching leads, newest first.
func (r *Repository) List(f Filter) ([]Lead, error) {
	doc, err := r.file.Load()
	if err != nil {
		return nil, err
	}
	out := make([]Lead, 0, len(doc.Leads))
	for _, l := range doc.Leads {
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if f.Source != "" && l.Source != f.Source {
			continue
		}
		if l.Score < f.MinScore {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// SetFollowUp schedules a follow-up days from now.
func (r *Repository) SetFollowUp(id, days int, note string) (Lead, error) {
	if days <= 0 {
		days = DefaultFollowUpDays
	}
	var updated Lead
	err := r.file.Update(func(doc *leadDoc) error {
		i := indexOf(doc.Leads, id)
		if i < 0 {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		l := &doc.Leads[i]
		now := r.now()
		due := now.AddDate(0, 0, days)
		l.FollowUpDate = &due
		l.FollowUpNote = note
		if l.FollowUpNote == "" {
			l.FollowUpNote = "Follow up with " + l.Name
		}
		l.UpdatedAt = now
		updated = *l
		return nil
	})
	return updated, err
}

// FollowUp is a lead with a pending follow-up and the whole days left until
// it is due (negative when overdue).
type FollowUp struct {
	Lead      Lead
	DaysUntil int
}

// FollowUps lists pending follow-ups ordered by due date. With dueOnly only
// those due now or overdue are returned; otherwise those due within
// upcoming days.
func (r *Repository) FollowUps(dueOnly bool, upcoming int) ([]FollowUp, error) {
	if upcoming <= 0 {
		upcoming = DefaultUpcomingDays
	}
	doc, err := r.file.Load()
	if err != nil {
		return nil, err
	}
	now := r.now()
	var out []FollowUp
	for _, l := range doc.Leads {
		if l.FollowUpDate == nil || !l.Active() {
			continue
		}
		days := daysUntil(now, *l.FollowUpDate)
		if dueOnly && days > 0 {
			continue
		}
		if !dueOnly && days > upcoming {
			continue
		}
		out = append(out, FollowUp{Lead: l, DaysUntil: days})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Lead.FollowUpDate.Before(*out[j].Lead.FollowUpDate)
	})
	return out, nil
}

// ImportLeads adds every record, recomputing scores. Records without a name
// are skipped and counted.
func (r *Repository) ImportLeads(records []NewLead) (imported, skipped int, err error) {
	for _, rec := range records {
		if strings.TrimSpace(rec.Name) == "" {
			skipped++
			continue
		}
		if rec.Status != "" && !ValidStatus(rec.Status) {
			log.Printf("[leads] import: unknown status %q for %s, using %s", rec.Status, rec.Name, StatusNew)
			rec.Status = StatusNew
		}
		if _, err := r.Add(rec); err != nil {
			return imported, skipped, err
		}
		imported++
	}
	return imported, skipped, nil
}

func indexOf(leads []Lead, id int) int {
	for i := range leads {
		if leads[i].ID == id {
			return i
		}
	}
	return -1
}

func daysUntil(now, due time.Time) int {
	return int(math.Floor(due.Sub(now).Hours() / 24))
}
