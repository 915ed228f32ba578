package leads

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	StatusNew       = "new"
	StatusContacted = "contacted"
	StatusQualified = "qualified"
	StatusConverted = "converted"
	StatusLost      = "lost"

	DefaultSource = "website"
)

var Statuses = []string{StatusNew, StatusContacted, StatusQualified, StatusConverted, StatusLost}

var (
	ErrNotFound      = errors.New("lead not found")
	ErrInvalidStatus = errors.New("invalid status")
	ErrInvalidLead   = errors.New("invalid lead")
)

type Lead struct {
	ID           int        `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	Company      string     `json:"company"`
	Source       string     `json:"source"`
	Status       string     `json:"status"`
	Score        int        `json:"score"`
	Notes        string     `json:"notes"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	FollowUpDate *time.Time `json:"follow_up_date"`
	FollowUpNote string     `json:"follow_up_note,omitempty"`
}

// Active reports whether the lead is still in the pipeline.
func (l Lead) Active() bool {
	return l.Status != StatusConverted && l.Status != StatusLost
}

func ValidStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

func validateStatus(s string) error {
	if !ValidStatus(s) {
		return fmt.Errorf("%w %q (want one of %s)", ErrInvalidStatus, s, strings.Join(Statuses, ", "))
	}
	return nil
}

// leadDoc is the on-disk shape. NextID only grows, so ids are never reused
// after a delete.
type leadDoc struct {
	NextID int    `json:"next_id"`
	Leads  []Lead `json:"leads"`
}

// UnmarshalJSON also accepts the older bare-array layout and seeds NextID
// from the highest id found.
func (d *leadDoc) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var leads []Lead
		if err := json.Unmarshal(data, &leads); err != nil {
			return err
		}
		d.Leads = leads
		d.NextID = 0
	} else {
		type plain leadDoc
		var p plain
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*d = leadDoc(p)
	}
	for _, l := range d.Leads {
		if l.ID >= d.NextID {
			d.NextID = l.ID + 1
		}
	}
	if d.NextID < 1 {
		d.NextID = 1
	}
	return nil
}
