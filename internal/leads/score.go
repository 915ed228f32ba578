package leads

import "strings"

// Signal is one keyword group that awards a flat number of points when any
// of its keywords occurs in the lead notes.
type Signal struct {
	Name     string
	Keywords []string
	Points   int
}

// Policy is a named, versioned scoring table. Score is a pure function of
// the feature vector Extract produces, so the weights can be pinned in tests.
type Policy struct {
	Name               string
	Version            int
	CompletenessPoints int
	Signals            []Signal
}

// Features is the input to Policy.Score.
type Features struct {
	FieldsPresent int // of email, phone, company
	Signals       map[string]bool
}

// DefaultPolicy matches keywords by case-insensitive substring, not whole
// words: "decision" also fires inside "indecision".
var DefaultPolicy = Policy{
	Name:               "lead-heuristic",
	Version:            1,
	CompletenessPoints: 30,
	Signals: []Signal{
		{Name: "urgency", Keywords: []string{"urgent", "asap", "immediately", "this week", "this month", "soon"}, Points: 25},
		{Name: "deal_size", Keywords: []string{"million", "large", "substantial", "significant", "major", "big"}, Points: 25},
		{Name: "authority", Keywords: []string{"decision", "owner", "ceo", "director", "manager", "authorize"}, Points: 20},
	},
}

const contactFields = 3

func (p Policy) Extract(l Lead) Features {
	f := Features{Signals: make(map[string]bool, len(p.Signals))}
	for _, v := range []string{l.Email, l.Phone, l.Company} {
		if strings.TrimSpace(v) != "" {
			f.FieldsPresent++
		}
	}
	notes := strings.ToLower(l.Notes)
	for _, s := range p.Signals {
		for _, kw := range s.Keywords {
			if strings.Contains(notes, kw) {
				f.Signals[s.Name] = true
				break
			}
		}
	}
	return f
}

func (p Policy) Score(f Features) int {
	present := f.FieldsPresent
	if present > contactFields {
		present = contactFields
	}
	score := p.CompletenessPoints * present / contactFields
	for _, s := range p.Signals {
		if f.Signals[s.Name] {
			score += s.Points
		}
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Score rates a lead with DefaultPolicy.
func Score(l Lead) int {
	return DefaultPolicy.Score(DefaultPolicy.Extract(l))
}
