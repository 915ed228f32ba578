package news

import (
	"strings"
	"time"
)

// Category is a keyword table whose terms share one weight.
type Category struct {
	Name   string
	Weight int
	Terms  []string
}

// RecencyStep awards Bonus to articles younger than Within.
type RecencyStep struct {
	Within time.Duration
	Bonus  int
}

// Policy is a named, versioned relevance table. Scores are additive and
// not normalized: every distinct matching term adds its weight again, so a
// keyword-dense article can reach 100 on keywords alone.
type Policy struct {
	Name             string
	Version          int
	Categories       []Category
	Exclusions       []string
	ExclusionPenalty int
	SourceBonus      map[string]int // by feed priority
	Recency          []RecencyStep  // youngest first
}

// Input is the article text Extract looks at.
type Input struct {
	Title     string
	Content   string
	Priority  string
	Published time.Time
}

// Features is the input to Policy.Score.
type Features struct {
	TitleTerms   []string
	BodyTerms    []string
	Exclusions   []string
	KeywordScore int
	SourceBonus  int
	RecencyBonus int
}

var DefaultPolicy = Policy{
	Name:    "federal-buyout",
	Version: 1,
	Categories: []Category{
		{Name: "high", Weight: 30, Terms: []string{
			"VSIP", "Voluntary Separation Incentive",
			"federal buyout", "federal employee buyout",
			"early retirement", "Voluntary Early Retirement", "VER",
			"buyout offer", "separation incentive",
		}},
		{Name: "medium", Weight: 15, Terms: []string{
			"federal workforce reduction", "Reduction in Force", "RIF",
			"federal layoffs", "federal employee severance",
			"workforce restructuring", "federal downsizing",
			"federal employee departure", "federal retirement surge",
			"federal attrition", "federal hiring freeze",
			"federal job cuts", "federal position elimination",
		}},
		{Name: "context", Weight: 5, Terms: []string{
			"federal employee", "government worker", "civil service",
			"federal agency", "OPM", "federal budget", "government spending",
			"federal compensation", "federal benefits", "FERS", "CSRS", "TSP",
			"federal pension",
		}},
	},
	Exclusions: []string{
		"private sector buyout", "corporate buyout", "private equity",
		"defense contractor", "state employee", "municipal employee", "county worker",
	},
	ExclusionPenalty: 20,
	SourceBonus:      map[string]int{PriorityHigh: 10, PriorityMedium: 5, PriorityLow: 2},
	Recency: []RecencyStep{
		{Within: time.Hour, Bonus: 5},
		{Within: 4 * time.Hour, Bonus: 3},
		{Within: 24 * time.Hour, Bonus: 1},
	},
}

// Extract matches terms case-insensitively as substrings. A term found in
// the title adds the full category weight; found in the body it adds a
// third of it, rounded down. Both can fire for the same term.
func (p Policy) Extract(in Input, now time.Time) Features {
	title := strings.ToLower(in.Title)
	body := strings.ToLower(in.Content)
	var f Features

	for _, term := range p.Exclusions {
		t := strings.ToLower(term)
		if strings.Contains(title, t) || strings.Contains(body, t) {
			f.Exclusions = append(f.Exclusions, term)
		}
	}
	for _, c := range p.Categories {
		for _, term := range c.Terms {
			t := strings.ToLower(term)
			if strings.Contains(title, t) {
				f.TitleTerms = append(f.TitleTerms, term)
				f.KeywordScore += c.Weight
			}
			if body != "" && strings.Contains(body, t) {
				f.BodyTerms = append(f.BodyTerms, term)
				f.KeywordScore += c.Weight / 3
			}
		}
	}

	bonus, ok := p.SourceBonus[in.Priority]
	if !ok {
		bonus = p.SourceBonus[PriorityLow]
	}
	f.SourceBonus = bonus

	if !in.Published.IsZero() {
		age := now.Sub(in.Published)
		for _, step := range p.Recency {
			if age < step.Within {
				f.RecencyBonus = step.Bonus
				break
			}
		}
	}
	return f
}

func (p Policy) Score(f Features) int {
	score := f.KeywordScore - len(f.Exclusions)*p.ExclusionPenalty + f.SourceBonus + f.RecencyBonus
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// ScoreArticle rates a with DefaultPolicy against the default feed table.
func ScoreArticle(a Article, now time.Time) int {
	in := Input{
		Title:     a.Title,
		Content:   a.Content,
		Priority:  SourcePriority(DefaultFeeds, a.Source),
		Published: a.Published,
	}
	return DefaultPolicy.Score(DefaultPolicy.Extract(in, now))
}
