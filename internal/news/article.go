package news

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/stellarlinkco/opsclaw/internal/store"
)

const (
	HighRelevance   = 70
	MediumRelevance = 40
)

var ErrArticleNotFound = errors.New("article not found")

type Article struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Published   time.Time `json:"published"`
	Source      string    `json:"source"`
	Score       int       `json:"score"`
	FetchedAt   time.Time `json:"fetched_at"`
	Alerted     bool      `json:"alerted"`
}

// ArticleStore is articles.json: every article ever fetched, keyed by URL.
type ArticleStore struct {
	file *store.JSONFile[map[string]Article]
}

func NewArticleStore(path string) *ArticleStore {
	return &ArticleStore{
		file: store.NewJSONFile(path, func() map[string]Article { return map[string]Article{} }),
	}
}

func (s *ArticleStore) Path() string {
	return s.file.Path()
}

// Merge stores the articles whose URL is not yet known and returns them,
// highest score first.
func (s *ArticleStore) Merge(articles []Article) ([]Article, error) {
	var added []Article
	err := s.file.Update(func(db *map[string]Article) error {
		if *db == nil {
			*db = map[string]Article{}
		}
		for _, a := range articles {
			if a.URL == "" {
				continue
			}
			if _, ok := (*db)[a.URL]; ok {
				continue
			}
			(*db)[a.URL] = a
			added = append(added, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByScore(added)
	return added, nil
}

func (s *ArticleStore) Known(u string) (bool, error) {
	db, err := s.file.Load()
	if err != nil {
		return false, err
	}
	_, ok := db[u]
	return ok, nil
}

func (s *ArticleStore) Get(u string) (Article, error) {
	db, err := s.file.Load()
	if err != nil {
		return Article{}, err
	}
	a, ok := db[u]
	if !ok {
		return Article{}, fmt.Errorf("%w: %s", ErrArticleNotFound, u)
	}
	return a, nil
}

type ListFilter struct {
	MinScore int
	Since    time.Time // fetched at or after; zero means any time
	Pending  bool      // not yet alerted
	Limit    int
}

// List returns matching articles, highest score first.
func (s *ArticleStore) List(f ListFilter) ([]Article, error) {
	db, err := s.file.Load()
	if err != nil {
		return nil, err
	}
	var out []Article
	for _, a := range db {
		if a.Score < f.MinScore {
			continue
		}
		if !f.Since.IsZero() && a.FetchedAt.Before(f.Since) {
			continue
		}
		if f.Pending && a.Alerted {
			continue
		}
		out = append(out, a)
	}
	sortByScore(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// MarkAlerted flags the given URLs; unknown URLs are ignored.
func (s *ArticleStore) MarkAlerted(urls ...string) error {
	return s.file.Update(func(db *map[string]Article) error {
		for _, u := range urls {
			if a, ok := (*db)[u]; ok {
				a.Alerted = true
				(*db)[u] = a
			}
		}
		return nil
	})
}

func sortByScore(articles []Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		if articles[i].Score != articles[j].Score {
			return articles[i].Score > articles[j].Score
		}
		return articles[i].URL < articles[j].URL
	})
}

// Relevance buckets articles at the 70 and 40 score marks.
type Relevance struct {
	High   []Article
	Medium []Article
	Low    []Article
}

func Bucket(articles []Article) Relevance {
	var r Relevance
	for _, a := range articles {
		switch {
		case a.Score >= HighRelevance:
			r.High = append(r.High, a)
		case a.Score >= MediumRelevance:
			r.Medium = append(r.Medium, a)
		default:
			r.Low = append(r.Low, a)
		}
	}
	return r
}

// Placeholder builds a minimal article for a URL that was never fetched,
// titled from the last path segment.
func Placeholder(raw string) Article {
	a := Article{URL: raw, Title: raw}
	u, err := url.Parse(raw)
	if err != nil {
		return a
	}
	a.Source = u.Host
	slug := path.Base(strings.TrimSuffix(u.Path, "/"))
	if slug == "." || slug == "/" || slug == "" {
		return a
	}
	words := strings.Fields(strings.ReplaceAll(slug, "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	a.Title = strings.Join(words, " ")
	return a
}
