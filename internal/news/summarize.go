package news

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

const DefaultSummarySentences = 5

// Digest is the extractive summary of one page.
type Digest struct {
	Title         string   `json:"title"`
	Source        string   `json:"source"`
	Summary       string   `json:"summary"`
	KeyPoints     []string `json:"key_points"`
	WordCount     int      `json:"word_count"`
	SummaryLength int      `json:"summary_length"`
}

// Digest summarizes p in n sentences. It reports false when the page has
// no usable paragraphs.
func (p Page) Digest(source string, n int) (Digest, bool) {
	if len(p.Paragraphs) == 0 {
		return Digest{}, false
	}
	summary := SummarizeText(p.Paragraphs, n)
	return Digest{
		Title:         p.Title,
		Source:        source,
		Summary:       summary,
		KeyPoints:     KeyPoints(p.Paragraphs),
		WordCount:     len(strings.Fields(p.Text)),
		SummaryLength: len(strings.Fields(summary)),
	}, true
}

var wordPattern = regexp.MustCompile(`\b[a-z]{4,}\b`)

type scoredSentence struct {
	text  string
	score float64
	para  int
	pos   int
}

// SummarizeText picks the n highest-scoring sentences and returns them in
// document order. Sentences in the first paragraphs and at the start of a
// paragraph score higher, as do sentences made of frequent words; very
// long sentences are penalized and very short ones skipped.
func SummarizeText(paragraphs []string, n int) string {
	if n <= 0 {
		n = DefaultSummarySentences
	}
	freq := make(map[string]int)
	for _, w := range wordPattern.FindAllString(strings.ToLower(strings.Join(paragraphs, " ")), -1) {
		freq[w]++
	}

	var sentences []scoredSentence
	for i, para := range paragraphs {
		for j, sent := range splitSentences(para) {
			if len(sent) < 30 {
				continue
			}
			score := 0.0
			switch {
			case i == 0:
				score += 3
			case i < 3:
				score += 2
			}
			if j == 0 {
				score++
			}
			for _, w := range wordPattern.FindAllString(strings.ToLower(sent), -1) {
				score += float64(freq[w]) * 0.01
			}
			if len(sent) > 200 {
				score -= 0.5
			}
			sentences = append(sentences, scoredSentence{text: sent, score: score, para: i, pos: j})
		}
	}

	sort.SliceStable(sentences, func(a, b int) bool { return sentences[a].score > sentences[b].score })
	if len(sentences) > n {
		sentences = sentences[:n]
	}
	sort.SliceStable(sentences, func(a, b int) bool {
		if sentences[a].para != sentences[b].para {
			return sentences[a].para < sentences[b].para
		}
		return sentences[a].pos < sentences[b].pos
	})

	out := make([]string, len(sentences))
	for i, s := range sentences {
		out[i] = s.text
	}
	return strings.Join(out, " ")
}

// splitSentences breaks text after '.', '!' or '?' when whitespace
// follows.
func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
		default:
			continue
		}
		if i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		out = append(out, string(runes[start:i+1]))
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

var keyPointPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:announced?|said|stated|reported)\s+[^.]*\d[^.]*\.`),
	regexp.MustCompile(`(?i)\$\d[\d,]*\s*(?:million|billion)?`),
	regexp.MustCompile(`\d+%`),
	regexp.MustCompile(`(?i)(?:will|plans? to|expected to)\s+[^.]{10,100}\.`),
	regexp.MustCompile(`(?i)(?:VSIP|buyout|early retirement|RIF|workforce)[^.]*\.`),
}

const maxKeyPoints = 5

// KeyPoints scans the first ten paragraphs for announcements, amounts,
// percentages and plans, returning up to five distinct matches longer
// than 20 characters.
func KeyPoints(paragraphs []string) []string {
	if len(paragraphs) > 10 {
		paragraphs = paragraphs[:10]
	}
	var points []string
	seen := make(map[string]bool)
	for _, para := range paragraphs {
		for _, re := range keyPointPatterns {
			for _, m := range re.FindAllString(para, -1) {
				if len(m) <= 20 || seen[m] {
					continue
				}
				seen[m] = true
				points = append(points, m)
				if len(points) == maxKeyPoints {
					return points
				}
			}
		}
	}
	return points
}
