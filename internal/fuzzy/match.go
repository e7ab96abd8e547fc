// Package fuzzy implements smart-case, diacritic-folding fuzzy matching
// over an item's name and keywords, built on github.com/sahilm/fuzzy.
package fuzzy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	libfuzzy "github.com/sahilm/fuzzy"
)

// Config controls matcher behavior; defaults match the original engine's
// SearchConfig.
type Config struct {
	NameWeight    float64
	KeywordWeight float64
	Limit         int
	Threshold     float64
}

// DefaultConfig returns {threshold: 0, limit: 100, name_weight: 1.0,
// keyword_weight: 0.3}, the original's exact defaults.
func DefaultConfig() Config {
	return Config{NameWeight: 1.0, KeywordWeight: 0.3, Limit: 100, Threshold: 0}
}

// Searchable is anything the matcher can score: a name plus optional
// keywords.
type Searchable struct {
	ID       string
	Name     string
	Keywords []string
}

// SearchMatch is one scored result. It borrows Searchable by value (small
// struct, no pointer aliasing needed) rather than cloning heavier backing
// data, mirroring the original's no-clone result semantics.
type SearchMatch struct {
	Searchable Searchable
	Score      float64
}

var diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func normalize(s string) string {
	folded, _, err := transform.String(diacriticFolder, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// isSmartCase reports whether query contains any uppercase letter, in which
// case matching becomes case-sensitive (smart-case, as in fzf/ripgrep).
func isSmartCase(query string) bool {
	for _, r := range query {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func prepare(query, s string) string {
	if isSmartCase(query) {
		folded, _, err := transform.String(diacriticFolder, s)
		if err != nil {
			return s
		}
		return folded
	}
	return normalize(s)
}

func prepareQuery(query string) string {
	if isSmartCase(query) {
		folded, _, err := transform.String(diacriticFolder, query)
		if err != nil {
			return query
		}
		return folded
	}
	return normalize(query)
}

// Search scores every candidate against query using weighted name and
// keyword fuzzy matches, sorts descending, truncates to cfg.Limit, then
// retains only matches at or above cfg.Threshold -- in that exact order,
// per the original engine's search().
func Search(query string, candidates []Searchable, cfg Config) []SearchMatch {
	if query == "" {
		out := make([]SearchMatch, 0, len(candidates))
		for _, c := range candidates {
			out = append(out, SearchMatch{Searchable: c, Score: 0})
		}
		return out
	}

	q := prepareQuery(query)

	results := make([]SearchMatch, 0, len(candidates))
	for _, c := range candidates {
		score, ok := scoreSearchable(q, query, c, cfg)
		if !ok {
			continue
		}
		results = append(results, SearchMatch{Searchable: c, Score: score})
	}

	sortDesc(results)

	if cfg.Limit > 0 && len(results) > cfg.Limit {
		results = results[:cfg.Limit]
	}

	filtered := results[:0:0]
	for _, r := range results {
		if r.Score >= cfg.Threshold {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// scoreSearchable scores name and keywords independently and combines
// whichever match; a candidate is dropped only when neither field matches.
// Keywords are joined into a single space-separated string before matching,
// per the original engine's combined-keyword scoring.
func scoreSearchable(normalizedQuery, rawQuery string, c Searchable, cfg Config) (float64, bool) {
	var total float64
	matched := false

	if nameScore, ok := matchOne(normalizedQuery, rawQuery, c.Name); ok {
		total += nameScore * cfg.NameWeight
		matched = true
	}

	if len(c.Keywords) > 0 {
		joined := strings.Join(c.Keywords, " ")
		if kwScore, ok := matchOne(normalizedQuery, rawQuery, joined); ok {
			total += kwScore * cfg.KeywordWeight
			matched = true
		}
	}

	return total, matched
}

func matchOne(normalizedQuery, rawQuery, target string) (float64, bool) {
	prepared := prepare(rawQuery, target)
	matches := libfuzzy.Find(normalizedQuery, []string{prepared})
	if len(matches) == 0 {
		return 0, false
	}
	return float64(matches[0].Score), true
}

func sortDesc(results []SearchMatch) {
	// Simple insertion sort is adequate: candidate lists per plugin are
	// small, and stability keeps ties in original scan order.
	for i := 1; i < len(results); i++ {
		j := i
		for j > 0 && results[j-1].Score < results[j].Score {
			results[j-1], results[j] = results[j], results[j-1]
			j--
		}
	}
}
