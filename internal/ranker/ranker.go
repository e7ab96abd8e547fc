// Package ranker computes the composite search ranking score (fuzzy +
// history + frecency + name-prefix bonuses) and applies per-source
// diversity decay to the sorted result list.
package ranker

import (
	"sort"
	"strings"
)

// Candidate is one scored search result input.
type Candidate struct {
	ItemID       string
	PluginID     string
	Name         string
	FuzzyScore   float64
	Frecency     float64 // already count * recency_tier
	HistoryExact bool    // true if query exactly matches a recorded history term
}

// Ranked is a Candidate plus its final composite score.
type Ranked struct {
	Candidate Candidate
	Score     float64
}

const (
	exactMatchBonus   = 1000.0
	exactNameBonus    = 500.0
	emptyQueryBonus   = 250.0
	prefixBaseBonus   = 250.0
	prefixLengthBonus = 250.0
	maxFrecencyBonus  = 300.0
	frecencyMultiplier = 10.0
)

// NameMatchBonus scores how well name matches query as an exact/prefix
// bonus, per the original engine's name_match_bonus:
//   - exact case-insensitive match: 500
//   - empty query, non-empty name: 250
//   - empty name: 0
//   - query longer than name: 0
//   - case-insensitive prefix match: 250 + 250*(len(query)/len(name))
//   - otherwise: 0
func NameMatchBonus(query, name string) float64 {
	if strings.EqualFold(query, name) {
		return exactNameBonus
	}
	if name == "" {
		return 0
	}
	if query == "" {
		return emptyQueryBonus
	}
	if len(query) > len(name) {
		return 0
	}

	lowerName := strings.ToLower(name)
	lowerQuery := strings.ToLower(query)
	if !strings.HasPrefix(lowerName, lowerQuery) {
		return 0
	}

	coverage := float64(len(query)) / float64(len(name))
	return prefixBaseBonus + prefixLengthBonus*coverage
}

// Score computes the full composite ranking score for one candidate:
//
//	total = fuzzy_score
//	      + 1000 if HistoryExact
//	      + min(frecency*10, 300)
//	      + name_prefix_bonus
//	      + pluginBonus[c.PluginID]
//
// pluginBonus is the configured search.plugin_ranking_bonus table; a plugin
// with no entry contributes 0.
func Score(c Candidate, query string, pluginBonus map[string]float64) float64 {
	total := c.FuzzyScore

	if c.HistoryExact {
		total += exactMatchBonus
	}

	frecencyBonus := c.Frecency * frecencyMultiplier
	if frecencyBonus > maxFrecencyBonus {
		frecencyBonus = maxFrecencyBonus
	}
	total += frecencyBonus

	total += NameMatchBonus(query, c.Name)

	total += pluginBonus[c.PluginID]

	return total
}

// Rank scores every candidate and returns them sorted descending by score.
// pluginBonus is the configured search.plugin_ranking_bonus table, keyed by
// plugin id; pass nil when no bonuses are configured.
func Rank(candidates []Candidate, query string, pluginBonus map[string]float64) []Ranked {
	out := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Ranked{Candidate: c, Score: Score(c, query, pluginBonus)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// DiversityConfig controls the post-sort per-source decay pass.
type DiversityConfig struct {
	DecayBase  float64 // e.g. 0.7; 0.0 zeroes every result after the first per source
	MaxPerSource int    // 0 disables the hard cap
}

// ApplyDiversityDecay multiplies each ranked result's score by
// DecayBase^k, where k is the zero-based index of that result within its
// own source (PluginID), re-sorts, and optionally hard-caps the number of
// results kept per source.
func ApplyDiversityDecay(ranked []Ranked, cfg DiversityConfig) []Ranked {
	counts := make(map[string]int)
	decayed := make([]Ranked, 0, len(ranked))

	for _, r := range ranked {
		k := counts[r.Candidate.PluginID]
		counts[r.Candidate.PluginID] = k + 1

		if cfg.MaxPerSource > 0 && k >= cfg.MaxPerSource {
			continue
		}

		decay := pow(cfg.DecayBase, k)
		r.Score *= decay
		decayed = append(decayed, r)
	}

	sort.SliceStable(decayed, func(i, j int) bool { return decayed[i].Score > decayed[j].Score })
	return decayed
}

func pow(base float64, exp int) float64 {
	if exp <= 0 {
		return 1
	}
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
