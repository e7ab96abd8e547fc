// Package indexstore implements the per-plugin indexed-item store and its
// versioned on-disk JSON persistence, including migration from the v1
// flat-field frecency format.
package indexstore

import (
	"time"
)

// Frecency holds the counters used to derive an item's frecency score and
// to feed smart suggestions.
type Frecency struct {
	Count                int            `json:"count"`
	LastUsedMS           int64          `json:"lastUsedMs"`
	RecentSearchTerms    []string       `json:"recentSearchTerms"`
	HourSlotCounts       [24]int        `json:"hourSlotCounts"`
	DayOfWeekCounts      [7]int         `json:"dayOfWeekCounts"`
	ConsecutiveDays      int            `json:"consecutiveDays"`
	LastConsecutiveDate  string         `json:"lastConsecutiveDate"`
	LaunchFromEmptyCount int            `json:"launchFromEmptyCount"`
	SessionStartCount    int            `json:"sessionStartCount"`
	WorkspaceCounts      map[string]int `json:"workspaceCounts"`
	MonitorCounts        map[string]int `json:"monitorCounts"`
	LaunchedAfter        map[string]int `json:"launchedAfter"`
	ResumeFromIdleCount  int            `json:"resumeFromIdleCount"`
	DisplayCountCounts   map[string]int `json:"displayCountCounts"`
	SessionDurationCounts [5]int        `json:"sessionDurationCounts"`
}

// tierWindows are the recency-tier cutoffs and multipliers (fixed, see
// DESIGN.md Open Question decisions).
const (
	tier1h  = time.Hour
	tier24h = 24 * time.Hour
	tier7d  = 7 * 24 * time.Hour

	tierMult1h  = 1.0
	tierMult24h = 0.7
	tierMult7d  = 0.4
	tierMultOld = 0.2
)

// Score computes frecency = count * recency_tier(now - last_used).
func (f Frecency) Score(now time.Time) float64 {
	if f.Count == 0 {
		return 0
	}
	age := now.Sub(time.UnixMilli(f.LastUsedMS))
	var tier float64
	switch {
	case age < tier1h:
		tier = tierMult1h
	case age < tier24h:
		tier = tierMult24h
	case age < tier7d:
		tier = tierMult7d
	default:
		tier = tierMultOld
	}
	return float64(f.Count) * tier
}

// RecordUse increments (never decrements) the counters for one use of an
// item at instant t, with the given context dimensions (any may be empty).
// The increments are not clamped at the integer maximum.
func (f *Frecency) RecordUse(t time.Time, searchTerm, workspace, monitor, displayCount string, fromEmpty, sessionStart, resumeFromIdle bool) {
	f.Count++
	f.LastUsedMS = t.UnixMilli()

	if searchTerm != "" {
		f.RecentSearchTerms = append(f.RecentSearchTerms, searchTerm)
		if len(f.RecentSearchTerms) > 10 {
			f.RecentSearchTerms = f.RecentSearchTerms[len(f.RecentSearchTerms)-10:]
		}
	}

	f.HourSlotCounts[t.Hour()]++
	f.DayOfWeekCounts[int(t.Weekday())]++

	date := t.Format("2006-01-02")
	if f.LastConsecutiveDate != "" && f.LastConsecutiveDate != date {
		prevDay, err := time.Parse("2006-01-02", f.LastConsecutiveDate)
		if err == nil && t.Sub(prevDay) <= 48*time.Hour && t.Sub(prevDay) >= 0 {
			f.ConsecutiveDays++
		} else if err == nil {
			f.ConsecutiveDays = 1
		}
	} else if f.LastConsecutiveDate == "" {
		f.ConsecutiveDays = 1
	}
	f.LastConsecutiveDate = date

	if fromEmpty {
		f.LaunchFromEmptyCount++
	}
	if sessionStart {
		f.SessionStartCount++
	}
	if resumeFromIdle {
		f.ResumeFromIdleCount++
	}

	if workspace != "" {
		if f.WorkspaceCounts == nil {
			f.WorkspaceCounts = make(map[string]int)
		}
		f.WorkspaceCounts[workspace]++
	}
	if monitor != "" {
		if f.MonitorCounts == nil {
			f.MonitorCounts = make(map[string]int)
		}
		f.MonitorCounts[monitor]++
	}
	if displayCount != "" {
		if f.DisplayCountCounts == nil {
			f.DisplayCountCounts = make(map[string]int)
		}
		f.DisplayCountCounts[displayCount]++
	}
}

// Item is one indexed, searchable entity contributed by a plugin.
type Item struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Action      string   `json:"action,omitempty"`
}

// IndexedItem pairs a plugin-contributed Item with its frecency counters.
type IndexedItem struct {
	Item         Item     `json:"item"`
	Frecency     Frecency `json:"frecency"`
	IsPluginEntry bool    `json:"isPluginEntry"`
}

// PluginIndex holds one plugin's contributed items.
type PluginIndex struct {
	Items        map[string]*IndexedItem `json:"items"`
	LastIndexed  int64                   `json:"lastIndexed"`
}

// NewPluginIndex constructs an empty index.
func NewPluginIndex() *PluginIndex {
	return &PluginIndex{Items: make(map[string]*IndexedItem)}
}

// Upsert inserts or replaces item, preserving existing frecency counters
// when the item id was already present (re-indexing must not reset usage
// history).
func (p *PluginIndex) Upsert(item Item, isPluginEntry bool) {
	if existing, ok := p.Items[item.ID]; ok {
		existing.Item = item
		existing.IsPluginEntry = isPluginEntry
		return
	}
	p.Items[item.ID] = &IndexedItem{Item: item, IsPluginEntry: isPluginEntry}
}

// Store owns every plugin's PluginIndex, keyed by plugin id.
type Store struct {
	Indexes map[string]*PluginIndex
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{Indexes: make(map[string]*PluginIndex)}
}

// Index returns (creating if necessary) the PluginIndex for pluginID.
func (s *Store) Index(pluginID string) *PluginIndex {
	idx, ok := s.Indexes[pluginID]
	if !ok {
		idx = NewPluginIndex()
		s.Indexes[pluginID] = idx
	}
	return idx
}

// RemovePlugin drops a plugin's entire index, used when a plugin is
// uninstalled or fails discovery's supported-platform filter.
func (s *Store) RemovePlugin(pluginID string) {
	delete(s.Indexes, pluginID)
}
