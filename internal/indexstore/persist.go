package indexstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CurrentVersion is the persisted index-cache document version this store
// writes. Version 1 used flat underscore-prefixed frecency fields, migrated
// on load by migrateV1.
const CurrentVersion = 2

// IndexCache is the versioned on-disk document described in spec.md §6.
type IndexCache struct {
	Version int                     `json:"version"`
	SavedAt int64                   `json:"savedAt"`
	Indexes map[string]*PluginIndex `json:"indexes"`
}

// Save atomically writes store's contents to path as a v2 IndexCache.
func Save(path string, store *Store, now time.Time) error {
	cache := IndexCache{Version: CurrentVersion, SavedAt: now.UnixMilli(), Indexes: store.Indexes}
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("indexstore: marshal cache: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("indexstore: write temp cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("indexstore: rename cache into place: %w", err)
	}
	return nil
}

// Load reads path and returns a Store. A missing file behaves as an empty
// store (Config/IO error category: log-and-behave-as-empty, per spec.md §7),
// not an error.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("indexstore: read cache: %w", err)
	}
	return decode(data)
}

// rawCache and rawPluginIndex let us detect and migrate the v1 document
// shape before committing to typed v2 structs.
type rawCache struct {
	Version int                        `json:"version"`
	Indexes map[string]json.RawMessage `json:"indexes"`
}

type rawIndexedItem struct {
	Item          Item            `json:"item"`
	IsPluginEntry *bool           `json:"isPluginEntry"`
	IsPluginEntryUnderscore *bool `json:"_isPluginEntry"`
	Frecency      *Frecency       `json:"frecency"`

	// v1 flat fields
	V1Count                 *int            `json:"_count"`
	V1LastUsed              *int64          `json:"_lastUsed"`
	V1RecentSearchTerms     []string        `json:"_recentSearchTerms"`
	V1HourSlotCounts        *[24]int        `json:"_hourSlotCounts"`
	V1DayOfWeekCounts       *[7]int         `json:"_dayOfWeekCounts"`
	V1ConsecutiveDays       *int            `json:"_consecutiveDays"`
	V1LastConsecutiveDate   *string         `json:"_lastConsecutiveDate"`
	V1LaunchFromEmptyCount  *int            `json:"_launchFromEmptyCount"`
	V1SessionStartCount     *int            `json:"_sessionStartCount"`
	V1WorkspaceCounts       map[string]int  `json:"_workspaceCounts"`
	V1MonitorCounts         map[string]int  `json:"_monitorCounts"`
	V1LaunchedAfter         map[string]int  `json:"_launchedAfter"`
	V1ResumeFromIdleCount   *int            `json:"_resumeFromIdleCount"`
	V1DisplayCountCounts    map[string]int  `json:"_displayCountCounts"`
	V1SessionDurationCounts *[5]int         `json:"_sessionDurationCounts"`
}

func decode(data []byte) (*Store, error) {
	var raw rawCache
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("indexstore: decode cache: %w", err)
	}

	store := NewStore()
	for pluginID, rawIdx := range raw.Indexes {
		idx, err := decodeIndex(rawIdx, raw.Version)
		if err != nil {
			// A single malformed plugin index is skipped, not fatal to the
			// whole cache load.
			continue
		}
		store.Indexes[pluginID] = idx
	}
	return store, nil
}

type rawPluginIndexV2 struct {
	Items       map[string]json.RawMessage `json:"items"`
	LastIndexed int64                      `json:"lastIndexed"`
}

func decodeIndex(data json.RawMessage, version int) (*PluginIndex, error) {
	var rawIdx rawPluginIndexV2
	if err := json.Unmarshal(data, &rawIdx); err != nil {
		return nil, err
	}

	idx := &PluginIndex{Items: make(map[string]*IndexedItem, len(rawIdx.Items)), LastIndexed: rawIdx.LastIndexed}
	for id, itemData := range rawIdx.Items {
		item, err := decodeItem(itemData, version)
		if err != nil {
			continue
		}
		idx.Items[id] = item
	}
	return idx, nil
}

func decodeItem(data json.RawMessage, version int) (*IndexedItem, error) {
	var raw rawIndexedItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	isPluginEntry := false
	if raw.IsPluginEntry != nil {
		isPluginEntry = *raw.IsPluginEntry
	} else if raw.IsPluginEntryUnderscore != nil {
		isPluginEntry = *raw.IsPluginEntryUnderscore
	}

	if version < 2 || raw.Frecency == nil {
		return &IndexedItem{
			Item:          raw.Item,
			IsPluginEntry: isPluginEntry,
			Frecency:      migrateV1Frecency(raw),
		}, nil
	}

	return &IndexedItem{Item: raw.Item, IsPluginEntry: isPluginEntry, Frecency: *raw.Frecency}, nil
}

// migrateV1Frecency maps the flat underscore-prefixed v1 fields onto the
// nested v2 Frecency struct, field by field, per the original
// hamr-core/src/index/mod.rs migrate_v1_frecency.
func migrateV1Frecency(raw rawIndexedItem) Frecency {
	f := Frecency{
		WorkspaceCounts:    raw.V1WorkspaceCounts,
		MonitorCounts:      raw.V1MonitorCounts,
		LaunchedAfter:      raw.V1LaunchedAfter,
		DisplayCountCounts: raw.V1DisplayCountCounts,
		RecentSearchTerms:  raw.V1RecentSearchTerms,
	}

	if raw.V1Count != nil {
		f.Count = *raw.V1Count
	}
	if raw.V1LastUsed != nil {
		f.LastUsedMS = *raw.V1LastUsed
	}
	if raw.V1HourSlotCounts != nil {
		f.HourSlotCounts = *raw.V1HourSlotCounts
	}
	if raw.V1DayOfWeekCounts != nil {
		f.DayOfWeekCounts = *raw.V1DayOfWeekCounts
	}
	if raw.V1ConsecutiveDays != nil {
		f.ConsecutiveDays = *raw.V1ConsecutiveDays
	}
	if raw.V1LastConsecutiveDate != nil {
		f.LastConsecutiveDate = *raw.V1LastConsecutiveDate
	}
	if raw.V1LaunchFromEmptyCount != nil {
		f.LaunchFromEmptyCount = *raw.V1LaunchFromEmptyCount
	}
	if raw.V1SessionStartCount != nil {
		f.SessionStartCount = *raw.V1SessionStartCount
	}
	if raw.V1ResumeFromIdleCount != nil {
		f.ResumeFromIdleCount = *raw.V1ResumeFromIdleCount
	}
	if raw.V1SessionDurationCounts != nil {
		f.SessionDurationCounts = *raw.V1SessionDurationCounts
	}

	return f
}

// DefaultCachePath returns the index cache file path inside baseDir.
func DefaultCachePath(baseDir string) string {
	return filepath.Join(baseDir, "index-cache.json")
}
