package indexstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	store := NewStore()
	idx := store.Index("calc")
	idx.Upsert(Item{ID: "1+1", Name: "1+1 = 2"}, false)
	idx.Items["1+1"].Frecency.RecordUse(time.Now(), "1+1", "", "", "", true, false, false)

	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, Save(path, store, time.Now()))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Contains(t, loaded.Indexes, "calc")
	assert.Equal(t, 1, loaded.Indexes["calc"].Items["1+1"].Frecency.Count)
	assert.Equal(t, "1+1 = 2", loaded.Indexes["calc"].Items["1+1"].Item.Name)
}

func TestLoad_MissingFileIsEmptyStore(t *testing.T) {
	store, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, store.Indexes)
}

func TestLoad_MigratesV1FlatFields(t *testing.T) {
	v1 := `{
		"version": 1,
		"indexes": {
			"calc": {
				"items": {
					"1+1": {
						"item": {"id": "1+1", "name": "1+1 = 2"},
						"_isPluginEntry": false,
						"_count": 7,
						"_lastUsed": 1700000000000,
						"_consecutiveDays": 3,
						"_lastConsecutiveDate": "2023-11-14",
						"_launchFromEmptyCount": 2,
						"_sessionStartCount": 1,
						"_workspaceCounts": {"main": 5},
						"_hourSlotCounts": [0,0,1,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0],
						"_dayOfWeekCounts": [0,0,0,0,0,0,1],
						"_resumeFromIdleCount": 1
					}
				},
				"lastIndexed": 1700000000000
			}
		}
	}`

	path := filepath.Join(t.TempDir(), "v1cache.json")
	require.NoError(t, writeFile(path, v1))

	store, err := Load(path)
	require.NoError(t, err)

	item := store.Indexes["calc"].Items["1+1"]
	require.NotNil(t, item)
	assert.Equal(t, 7, item.Frecency.Count)
	assert.Equal(t, int64(1700000000000), item.Frecency.LastUsedMS)
	assert.Equal(t, 3, item.Frecency.ConsecutiveDays)
	assert.Equal(t, "2023-11-14", item.Frecency.LastConsecutiveDate)
	assert.Equal(t, 2, item.Frecency.LaunchFromEmptyCount)
	assert.Equal(t, 1, item.Frecency.SessionStartCount)
	assert.Equal(t, 5, item.Frecency.WorkspaceCounts["main"])
	assert.Equal(t, 1, item.Frecency.ResumeFromIdleCount)
}

func TestUpsert_PreservesExistingFrecency(t *testing.T) {
	idx := NewPluginIndex()
	idx.Upsert(Item{ID: "a", Name: "Alpha"}, false)
	idx.Items["a"].Frecency.Count = 42

	idx.Upsert(Item{ID: "a", Name: "Alpha Renamed"}, false)
	assert.Equal(t, 42, idx.Items["a"].Frecency.Count)
	assert.Equal(t, "Alpha Renamed", idx.Items["a"].Item.Name)
}

func TestFrecency_ScoreTiers(t *testing.T) {
	now := time.Now()
	f := Frecency{Count: 10, LastUsedMS: now.Add(-30 * time.Minute).UnixMilli()}
	assert.InDelta(t, 10.0, f.Score(now), 0.001)

	f.LastUsedMS = now.Add(-12 * time.Hour).UnixMilli()
	assert.InDelta(t, 7.0, f.Score(now), 0.001)

	f.LastUsedMS = now.Add(-3 * 24 * time.Hour).UnixMilli()
	assert.InDelta(t, 4.0, f.Score(now), 0.001)

	f.LastUsedMS = now.Add(-30 * 24 * time.Hour).UnixMilli()
	assert.InDelta(t, 2.0, f.Score(now), 0.001)
}

func TestFrecency_ZeroCountScoresZero(t *testing.T) {
	f := Frecency{}
	assert.Equal(t, 0.0, f.Score(time.Now()))
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
