package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamr/hamrd/internal/indexstore"
	"github.com/hamr/hamrd/internal/manifest"
)

func testPlugin(id string) *manifest.Discovered {
	return &manifest.Discovered{
		Manifest: &manifest.Manifest{ID: id, Name: id, Handler: "./run"},
		Path:     "/plugins/" + id,
	}
}

func TestActivatePluginForMultistep_Idempotent(t *testing.T) {
	c := New(nil, 8)
	c.RegisterPlugin(testPlugin("calc"))

	c.ActivatePluginForMultistep("calc")
	first := c.Snapshot().ActivePlugin
	require.NotNil(t, first)

	c.ActivatePluginForMultistep("calc")
	second := c.Snapshot().ActivePlugin
	require.NotNil(t, second)
	assert.Equal(t, first.Session, second.Session, "second activation must be a no-op")
}

func TestActivatePluginForMultistep_UnknownPluginIsNoop(t *testing.T) {
	c := New(nil, 8)
	c.ActivatePluginForMultistep("nonexistent")
	assert.Nil(t, c.Snapshot().ActivePlugin)
}

func TestHandleNavigateBack_DecrementsThenClears(t *testing.T) {
	c := New(nil, 8)
	c.RegisterPlugin(testPlugin("calc"))
	c.ActivatePluginForMultistep("calc")

	c.mu.Lock()
	c.state.NavigationDepth = 2
	c.mu.Unlock()

	c.HandleNavigateBack()
	assert.Equal(t, 1, c.Snapshot().NavigationDepth)
	require.NotNil(t, c.Snapshot().ActivePlugin)

	c.HandleNavigateBack()
	assert.Equal(t, 0, c.Snapshot().NavigationDepth)

	c.HandleNavigateBack()
	assert.Nil(t, c.Snapshot().ActivePlugin)
}

func TestHandleLauncherClosed_ClearsActivePluginAndQuery(t *testing.T) {
	c := New(nil, 8)
	c.RegisterPlugin(testPlugin("calc"))
	c.ActivatePluginForMultistep("calc")

	c.mu.Lock()
	c.state.Query = "fir"
	c.mu.Unlock()

	c.HandleLauncherClosed()
	assert.Nil(t, c.Snapshot().ActivePlugin)
	assert.Equal(t, "", c.Snapshot().Query)
}

func TestUnregisterPlugin_RemovesFromRegistryAndStore(t *testing.T) {
	c := New(nil, 8)
	c.RegisterPlugin(testPlugin("calc"))
	c.UnregisterPlugin("calc")
	assert.Empty(t, c.ListPlugins())
	assert.NotContains(t, c.store.Indexes, "calc")
}

func TestGlobalSearch_TruncatesToMaxDisplayedResults(t *testing.T) {
	c := New(nil, 8)
	idx := c.store.Index("calc")
	for _, name := range []string{"alpha", "alpha2", "alpha3", "alpha4"} {
		idx.Upsert(indexstore.Item{ID: name, Name: name}, false)
	}
	c.SetRankingTuning(nil, 2)

	out := c.globalSearch("alpha")
	assert.Len(t, out, 2)
}

func TestGlobalSearch_AppliesConfiguredPluginBonus(t *testing.T) {
	c := New(nil, 8)
	c.store.Index("calc").Upsert(indexstore.Item{ID: "calc-item", Name: "widget"}, false)
	c.store.Index("files").Upsert(indexstore.Item{ID: "files-item", Name: "widget"}, false)
	c.SetRankingTuning(map[string]float64{"calc": 1000}, 0)

	out := c.globalSearch("widget")
	require.Len(t, out, 2)
	assert.Equal(t, "calc", out[0].PluginID)
}

func TestRouteToPlugin_HighestPriorityPatternWins(t *testing.T) {
	c := New(nil, 8)
	low := testPlugin("low")
	reparsed, err := manifest.Parse([]byte(`{"id":"low","name":"low","handler":"./run","match":{"patterns":["^do "],"priority":1}}`), "low")
	require.NoError(t, err)
	low.Manifest = reparsed

	high := testPlugin("high")
	reparsedHigh, err := manifest.Parse([]byte(`{"id":"high","name":"high","handler":"./run","match":{"patterns":["^do "],"priority":5}}`), "high")
	require.NoError(t, err)
	high.Manifest = reparsedHigh

	c.RegisterPlugin(low)
	c.RegisterPlugin(high)

	_, handled := c.routeToPlugin("do this")
	require.True(t, handled)
	active := c.Snapshot().ActivePlugin
	require.NotNil(t, active)
	assert.Equal(t, "high", active.ID)
}

func TestFanout_DropsWhenFull(t *testing.T) {
	f := NewFanout(1)
	f.Send(Update{Kind: UpdateBusy, Busy: true})
	f.Send(Update{Kind: UpdateBusy, Busy: false})

	got := <-f.Updates()
	assert.Equal(t, false, got.Busy, "oldest update should have been dropped")
}
