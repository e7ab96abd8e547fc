// Package core implements the daemon's state machine: event handling, Busy
// bracketing around plugin round-trips, session-id freshness, recent-list
// cache invalidation, and update fan-out to the active UI session.
//
// Grounded on _examples/original_source/crates/hamr-core/src/engine/plugins.rs.
package core

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hamr/hamrd/internal/indexstore"
	"github.com/hamr/hamrd/internal/manifest"
	"github.com/hamr/hamrd/internal/pluginclient"
	"github.com/hamr/hamrd/internal/thumbnail"
)

// InputMode mirrors the plugin-declared delivery mode for query text.
type InputMode string

const (
	InputRealtime InputMode = "realtime"
	InputSubmit   InputMode = "submit"
)

// ActivePlugin is the plugin currently occupying the multi-step flow, if
// any.
type ActivePlugin struct {
	ID                string
	Name              string
	Icon              string
	Session           string
	LastSelectedItem  string
	Context           string
}

// State is the daemon state. Handlers mutate it from the calling goroutine
// while holding Core.mu; there is no separate event queue.
type State struct {
	Query           string
	ActivePlugin    *ActivePlugin
	NavigationDepth int
	InputMode       InputMode
	Busy            bool
}

// generateSessionID mints a fresh opaque session id for a plugin
// activation, used to reject stale responses from a superseded activation.
func generateSessionID() string {
	return uuid.NewString()
}

// Core owns the daemon's single-writer state plus everything handlers need:
// the plugin registry, indexed-item store, and update fan-out.
type Core struct {
	mu    sync.Mutex // guards state; serializes handlers called from connection goroutines and external reads (e.g. admin HTTP)
	state State

	plugins map[string]*manifest.Discovered
	store   *indexstore.Store
	logger  *slog.Logger

	recentCache      []SearchResult
	recentCacheValid bool

	updates *Fanout

	// activeProcess is the in-flight on-demand (stdio) plugin process, if
	// any; a new selection kills it before spawning the next one.
	activeProcess *pluginclient.Process

	// suggestionHalfLifeDays and suggestionMaxAgeDays tune
	// internal/frecency.BuildSuggestions; SetSuggestionTuning overrides the
	// defaults from loaded config.
	suggestionHalfLifeDays float64
	suggestionMaxAgeDays   float64

	// thumbnails, when set, generates and caches bounded-size thumbnails for
	// static-index items whose icon names a local image file.
	thumbnails *thumbnail.Cache

	// pluginBonus is the configured search.plugin_ranking_bonus table; keys
	// are plugin ids, values the flat score bonus applied to their results.
	pluginBonus map[string]float64
	// maxDisplayedResults truncates globalSearch's output after diversity
	// decay; 0 means unlimited.
	maxDisplayedResults int
}

// New constructs a Core with an empty plugin registry and index store.
func New(logger *slog.Logger, fanoutBuffer int) *Core {
	return &Core{
		plugins:                make(map[string]*manifest.Discovered),
		store:                  indexstore.NewStore(),
		logger:                 logger,
		updates:                NewFanout(fanoutBuffer),
		suggestionHalfLifeDays: 14.0,
		suggestionMaxAgeDays:   90.0,
	}
}

// Store returns the underlying index store, for persistence at shutdown.
func (c *Core) Store() *indexstore.Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store
}

// AdoptStore replaces the index store wholesale; used only at daemon startup
// to adopt a cache loaded from disk before any plugin registration happens.
func (c *Core) AdoptStore(store *indexstore.Store) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = store
	c.recentCacheValid = false
}

// SetThumbnailCache enables thumbnail generation for static-index items
// whose icon names a local image file.
func (c *Core) SetThumbnailCache(cache *thumbnail.Cache) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thumbnails = cache
}

// SetSuggestionTuning overrides the half-life/max-age used when building
// smart suggestions, normally sourced from config.SuggestionConfig.
func (c *Core) SetSuggestionTuning(halfLifeDays, maxAgeDays float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suggestionHalfLifeDays = halfLifeDays
	c.suggestionMaxAgeDays = maxAgeDays
}

// SetRankingTuning overrides the per-plugin ranking bonus table and the
// maximum number of results returned by globalSearch, normally sourced from
// config.SearchConfig.
func (c *Core) SetRankingTuning(pluginBonus map[string]float64, maxDisplayedResults int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pluginBonus = pluginBonus
	c.maxDisplayedResults = maxDisplayedResults
}

// Snapshot returns a copy of the current state, safe to call from any
// goroutine (e.g. the admin HTTP surface).
func (c *Core) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Updates returns the channel of state-change notifications to be fanned out
// to the active UI session.
func (c *Core) Updates() <-chan Update {
	return c.updates.Updates()
}

// SearchResult is what the daemon returns to the UI for one ranked item.
type SearchResult struct {
	ID       string
	PluginID string
	Name     string
	Icon     string
	Score    float64
}

// staticImageExts lists icon file extensions eligible for thumbnail
// generation; anything else (a named system icon, a remote URL) is left as
// the plugin reported it.
var staticImageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true, ".gif": true, ".bmp": true}

// RegisterPlugin adds or replaces a plugin in the registry, as produced by
// discovery or a rescan diff, and loads its static index (if declared) into
// the item store.
func (c *Core) RegisterPlugin(d *manifest.Discovered) {
	c.mu.Lock()
	c.plugins[d.Manifest.ID] = d
	thumbnails := c.thumbnails
	c.mu.Unlock()

	if d.Manifest.StaticIndex == "" {
		return
	}

	indexPath := d.Manifest.StaticIndex
	if !filepath.IsAbs(indexPath) {
		indexPath = filepath.Join(d.Path, indexPath)
	}
	items, err := indexstore.LoadStaticIndex(indexPath)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("failed to load static index", "plugin", d.Manifest.ID, "error", err)
		}
		return
	}

	idx := c.store.Index(d.Manifest.ID)
	for _, item := range items {
		if thumbnails != nil && staticImageExts[strings.ToLower(filepath.Ext(item.Icon))] {
			if path, err := thumbnails.Get(item.Icon); err == nil {
				item.Icon = path
			} else if c.logger != nil {
				c.logger.Debug("thumbnail generation failed", "plugin", d.Manifest.ID, "item", item.ID, "error", err)
			}
		}
		idx.Upsert(item, false)
	}

	c.mu.Lock()
	c.invalidateRecentCache()
	c.mu.Unlock()
}

// UnregisterPlugin removes a plugin (e.g. on rescan-detected removal) and
// drops its indexed items.
func (c *Core) UnregisterPlugin(pluginID string) {
	c.mu.Lock()
	delete(c.plugins, pluginID)
	c.mu.Unlock()
	c.store.RemovePlugin(pluginID)

	c.mu.Lock()
	c.invalidateRecentCache()
	c.mu.Unlock()
}

// ListPlugins implements adminhttp.PluginLister.
func (c *Core) ListPlugins() []*manifest.Discovered {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*manifest.Discovered, 0, len(c.plugins))
	for _, p := range c.plugins {
		out = append(out, p)
	}
	return out
}

// invalidateRecentCache drops the cached recent+suggestions list; called on
// any index mutation, per spec.md §4.10.
func (c *Core) invalidateRecentCache() {
	c.recentCacheValid = false
	c.recentCache = nil
}
