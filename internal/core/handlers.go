package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hamr/hamrd/internal/frecency"
	"github.com/hamr/hamrd/internal/fuzzy"
	"github.com/hamr/hamrd/internal/pluginclient"
	"github.com/hamr/hamrd/internal/ranker"
)

// HandleLauncherOpened rebuilds the recent+suggestions cache if invalid and
// returns its current contents; it does not itself query any plugin.
func (c *Core) HandleLauncherOpened() []SearchResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.recentCacheValid {
		c.recentCache = c.buildRecentAndSuggestionsLocked()
		c.recentCacheValid = true
	}
	return c.recentCache
}

// HandleLauncherClosed ends any active plugin flow and schedules a
// background rebuild of the recent-list cache, per spec.md §4.10.
func (c *Core) HandleLauncherClosed() {
	c.mu.Lock()
	c.state.ActivePlugin = nil
	c.state.Query = ""
	c.mu.Unlock()

	go func() {
		c.mu.Lock()
		c.recentCache = c.buildRecentAndSuggestionsLocked()
		c.recentCacheValid = true
		c.mu.Unlock()
	}()
}

// buildRecentAndSuggestionsLocked assembles suggestions ahead of
// plain-recency recents, deduplicating by item id (suggestions-before-recents
// per DESIGN.md's Open Question decision). Must be called with c.mu held.
func (c *Core) buildRecentAndSuggestionsLocked() []SearchResult {
	now := time.Now()
	ctx := frecency.BuildContext(now, "", "")
	suggestions := frecency.BuildSuggestions(c.store, ctx, now, c.suggestionHalfLifeDays, frecency.MaxAge{Days: c.suggestionMaxAgeDays})

	seen := make(map[string]bool, len(suggestions))
	out := make([]SearchResult, 0, len(suggestions))
	for _, s := range suggestions {
		seen[s.Item.ID] = true
		out = append(out, SearchResult{
			ID: s.Item.ID, PluginID: s.PluginID, Name: s.Item.Name,
			Icon: s.Item.Icon, Score: s.Weight,
		})
	}

	type recent struct {
		SearchResult
		lastUsedMS int64
	}
	var recents []recent
	for pluginID, idx := range c.store.Indexes {
		for _, item := range idx.Items {
			if item.Frecency.Count == 0 || seen[item.Item.ID] {
				continue
			}
			recents = append(recents, recent{
				SearchResult: SearchResult{
					ID: item.Item.ID, PluginID: pluginID, Name: item.Item.Name,
					Icon: item.Item.Icon, Score: item.Frecency.Score(now),
				},
				lastUsedMS: item.Frecency.LastUsedMS,
			})
		}
	}
	sort.Slice(recents, func(i, j int) bool { return recents[i].lastUsedMS > recents[j].lastUsedMS })
	for _, r := range recents {
		out = append(out, r.SearchResult)
	}

	return out
}

// HandleQueryChanged is the core search-routing handler: prefix/pattern
// plugin routing takes priority, then global fuzzy ranking, per spec.md
// §4.9.
func (c *Core) HandleQueryChanged(ctx context.Context, query string) ([]SearchResult, error) {
	c.mu.Lock()
	c.state.Query = query
	active := c.state.ActivePlugin
	c.mu.Unlock()

	if active != nil {
		c.updates.Send(Update{Kind: UpdateBusy, Busy: true})
		if err := c.sendActivePluginSearch(ctx, active, query); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if query == "" {
		return c.HandleLauncherOpened(), nil
	}

	if routed, handled := c.routeToPlugin(query); handled {
		return routed, nil
	}

	return c.globalSearch(query), nil
}

// routeToPlugin checks every plugin's activation prefix/pattern against
// query; a literal prefix match wins over a regex match (prefix-literal /
// regex-pattern priority per spec.md §4.9). A bare-prefix match with no
// remaining text falls back to the plugin-list view rather than routing
// with an empty query, per SPEC_FULL.md §6. When more than one plugin's
// patterns match, the one with the highest declared priority wins, per
// spec.md §4.9.
func (c *Core) routeToPlugin(query string) ([]SearchResult, bool) {
	c.mu.Lock()

	for _, p := range c.plugins {
		prefix := p.Manifest.ActivationPrefix
		if prefix != "" && len(query) >= len(prefix) && query[:len(prefix)] == prefix {
			remainder := query[len(prefix):]
			if remainder == "" {
				defer c.mu.Unlock()
				return c.pluginListLocked(), true
			}
			c.mu.Unlock()
			return nil, true // no results; the plugin is neither activated nor sent the remainder
		}
	}

	winnerID := ""
	bestPriority := 0
	for id, p := range c.plugins {
		for _, re := range p.Manifest.ActivationRegexes() {
			if !re.MatchString(query) {
				continue
			}
			if winnerID == "" || p.Manifest.ActivationPriority() > bestPriority {
				winnerID = id
				bestPriority = p.Manifest.ActivationPriority()
			}
			break
		}
	}
	c.mu.Unlock()

	if winnerID == "" {
		return nil, false
	}
	c.ActivatePluginForMultistep(winnerID)
	return nil, true
}

// pluginListLocked returns all non-hidden plugins for the supplemented
// get_plugin_list feature (SPEC_FULL.md §6), in map iteration order: the
// list is not sorted, and no plugin-level frecency is tracked. Must be
// called with c.mu held.
func (c *Core) pluginListLocked() []SearchResult {
	out := make([]SearchResult, 0, len(c.plugins))
	for _, p := range c.plugins {
		if p.Manifest.Hidden {
			continue
		}
		out = append(out, SearchResult{ID: p.Manifest.ID, PluginID: p.Manifest.ID, Name: p.Manifest.Name, Icon: p.Manifest.Icon})
	}
	return out
}

// globalSearch runs the fuzzy matcher + composite ranker + diversity decay
// over every indexed item, per spec.md §4.8/§4.9.
func (c *Core) globalSearch(query string) []SearchResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	var candidates []fuzzy.Searchable
	index := make(map[string]string) // searchable id -> plugin id, for ranking
	frecencies := make(map[string]float64)
	names := make(map[string]string)

	for pluginID, idx := range c.store.Indexes {
		for _, item := range idx.Items {
			candidates = append(candidates, fuzzy.Searchable{ID: item.Item.ID, Name: item.Item.Name, Keywords: item.Item.Keywords})
			index[item.Item.ID] = pluginID
			frecencies[item.Item.ID] = item.Frecency.Score(time.Now())
			names[item.Item.ID] = item.Item.Name
		}
	}

	matches := fuzzy.Search(query, candidates, fuzzy.DefaultConfig())

	rankCandidates := make([]ranker.Candidate, 0, len(matches))
	for _, m := range matches {
		rankCandidates = append(rankCandidates, ranker.Candidate{
			ItemID:     m.Searchable.ID,
			PluginID:   index[m.Searchable.ID],
			Name:       names[m.Searchable.ID],
			FuzzyScore: m.Score,
			Frecency:   frecencies[m.Searchable.ID],
		})
	}

	ranked := ranker.Rank(rankCandidates, query, c.pluginBonus)
	decayed := ranker.ApplyDiversityDecay(ranked, ranker.DiversityConfig{DecayBase: 0.7})

	if c.maxDisplayedResults > 0 && len(decayed) > c.maxDisplayedResults {
		decayed = decayed[:c.maxDisplayedResults]
	}

	out := make([]SearchResult, 0, len(decayed))
	for _, r := range decayed {
		out = append(out, SearchResult{ID: r.Candidate.ItemID, PluginID: r.Candidate.PluginID, Name: r.Candidate.Name, Score: r.Score})
	}
	return out
}

// ActivatePluginForMultistep activates pluginID for a multi-step flow. A
// second activation while one is already active is a silent no-op, per the
// supplemented idempotence guard in SPEC_FULL.md §6.
func (c *Core) ActivatePluginForMultistep(pluginID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.ActivePlugin != nil {
		if c.logger != nil {
			c.logger.Debug("plugin already active, skipping activation", "plugin", pluginID)
		}
		return
	}

	p, ok := c.plugins[pluginID]
	if !ok {
		if c.logger != nil {
			c.logger.Warn("cannot activate unknown plugin", "plugin", pluginID)
		}
		return
	}

	session := generateSessionID()
	c.state.ActivePlugin = &ActivePlugin{ID: pluginID, Name: p.Manifest.Name, Icon: p.Manifest.Icon, Session: session}
	c.state.NavigationDepth = 0
	c.state.InputMode = InputRealtime
	if p.Manifest.InputMode == "submit" {
		c.state.InputMode = InputSubmit
	}

	c.updates.Send(Update{Kind: UpdatePluginActivated, Plugin: c.state.ActivePlugin})
}

// HandleItemSelected sends an action to the active plugin for the selected
// item; navigation_depth is not incremented here, matching the original
// (it's driven externally by plugin-reported navigate_forward updates).
func (c *Core) HandleItemSelected(ctx context.Context, itemID string, action string) error {
	c.mu.Lock()
	active := c.state.ActivePlugin
	if active != nil {
		active.LastSelectedItem = itemID
	}
	query := c.state.Query
	c.mu.Unlock()

	if active == nil {
		return fmt.Errorf("core: item_selected with no active plugin")
	}

	c.updates.Send(Update{Kind: UpdateBusy, Busy: true})

	input := &pluginclient.PluginInput{
		Step:     "action",
		Query:    &query,
		Selected: &pluginclient.SelectedItem{ID: itemID},
		Action:   strPtr(action),
		Session:  &active.Session,
	}
	return c.sendToPlugin(ctx, active.ID, input)
}

// HandleSliderChanged and HandleSwitchToggled both send an "action" step
// whose Value carries the new state; switch toggles are encoded as
// float64 1.0/0.0, matching the original wire encoding exactly (see
// DESIGN.md's Open Question decision), even though the RPC-facing event
// itself carries a native JSON boolean.
func (c *Core) HandleSliderChanged(ctx context.Context, pluginID, itemID string, value float64) error {
	session := c.sessionForPlugin(pluginID)
	input := &pluginclient.PluginInput{
		Step: "action", Selected: &pluginclient.SelectedItem{ID: itemID},
		Action: strPtr("slider"), Session: &session, Value: &value,
	}
	return c.sendToPlugin(ctx, pluginID, input)
}

func (c *Core) HandleSwitchToggled(ctx context.Context, pluginID, itemID string, value bool) error {
	session := c.sessionForPlugin(pluginID)
	encoded := 0.0
	if value {
		encoded = 1.0
	}
	input := &pluginclient.PluginInput{
		Step: "action", Selected: &pluginclient.SelectedItem{ID: itemID},
		Action: strPtr("switch"), Session: &session, Value: &encoded,
	}
	return c.sendToPlugin(ctx, pluginID, input)
}

func (c *Core) sessionForPlugin(pluginID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.ActivePlugin != nil && c.state.ActivePlugin.ID == pluginID {
		return c.state.ActivePlugin.Session
	}
	return generateSessionID()
}

// HandleNavigateBack decrements navigation depth without contacting a
// plugin; at depth 0 it clears the active plugin entirely.
func (c *Core) HandleNavigateBack() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.NavigationDepth > 0 {
		c.state.NavigationDepth--
		return
	}
	c.state.ActivePlugin = nil
}

// HandleCancel kills any in-flight on-demand plugin process (cancellation
// by supersession) without starting a new one.
func (c *Core) HandleCancel() {
	c.mu.Lock()
	proc := c.activeProcess
	c.activeProcess = nil
	c.mu.Unlock()

	if proc != nil {
		_ = proc.Kill()
	}
	c.updates.Send(Update{Kind: UpdateBusy, Busy: false})
}

func (c *Core) sendActivePluginSearch(ctx context.Context, active *ActivePlugin, query string) error {
	input := &pluginclient.PluginInput{Step: "search", Query: &query, Session: &active.Session}
	if active.LastSelectedItem != "" {
		input.Selected = &pluginclient.SelectedItem{ID: active.LastSelectedItem}
	}
	return c.sendToPlugin(ctx, active.ID, input)
}

// sendToPlugin implements the supersede-kill-before-respawn pattern: any
// in-flight on-demand process is killed before the new request is sent,
// and socket/daemon plugins (handled by the supervisor) are skipped here
// entirely.
func (c *Core) sendToPlugin(ctx context.Context, pluginID string, input *pluginclient.PluginInput) error {
	c.mu.Lock()
	p, ok := c.plugins[pluginID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("core: unknown plugin %q", pluginID)
	}
	if p.Manifest.Transport == "socket" {
		c.mu.Unlock()
		return nil // socket plugins are addressed by the daemon's own socket server, not spawned here
	}

	if c.activeProcess != nil {
		_ = c.activeProcess.Kill()
		c.activeProcess = nil
	}
	c.mu.Unlock()

	proc, err := pluginclient.Spawn(ctx, pluginID, p.Manifest.Handler, p.Path, c.logger)
	if err != nil {
		c.updates.Send(Update{Kind: UpdateError, Message: fmt.Sprintf("failed to start plugin %q: %v", pluginID, err)})
		return err
	}

	if err := proc.SendAndClose(input); err != nil {
		c.updates.Send(Update{Kind: UpdateError, Message: fmt.Sprintf("failed to send to plugin %q: %v", pluginID, err)})
		return err
	}

	c.mu.Lock()
	c.activeProcess = proc
	c.mu.Unlock()

	go c.drainResponses(pluginID, proc)

	return nil
}

func (c *Core) drainResponses(pluginID string, proc *pluginclient.Process) {
	receiver := proc.TakeReceiver()
	if receiver == nil {
		return
	}
	for resp := range receiver.Recv() {
		if resp.Err != nil {
			c.updates.Send(Update{Kind: UpdateError, Message: resp.Err.Error()})
			continue
		}
		c.updates.Send(Update{Kind: UpdateResults, Message: string(resp.Raw)})
	}
	c.updates.Send(Update{Kind: UpdateBusy, Busy: false})
}

func strPtr(s string) *string { return &s }
