package core

import "github.com/hamr/hamrd/internal/manifest"

// HandleRescanPlugins re-scans both discovery roots, diffs against the
// currently registered plugin set, applies the diff, and invalidates the
// recent-list cache if anything changed.
func (c *Core) HandleRescanPlugins(builtinRoot, userRoot string) (manifest.RescanDiff, error) {
	c.mu.Lock()
	known := make(map[string]*manifest.Discovered, len(c.plugins))
	for id, p := range c.plugins {
		known[id] = p
	}
	c.mu.Unlock()

	current, err := manifest.ScanAll(builtinRoot, userRoot)
	if err != nil {
		return manifest.RescanDiff{}, err
	}

	diff := manifest.Diff(known, current)
	if len(diff.Added) == 0 && len(diff.Removed) == 0 && len(diff.Updated) == 0 {
		return diff, nil
	}

	c.mu.Lock()
	for _, d := range diff.Added {
		c.plugins[d.Manifest.ID] = d
	}
	for _, d := range diff.Updated {
		c.plugins[d.Manifest.ID] = d
	}
	c.mu.Unlock()

	for _, id := range diff.Removed {
		c.UnregisterPlugin(id)
	}

	c.mu.Lock()
	c.invalidateRecentCache()
	c.mu.Unlock()
	return diff, nil
}
