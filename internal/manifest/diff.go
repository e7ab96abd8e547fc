package manifest

import (
	"bytes"
	"sort"
)

// RescanDiff is the result of comparing a fresh scan against the
// previously-known plugin set.
type RescanDiff struct {
	Added   []*Discovered
	Removed []string // plugin ids
	Updated []*Discovered
}

// Diff compares a fresh scan (current) against the previously known set
// (previous, keyed by plugin id) and returns what changed.
//
// A plugin counts as updated when any of: its raw manifest JSON differs,
// its transport kind differs, its handler path differs, or its
// is_background flag differs — folding in the is_background comparison the
// original Rust registry makes, per the Open Question decision in
// DESIGN.md. All three output lists are sorted by plugin id for
// deterministic diffs.
func Diff(previous map[string]*Discovered, current []*Discovered) RescanDiff {
	var diff RescanDiff

	seen := make(map[string]bool, len(current))
	for _, d := range current {
		seen[d.Manifest.ID] = true
		prev, existed := previous[d.Manifest.ID]
		if !existed {
			diff.Added = append(diff.Added, d)
			continue
		}
		if changed(prev, d) {
			diff.Updated = append(diff.Updated, d)
		}
	}

	for id := range previous {
		if !seen[id] {
			diff.Removed = append(diff.Removed, id)
		}
	}
	sort.Strings(diff.Removed)
	sort.Slice(diff.Added, func(i, j int) bool { return diff.Added[i].Manifest.ID < diff.Added[j].Manifest.ID })
	sort.Slice(diff.Updated, func(i, j int) bool { return diff.Updated[i].Manifest.ID < diff.Updated[j].Manifest.ID })

	return diff
}

func changed(prev, next *Discovered) bool {
	if !bytes.Equal(prev.RawManifest, next.RawManifest) {
		return true
	}
	if prev.Manifest.Transport != next.Manifest.Transport {
		return true
	}
	if prev.Manifest.Handler != next.Manifest.Handler {
		return true
	}
	if prev.Manifest.IsBackground != next.Manifest.IsBackground {
		return true
	}
	return false
}
