// Package manifest parses plugin manifests and scans the two discovery
// roots (builtin, user) for plugin directories.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

// InputMode controls how query input is delivered to a plugin.
type InputMode string

const (
	InputRealtime InputMode = "realtime"
	InputSubmit   InputMode = "submit"
)

// TransportKind identifies how the daemon talks to a plugin process.
type TransportKind string

const (
	TransportStdio  TransportKind = "stdio"
	TransportSocket TransportKind = "socket"
)

// ActivationMatch declares the optional regex activation patterns a plugin
// registers for non-prefixed routing. When a query matches patterns declared
// by more than one plugin, the match with the highest Priority wins.
type ActivationMatch struct {
	Patterns []string `json:"patterns"`
	Priority int      `json:"priority"`
}

// Manifest is the parsed contents of a plugin's manifest.json.
type Manifest struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Description        string        `json:"description"`
	Icon               string        `json:"icon"`
	Version            string        `json:"version"`
	ActivationPrefix   string        `json:"activation_prefix"`
	Match              *ActivationMatch `json:"match"`
	activationRegexes  []*regexp.Regexp
	Handler            string        `json:"handler"`
	StaticIndex        string        `json:"static_index"`
	Transport          TransportKind `json:"transport"`
	IsBackground       bool          `json:"is_background"`
	InputMode          InputMode     `json:"input_mode"`
	Hidden             bool          `json:"hidden"`
	SupportedPlatforms []string      `json:"supported_platforms"`
}

// ActivationRegexes returns the compiled activation patterns declared by
// Match, skipping any that failed to compile (a bad pattern is dropped
// silently, not fatal; no warning is logged for it). The manifest's declared Priority
// applies to every pattern in the list.
func (m *Manifest) ActivationRegexes() []*regexp.Regexp { return m.activationRegexes }

// ActivationPriority returns the manifest's declared match priority, or 0
// when it declares no match block.
func (m *Manifest) ActivationPriority() int {
	if m.Match == nil {
		return 0
	}
	return m.Match.Priority
}

// SupportsPlatform reports whether the manifest targets the running GOOS,
// or any platform when the list is empty.
func (m *Manifest) SupportsPlatform() bool {
	if len(m.SupportedPlatforms) == 0 {
		return true
	}
	for _, p := range m.SupportedPlatforms {
		if p == runtime.GOOS {
			return true
		}
	}
	return false
}

const manifestSchema = `{
  "type": "object",
  "required": ["id", "name"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string", "minLength": 1},
    "handler": {"type": "string"}
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(manifestSchema)

// Parse validates raw manifest JSON against the manifest schema, then
// decodes it. A directory-name-derived id overrides whatever the manifest's
// own "id" field says, per the discovery convention: plugin identity comes
// from its directory name, not manifest content.
func Parse(raw []byte, dirName string) (*Manifest, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("manifest: schema validation: %w", err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("manifest: invalid manifest for %s: %v", dirName, result.Errors())
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("manifest: decode %s: %w", dirName, err)
	}
	m.ID = dirName

	if m.Handler == "" && m.StaticIndex == "" {
		return nil, fmt.Errorf("manifest: %s declares neither handler nor static_index", dirName)
	}

	if m.Match != nil {
		for _, pattern := range m.Match.Patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				// Bad pattern: dropped silently, not fatal.
				continue
			}
			m.activationRegexes = append(m.activationRegexes, re)
		}
	}

	if m.InputMode == "" {
		m.InputMode = InputRealtime
	}
	if m.Transport == "" {
		m.Transport = TransportStdio
	}

	return &m, nil
}

// Discovered is one plugin found during a directory scan, before it is
// diffed against the previously-known set.
type Discovered struct {
	Manifest    *Manifest
	Path        string
	IsBuiltin   bool
	RawManifest []byte // used for change detection, per diff_discovered
}

// ScanRoot walks one discovery root (non-recursive: one directory per
// plugin, each containing its own manifest.json) and returns every valid
// plugin found, sorted by plugin id. Malformed manifests are skipped, not
// fatal to the scan.
func ScanRoot(root string, isBuiltin bool) ([]*Discovered, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("manifest: read discovery root %s: %w", root, err)
	}

	var out []*Discovered
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		manifestPath := filepath.Join(dir, "manifest.json")

		raw, err := os.ReadFile(manifestPath)
		if err != nil {
			continue
		}
		m, err := Parse(raw, entry.Name())
		if err != nil {
			continue
		}
		if !m.SupportsPlatform() {
			continue
		}
		out = append(out, &Discovered{Manifest: m, Path: dir, IsBuiltin: isBuiltin, RawManifest: raw})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Manifest.ID < out[j].Manifest.ID })
	return out, nil
}

// ScanAll scans the builtin root before the user root and concatenates the
// results, preserving deterministic builtin-before-user ordering. When both
// roots declare a plugin with the same id, the user-root copy is kept (user
// overrides builtin), matching the "two discovery roots" model in spec.md.
func ScanAll(builtinRoot, userRoot string) ([]*Discovered, error) {
	builtin, err := ScanRoot(builtinRoot, true)
	if err != nil {
		return nil, err
	}
	user, err := ScanRoot(userRoot, false)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*Discovered, len(builtin)+len(user))
	var order []string
	for _, d := range builtin {
		byID[d.Manifest.ID] = d
		order = append(order, d.Manifest.ID)
	}
	for _, d := range user {
		if _, exists := byID[d.Manifest.ID]; !exists {
			order = append(order, d.Manifest.ID)
		}
		byID[d.Manifest.ID] = d
	}

	out := make([]*Discovered, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, nil
}
