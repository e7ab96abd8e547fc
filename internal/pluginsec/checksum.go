// Package pluginsec implements the optional plugin file checksum ledger:
// per-file SHA-256 hashes recorded per plugin, verified on load.
package pluginsec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// VerifyStatus is the outcome of verifying a plugin against the ledger.
type VerifyStatus int

const (
	// Unknown means the plugin has no entry in the ledger at all.
	Unknown VerifyStatus = iota
	// Verified means every declared file's hash matched.
	Verified
	// Modified means at least one declared file's hash did not match; the
	// mismatched file names are returned alongside this status.
	Modified
)

// ledgerVersion is the only supported ChecksumsData.version.
const ledgerVersion = 1

// Ledger is the parsed on-disk checksum ledger: plugin id -> relative file
// path -> hex-encoded SHA-256 hash, grounded on the original
// hamr-core/src/plugin/checksum.rs ChecksumsData.
type Ledger struct {
	Version int                          `json:"version"`
	Plugins map[string]map[string]string `json:"plugins"`
}

// Load reads and parses a checksum ledger file. version != 1 is rejected.
func Load(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pluginsec: read ledger: %w", err)
	}

	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("pluginsec: decode ledger: %w", err)
	}
	if l.Version != ledgerVersion {
		return nil, fmt.Errorf("pluginsec: unsupported ledger version %d", l.Version)
	}
	return &l, nil
}

// hashFile computes the hex-encoded SHA-256 hash of a file's contents,
// adapted from the teacher's internal/plugin/signing.SignBinary hashing
// step (the ed25519 signing step itself is not carried forward; see
// DESIGN.md).
func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyPlugin checks every file the ledger declares for pluginID against
// its actual contents under pluginDir. Files are resolved relative to
// pluginDir; pluginDir itself is not hashed.
func (l *Ledger) VerifyPlugin(pluginID, pluginDir string) (VerifyStatus, []string, error) {
	files, ok := l.Plugins[pluginID]
	if !ok {
		return Unknown, nil, nil
	}

	var mismatched []string
	for rel, wantHash := range files {
		gotHash, err := hashFile(filepath.Join(pluginDir, rel))
		if err != nil {
			mismatched = append(mismatched, rel)
			continue
		}
		if gotHash != wantHash {
			mismatched = append(mismatched, rel)
		}
	}

	if len(mismatched) > 0 {
		return Modified, mismatched, nil
	}
	return Verified, nil, nil
}

// Record computes and stores hashes for every given relative file path of
// pluginID, used when (re)building the ledger after a trusted install.
func (l *Ledger) Record(pluginID, pluginDir string, relFiles []string) error {
	if l.Plugins == nil {
		l.Plugins = make(map[string]map[string]string)
	}
	hashes := make(map[string]string, len(relFiles))
	for _, rel := range relFiles {
		h, err := hashFile(filepath.Join(pluginDir, rel))
		if err != nil {
			return fmt.Errorf("pluginsec: hash %s: %w", rel, err)
		}
		hashes[rel] = h
	}
	l.Plugins[pluginID] = hashes
	l.Version = ledgerVersion
	return nil
}

// Save writes the ledger to path as indented JSON.
func (l *Ledger) Save(path string) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("pluginsec: marshal ledger: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
