package pluginsec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePluginFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRecordAndVerify_Verified(t *testing.T) {
	pluginDir := t.TempDir()
	writePluginFile(t, pluginDir, "run.sh", "#!/bin/sh\necho hi\n")

	l := &Ledger{}
	require.NoError(t, l.Record("calc", pluginDir, []string{"run.sh"}))

	status, mismatched, err := l.VerifyPlugin("calc", pluginDir)
	require.NoError(t, err)
	assert.Equal(t, Verified, status)
	assert.Empty(t, mismatched)
}

func TestVerify_ModifiedFileDetected(t *testing.T) {
	pluginDir := t.TempDir()
	writePluginFile(t, pluginDir, "run.sh", "original")

	l := &Ledger{}
	require.NoError(t, l.Record("calc", pluginDir, []string{"run.sh"}))

	writePluginFile(t, pluginDir, "run.sh", "tampered")

	status, mismatched, err := l.VerifyPlugin("calc", pluginDir)
	require.NoError(t, err)
	assert.Equal(t, Modified, status)
	assert.Equal(t, []string{"run.sh"}, mismatched)
}

func TestVerify_UnknownPluginNotInLedger(t *testing.T) {
	l := &Ledger{Plugins: map[string]map[string]string{}}
	status, mismatched, err := l.VerifyPlugin("nope", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Unknown, status)
	assert.Empty(t, mismatched)
}

func TestLoad_RejectsWrongVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":2,"plugins":{}}`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	pluginDir := t.TempDir()
	writePluginFile(t, pluginDir, "run.sh", "content")

	l := &Ledger{}
	require.NoError(t, l.Record("calc", pluginDir, []string{"run.sh"}))

	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, l.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	status, _, err := loaded.VerifyPlugin("calc", pluginDir)
	require.NoError(t, err)
	assert.Equal(t, Verified, status)
}

func TestVerify_MissingFileCountsAsMismatch(t *testing.T) {
	pluginDir := t.TempDir()
	writePluginFile(t, pluginDir, "run.sh", "content")

	l := &Ledger{}
	require.NoError(t, l.Record("calc", pluginDir, []string{"run.sh"}))
	require.NoError(t, os.Remove(filepath.Join(pluginDir, "run.sh")))

	status, mismatched, err := l.VerifyPlugin("calc", pluginDir)
	require.NoError(t, err)
	assert.Equal(t, Modified, status)
	assert.Equal(t, []string{"run.sh"}, mismatched)
}
