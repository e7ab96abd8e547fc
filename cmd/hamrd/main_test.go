package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hamr/hamrd/internal/manifest"
)

func TestToKnownMap_KeyedByPluginID(t *testing.T) {
	discovered := []*manifest.Discovered{
		{Manifest: &manifest.Manifest{ID: "calc", Name: "Calculator"}},
		{Manifest: &manifest.Manifest{ID: "files", Name: "Files"}},
	}

	known := toKnownMap(discovered)
	assert.Len(t, known, 2)
	assert.Equal(t, "Calculator", known["calc"].Manifest.Name)
	assert.Equal(t, "Files", known["files"].Manifest.Name)
}

func TestToKnownMap_Empty(t *testing.T) {
	assert.Empty(t, toKnownMap(nil))
}

func TestDefaultConfigPath_EndsInHamrJSON(t *testing.T) {
	assert.True(t, strings.HasSuffix(defaultConfigPath(), "hamr.json"))
}
