package indexstore

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadStaticIndex reads a plugin's static_index file: a JSON array of Item,
// as declared by manifest.Manifest.StaticIndex for plugins whose item set
// never changes at runtime (e.g. a settings-panel launcher entry list).
func LoadStaticIndex(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("indexstore: read static index %s: %w", path, err)
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("indexstore: parse static index %s: %w", path, err)
	}
	return items, nil
}
