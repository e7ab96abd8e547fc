// Package thumbnail generates and caches bounded-size thumbnails for
// indexed items whose plugin supplies a source image path, using libvips via
// govips -- the teacher carries this dependency for attachment thumbnails;
// here internal/core uses it to replace a static-index item's icon with the
// cached thumbnail path.
package thumbnail

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

// MaxEdge is the longest edge, in pixels, a generated thumbnail may have.
const MaxEdge = 128

var startOnce sync.Once

func ensureStarted() {
	startOnce.Do(func() {
		vips.LoggingSettings(nil, vips.LogLevelError)
		vips.Startup(nil)
	})
}

// Cache generates and memoizes thumbnails on disk under dir, keyed by the
// SHA-256 of the source path so repeated calls for the same item are cheap.
type Cache struct {
	dir string
	mu  sync.Mutex
}

// NewCache creates a thumbnail cache rooted at dir, creating it if absent.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("thumbnail: create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) pathFor(sourcePath string) string {
	sum := sha256.Sum256([]byte(sourcePath))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".webp")
}

// Get returns the cached thumbnail path for sourcePath, generating it via
// libvips if it does not already exist. sourcePath must name a local,
// readable image file; remote/plugin-supplied URLs are not supported here.
func (c *Cache) Get(sourcePath string) (string, error) {
	dest := c.pathFor(sourcePath)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	ensureStarted()

	img, err := vips.NewThumbnailFromFile(sourcePath, MaxEdge, MaxEdge, vips.InterestingAttention)
	if err != nil {
		return "", fmt.Errorf("thumbnail: load %s: %w", sourcePath, err)
	}
	defer img.Close()

	buf, _, err := img.ExportWebp(vips.NewWebpExportParams())
	if err != nil {
		return "", fmt.Errorf("thumbnail: encode %s: %w", sourcePath, err)
	}

	if err := os.WriteFile(dest, buf, 0o644); err != nil {
		return "", fmt.Errorf("thumbnail: write cache entry: %w", err)
	}
	return dest, nil
}

// Shutdown releases libvips resources; call once at daemon exit.
func Shutdown() {
	vips.Shutdown()
}
