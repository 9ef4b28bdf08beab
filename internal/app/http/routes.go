package routes

import (
	adminapi "scholarsphere/internal/api/admin"
	collectionsapi "scholarsphere/internal/api/collections"
	worksapi "scholarsphere/internal/api/works"
	"scholarsphere/internal/app/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Works       *worksapi.Handler
	Collections *collectionsapi.Handler
	Admin       *adminapi.Handler
	JWTSecret   string
	Gatherer    prometheus.Gatherer
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})))

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(h.JWTSecret), middleware.SanitizeAndCleanInputMiddleware())

	auth.GET("/works/:id", h.Works.GetWork)
	auth.POST("/works/:id/doi", h.Works.MintWorkDOI)

	auth.POST("/versions/:id/doi", h.Works.MintVersionDOI)
	auth.GET("/versions/:id/prevalidate", h.Works.Prevalidate)
	auth.POST("/versions/:id/publish", h.Works.Publish)
	auth.POST("/versions/:id/files", h.Works.UploadFile)

	auth.GET("/collections/:id", h.Collections.GetCollection)
	auth.POST("/collections/:id/doi", h.Collections.MintDOI)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(h.JWTSecret), middleware.RequireRole("admin"), middleware.SanitizeAndCleanInputMiddleware())
	admin.POST("/collections/:id/merge", h.Admin.MergeCollection)
}
