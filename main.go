package main

import (
	"context"
	"log"
	"time"

	"scholarsphere/config"
	"scholarsphere/database"
	adminapi "scholarsphere/internal/api/admin"
	collectionsapi "scholarsphere/internal/api/collections"
	worksapi "scholarsphere/internal/api/works"
	routes "scholarsphere/internal/app/http"
	"scholarsphere/internal/doi"
	"scholarsphere/internal/infra/datacite"
	"scholarsphere/internal/infra/minio"
	"scholarsphere/internal/infra/search"
	"scholarsphere/internal/merge"
	"scholarsphere/internal/platform/logger"
	"scholarsphere/internal/platform/metrics"
	"scholarsphere/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	l, err := logger.New(cfg.Development(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer l.Sync()

	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.DBURL)
	if err != nil {
		l.Fatal("database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		l.Fatal("migrate", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	files, err := minio.New(ctx, cfg.MinIO)
	cancel()
	if err != nil {
		l.Fatal("minio", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	st := store.NewPostgres(db)
	indexer := search.NewRedisIndexer(search.NewClient(cfg.Redis))
	dispatcher := doi.NewDispatcher(
		st,
		datacite.NewClient(cfg.DataCite),
		datacite.NewMapper(cfg.DataCite.PublicURL, cfg.DataCite.Publisher),
		indexer,
		doi.WithLogger(l.Named("doi")),
		doi.WithMetrics(m),
	)
	merger := merge.New(st, indexer,
		merge.WithLogger(l.Named("merge")),
		merge.WithMetrics(m),
		merge.WithDispatcher(dispatcher),
	)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Handlers{
		Works:       worksapi.NewHandler(st, dispatcher, indexer, files, l.Named("works")),
		Collections: collectionsapi.NewHandler(st, dispatcher, l.Named("collections")),
		Admin:       adminapi.NewHandler(merger, l.Named("admin")),
		JWTSecret:   cfg.JWTSecret,
		Gatherer:    registry,
	})

	l.Info("listening", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		l.Fatal("server", zap.Error(err))
	}
}
