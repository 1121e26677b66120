package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/porast/jigman/internal/config"
	"github.com/porast/jigman/internal/jig/handler"
	"github.com/porast/jigman/internal/jig/service"
	"github.com/porast/jigman/internal/jig/store"
	"github.com/porast/jigman/internal/middleware"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting jigman service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	st, users := initStore(cfg, zapLogger)

	mc, err := initMinIO(cfg.MinIO)
	if err != nil {
		zapLogger.Fatal("Failed to init object store client", zap.Error(err))
	}

	services := service.NewServices(st, users, cfg, mc, zapLogger)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if err := services.Auth.SeedAdmin(ctx); err != nil {
		zapLogger.Fatal("Failed to seed admin account", zap.Error(err))
	}
	if err := services.Inventory.RefreshNow(ctx); err != nil {
		zapLogger.Fatal("Failed to load inventory", zap.Error(err))
	}
	if err := services.Inventory.Start(ctx); err != nil {
		zapLogger.Fatal("Failed to attach to change feed", zap.Error(err))
	}
	defer services.Inventory.Stop()

	handlers := handler.NewHandlers(services, cfg)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())

	registerRoutes(router, handlers, cfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

// initStore picks the redis document store when a host is configured and
// falls back to the in-process store otherwise (single-node dev mode).
func initStore(cfg *config.Config, logger *zap.Logger) (store.Store, store.UserStore) {
	if cfg.Redis.Host == "" {
		logger.Warn("No redis host configured, using in-memory store; data will not survive a restart")
		mem := store.NewMemoryStore()
		return mem, mem
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	rs := store.NewRedisStore(rdb, logger)
	return rs, rs
}

func initMinIO(cfg config.MinIOConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	v1 := r.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			authorized.GET("/auth/me", h.Auth.Me)
			authorized.POST("/users", middleware.RequireRole("Administrator"), h.Auth.CreateUser)

			// Static path kept outside the /jigs group so it cannot
			// collide with the :id wildcard.
			authorized.GET("/customers", h.Jig.Customers)

			jigs := authorized.Group("/jigs")
			{
				jigs.GET("", h.Jig.List)
				jigs.POST("", h.Jig.Create)
				jigs.GET("/:id", h.Jig.Get)
				jigs.PUT("/:id/status", h.Jig.UpdateStatus)
				jigs.POST("/:id/maintenance", h.Jig.AddMaintenance)
				jigs.DELETE("/:id", middleware.RequireRole("Administrator"), h.Jig.Delete)
				jigs.POST("/import", middleware.RequireRole("Administrator"), h.Jig.Import)
			}

			export := authorized.Group("/export")
			{
				export.GET("/json", h.Export.JSON)
				export.GET("/excel", h.Export.Excel)
				export.GET("/pdf", h.Export.PDF)
				export.POST("/archive", middleware.RequireRole("Administrator"), h.Export.Archive)
			}

			authorized.GET("/events", h.SSE.Stream)
		}
	}
}
