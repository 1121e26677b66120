package service

import (
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"

	"github.com/porast/jigman/internal/config"
	"github.com/porast/jigman/internal/jig/i18n"
	"github.com/porast/jigman/internal/jig/sse"
	"github.com/porast/jigman/internal/jig/store"
)

// Services bundles the application services.
type Services struct {
	Inventory *InventoryService
	Auth      *AuthService
	Export    *ExportService
	Hub       *sse.Hub
}

// NewServices wires the services together. mc may be nil when export
// archiving is not configured.
func NewServices(st store.Store, users store.UserStore, cfg *config.Config, mc *minio.Client, logger *zap.Logger) *Services {
	hub := sse.NewHub(logger)
	return &Services{
		Inventory: NewInventoryService(st, hub, logger),
		Auth:      NewAuthService(users, cfg, logger),
		Export:    NewExportService(i18n.NewTranslator(), mc, cfg.MinIO.Bucket, logger),
		Hub:       hub,
	}
}
