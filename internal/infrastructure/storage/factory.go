package storage

import (
	"context"
	"fmt"

	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/speakASAP/allegro-service/internal/infrastructure/config"
	"go.uber.org/zap"
)

// New returns the artifact store selected by cfg.Driver
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (offer.ArtifactStorage, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalArtifactStorage(cfg.Dir, logger)
	case "s3":
		return NewS3ArtifactStorage(ctx, cfg.S3, WithLogger(logger))
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
