package offerapp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/speakASAP/allegro-service/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// MigrationResult describes a written migration artifact
type MigrationResult struct {
	RunID    uuid.UUID `json:"run_id"`
	Artifact string    `json:"artifact"`
	Mappings int       `json:"mappings"`
	Skipped  int       `json:"skipped"`
}

// MigrationService turns legacy stock records into a write-once mapping
// artifact.
type MigrationService struct {
	storage offer.ArtifactStorage
	logger  *zap.Logger
	now     func() time.Time
	newID   func() uuid.UUID
}

// NewMigrationService creates a new MigrationService
func NewMigrationService(storage offer.ArtifactStorage, log *zap.Logger) *MigrationService {
	return &MigrationService{
		storage: storage,
		logger:  log,
		now:     time.Now,
		newID:   uuid.New,
	}
}

// Run builds the artifact for one run and stores it. The artifact of a run
// is never rewritten; a name collision fails with offer.ErrArtifactExists.
func (s *MigrationService) Run(ctx context.Context, records []offer.MigrationRecord) (*MigrationResult, error) {
	runID := s.newID()
	artifact, err := offer.BuildMigrationArtifact(runID, records, s.now().UTC())
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode migration artifact: %w", err)
	}

	name := offer.ArtifactName(runID)
	if err := s.storage.Put(ctx, name, data, "application/json"); err != nil {
		return nil, fmt.Errorf("store migration artifact %s: %w", name, err)
	}

	logger.L(ctx).Info("Migration artifact written",
		zap.String("run_id", runID.String()),
		zap.String("artifact", name),
		zap.Int("records", len(records)),
		zap.Int("mappings", len(artifact.Mappings)),
		zap.Int("skipped", len(artifact.Skipped)),
	)
	return &MigrationResult{
		RunID:    runID,
		Artifact: name,
		Mappings: len(artifact.Mappings),
		Skipped:  len(artifact.Skipped),
	}, nil
}
