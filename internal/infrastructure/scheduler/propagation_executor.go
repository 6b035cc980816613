package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/speakASAP/allegro-service/internal/infrastructure/allegro"
	"github.com/speakASAP/allegro-service/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// OfferExecutor writes local offer changes to the marketplace and records
// the outcome. It only touches the sync fields of the offer and, after a
// successful write, its raw snapshot.
type OfferExecutor struct {
	offers  offer.OfferRepository
	client  offer.MarketplaceClient
	tokens  offer.TokenProvider
	metrics *telemetry.SyncMetrics
	logger  *zap.Logger
}

var _ Executor = (*OfferExecutor)(nil)

// NewOfferExecutor creates an executor. metrics may be nil.
func NewOfferExecutor(
	offers offer.OfferRepository,
	client offer.MarketplaceClient,
	tokens offer.TokenProvider,
	metrics *telemetry.SyncMetrics,
	logger *zap.Logger,
) *OfferExecutor {
	return &OfferExecutor{
		offers:  offers,
		client:  client,
		tokens:  tokens,
		metrics: metrics,
		logger:  logger,
	}
}

// Execute performs one attempt of the job's remote write
func (e *OfferExecutor) Execute(ctx context.Context, job *PropagationJob) error {
	w := job.Write
	started := time.Now()

	applied, err := e.write(ctx, w)
	e.metrics.RecordRemoteWrite(ctx, string(w.Mode), outcome(err), time.Since(started))
	if err != nil {
		return err
	}
	return e.markSynced(ctx, w.OfferID, applied)
}

// write sends the change; a seller token rejected once is refreshed and the
// write repeated a single time.
func (e *OfferExecutor) write(ctx context.Context, w offer.RemoteWrite) (offer.RawPayload, error) {
	token, err := e.token(ctx, w.UserID)
	if err != nil {
		return nil, err
	}

	applied, err := e.send(ctx, token, w)
	if err == nil || !offer.IsAuthError(err) || w.UserID == "" {
		return applied, err
	}

	e.logger.Info("Marketplace rejected seller token, refreshing",
		zap.String("offer_id", w.OfferID.String()),
		zap.String("user_id", w.UserID),
	)
	token, err = e.tokens.RefreshUserToken(ctx, w.UserID)
	if err != nil {
		return nil, err
	}
	applied, err = e.send(ctx, token, w)
	if offer.IsAuthError(err) {
		return nil, fmt.Errorf("%w: %v", offer.ErrOAuthRequired, err)
	}
	return applied, err
}

func (e *OfferExecutor) token(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return e.tokens.AccessToken(ctx)
	}
	return e.tokens.UserAccessToken(ctx, userID)
}

// send returns the document the marketplace accepted
func (e *OfferExecutor) send(ctx context.Context, token string, w offer.RemoteWrite) (offer.RawPayload, error) {
	switch w.Mode {
	case offer.WriteModeStockOnly:
		if err := e.client.SetStock(ctx, token, w.ExternalID, w.Quantity); err != nil {
			return nil, err
		}
		return offer.StockPayload(w.Quantity), nil
	default:
		if _, err := e.client.UpdateOffer(ctx, token, w.ExternalID, w.Payload); err != nil {
			return nil, err
		}
		return w.Payload, nil
	}
}

// markSynced merges the accepted document into the latest stored snapshot
func (e *OfferExecutor) markSynced(ctx context.Context, offerID uuid.UUID, applied offer.RawPayload) error {
	latest, err := e.offers.FindByID(ctx, offerID)
	if errors.Is(err, offer.ErrOfferNotFound) {
		e.logger.Warn("Offer deleted before propagation finished", zap.String("offer_id", offerID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load offer after remote write: %w", err)
	}

	now := time.Now()
	state := offer.SyncState{
		Status:   offer.SyncStatusSynced,
		SyncedAt: &now,
		RawData:  offer.MergeRawDataUpdates(latest.RawData, applied),
	}
	if err := e.offers.UpdateSyncState(ctx, offerID, state); err != nil {
		return fmt.Errorf("record sync state: %w", err)
	}
	return nil
}

// RecordFailure stores a user-facing message on the offer
func (e *OfferExecutor) RecordFailure(ctx context.Context, job *PropagationJob, err error) {
	state := offer.SyncState{
		Status: offer.SyncStatusError,
		Error:  FailureMessage(err, job.Attempt),
	}
	if uerr := e.offers.UpdateSyncState(ctx, job.Write.OfferID, state); uerr != nil && !errors.Is(uerr, offer.ErrOfferNotFound) {
		e.logger.Error("Failed to record propagation failure",
			zap.String("offer_id", job.Write.OfferID.String()),
			zap.Error(uerr),
		)
	}
}

// FailureMessage describes a final propagation failure so the seller can
// tell a re-authorization need from rejected data or an outage.
func FailureMessage(err error, attempts int) string {
	switch {
	case errors.Is(err, offer.ErrOAuthRequired), offer.IsAuthError(err):
		return "marketplace authorization required, reconnect the seller account: " + err.Error()
	case offer.IsRemoteValidation(err):
		if body, ok := allegro.RemoteBody(err); ok && body != "" {
			return "marketplace rejected the offer: " + body
		}
		return "marketplace rejected the offer: " + err.Error()
	case offer.IsTimeout(err):
		return fmt.Sprintf("marketplace did not answer after %d attempts", attempts)
	case errors.Is(err, offer.ErrRemoteNotFound):
		return "offer no longer exists on the marketplace"
	case offer.IsTransient(err):
		return "marketplace temporarily unavailable: " + err.Error()
	default:
		return err.Error()
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case offer.IsTimeout(err):
		return "timeout"
	case errors.Is(err, offer.ErrOAuthRequired), offer.IsAuthError(err):
		return "auth"
	case offer.IsRemoteValidation(err):
		return "rejected"
	case offer.IsTransient(err):
		return "unavailable"
	default:
		return "error"
	}
}
