package offerapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/speakASAP/allegro-service/internal/infrastructure/logger"
	"github.com/speakASAP/allegro-service/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// stockReason is sent to the warehouse service with offer-driven updates
const stockReason = "marketplace offer stock update"

// OfferService edits local offers and hands marketplace writes to the
// background dispatcher. Callers get the local result before the marketplace
// has answered.
type OfferService struct {
	offers     offer.OfferRepository
	products   offer.ProductRepository
	client     offer.MarketplaceClient
	tokens     offer.TokenProvider
	dispatcher offer.RemoteWriteDispatcher
	warehouse  offer.WarehouseStockService
	metrics    *telemetry.SyncMetrics
	logger     *zap.Logger
}

// NewOfferService creates a new OfferService. metrics may be nil.
func NewOfferService(
	offers offer.OfferRepository,
	products offer.ProductRepository,
	client offer.MarketplaceClient,
	tokens offer.TokenProvider,
	dispatcher offer.RemoteWriteDispatcher,
	warehouse offer.WarehouseStockService,
	metrics *telemetry.SyncMetrics,
	log *zap.Logger,
) *OfferService {
	return &OfferService{
		offers:     offers,
		products:   products,
		client:     client,
		tokens:     tokens,
		dispatcher: dispatcher,
		warehouse:  warehouse,
		metrics:    metrics,
		logger:     log,
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// GetOffer returns one offer
func (s *OfferService) GetOffer(ctx context.Context, id uuid.UUID) (*offer.Offer, error) {
	return s.offers.FindByID(ctx, id)
}

// ListOffers returns one page of offers and the total match count
func (s *OfferService) ListOffers(ctx context.Context, filter offer.OfferFilter) ([]offer.Offer, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}

	offers, err := s.offers.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.offers.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return offers, total, nil
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

// UpdateOffer applies a local edit, stores it as PENDING and queues the full
// marketplace update. A patch that only changes stock takes the stock path.
func (s *OfferService) UpdateOffer(ctx context.Context, id uuid.UUID, patch offer.OfferPatch, userID string) (*offer.Offer, error) {
	if patch.IsEmpty() {
		return nil, offer.ErrEmptyPatch
	}
	o, err := s.offers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.StockOnly() {
		if err := s.updateStock(ctx, o, *patch.StockQuantity, userID); err != nil {
			return nil, err
		}
		return o, nil
	}

	// built from the snapshot before the structured fields change
	payload := offer.TransformToRemoteFormat(patch, o)
	stockChanged := patch.StockQuantity != nil && *patch.StockQuantity != o.Stock()

	if err := o.ApplyPatch(patch); err != nil {
		return nil, err
	}
	result := offer.Validate(o)
	o.ApplyValidation(result)
	o.MarkSyncPending()
	if err := s.offers.Save(ctx, o); err != nil {
		return nil, err
	}
	s.metrics.RecordValidation(ctx, string(result.Status))

	if stockChanged {
		s.propagateStock(ctx, o)
	}

	s.dispatch(ctx, o, offer.RemoteWrite{
		OfferID:    o.ID,
		ExternalID: o.ExternalID,
		UserID:     userID,
		Mode:       offer.WriteModeFull,
		Payload:    payload,
	})
	return o, nil
}

// UpdateStock is the stock-only fast path: no payload reconstruction and no
// validation, just the local write, the product mirror and a stock write.
func (s *OfferService) UpdateStock(ctx context.Context, id uuid.UUID, quantity int) (*offer.Offer, error) {
	if quantity < 0 {
		return nil, offer.ErrInvalidQuantity
	}
	o, err := s.offers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.updateStock(ctx, o, quantity, ""); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OfferService) updateStock(ctx context.Context, o *offer.Offer, quantity int, userID string) error {
	if err := o.SetStock(quantity); err != nil {
		return err
	}
	o.MarkSyncPending()
	if err := s.offers.Save(ctx, o); err != nil {
		return err
	}
	s.metrics.RecordStockUpdates(ctx, 1)

	s.propagateStock(ctx, o)
	s.dispatch(ctx, o, offer.RemoteWrite{
		OfferID:    o.ID,
		ExternalID: o.ExternalID,
		UserID:     userID,
		Mode:       offer.WriteModeStockOnly,
		Quantity:   quantity,
	})
	return nil
}

// dispatch queues the remote write. A write that cannot be queued is recorded
// on the offer since the local change is already committed.
func (s *OfferService) dispatch(ctx context.Context, o *offer.Offer, w offer.RemoteWrite) {
	err := s.dispatcher.Dispatch(ctx, w)
	if err == nil {
		return
	}

	logger.L(ctx).Error("Failed to queue marketplace write",
		zap.String("offer_id", o.ID.String()),
		zap.String("mode", string(w.Mode)),
		zap.Error(err),
	)
	msg := fmt.Sprintf("marketplace update not queued: %v", err)
	if uerr := s.offers.UpdateSyncState(ctx, o.ID, offer.SyncState{Status: offer.SyncStatusError, Error: msg}); uerr != nil {
		logger.L(ctx).Error("Failed to record sync error", zap.String("offer_id", o.ID.String()), zap.Error(uerr))
		return
	}
	o.SyncStatus = offer.SyncStatusError
	o.SyncError = msg
}

// propagateStock mirrors the offer stock to its product and, for tracked
// products, to the warehouse service. Failures are logged only.
func (s *OfferService) propagateStock(ctx context.Context, o *offer.Offer) {
	if o.ProductID == nil {
		return
	}
	log := logger.L(ctx).With(
		zap.String("offer_id", o.ID.String()),
		zap.String("product_id", o.ProductID.String()),
	)

	p, err := s.products.FindByID(ctx, *o.ProductID)
	if err != nil {
		log.Warn("Linked product not available for stock mirror", zap.Error(err))
		return
	}
	if err := p.SetStock(o.Stock()); err != nil {
		log.Warn("Invalid stock for product mirror", zap.Error(err))
		return
	}
	if err := s.products.Save(ctx, p); err != nil {
		log.Error("Failed to mirror stock to product", zap.Error(err))
		return
	}

	if !p.TrackStock || s.warehouse == nil {
		return
	}
	if err := s.warehouse.SetStock(ctx, p.ID, p.WarehouseID, p.StockQuantity, stockReason); err != nil {
		log.Error("Warehouse stock propagation failed, left for reconciliation",
			zap.Int("quantity", p.StockQuantity),
			zap.Error(err),
		)
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// ValidateOffer recomputes and stores the validation result. With a user id
// the snapshot is refreshed from the marketplace first.
func (s *OfferService) ValidateOffer(ctx context.Context, id uuid.UUID, userID string) (*offer.Offer, offer.ValidationResult, error) {
	o, err := s.offers.FindByID(ctx, id)
	if err != nil {
		return nil, offer.ValidationResult{}, err
	}

	if userID != "" {
		session := newAuthSession(s.tokens, userID, s.logger)
		var raw offer.RawPayload
		err := session.call(ctx, func(token string) error {
			var err error
			raw, err = s.client.GetOffer(ctx, token, o.ExternalID)
			return err
		})
		if err != nil {
			return nil, offer.ValidationResult{}, fmt.Errorf("refresh offer %s: %w", o.ExternalID, err)
		}
		pending := o.SyncStatus == offer.SyncStatusPending
		o.ApplyImport(offer.ExtractOfferData(raw), raw, o.SyncSource)
		if pending {
			// a queued local write has not reached the marketplace yet
			o.MarkSyncPending()
		}
	}

	result := offer.Validate(o)
	o.ApplyValidation(result)
	o.UpdatedAt = time.Now()
	if err := s.offers.Save(ctx, o); err != nil {
		return nil, offer.ValidationResult{}, err
	}
	s.metrics.RecordValidation(ctx, string(result.Status))
	return o, result, nil
}

// IsNotFound reports whether err is a missing local offer or product
func IsNotFound(err error) bool {
	return errors.Is(err, offer.ErrOfferNotFound) || errors.Is(err, offer.ErrProductNotFound)
}
