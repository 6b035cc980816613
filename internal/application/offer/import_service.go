package offerapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/speakASAP/allegro-service/internal/infrastructure/logger"
	"github.com/speakASAP/allegro-service/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultPageSize is the listing page size when none is configured
const DefaultPageSize = 100

// ImportService pulls marketplace offers into local storage
type ImportService struct {
	client   offer.MarketplaceClient
	offers   offer.OfferRepository
	tokens   offer.TokenProvider
	metrics  *telemetry.SyncMetrics
	logger   *zap.Logger
	pageSize int
}

// ImportOption configures an ImportService
type ImportOption func(*ImportService)

// WithPageSize sets the listing page size
func WithPageSize(n int) ImportOption {
	return func(s *ImportService) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithImportMetrics records import and validation counters
func WithImportMetrics(m *telemetry.SyncMetrics) ImportOption {
	return func(s *ImportService) { s.metrics = m }
}

// NewImportService creates a new ImportService
func NewImportService(
	client offer.MarketplaceClient,
	offers offer.OfferRepository,
	tokens offer.TokenProvider,
	log *zap.Logger,
	opts ...ImportOption,
) *ImportService {
	s := &ImportService{
		client:   client,
		offers:   offers,
		tokens:   tokens,
		logger:   log,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ---------------------------------------------------------------------------
// Listing
// ---------------------------------------------------------------------------

// eachPage walks the listing by offset. A page that fails with an auth error
// is retried by the session without advancing the offset.
func (s *ImportService) eachPage(ctx context.Context, session *authSession, fn func(items []offer.RawPayload) error) (int, error) {
	offset, total := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		var page *offer.OfferPage
		err := session.call(ctx, func(token string) error {
			var err error
			page, err = s.client.ListOffers(ctx, token, offer.ListParams{Limit: s.pageSize, Offset: offset})
			return err
		})
		if err != nil {
			return total, fmt.Errorf("list offers at offset %d: %w", offset, err)
		}

		total = page.TotalCount
		if len(page.Offers) == 0 {
			return total, nil
		}
		if err := fn(page.Offers); err != nil {
			return total, err
		}

		offset += len(page.Offers)
		if total > 0 && offset >= total {
			return total, nil
		}
	}
}

// PreviewImport lists every marketplace offer of the user without writing
// anything.
func (s *ImportService) PreviewImport(ctx context.Context, userID string) (*ImportPreview, error) {
	session := newAuthSession(s.tokens, userID, s.logger)
	preview := &ImportPreview{Items: make([]PreviewItem, 0)}

	total, err := s.eachPage(ctx, session, func(items []offer.RawPayload) error {
		for _, raw := range items {
			x := offer.ExtractOfferData(raw)
			if x.ExternalID == "" {
				continue
			}
			exists, err := s.exists(ctx, x.ExternalID)
			if err != nil {
				return err
			}
			preview.Items = append(preview.Items, PreviewItem{
				ExternalID:        x.ExternalID,
				Title:             x.Title,
				CategoryID:        x.CategoryID,
				Price:             x.Price,
				Currency:          x.Currency,
				StockQuantity:     x.StockQuantity,
				PublicationStatus: x.PublicationStatus,
				ImageCount:        len(x.Images),
				Exists:            exists,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	preview.TotalCount = total
	logger.L(ctx).Info("Import preview built",
		zap.String("user_id", userID),
		zap.Int("items", len(preview.Items)),
		zap.Int("total_count", total),
	)
	return preview, nil
}

func (s *ImportService) exists(ctx context.Context, externalID string) (bool, error) {
	_, err := s.offers.FindByExternalID(ctx, externalID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, offer.ErrOfferNotFound):
		return false, nil
	default:
		return false, err
	}
}

// ---------------------------------------------------------------------------
// Import
// ---------------------------------------------------------------------------

// ApproveImport imports the approved offers. Approved ids missing from the
// listing are reported as failures.
func (s *ImportService) ApproveImport(ctx context.Context, userID string, externalIDs []string) (*ImportSummary, error) {
	approved := make(map[string]struct{}, len(externalIDs))
	for _, id := range externalIDs {
		if id = strings.TrimSpace(id); id != "" {
			approved[id] = struct{}{}
		}
	}
	if len(approved) == 0 {
		return &ImportSummary{}, nil
	}

	seen := make(map[string]struct{}, len(approved))
	summary, err := s.run(ctx, userID, func(id string) bool {
		if _, ok := approved[id]; !ok {
			return false
		}
		seen[id] = struct{}{}
		return true
	})
	if err != nil {
		return summary, err
	}

	for id := range approved {
		if _, ok := seen[id]; !ok {
			summary.fail(id, offer.ErrRemoteNotFound)
		}
	}
	return summary, nil
}

// ImportAll imports every marketplace offer of the user
func (s *ImportService) ImportAll(ctx context.Context, userID string) (*ImportSummary, error) {
	return s.run(ctx, userID, nil)
}

// run is the shared upsert loop. Item failures are collected; auth failures
// and listing failures end the run.
func (s *ImportService) run(ctx context.Context, userID string, include func(externalID string) bool) (*ImportSummary, error) {
	session := newAuthSession(s.tokens, userID, s.logger)
	summary := &ImportSummary{}
	log := logger.L(ctx).With(zap.String("user_id", userID))

	_, err := s.eachPage(ctx, session, func(items []offer.RawPayload) error {
		for _, item := range items {
			summary.Scanned++
			id := item.ExternalID()
			if id == "" || (include != nil && !include(id)) {
				summary.Skipped++
				continue
			}

			// the listing shape is abbreviated; fetch the full document
			var detail offer.RawPayload
			err := session.call(ctx, func(token string) error {
				var err error
				detail, err = s.client.GetOffer(ctx, token, id)
				return err
			})
			if errors.Is(err, offer.ErrOAuthRequired) {
				return err
			}
			if err != nil {
				log.Warn("Failed to fetch offer detail", zap.String("external_id", id), zap.Error(err))
				summary.fail(id, err)
				continue
			}

			_, created, err := s.upsert(ctx, detail, offer.SyncSourceAllegroAPI)
			if err != nil {
				log.Warn("Failed to store imported offer", zap.String("external_id", id), zap.Error(err))
				summary.fail(id, err)
				continue
			}
			if created {
				summary.Created++
			} else {
				summary.Updated++
			}
		}
		return nil
	})

	s.metrics.RecordImport(ctx, string(offer.SyncSourceAllegroAPI), summary.Created+summary.Updated)
	log.Info("Offer import finished",
		zap.Int("scanned", summary.Scanned),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Error(err),
	)
	return summary, err
}

// ImportPayload stores a manually supplied marketplace document (for example
// a Sales Center export). Malformed JSON is rejected before anything else.
func (s *ImportService) ImportPayload(ctx context.Context, data []byte) (*offer.Offer, bool, error) {
	raw, err := offer.ParseRawPayload(data)
	if err != nil {
		return nil, false, err
	}
	if raw.ExternalID() == "" {
		return nil, false, fmt.Errorf("%w: missing offer id", offer.ErrMalformedPayload)
	}

	o, created, err := s.upsert(ctx, raw, offer.SyncSourceSalesCenter)
	if err != nil {
		return nil, false, err
	}
	s.metrics.RecordImport(ctx, string(offer.SyncSourceSalesCenter), 1)
	return o, created, nil
}

// upsert creates or refreshes the offer keyed by external id. Updates keep
// the local id, the product link and the sync source. Validation is
// recomputed every time.
func (s *ImportService) upsert(ctx context.Context, raw offer.RawPayload, source offer.SyncSource) (*offer.Offer, bool, error) {
	id := raw.ExternalID()
	o, err := s.offers.FindByExternalID(ctx, id)
	created := false
	switch {
	case errors.Is(err, offer.ErrOfferNotFound):
		o, err = offer.NewOffer(id, source)
		if err != nil {
			return nil, false, err
		}
		created = true
	case err != nil:
		return nil, false, err
	default:
		source = o.SyncSource
	}

	o.ApplyImport(offer.ExtractOfferData(raw), raw, source)
	result := offer.Validate(o)
	o.ApplyValidation(result)

	if err := s.offers.Save(ctx, o); err != nil {
		return nil, false, err
	}
	s.metrics.RecordValidation(ctx, string(result.Status))
	return o, created, nil
}
