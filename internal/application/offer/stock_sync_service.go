package offerapp

import (
	"context"

	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/speakASAP/allegro-service/internal/infrastructure/logger"
	"github.com/speakASAP/allegro-service/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// reconcileReason is sent to the warehouse service with reconciled stock
const reconcileReason = "marketplace stock reconciliation"

// StockSyncService reconciles products that several offers report stock for
type StockSyncService struct {
	offers     offer.OfferRepository
	products   offer.ProductRepository
	dispatcher offer.RemoteWriteDispatcher
	warehouse  offer.WarehouseStockService
	metrics    *telemetry.SyncMetrics
	logger     *zap.Logger
}

// NewStockSyncService creates a new StockSyncService. warehouse and metrics
// may be nil.
func NewStockSyncService(
	offers offer.OfferRepository,
	products offer.ProductRepository,
	dispatcher offer.RemoteWriteDispatcher,
	warehouse offer.WarehouseStockService,
	metrics *telemetry.SyncMetrics,
	log *zap.Logger,
) *StockSyncService {
	return &StockSyncService{
		offers:     offers,
		products:   products,
		dispatcher: dispatcher,
		warehouse:  warehouse,
		metrics:    metrics,
		logger:     log,
	}
}

// ReconcileProducts resolves the stock of every linked product with the
// freshest-wins rule over the product and its offers. Products and offers
// that disagree with the winner are brought in line; offer changes are
// written to the marketplace in the background.
func (s *StockSyncService) ReconcileProducts(ctx context.Context) (*ReconcileReport, error) {
	products, err := s.products.FindLinked(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{Items: make([]ReconcileEntry, 0, len(products))}
	for i := range products {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		entry, err := s.reconcileProduct(ctx, &products[i])
		if err != nil {
			return report, err
		}
		report.Products++
		if entry.Previous != entry.Resolved || entry.OffersUpdated > 0 {
			report.Changed++
		} else {
			report.Unchanged++
		}
		report.Items = append(report.Items, entry)
	}

	logger.L(ctx).Info("Stock reconciliation finished",
		zap.Int("products", report.Products),
		zap.Int("changed", report.Changed),
		zap.Int("unchanged", report.Unchanged),
	)
	return report, nil
}

func (s *StockSyncService) reconcileProduct(ctx context.Context, p *offer.Product) (ReconcileEntry, error) {
	log := logger.L(ctx).With(zap.String("product_id", p.ID.String()), zap.String("sku", p.SKU))

	offers, err := s.offers.FindByProductID(ctx, p.ID)
	if err != nil {
		return ReconcileEntry{}, err
	}

	key := p.ID.String()
	reports := []offer.StockReport{p.StockReport()}
	for _, o := range offers {
		if o.StockQuantity == nil {
			continue
		}
		reportedAt := o.UpdatedAt
		if o.LastSyncedAt != nil && o.LastSyncedAt.After(reportedAt) {
			reportedAt = *o.LastSyncedAt
		}
		reports = append(reports, offer.StockReport{
			Key:        key,
			Source:     "offer:" + o.ExternalID,
			Quantity:   *o.StockQuantity,
			ReportedAt: reportedAt,
		})
	}

	winner, _ := offer.ResolveFreshest(reports)
	entry := ReconcileEntry{
		ProductID:     key,
		SKU:           p.SKU,
		Previous:      p.StockQuantity,
		Resolved:      winner.Quantity,
		WinningSource: winner.Source,
		Candidates:    len(reports),
	}

	if p.StockQuantity != winner.Quantity {
		if err := p.SetStock(winner.Quantity); err != nil {
			return entry, err
		}
		if err := s.products.Save(ctx, p); err != nil {
			return entry, err
		}
		if p.TrackStock && s.warehouse != nil {
			if err := s.warehouse.SetStock(ctx, p.ID, p.WarehouseID, winner.Quantity, reconcileReason); err != nil {
				log.Error("Warehouse stock propagation failed", zap.Error(err))
				entry.WarehouseError = err.Error()
			}
		}
	}

	for i := range offers {
		o := &offers[i]
		if o.StockQuantity != nil && *o.StockQuantity == winner.Quantity {
			continue
		}
		if err := o.SetStock(winner.Quantity); err != nil {
			return entry, err
		}
		o.MarkSyncPending()
		if err := s.offers.Save(ctx, o); err != nil {
			return entry, err
		}
		entry.OffersUpdated++

		err := s.dispatcher.Dispatch(ctx, offer.RemoteWrite{
			OfferID:    o.ID,
			ExternalID: o.ExternalID,
			Mode:       offer.WriteModeStockOnly,
			Quantity:   winner.Quantity,
		})
		if err != nil {
			log.Error("Failed to queue reconciled stock", zap.String("offer_id", o.ID.String()), zap.Error(err))
			state := offer.SyncState{Status: offer.SyncStatusError, Error: "marketplace update not queued: " + err.Error()}
			if uerr := s.offers.UpdateSyncState(ctx, o.ID, state); uerr != nil {
				log.Error("Failed to record sync error", zap.String("offer_id", o.ID.String()), zap.Error(uerr))
			}
		}
	}
	s.metrics.RecordStockUpdates(ctx, entry.OffersUpdated)

	if entry.Previous != entry.Resolved || entry.OffersUpdated > 0 {
		log.Info("Product stock reconciled",
			zap.Int("previous", entry.Previous),
			zap.Int("resolved", entry.Resolved),
			zap.String("winner", entry.WinningSource),
			zap.Int("offers_updated", entry.OffersUpdated),
		)
	}
	return entry, nil
}
