package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetrics records offer synchronization counters. A nil *SyncMetrics is
// valid and records nothing.
type SyncMetrics struct {
	imported      metric.Int64Counter
	validations   metric.Int64Counter
	remoteWrites  metric.Int64Counter
	writeDuration metric.Float64Histogram
	tokenRefresh  metric.Int64Counter
	stockUpdates  metric.Int64Counter
}

// NewSyncMetrics registers the instruments on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	m := &SyncMetrics{}
	var err error

	if m.imported, err = meter.Int64Counter("offers_imported_total",
		metric.WithDescription("Offers persisted by import runs"),
		metric.WithUnit("{offer}")); err != nil {
		return nil, err
	}
	if m.validations, err = meter.Int64Counter("offer_validations_total",
		metric.WithDescription("Validation runs by resulting status"),
		metric.WithUnit("{validation}")); err != nil {
		return nil, err
	}
	if m.remoteWrites, err = meter.Int64Counter("offer_remote_writes_total",
		metric.WithDescription("Marketplace write attempts by mode and outcome"),
		metric.WithUnit("{write}")); err != nil {
		return nil, err
	}
	if m.writeDuration, err = meter.Float64Histogram("offer_remote_write_duration_seconds",
		metric.WithDescription("Duration of marketplace writes including retries"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.tokenRefresh, err = meter.Int64Counter("oauth_token_refresh_total",
		metric.WithDescription("Access token acquisitions by grant and outcome"),
		metric.WithUnit("{refresh}")); err != nil {
		return nil, err
	}
	if m.stockUpdates, err = meter.Int64Counter("stock_reconciled_total",
		metric.WithDescription("Products whose stock was reconciled"),
		metric.WithUnit("{product}")); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordImport counts offers persisted from the given source
func (m *SyncMetrics) RecordImport(ctx context.Context, source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.imported.Add(ctx, int64(n), metric.WithAttributes(attribute.String("source", source)))
}

// RecordValidation counts one validation run
func (m *SyncMetrics) RecordValidation(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.validations.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordRemoteWrite counts a finished marketplace write and its duration
func (m *SyncMetrics) RecordRemoteWrite(ctx context.Context, mode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("mode", mode), attribute.String("outcome", outcome))
	m.remoteWrites.Add(ctx, 1, attrs)
	m.writeDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordTokenRefresh counts an access token acquisition
func (m *SyncMetrics) RecordTokenRefresh(ctx context.Context, grant string, ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.tokenRefresh.Add(ctx, 1, metric.WithAttributes(
		attribute.String("grant", grant),
		attribute.String("outcome", outcome),
	))
}

// RecordStockUpdates counts reconciled products
func (m *SyncMetrics) RecordStockUpdates(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.stockUpdates.Add(ctx, int64(n))
}
