package telemetry

import (
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls the otelgorm plugin
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // include bound variables in db.statement
	SlowQueryThresh time.Duration
	TracerProvider  trace.TracerProvider // nil uses the global provider
}

const startedAtKey = "telemetry:started_at"

type registrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

// TraceDB registers otelgorm on db and tags spans of queries slower than the
// threshold with db.slow_query=true.
func TraceDB(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName("postgresql")}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	if cfg.SlowQueryThresh > 0 {
		if err := registerSlowQuery(db, cfg.SlowQueryThresh); err != nil {
			return err
		}
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func registerSlowQuery(db *gorm.DB, threshold time.Duration) error {
	before := func(tx *gorm.DB) { tx.InstanceSet(startedAtKey, time.Now()) }
	after := func(tx *gorm.DB) {
		v, ok := tx.InstanceGet(startedAtKey)
		if !ok || tx.Statement.Context == nil {
			return
		}
		started, ok := v.(time.Time)
		if !ok || time.Since(started) < threshold {
			return
		}
		span := trace.SpanFromContext(tx.Statement.Context)
		span.SetAttributes(attribute.Bool("db.slow_query", true))
	}

	cb := db.Callback()
	hooks := []struct {
		callback registrar
		hook     func(*gorm.DB)
		name     string
	}{
		{cb.Create().Before("gorm:create"), before, "before:create"},
		{cb.Create().After("gorm:create").Before("otel:after:create"), after, "after:create"},
		{cb.Query().Before("gorm:query"), before, "before:select"},
		{cb.Query().After("gorm:query").Before("otel:after:select"), after, "after:select"},
		{cb.Update().Before("gorm:update"), before, "before:update"},
		{cb.Update().After("gorm:update").Before("otel:after:update"), after, "after:update"},
		{cb.Delete().Before("gorm:delete"), before, "before:delete"},
		{cb.Delete().After("gorm:delete").Before("otel:after:delete"), after, "after:delete"},
	}
	for _, h := range hooks {
		if err := h.callback.Register("slowquery:"+h.name, h.hook); err != nil {
			return fmt.Errorf("register %s: %w", h.name, err)
		}
	}
	return nil
}
