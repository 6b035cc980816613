package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/speakASAP/allegro-service/internal/infrastructure/allegro"
	"github.com/speakASAP/allegro-service/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewTokenStore returns a Redis-backed token store, or an in-memory one when
// Redis cannot be reached. In-memory tokens are lost on restart and are not
// shared between instances.
func NewTokenStore(redisCfg config.RedisConfig, encryptionKey string, logger *zap.Logger) (allegro.TokenStore, func() error, error) {
	var opts []RedisTokenStoreOption
	if encryptionKey != "" {
		sealer, err := NewSealer(encryptionKey)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, WithSealer(sealer))
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr(),
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.Warn("Redis unavailable, keeping marketplace tokens in memory",
			zap.String("addr", redisCfg.Addr()),
			zap.Error(err),
		)
		return allegro.NewMemoryTokenStore(), func() error { return nil }, nil
	}

	logger.Info("Using Redis token store", zap.String("addr", redisCfg.Addr()), zap.Bool("sealed", len(opts) > 0))
	return NewRedisTokenStore(client, opts...), client.Close, nil
}
