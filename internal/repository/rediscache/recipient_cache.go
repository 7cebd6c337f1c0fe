// internal/repository/rediscache/recipient_cache.go
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cargolink-service/internal/domain/earnings"
	"cargolink-service/internal/domain/ledger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const recipientTTL = 24 * time.Hour

// RecipientCache fronts a durable RecipientStore with Redis. Cache failures
// degrade to the durable store; they never fail a payout.
type RecipientCache struct {
	client  *redis.Client
	durable earnings.RecipientStore
	logger  *zap.Logger
}

func NewRecipientCache(client *redis.Client, durable earnings.RecipientStore, logger *zap.Logger) *RecipientCache {
	return &RecipientCache{client: client, durable: durable, logger: logger}
}

func recipientKey(driverID int64, bank ledger.BankDetails) string {
	return fmt.Sprintf("payout:recipient:%d:%s:%s", driverID, bank.BankCode, bank.AccountNumber)
}

func (c *RecipientCache) LookupCode(ctx context.Context, driverID int64, bank ledger.BankDetails) (string, error) {
	key := recipientKey(driverID, bank)
	code, err := c.client.Get(ctx, key).Result()
	if err == nil && code != "" {
		return code, nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("recipient cache read failed, falling back to database",
			zap.Int64("driver_id", driverID), zap.Error(err))
	}

	code, err = c.durable.LookupCode(ctx, driverID, bank)
	if err != nil {
		return "", err
	}
	if code != "" {
		if err := c.client.Set(ctx, key, code, recipientTTL).Err(); err != nil {
			c.logger.Warn("recipient cache backfill failed",
				zap.Int64("driver_id", driverID), zap.Error(err))
		}
	}
	return code, nil
}

func (c *RecipientCache) SaveCode(ctx context.Context, driverID int64, bank ledger.BankDetails, code string) error {
	if err := c.durable.SaveCode(ctx, driverID, bank, code); err != nil {
		return err
	}
	if err := c.client.Set(ctx, recipientKey(driverID, bank), code, recipientTTL).Err(); err != nil {
		c.logger.Warn("recipient cache write failed",
			zap.Int64("driver_id", driverID), zap.Error(err))
	}
	return nil
}
