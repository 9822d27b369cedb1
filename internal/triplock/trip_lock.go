// Package triplock serializes bill generation per trip across processes.
package triplock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/dutybill/internal/config"
	"go.uber.org/zap"
)

const keyTripGeneration = "dutybill:trip:%s:generate"

var ErrLocked = errors.New("trip_locked")

// TripLock is disabled, and always grants, when no redis address is configured.
type TripLock struct {
	locker  *Locker
	billing *config.BillingConfigHolder
	log     *zap.Logger
}

func NewRedisClient(cfg config.Config) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
}

func NewTripLock(client *redis.Client, billing *config.BillingConfigHolder, log *zap.Logger) *TripLock {
	if log == nil {
		log = zap.NewNop()
	}
	return &TripLock{
		locker:  NewLocker(client),
		billing: billing,
		log:     log.Named("triplock"),
	}
}

func (t *TripLock) Enabled() bool {
	return t != nil && t.locker != nil
}

// Acquire takes the generation lock for tripID. It returns ErrLocked when
// another holder owns it. The returned release func is always safe to call.
func (t *TripLock) Acquire(ctx context.Context, tripID string) (func(), error) {
	noop := func() {}
	if !t.Enabled() {
		return noop, nil
	}

	key := fmt.Sprintf(keyTripGeneration, strings.TrimSpace(tripID))
	token, ok, err := t.locker.TryLock(ctx, key, t.ttl())
	if err != nil {
		return noop, err
	}
	if !ok {
		return noop, ErrLocked
	}

	return func() {
		// The request context may already be cancelled once the caller returns.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := t.locker.Release(releaseCtx, key, token); err != nil {
			t.log.Warn("failed to release trip lock", zap.String("trip_id", tripID), zap.Error(err))
		}
	}, nil
}

func (t *TripLock) ttl() time.Duration {
	if t.billing == nil {
		return config.DefaultBillingConfig().GenerationLockTTL
	}
	return t.billing.Get().GenerationLockTTL
}
