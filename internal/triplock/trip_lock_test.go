package triplock

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/dutybill/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClientDisabledWithoutAddr(t *testing.T) {
	assert.Nil(t, NewRedisClient(config.Config{}))
	assert.Nil(t, NewLocker(nil))
}

func TestDisabledTripLockAlwaysGrants(t *testing.T) {
	lock := NewTripLock(nil, nil, nil)
	assert.False(t, lock.Enabled())

	release, err := lock.Acquire(context.Background(), "42")
	require.NoError(t, err)
	require.NotNil(t, release)
	release()

	var nilLock *TripLock
	release, err = nilLock.Acquire(context.Background(), "42")
	require.NoError(t, err)
	release()
}

func TestLockerValidatesInput(t *testing.T) {
	var nilLocker *Locker
	_, _, err := nilLocker.TryLock(context.Background(), "k", time.Second)
	assert.Error(t, err)
	assert.NoError(t, nilLocker.Release(context.Background(), "k", "t"))

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()
	locker := NewLocker(client)

	_, _, err = locker.TryLock(context.Background(), "", time.Second)
	assert.Error(t, err)
	_, _, err = locker.TryLock(context.Background(), "k", 0)
	assert.Error(t, err)
	assert.NoError(t, locker.Release(context.Background(), "", ""))
}

func TestAcquireSurfacesRedisErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	lock := NewTripLock(client, config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()), nil)
	assert.True(t, lock.Enabled())

	release, err := lock.Acquire(context.Background(), "42")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocked)
	release()
}
