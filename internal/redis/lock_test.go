package redisclient

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopLockerRunsFn(t *testing.T) {
	called := false
	err := NoopLocker{}.WithLock(context.Background(), MaintenanceLock, func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	boom := errors.New("boom")
	err = NoopLocker{}.WithLock(context.Background(), MaintenanceLock, func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestRedisLockerExcludesSecondHolder(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	rdb, err := NewRedisClient(addr, "", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	locker := NewRedisLocker(rdb, 5*time.Second)
	name := "test-" + t.Name()

	err = locker.WithLock(context.Background(), name, func(ctx context.Context) error {
		inner := locker.WithLock(ctx, name, func(context.Context) error { return nil })
		assert.ErrorIs(t, inner, ErrLockNotAcquired)
		return nil
	})
	require.NoError(t, err)

	// Released on return, so it can be taken again.
	err = locker.WithLock(context.Background(), name, func(context.Context) error { return nil })
	require.NoError(t, err)
}
