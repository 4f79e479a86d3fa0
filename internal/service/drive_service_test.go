package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-drive-api/pkg/errors"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func TestDriveEnsureProvisionsOnce(t *testing.T) {
	store := newMemStore()
	svc := NewDriveService(memDrives{store}, nil, DriveServiceConfig{DefaultStorageLimit: 42}, nil)
	ctx := context.Background()

	first, err := svc.Ensure(ctx, "alice")
	require.NoError(t, err)
	require.EqualValues(t, 42, first.StorageLimit)
	require.EqualValues(t, 0, first.StorageUsed)
	require.True(t, first.IsPrivate)

	second, err := svc.Ensure(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, store.drives, 1)

	_, err = svc.Ensure(ctx, "")
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = svc.GetByOwner(ctx, "bob")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestDriveSummaryCachedAndInvalidated(t *testing.T) {
	f := newDriveFixture(t)
	ctx := context.Background()
	cache := NewCacheService(newMemCache(), nil, time.Minute, nil, true)
	drives := NewDriveService(memDrives{f.store}, cache, DriveServiceConfig{DefaultStorageLimit: 1000}, nil)
	alice := actor("alice")

	file := f.upload(t, alice, nil, "a.txt", "abcd")
	summary, cached, err := drives.Summary(ctx, alice)
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, 1, summary.FileCount)
	require.EqualValues(t, 4, summary.Drive.StorageUsed)

	f.upload(t, alice, nil, "b.txt", "ef")
	summary, cached, err = drives.Summary(ctx, alice)
	require.NoError(t, err)
	require.True(t, cached)
	require.Equal(t, 1, summary.FileCount)

	require.NoError(t, f.trash.SoftDeleteFile(ctx, alice, file.ID))
	drives.InvalidateSummary(ctx, summary.Drive.ID)
	summary, cached, err = drives.Summary(ctx, alice)
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, 1, summary.FileCount)
	require.Equal(t, 1, summary.TrashCount)
	require.EqualValues(t, 4, summary.TrashBytes)
	require.EqualValues(t, 6, summary.Drive.StorageUsed)
}
