package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/fieldsync-api/pkg/errors"
)

func TestMemoryCacheRepositoryRoundTrip(t *testing.T) {
	repo := NewMemoryCacheRepository(gocache.New(time.Minute, time.Minute))
	ctx := context.Background()

	var dest map[string]int
	err := repo.Get(ctx, "catalog:version:5:1", &dest)
	require.True(t, errors.Is(err, appErrors.ErrCacheMiss))

	require.NoError(t, repo.Set(ctx, "catalog:version:5:1", map[string]int{"id": 11}, time.Minute))
	require.NoError(t, repo.Get(ctx, "catalog:version:5:1", &dest))
	require.Equal(t, 11, dest["id"])

	require.NoError(t, repo.Set(ctx, "catalog:template:5", true, 0))

	var exists bool
	require.NoError(t, repo.Get(ctx, "catalog:template:5", &exists))
	require.True(t, exists)

	require.NoError(t, repo.Close())
	require.True(t, errors.Is(repo.Get(ctx, "catalog:template:5", &exists), appErrors.ErrCacheMiss))
}

func TestCacheRepositoryWithoutClientMisses(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var dest string
	require.True(t, errors.Is(repo.Get(context.Background(), "k", &dest), appErrors.ErrCacheMiss))
	require.NoError(t, repo.Set(context.Background(), "k", "v", time.Minute))
	require.NoError(t, repo.Close())
}
