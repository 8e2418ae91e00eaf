package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/fieldsync-api/pkg/errors"
)

func TestCatalogResolveVersionCachesHits(t *testing.T) {
	repo := &memoryCatalog{templates: map[int64][]int{5: {1, 2}}}
	cache := NewCacheService(&memoryCacheRepo{}, nil, 0, nil, true)
	svc := NewCatalogService(repo, cache, nil)
	ctx := context.Background()

	v, err := svc.ResolveVersion(ctx, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(502), v.ID)

	v, err = svc.ResolveVersion(ctx, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(502), v.ID)
	assert.Equal(t, 1, repo.versionCalls)
}

func TestCatalogResolveVersionNotFound(t *testing.T) {
	repo := &memoryCatalog{templates: map[int64][]int{5: {1}}}
	svc := NewCatalogService(repo, NewCacheService(&memoryCacheRepo{}, nil, 0, nil, true), nil)
	ctx := context.Background()

	_, err := svc.ResolveVersion(ctx, 6, 1)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, "form template 6 not found", err.Error())

	_, err = svc.ResolveVersion(ctx, 5, 3)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, "form template 5 version 3 not found", err.Error())

	// misses are not cached
	repo.templates[5] = append(repo.templates[5], 3)
	_, err = svc.ResolveVersion(ctx, 5, 3)
	require.NoError(t, err)
}

func TestCatalogProjectExistsWithoutCache(t *testing.T) {
	svc := NewCatalogService(&memoryCatalog{projects: map[int64]bool{3: true}}, nil, nil)
	ok, err := svc.ProjectExists(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.ProjectExists(context.Background(), 4)
	require.NoError(t, err)
	assert.False(t, ok)
}
