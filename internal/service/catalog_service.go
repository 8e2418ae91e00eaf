package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/fieldsync-api/internal/models"
	appErrors "github.com/noah-isme/fieldsync-api/pkg/errors"
)

type catalogRepository interface {
	TemplateExists(ctx context.Context, templateID int64) (bool, error)
	FindVersion(ctx context.Context, templateID int64, version int) (*models.FormTemplateVersion, error)
	ProjectExists(ctx context.Context, projectID int64) (bool, error)
}

// CatalogService answers the referential checks the sync core needs. Only
// positive answers are cached; templates and versions are never deleted
// while submissions reference them.
type CatalogService struct {
	repo   catalogRepository
	cache  *CacheService
	logger *zap.Logger
}

// NewCatalogService constructs the service. cache may be nil.
func NewCatalogService(repo catalogRepository, cache *CacheService, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, cache: cache, logger: logger}
}

// TemplateExists reports whether the form template is present.
func (s *CatalogService) TemplateExists(ctx context.Context, templateID int64) (bool, error) {
	return s.exists(ctx, fmt.Sprintf("catalog:template:%d", templateID), func() (bool, error) {
		return s.repo.TemplateExists(ctx, templateID)
	})
}

// ProjectExists reports whether the project is present.
func (s *CatalogService) ProjectExists(ctx context.Context, projectID int64) (bool, error) {
	return s.exists(ctx, fmt.Sprintf("catalog:project:%d", projectID), func() (bool, error) {
		return s.repo.ProjectExists(ctx, projectID)
	})
}

// ResolveVersion returns the version row for (templateID, version) or a
// NotFound error naming what is missing.
func (s *CatalogService) ResolveVersion(ctx context.Context, templateID int64, version int) (*models.FormTemplateVersion, error) {
	exists, err := s.TemplateExists(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("form template %d not found", templateID))
	}

	key := fmt.Sprintf("catalog:version:%d:%d", templateID, version)
	var cached models.FormTemplateVersion
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	found, err := s.repo.FindVersion(ctx, templateID, version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("form template %d version %d not found", templateID, version))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load form template version")
	}
	_ = s.cache.Set(ctx, key, found, 0)
	return found, nil
}

func (s *CatalogService) exists(ctx context.Context, key string, load func() (bool, error)) (bool, error) {
	var cached bool
	if hit, _ := s.cache.Get(ctx, key, &cached); hit && cached {
		return true, nil
	}
	exists, err := load()
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query catalog")
	}
	if exists {
		_ = s.cache.Set(ctx, key, true, 0)
	}
	return exists, nil
}
