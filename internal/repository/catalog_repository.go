package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fieldsync-api/internal/models"
)

// CatalogRepository reads projects, form templates and their versions.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// TemplateExists reports whether the form template is present.
func (r *CatalogRepository) TemplateExists(ctx context.Context, templateID int64) (bool, error) {
	var exists bool
	if err := Executor(ctx, r.db).GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM form_templates WHERE id = $1)`, templateID); err != nil {
		return false, fmt.Errorf("check form template: %w", err)
	}
	return exists, nil
}

// FindVersion resolves the (template, version number) pair.
func (r *CatalogRepository) FindVersion(ctx context.Context, templateID int64, version int) (*models.FormTemplateVersion, error) {
	const query = `SELECT id, form_template_id, version, created_at FROM form_template_versions
	WHERE form_template_id = $1 AND version = $2`
	var v models.FormTemplateVersion
	if err := Executor(ctx, r.db).GetContext(ctx, &v, query, templateID, version); err != nil {
		return nil, err
	}
	return &v, nil
}

// ProjectExists reports whether the project is present.
func (r *CatalogRepository) ProjectExists(ctx context.Context, projectID int64) (bool, error) {
	var exists bool
	if err := Executor(ctx, r.db).GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1)`, projectID); err != nil {
		return false, fmt.Errorf("check project: %w", err)
	}
	return exists, nil
}
