package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bkarakus/wa-dispatch-service/internal/domain"
)

// TemplateRepository handles database operations for templates.
type TemplateRepository struct {
	db *sqlx.DB
}

func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*domain.Template, error) {
	query := `SELECT * FROM templates WHERE id = ?`

	var tpl domain.Template
	if err := r.db.GetContext(ctx, &tpl, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return &tpl, nil
}

func (r *TemplateRepository) GetAll(ctx context.Context) ([]domain.Template, error) {
	var templates []domain.Template
	if err := r.db.SelectContext(ctx, &templates, `SELECT * FROM templates ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to get templates: %w", err)
	}

	return templates, nil
}

// UpdateBlueprint persists the variable metadata derived from the
// template text (the sync-time step). Name lists are NULL for
// positional templates.
func (r *TemplateRepository) UpdateBlueprint(
	ctx context.Context,
	id int64,
	headerCount, bodyCount int,
	headerNames, bodyNames []string,
) error {
	headerJSON, err := namesJSON(headerNames)
	if err != nil {
		return err
	}
	bodyJSON, err := namesJSON(bodyNames)
	if err != nil {
		return err
	}

	query := `
		UPDATE templates
		SET header_vars_count = ?, body_vars_count = ?,
		    header_var_names = ?, body_var_names = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query, headerCount, bodyCount, headerJSON, bodyJSON, id); err != nil {
		return fmt.Errorf("failed to update template blueprint: %w", err)
	}

	return nil
}

func namesJSON(names []string) (any, error) {
	if names == nil {
		return nil, nil
	}
	data, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal var names: %w", err)
	}
	return string(data), nil
}
