package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bkarakus/wa-dispatch-service/internal/domain"
)

// DealRepository handles CRM pipeline deals.
type DealRepository struct {
	db *sqlx.DB
}

func NewDealRepository(db *sqlx.DB) *DealRepository {
	return &DealRepository{db: db}
}

func (r *DealRepository) Create(ctx context.Context, deal *domain.Deal) error {
	query := `
		INSERT INTO deals (tenant_id, contact_phone, pipeline_id, stage_id, title, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		deal.TenantID, deal.ContactPhone, deal.PipelineID, deal.StageID, deal.Title, deal.Status)
	if err != nil {
		return fmt.Errorf("failed to create deal: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	deal.ID = id
	return nil
}

// Exists reports whether a deal is already open for the
// contact/pipeline/stage triple. Only the reply path consults this.
func (r *DealRepository) Exists(
	ctx context.Context,
	tenantID int64,
	contactPhone string,
	pipelineID, stageID int64,
) (bool, error) {
	query := `
		SELECT COUNT(*) FROM deals
		WHERE tenant_id = ? AND contact_phone = ? AND pipeline_id = ? AND stage_id = ?
	`

	var count int64
	if err := r.db.GetContext(ctx, &count, query, tenantID, contactPhone, pipelineID, stageID); err != nil {
		return false, fmt.Errorf("failed to check existing deals: %w", err)
	}

	return count > 0, nil
}
