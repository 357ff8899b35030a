package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bkarakus/wa-dispatch-service/internal/domain"
)

// CampaignRepository handles database operations for campaigns.
type CampaignRepository struct {
	db *sqlx.DB
}

func NewCampaignRepository(db *sqlx.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// PromoteDue moves every scheduled campaign whose time has come into
// processing with one conditional bulk update. Repeating the call
// before the next due campaign is a no-op.
func (r *CampaignRepository) PromoteDue(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE campaigns
		SET status = 'processing', updated_at = CURRENT_TIMESTAMP
		WHERE status = 'scheduled' AND scheduled_at <= ?
	`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to promote due campaigns: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows, nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*domain.Campaign, error) {
	query := `SELECT * FROM campaigns WHERE id = ?`

	var campaign domain.Campaign
	if err := r.db.GetContext(ctx, &campaign, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return &campaign, nil
}

// FindCompletable returns processing campaigns that have no pending
// recipients left.
func (r *CampaignRepository) FindCompletable(ctx context.Context) ([]domain.Campaign, error) {
	query := `
		SELECT c.* FROM campaigns c
		WHERE c.status = 'processing'
		  AND NOT EXISTS (
			SELECT 1 FROM recipients r
			WHERE r.campaign_id = c.id AND r.status = 'pending'
		  )
	`

	var campaigns []domain.Campaign
	if err := r.db.SelectContext(ctx, &campaigns, query); err != nil {
		return nil, fmt.Errorf("failed to find completable campaigns: %w", err)
	}

	return campaigns, nil
}

// Complete transitions a processing campaign to completed. Returns
// false when the campaign was already out of processing, so the caller
// emits the completion event exactly once.
func (r *CampaignRepository) Complete(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE campaigns
		SET status = 'completed', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'processing'
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to complete campaign: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

// Reschedule puts a recurring campaign back into the scheduled state at
// its next occurrence.
func (r *CampaignRepository) Reschedule(ctx context.Context, id int64, nextAt time.Time) (bool, error) {
	query := `
		UPDATE campaigns
		SET status = 'scheduled', scheduled_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'processing'
	`

	result, err := r.db.ExecContext(ctx, query, nextAt, id)
	if err != nil {
		return false, fmt.Errorf("failed to reschedule campaign: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

func (r *CampaignRepository) GetAll(
	ctx context.Context,
	status *domain.CampaignStatus,
	page, pageSize int,
) ([]domain.Campaign, int64, error) {
	offset := (page - 1) * pageSize
	var totalCount int64
	var campaigns []domain.Campaign

	if status != nil {
		countQuery := "SELECT COUNT(*) FROM campaigns WHERE status = ?"
		if err := r.db.GetContext(ctx, &totalCount, countQuery, *status); err != nil {
			return nil, 0, fmt.Errorf("failed to count campaigns: %w", err)
		}

		query := `SELECT * FROM campaigns WHERE status = ? ORDER BY id DESC LIMIT ? OFFSET ?`
		if err := r.db.SelectContext(ctx, &campaigns, query, *status, pageSize, offset); err != nil {
			return nil, 0, fmt.Errorf("failed to get campaigns: %w", err)
		}
	} else {
		countQuery := "SELECT COUNT(*) FROM campaigns"
		if err := r.db.GetContext(ctx, &totalCount, countQuery); err != nil {
			return nil, 0, fmt.Errorf("failed to count campaigns: %w", err)
		}

		query := `SELECT * FROM campaigns ORDER BY id DESC LIMIT ? OFFSET ?`
		if err := r.db.SelectContext(ctx, &campaigns, query, pageSize, offset); err != nil {
			return nil, 0, fmt.Errorf("failed to get campaigns: %w", err)
		}
	}

	return campaigns, totalCount, nil
}

// FindRecentOnReply returns on_reply campaigns that successfully sent
// to the contact within the recency window, newest first.
func (r *CampaignRepository) FindRecentOnReply(
	ctx context.Context,
	tenantID int64,
	phone string,
	since time.Time,
) ([]domain.Campaign, error) {
	query := `
		SELECT DISTINCT c.* FROM campaigns c
		JOIN chat_messages m ON m.campaign_id = c.id
		WHERE c.tenant_id = ?
		  AND c.crm_trigger_rule = 'on_reply'
		  AND m.recipient_phone = ?
		  AND m.direction = 'outbound'
		  AND m.created_at >= ?
		ORDER BY c.id DESC
	`

	var campaigns []domain.Campaign
	if err := r.db.SelectContext(ctx, &campaigns, query, tenantID, phone, since); err != nil {
		return nil, fmt.Errorf("failed to find recent on_reply campaigns: %w", err)
	}

	return campaigns, nil
}
