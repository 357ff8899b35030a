package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bkarakus/wa-dispatch-service/internal/domain"
)

// RecipientRepository handles database operations for recipients.
type RecipientRepository struct {
	db *sqlx.DB
}

func NewRecipientRepository(db *sqlx.DB) *RecipientRepository {
	return &RecipientRepository{db: db}
}

// SelectBatch picks the fair-share batch for one dispatch cycle: within
// each tenant, pending recipients of processing campaigns ranked by id
// ascending and cut at tenantLimit, then capped by globalLimit across
// tenants. Selection runs in a transaction; chosen rows are locked with
// SKIP LOCKED and stamped claimed_at before commit, so a second
// dispatcher cannot double-claim them. Rows whose claim is older than
// claimStaleness are considered abandoned and selectable again.
//
// The global cap applies after per-tenant ranking: with more busy
// tenants than globalLimit/tenantLimit, late tenants get nothing this
// cycle. Fairness is per-cycle best effort.
func (r *RecipientRepository) SelectBatch(
	ctx context.Context,
	tenantLimit, globalLimit int,
	claimStaleness time.Duration,
) ([]domain.Recipient, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin selection transaction: %w", err)
	}
	defer tx.Rollback() // no-op once committed

	staleBefore := time.Now().Add(-claimStaleness)

	candidateQuery := `
		SELECT id FROM (
			SELECT r.id,
			       ROW_NUMBER() OVER (PARTITION BY r.tenant_id ORDER BY r.id) AS tenant_rank
			FROM recipients r
			JOIN campaigns c ON c.id = r.campaign_id
			WHERE r.status = 'pending'
			  AND c.status = 'processing'
			  AND (r.claimed_at IS NULL OR r.claimed_at < ?)
		) ranked
		WHERE tenant_rank <= ?
		ORDER BY id
		LIMIT ?
	`

	var ids []int64
	if err := tx.SelectContext(ctx, &ids, candidateQuery, staleBefore, tenantLimit, globalLimit); err != nil {
		return nil, fmt.Errorf("failed to select batch candidates: %w", err)
	}

	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	lockQuery, args, err := sqlx.In(`
		SELECT * FROM recipients
		WHERE id IN (?) AND status = 'pending'
		ORDER BY tenant_id, id
		FOR UPDATE SKIP LOCKED`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build lock query: %w", err)
	}

	var recipients []domain.Recipient
	if err := tx.SelectContext(ctx, &recipients, lockQuery, args...); err != nil {
		return nil, fmt.Errorf("failed to lock batch: %w", err)
	}

	if len(recipients) > 0 {
		lockedIDs := make([]int64, len(recipients))
		for i, rec := range recipients {
			lockedIDs[i] = rec.ID
		}

		claimQuery, args, err := sqlx.In(
			`UPDATE recipients SET claimed_at = CURRENT_TIMESTAMP WHERE id IN (?)`, lockedIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to build claim query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, claimQuery, args...); err != nil {
			return nil, fmt.Errorf("failed to claim batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit selection: %w", err)
	}

	return recipients, nil
}

// MarkAsSent records a successful delivery. The status guard keeps the
// pending -> sent transition monotonic.
func (r *RecipientRepository) MarkAsSent(ctx context.Context, id int64, messageID string) error {
	query := `
		UPDATE recipients
		SET status = 'sent', message_id = ?, error_log = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'pending'
	`

	result, err := r.db.ExecContext(ctx, query, messageID, id)
	if err != nil {
		return fmt.Errorf("failed to mark recipient as sent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("no pending recipient found with id %d", id)
	}

	return nil
}

func (r *RecipientRepository) MarkAsFailed(ctx context.Context, id int64, errorLog string) error {
	query := `
		UPDATE recipients
		SET status = 'failed', error_log = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'pending'
	`

	result, err := r.db.ExecContext(ctx, query, errorLog, id)
	if err != nil {
		return fmt.Errorf("failed to mark recipient as failed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("no pending recipient found with id %d", id)
	}

	return nil
}

func (r *RecipientRepository) GetByCampaign(
	ctx context.Context,
	campaignID int64,
	status *domain.RecipientStatus,
	page, pageSize int,
) ([]domain.Recipient, int64, error) {
	offset := (page - 1) * pageSize
	var totalCount int64
	var recipients []domain.Recipient

	if status != nil {
		countQuery := "SELECT COUNT(*) FROM recipients WHERE campaign_id = ? AND status = ?"
		if err := r.db.GetContext(ctx, &totalCount, countQuery, campaignID, *status); err != nil {
			return nil, 0, fmt.Errorf("failed to count recipients: %w", err)
		}

		query := `SELECT * FROM recipients WHERE campaign_id = ? AND status = ? ORDER BY id LIMIT ? OFFSET ?`
		if err := r.db.SelectContext(ctx, &recipients, query, campaignID, *status, pageSize, offset); err != nil {
			return nil, 0, fmt.Errorf("failed to get recipients: %w", err)
		}
	} else {
		countQuery := "SELECT COUNT(*) FROM recipients WHERE campaign_id = ?"
		if err := r.db.GetContext(ctx, &totalCount, countQuery, campaignID); err != nil {
			return nil, 0, fmt.Errorf("failed to count recipients: %w", err)
		}

		query := `SELECT * FROM recipients WHERE campaign_id = ? ORDER BY id LIMIT ? OFFSET ?`
		if err := r.db.SelectContext(ctx, &recipients, query, campaignID, pageSize, offset); err != nil {
			return nil, 0, fmt.Errorf("failed to get recipients: %w", err)
		}
	}

	return recipients, totalCount, nil
}

// ReplayFailedByID is the external reschedule action: a failed
// recipient returns to pending so the next cycle picks it up.
func (r *RecipientRepository) ReplayFailedByID(ctx context.Context, id int64) error {
	query := `
		UPDATE recipients
		SET status = 'pending', message_id = NULL, error_log = NULL,
		    claimed_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'failed'
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to replay recipient: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("no failed recipient found with id %d", id)
	}

	return nil
}

func (r *RecipientRepository) ReplayFailedByCampaign(ctx context.Context, campaignID int64) (int64, error) {
	query := `
		UPDATE recipients
		SET status = 'pending', message_id = NULL, error_log = NULL,
		    claimed_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE campaign_id = ? AND status = 'failed'
	`

	result, err := r.db.ExecContext(ctx, query, campaignID)
	if err != nil {
		return 0, fmt.Errorf("failed to replay failed recipients: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows, nil
}

// ResetForRecurrence returns every terminal recipient of a recurring
// campaign to pending for the next occurrence.
func (r *RecipientRepository) ResetForRecurrence(ctx context.Context, campaignID int64) (int64, error) {
	query := `
		UPDATE recipients
		SET status = 'pending', message_id = NULL, error_log = NULL,
		    claimed_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE campaign_id = ? AND status IN ('sent', 'failed')
	`

	result, err := r.db.ExecContext(ctx, query, campaignID)
	if err != nil {
		return 0, fmt.Errorf("failed to reset recipients for recurrence: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows, nil
}

// GetStats returns per-status recipient counts for a campaign.
func (r *RecipientRepository) GetStats(ctx context.Context, campaignID int64) (pending, sent, failed int64, err error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN status = 'sent' THEN 1 ELSE 0 END), 0)    AS sent,
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)  AS failed
		FROM recipients
		WHERE campaign_id = ?
	`

	var stats struct {
		Pending int64 `db:"pending"`
		Sent    int64 `db:"sent"`
		Failed  int64 `db:"failed"`
	}

	if err := r.db.GetContext(ctx, &stats, query, campaignID); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get recipient stats: %w", err)
	}

	return stats.Pending, stats.Sent, stats.Failed, nil
}
