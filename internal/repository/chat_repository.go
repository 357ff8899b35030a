package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bkarakus/wa-dispatch-service/internal/domain"
)

// ChatRepository handles the chat-history table, which also backs the
// content-addressed media cache.
type ChatRepository struct {
	db *sqlx.DB
}

func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) Insert(ctx context.Context, msg *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages
			(id, tenant_id, campaign_id, recipient_phone, body,
			 provider_message_id, media_id, media_hash, direction)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		msg.ID, msg.TenantID, msg.CampaignID, msg.RecipientPhone, msg.Body,
		msg.ProviderMessageID, msg.MediaID, msg.MediaHash, msg.Direction)
	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}

	return nil
}

// FindMediaID looks up the provider media id of a prior successful send
// with the same tenant and content hash. Returns "" on a miss. The
// (tenant_id, media_hash) index keeps this O(log n).
func (r *ChatRepository) FindMediaID(ctx context.Context, tenantID int64, hash string) (string, error) {
	query := `
		SELECT media_id FROM chat_messages
		WHERE tenant_id = ? AND media_hash = ? AND media_id IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1
	`

	var mediaID string
	if err := r.db.GetContext(ctx, &mediaID, query, tenantID, hash); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to look up media id: %w", err)
	}

	return mediaID, nil
}

func (r *ChatRepository) GetByPhone(
	ctx context.Context,
	tenantID int64,
	phone string,
	page, pageSize int,
) ([]domain.ChatMessage, int64, error) {
	offset := (page - 1) * pageSize

	var totalCount int64
	countQuery := "SELECT COUNT(*) FROM chat_messages WHERE tenant_id = ? AND recipient_phone = ?"
	if err := r.db.GetContext(ctx, &totalCount, countQuery, tenantID, phone); err != nil {
		return nil, 0, fmt.Errorf("failed to count chat messages: %w", err)
	}

	query := `
		SELECT * FROM chat_messages
		WHERE tenant_id = ? AND recipient_phone = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	var messages []domain.ChatMessage
	if err := r.db.SelectContext(ctx, &messages, query, tenantID, phone, pageSize, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to get chat messages: %w", err)
	}

	return messages, totalCount, nil
}
