package domain

import "time"

const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)

// ChatMessage is the chat-history record written for every successful
// send. Rows with a media hash and provider media id double as the
// content-addressed upload cache: lifetime equals history retention.
type ChatMessage struct {
	ID                string    `db:"id" json:"id"`
	TenantID          int64     `db:"tenant_id" json:"tenantId"`
	CampaignID        int64     `db:"campaign_id" json:"campaignId"`
	RecipientPhone    string    `db:"recipient_phone" json:"recipientPhone"`
	Body              string    `db:"body" json:"body"`
	ProviderMessageID string    `db:"provider_message_id" json:"providerMessageId"`
	MediaID           *string   `db:"media_id" json:"mediaId,omitempty"`
	MediaHash         *string   `db:"media_hash" json:"-"`
	Direction         string    `db:"direction" json:"direction"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
}
