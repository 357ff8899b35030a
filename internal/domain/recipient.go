package domain

import (
	"encoding/json"
	"time"
)

type RecipientStatus string

const (
	RecipientPending RecipientStatus = "pending"
	RecipientSent    RecipientStatus = "sent"
	RecipientFailed  RecipientStatus = "failed"
)

// Recipient is one phone number inside a campaign. tenant_id is
// denormalized from the campaign so the batch selector can rank and
// group without a join on the hot path.
type Recipient struct {
	ID         int64           `db:"id" json:"id"`
	CampaignID int64           `db:"campaign_id" json:"campaignId"`
	TenantID   int64           `db:"tenant_id" json:"tenantId"`
	Phone      string          `db:"phone" json:"phone"`
	RawVars    json.RawMessage `db:"variables" json:"-"`
	Status     RecipientStatus `db:"status" json:"status"`
	MessageID  *string         `db:"message_id" json:"messageId,omitempty"`
	ErrorLog   *string         `db:"error_log" json:"errorLog,omitempty"`
	ClaimedAt  *time.Time      `db:"claimed_at" json:"-"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updatedAt"`
}

// Variables decodes the stored JSON array of raw values. A missing or
// empty column yields an empty slice, never an error.
func (r *Recipient) Variables() []string {
	if len(r.RawVars) == 0 {
		return nil
	}
	var vars []string
	if err := json.Unmarshal(r.RawVars, &vars); err != nil {
		return nil
	}
	return vars
}

// SendResult is the outcome of one provider call, routed to the
// delivery result handler regardless of success.
type SendResult struct {
	RecipientID int64
	CampaignID  int64
	TenantID    int64
	Phone       string
	MessageID   string
	Success     bool
	Error       error
	SentAt      time.Time
}
