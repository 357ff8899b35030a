package domain

import "time"

// Deal is a CRM pipeline deal created by the trigger rules. The on_sent
// path inserts one per successful send (duplicates intended); the
// on_reply path deduplicates on (contact, pipeline, stage).
type Deal struct {
	ID           int64     `db:"id" json:"id"`
	TenantID     int64     `db:"tenant_id" json:"tenantId"`
	ContactPhone string    `db:"contact_phone" json:"contactPhone"`
	PipelineID   int64     `db:"pipeline_id" json:"pipelineId"`
	StageID      int64     `db:"stage_id" json:"stageId"`
	Title        string    `db:"title" json:"title"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

const DealOpen = "open"
