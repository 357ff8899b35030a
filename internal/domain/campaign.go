package domain

import "time"

type CampaignStatus string

const (
	CampaignScheduled  CampaignStatus = "scheduled"
	CampaignProcessing CampaignStatus = "processing"
	CampaignPaused     CampaignStatus = "paused"
	CampaignCompleted  CampaignStatus = "completed"
)

type CRMTriggerRule string

const (
	TriggerNone    CRMTriggerRule = "none"
	TriggerOnSent  CRMTriggerRule = "on_sent"
	TriggerOnReply CRMTriggerRule = "on_reply"
)

type MediaType string

const (
	MediaNone  MediaType = ""
	MediaImage MediaType = "image"
	MediaAudio MediaType = "audio"
)

type Campaign struct {
	ID            int64          `db:"id" json:"id"`
	TenantID      int64          `db:"tenant_id" json:"tenantId"`
	ChannelID     string         `db:"channel_id" json:"channelId"`
	TemplateID    int64          `db:"template_id" json:"templateId"`
	Status        CampaignStatus `db:"status" json:"status"`
	ScheduledAt   time.Time      `db:"scheduled_at" json:"scheduledAt"`
	Recurrence    string         `db:"recurrence" json:"recurrence,omitempty"`
	CRMRule       CRMTriggerRule `db:"crm_trigger_rule" json:"crmTriggerRule"`
	CRMPipelineID *int64         `db:"crm_pipeline_id" json:"crmPipelineId,omitempty"`
	CRMStageID    *int64         `db:"crm_stage_id" json:"crmStageId,omitempty"`
	MediaPath     string         `db:"media_path" json:"mediaPath,omitempty"`
	MediaType     MediaType      `db:"media_type" json:"mediaType,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updatedAt"`
}

// HasMedia reports whether the campaign sends a binary attachment
// instead of a plain template message.
func (c *Campaign) HasMedia() bool {
	return c.MediaType != MediaNone && c.MediaPath != ""
}
