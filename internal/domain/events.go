package domain

// ProgressEvent is emitted on the tenant's realtime channel after every
// provider call, success or failure.
type ProgressEvent struct {
	CampaignID int64  `json:"campaign_id"`
	Status     string `json:"status"`
	Phone      string `json:"phone"`
}

// CompletedEvent is emitted once when a campaign reaches its terminal
// state.
type CompletedEvent struct {
	CampaignID int64 `json:"campaign_id"`
}
