package events

import (
	"context"

	"github.com/bkarakus/wa-dispatch-service/internal/domain"
	"github.com/bkarakus/wa-dispatch-service/pkg/logger"
)

// Sink receives realtime dispatch events scoped to a tenant channel.
// It is injected at construction; emit failures must never affect the
// send path, so callers treat errors as log-only.
type Sink interface {
	CampaignProgress(ctx context.Context, tenantID int64, ev domain.ProgressEvent) error
	CampaignCompleted(ctx context.Context, tenantID int64, ev domain.CompletedEvent) error
}

// LogSink is the fallback when no broker is configured: events still
// surface in the service log instead of being dropped.
type LogSink struct{}

func (LogSink) CampaignProgress(_ context.Context, tenantID int64, ev domain.ProgressEvent) error {
	logger.Infof("event campaign_progress tenant=%d campaign=%d phone=%s status=%s",
		tenantID, ev.CampaignID, ev.Phone, ev.Status)
	return nil
}

func (LogSink) CampaignCompleted(_ context.Context, tenantID int64, ev domain.CompletedEvent) error {
	logger.Infof("event campaign_completed tenant=%d campaign=%d", tenantID, ev.CampaignID)
	return nil
}
