package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bkarakus/wa-dispatch-service/internal/domain"
	"github.com/bkarakus/wa-dispatch-service/pkg/logger"
)

type dealStore interface {
	Create(ctx context.Context, deal *domain.Deal) error
	Exists(ctx context.Context, tenantID int64, contactPhone string, pipelineID, stageID int64) (bool, error)
}

type replyCampaignStore interface {
	FindRecentOnReply(ctx context.Context, tenantID int64, phone string, since time.Time) ([]domain.Campaign, error)
}

// CRMService creates pipeline deals from the two trigger entry points.
// The send path inserts unconditionally (one deal per send, duplicates
// intended); the reply path deduplicates on the contact/pipeline/stage
// triple. This asymmetry is deliberate - do not unify without product
// confirmation.
type CRMService struct {
	deals       dealStore
	campaigns   replyCampaignStore
	replyWindow time.Duration
}

func NewCRMService(deals dealStore, campaigns replyCampaignStore, replyWindow time.Duration) *CRMService {
	return &CRMService{
		deals:       deals,
		campaigns:   campaigns,
		replyWindow: replyWindow,
	}
}

// CreateDealForSend handles the on_sent rule: every successful send
// opens a deal.
func (s *CRMService) CreateDealForSend(ctx context.Context, campaign *domain.Campaign, phone string) error {
	if campaign.CRMPipelineID == nil || campaign.CRMStageID == nil {
		return fmt.Errorf("campaign %d has on_sent rule but no pipeline/stage configured", campaign.ID)
	}

	deal := &domain.Deal{
		TenantID:     campaign.TenantID,
		ContactPhone: phone,
		PipelineID:   *campaign.CRMPipelineID,
		StageID:      *campaign.CRMStageID,
		Title:        fmt.Sprintf("Campaign %d - %s", campaign.ID, phone),
		Status:       domain.DealOpen,
	}

	if err := s.deals.Create(ctx, deal); err != nil {
		return err
	}

	logger.Debugf("Created deal %d for send (tenant %d, phone %s)", deal.ID, campaign.TenantID, phone)
	return nil
}

// HandleInboundReply is the entry point called by the webhook
// collaborator. A reply from a contact that received an on_reply
// campaign within the recency window opens a deal unless one already
// exists for the same contact/pipeline/stage.
func (s *CRMService) HandleInboundReply(ctx context.Context, tenantID int64, contactPhone, messageBody string) error {
	since := time.Now().Add(-s.replyWindow)

	campaigns, err := s.campaigns.FindRecentOnReply(ctx, tenantID, contactPhone, since)
	if err != nil {
		return fmt.Errorf("failed to match reply to campaigns: %w", err)
	}

	if len(campaigns) == 0 {
		logger.Debugf("Reply from %s (tenant %d) matched no on_reply campaign", contactPhone, tenantID)
		return nil
	}

	// Newest matching campaign wins.
	campaign := campaigns[0]
	if campaign.CRMPipelineID == nil || campaign.CRMStageID == nil {
		return fmt.Errorf("campaign %d has on_reply rule but no pipeline/stage configured", campaign.ID)
	}

	exists, err := s.deals.Exists(ctx, tenantID, contactPhone, *campaign.CRMPipelineID, *campaign.CRMStageID)
	if err != nil {
		return fmt.Errorf("failed to check existing deals: %w", err)
	}
	if exists {
		logger.Debugf("Deal already open for %s in pipeline %d, skipping", contactPhone, *campaign.CRMPipelineID)
		return nil
	}

	deal := &domain.Deal{
		TenantID:     tenantID,
		ContactPhone: contactPhone,
		PipelineID:   *campaign.CRMPipelineID,
		StageID:      *campaign.CRMStageID,
		Title:        fmt.Sprintf("Reply from %s: %.60s", contactPhone, messageBody),
		Status:       domain.DealOpen,
	}

	if err := s.deals.Create(ctx, deal); err != nil {
		return err
	}

	logger.Infof("Created deal %d from reply (tenant %d, phone %s)", deal.ID, tenantID, contactPhone)
	return nil
}
