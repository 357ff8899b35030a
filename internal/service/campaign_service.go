package service

import (
	"context"

	"github.com/bkarakus/wa-dispatch-service/internal/blueprint"
	"github.com/bkarakus/wa-dispatch-service/internal/domain"
	"github.com/bkarakus/wa-dispatch-service/pkg/logger"
)

type campaignQueryStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Campaign, error)
	GetAll(ctx context.Context, status *domain.CampaignStatus, page, pageSize int) ([]domain.Campaign, int64, error)
}

type recipientQueryStore interface {
	GetByCampaign(ctx context.Context, campaignID int64, status *domain.RecipientStatus, page, pageSize int) ([]domain.Recipient, int64, error)
	ReplayFailedByID(ctx context.Context, id int64) error
	ReplayFailedByCampaign(ctx context.Context, campaignID int64) (int64, error)
	GetStats(ctx context.Context, campaignID int64) (pending, sent, failed int64, err error)
}

type templateSyncStore interface {
	GetAll(ctx context.Context) ([]domain.Template, error)
	UpdateBlueprint(ctx context.Context, id int64, headerCount, bodyCount int, headerNames, bodyNames []string) error
}

// CampaignService backs the ops surface: listings, stats, replay, and
// the sync-time blueprint derivation.
type CampaignService struct {
	campaigns  campaignQueryStore
	recipients recipientQueryStore
	templates  templateSyncStore
}

func NewCampaignService(
	campaigns campaignQueryStore,
	recipients recipientQueryStore,
	templates templateSyncStore,
) *CampaignService {
	return &CampaignService{
		campaigns:  campaigns,
		recipients: recipients,
		templates:  templates,
	}
}

func (s *CampaignService) GetCampaign(ctx context.Context, id int64) (*domain.Campaign, error) {
	return s.campaigns.GetByID(ctx, id)
}

func (s *CampaignService) GetAllCampaigns(
	ctx context.Context,
	status *domain.CampaignStatus,
	page, pageSize int,
) ([]domain.Campaign, int64, error) {
	return s.campaigns.GetAll(ctx, status, page, pageSize)
}

func (s *CampaignService) GetRecipients(
	ctx context.Context,
	campaignID int64,
	status *domain.RecipientStatus,
	page, pageSize int,
) ([]domain.Recipient, int64, error) {
	return s.recipients.GetByCampaign(ctx, campaignID, status, page, pageSize)
}

func (s *CampaignService) GetCampaignStats(ctx context.Context, campaignID int64) (pending, sent, failed int64, err error) {
	return s.recipients.GetStats(ctx, campaignID)
}

// ReplayFailedRecipient resets a single failed recipient to pending.
func (s *CampaignService) ReplayFailedRecipient(ctx context.Context, id int64) error {
	return s.recipients.ReplayFailedByID(ctx, id)
}

// ReplayFailedRecipients resets every failed recipient of the campaign.
func (s *CampaignService) ReplayFailedRecipients(ctx context.Context, campaignID int64) (int64, error) {
	return s.recipients.ReplayFailedByCampaign(ctx, campaignID)
}

// SyncTemplateBlueprints re-derives variable counts and names for every
// stored template. Runs at startup so templates edited out of band get
// fresh blueprints before the first cycle.
func (s *CampaignService) SyncTemplateBlueprints(ctx context.Context) error {
	templates, err := s.templates.GetAll(ctx)
	if err != nil {
		return err
	}

	for _, tpl := range templates {
		header := blueprint.Resolve(tpl.HeaderText)
		body := blueprint.Resolve(tpl.BodyText)

		// Positional templates keep NULL name columns.
		headerNames := header.Names
		if header.Positional {
			headerNames = nil
		}
		bodyNames := body.Names
		if body.Positional {
			bodyNames = nil
		}

		err := s.templates.UpdateBlueprint(ctx, tpl.ID,
			header.VarsCount, body.VarsCount, headerNames, bodyNames)
		if err != nil {
			return err
		}
	}

	logger.Infof("Synced blueprints for %d templates", len(templates))
	return nil
}
