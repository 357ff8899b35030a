package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bkarakus/wa-dispatch-service/environments"
	"github.com/bkarakus/wa-dispatch-service/internal/blueprint"
	"github.com/bkarakus/wa-dispatch-service/internal/domain"
	"github.com/bkarakus/wa-dispatch-service/pkg/events"
	"github.com/bkarakus/wa-dispatch-service/pkg/logger"
	"github.com/bkarakus/wa-dispatch-service/pkg/whatsapp"
)

// Small consumer-side interfaces so the dispatch flow is testable with
// fakes, mirroring how the repositories and clients are actually used.

type campaignStore interface {
	PromoteDue(ctx context.Context, now time.Time) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Campaign, error)
	FindCompletable(ctx context.Context) ([]domain.Campaign, error)
	Complete(ctx context.Context, id int64) (bool, error)
	Reschedule(ctx context.Context, id int64, nextAt time.Time) (bool, error)
}

type recipientStore interface {
	SelectBatch(ctx context.Context, tenantLimit, globalLimit int, claimStaleness time.Duration) ([]domain.Recipient, error)
	MarkAsSent(ctx context.Context, id int64, messageID string) error
	MarkAsFailed(ctx context.Context, id int64, errorLog string) error
	ResetForRecurrence(ctx context.Context, campaignID int64) (int64, error)
}

type templateStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Template, error)
}

type chatStore interface {
	Insert(ctx context.Context, msg *domain.ChatMessage) error
	FindMediaID(ctx context.Context, tenantID int64, hash string) (string, error)
}

type providerClient interface {
	SendTemplate(ctx context.Context, msg whatsapp.TemplateMessage) (string, error)
	SendMedia(ctx context.Context, to string, mediaType, mediaID string) (string, error)
	UploadMedia(ctx context.Context, fileName string, fileBytes []byte, mimeType string) (string, error)
}

type MediaCache interface {
	GetMediaID(ctx context.Context, tenantID int64, hash string) (string, error)
	CacheMediaID(ctx context.Context, tenantID int64, hash, mediaID string) error
}

type dealCreator interface {
	CreateDealForSend(ctx context.Context, campaign *domain.Campaign, phone string) error
}

// DispatchService runs one dispatch cycle end to end: promote due
// campaigns, select the fair-share batch, send per-tenant pipelines
// concurrently, and run the completion pass.
type DispatchService struct {
	campaigns  campaignStore
	recipients recipientStore
	templates  templateStore
	chats      chatStore
	provider   providerClient
	cache      MediaCache
	deals      dealCreator
	sink       events.Sink
	config     environments.DispatchConfig
	nextRun    recurrenceSource
}

// recurrenceSource computes the next occurrence of a recurrence
// expression; swapped for a fixed clock in tests.
type recurrenceSource interface {
	Next(expr string, after time.Time) (time.Time, error)
}

func NewDispatchService(
	campaigns campaignStore,
	recipients recipientStore,
	templates templateStore,
	chats chatStore,
	provider providerClient,
	cache MediaCache,
	deals dealCreator,
	sink events.Sink,
	config environments.DispatchConfig,
) *DispatchService {
	return &DispatchService{
		campaigns:  campaigns,
		recipients: recipients,
		templates:  templates,
		chats:      chats,
		provider:   provider,
		cache:      cache,
		deals:      deals,
		sink:       sink,
		config:     config,
		nextRun:    cronSchedule{},
	}
}

// RunCycle executes one dispatch cycle and returns the per-recipient
// outcomes. Promotion or selection failures abort only this cycle; the
// caller's loop continues regardless.
func (s *DispatchService) RunCycle(ctx context.Context) ([]domain.SendResult, error) {
	if promoted, err := s.campaigns.PromoteDue(ctx, time.Now()); err != nil {
		logger.Errorf("Failed to promote due campaigns: %v", err)
	} else if promoted > 0 {
		logger.Infof("Promoted %d campaigns to processing", promoted)
	}

	batch, err := s.recipients.SelectBatch(ctx,
		s.config.TenantBatchSize, s.config.GlobalBatchLimit, s.config.ClaimStaleness)
	if err != nil {
		return nil, fmt.Errorf("failed to select batch: %w", err)
	}

	var results []domain.SendResult
	if len(batch) > 0 {
		results = s.runPipelines(ctx, batch)
	}

	s.completionPass(ctx)

	return results, nil
}

// runPipelines groups the batch by tenant and sends each group in its
// own goroutine, sequential within the group with a fixed delay between
// sends. All groups are joined before the cycle ends.
func (s *DispatchService) runPipelines(ctx context.Context, batch []domain.Recipient) []domain.SendResult {
	groups := make(map[int64][]domain.Recipient)
	for _, rec := range batch {
		groups[rec.TenantID] = append(groups[rec.TenantID], rec)
	}

	logger.Infof("Dispatching %d recipients across %d tenants", len(batch), len(groups))

	bundles := s.loadBundles(ctx, batch)

	var mu sync.Mutex
	results := make([]domain.SendResult, 0, len(batch))

	var wg sync.WaitGroup
	for tenantID, group := range groups {
		wg.Add(1)
		go func(tenantID int64, group []domain.Recipient) {
			defer wg.Done()

			limiter := rate.NewLimiter(rate.Every(s.config.MessageDelay), 1)
			for i := range group {
				if err := limiter.Wait(ctx); err != nil {
					logger.Warnf("Tenant %d pipeline interrupted: %v", tenantID, err)
					return
				}

				result := s.deliver(ctx, bundles[group[i].CampaignID], &group[i])

				mu.Lock()
				results = append(results, result)
				mu.Unlock()
			}
		}(tenantID, group)
	}
	wg.Wait()

	return results
}

// campaignBundle carries the per-campaign context every recipient send
// needs; loaded once per cycle before the pipelines start.
type campaignBundle struct {
	campaign *domain.Campaign
	template *domain.Template
	loadErr  error
}

func (s *DispatchService) loadBundles(ctx context.Context, batch []domain.Recipient) map[int64]*campaignBundle {
	bundles := make(map[int64]*campaignBundle)
	for _, rec := range batch {
		if _, ok := bundles[rec.CampaignID]; ok {
			continue
		}
		bundles[rec.CampaignID] = s.loadBundle(ctx, rec.CampaignID)
	}
	return bundles
}

func (s *DispatchService) loadBundle(ctx context.Context, campaignID int64) *campaignBundle {
	campaign, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return &campaignBundle{loadErr: err}
	}
	if campaign == nil {
		return &campaignBundle{loadErr: fmt.Errorf("campaign %d not found", campaignID)}
	}

	tpl, err := s.templates.GetByID(ctx, campaign.TemplateID)
	if err != nil {
		return &campaignBundle{campaign: campaign, loadErr: err}
	}
	if tpl == nil && !campaign.HasMedia() {
		return &campaignBundle{campaign: campaign, loadErr: fmt.Errorf("template %d not found", campaign.TemplateID)}
	}

	return &campaignBundle{campaign: campaign, template: tpl}
}

// deliver sends one recipient and unconditionally routes the outcome
// through the result handler. It never returns an error: a failure here
// must not abort the rest of the tenant's group.
func (s *DispatchService) deliver(ctx context.Context, bundle *campaignBundle, rec *domain.Recipient) domain.SendResult {
	result := domain.SendResult{
		RecipientID: rec.ID,
		CampaignID:  rec.CampaignID,
		TenantID:    rec.TenantID,
		Phone:       rec.Phone,
		SentAt:      time.Now(),
	}

	if bundle == nil || bundle.loadErr != nil {
		err := fmt.Errorf("campaign context unavailable")
		if bundle != nil {
			err = bundle.loadErr
		}
		result.Error = err
		s.handleFailure(ctx, rec, err)
		return result
	}

	var messageID string
	var displayBody string
	var mediaID, mediaHash *string
	var err error

	if bundle.campaign.HasMedia() {
		messageID, mediaID, mediaHash, err = s.sendMedia(ctx, bundle.campaign, rec)
		displayBody = fmt.Sprintf("[%s]", bundle.campaign.MediaType)
	} else {
		messageID, err = s.sendTemplate(ctx, bundle.campaign, bundle.template, rec)
		displayBody = renderBody(bundle.template, rec.Variables())
	}

	if err != nil {
		result.Error = err
		s.handleFailure(ctx, rec, err)
		return result
	}

	result.Success = true
	result.MessageID = messageID
	s.handleSuccess(ctx, bundle.campaign, rec, messageID, displayBody, mediaID, mediaHash)

	return result
}

// sendTemplate builds the provider payload from the stored blueprint
// and the recipient's raw variable list. Values map positionally: the
// first header_vars_count feed the header component, the next
// body_vars_count the body, in list order even for named templates.
func (s *DispatchService) sendTemplate(
	ctx context.Context,
	campaign *domain.Campaign,
	tpl *domain.Template,
	rec *domain.Recipient,
) (string, error) {
	values := rec.Variables()

	var components []whatsapp.Component
	if params := textParams(values, 0, tpl.HeaderVarsCount); len(params) > 0 {
		components = append(components, whatsapp.Component{Type: "header", Parameters: params})
	}
	if params := textParams(values, tpl.HeaderVarsCount, tpl.BodyVarsCount); len(params) > 0 {
		components = append(components, whatsapp.Component{Type: "body", Parameters: params})
	}

	msg := whatsapp.TemplateMessage{
		To: rec.Phone,
		Template: whatsapp.Template{
			Name:       tpl.Name,
			Language:   whatsapp.Language{Code: tpl.Language},
			Components: components,
		},
	}

	return s.provider.SendTemplate(ctx, msg)
}

func textParams(values []string, offset, count int) []whatsapp.Parameter {
	var params []whatsapp.Parameter
	for i := offset; i < offset+count && i < len(values); i++ {
		params = append(params, whatsapp.Parameter{Type: "text", Text: values[i]})
	}
	return params
}

// renderBody produces the human-readable chat-history text.
func renderBody(tpl *domain.Template, values []string) string {
	bp := blueprint.Blueprint{
		VarsCount: tpl.BodyVarsCount,
		Names:     tpl.BodyNames(),
	}
	if bp.Names == nil {
		bp = blueprint.Resolve(tpl.BodyText)
	}

	bodyValues := values
	if tpl.HeaderVarsCount > 0 && len(values) > tpl.HeaderVarsCount {
		bodyValues = values[tpl.HeaderVarsCount:]
	}

	return blueprint.RenderDisplay(tpl.BodyText, bp, bodyValues)
}

// sendMedia resolves the campaign's attachment through the dedup cache
// (hash -> prior media id, else upload) and sends the media message.
func (s *DispatchService) sendMedia(
	ctx context.Context,
	campaign *domain.Campaign,
	rec *domain.Recipient,
) (messageID string, mediaID, mediaHash *string, err error) {
	id, hash, err := s.resolveMediaID(ctx, campaign)
	if err != nil {
		return "", nil, nil, err
	}

	messageID, err = s.provider.SendMedia(ctx, rec.Phone, string(campaign.MediaType), id)
	if err != nil {
		return "", nil, nil, err
	}

	return messageID, &id, &hash, nil
}

func (s *DispatchService) resolveMediaID(ctx context.Context, campaign *domain.Campaign) (string, string, error) {
	fileBytes, err := os.ReadFile(campaign.MediaPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read media file: %w", err)
	}

	sum := sha256.Sum256(fileBytes)
	hash := hex.EncodeToString(sum[:])

	if s.cache != nil {
		if id, err := s.cache.GetMediaID(ctx, campaign.TenantID, hash); err != nil {
			logger.Warnf("Media cache lookup failed for tenant %d: %v", campaign.TenantID, err)
		} else if id != "" {
			return id, hash, nil
		}
	}

	// Chat history is the authoritative cache.
	id, err := s.chats.FindMediaID(ctx, campaign.TenantID, hash)
	if err != nil {
		return "", "", err
	}
	if id == "" {
		id, err = s.provider.UploadMedia(ctx, filepath.Base(campaign.MediaPath), fileBytes, mimeType(campaign.MediaType))
		if err != nil {
			return "", "", err
		}
		logger.Infof("Uploaded media for tenant %d (hash %s)", campaign.TenantID, hash[:12])
	}

	if s.cache != nil {
		if err := s.cache.CacheMediaID(ctx, campaign.TenantID, hash, id); err != nil {
			logger.Warnf("Failed to cache media id for tenant %d: %v", campaign.TenantID, err)
		}
	}

	return id, hash, nil
}

func mimeType(mediaType domain.MediaType) string {
	switch mediaType {
	case domain.MediaImage:
		return "image/jpeg"
	case domain.MediaAudio:
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

// handleSuccess persists the outcome, writes the chat-history record,
// emits the progress event, and fires the on_sent CRM trigger. Each
// side effect is independent: a failure in one is logged, not raised.
func (s *DispatchService) handleSuccess(
	ctx context.Context,
	campaign *domain.Campaign,
	rec *domain.Recipient,
	messageID, displayBody string,
	mediaID, mediaHash *string,
) {
	if err := s.recipients.MarkAsSent(ctx, rec.ID, messageID); err != nil {
		logger.Errorf("Failed to mark recipient %d as sent: %v", rec.ID, err)
	}

	chat := &domain.ChatMessage{
		ID:                uuid.NewString(),
		TenantID:          rec.TenantID,
		CampaignID:        rec.CampaignID,
		RecipientPhone:    rec.Phone,
		Body:              displayBody,
		ProviderMessageID: messageID,
		MediaID:           mediaID,
		MediaHash:         mediaHash,
		Direction:         domain.DirectionOutbound,
	}
	if err := s.chats.Insert(ctx, chat); err != nil {
		logger.Errorf("Failed to write chat history for recipient %d: %v", rec.ID, err)
	}

	ev := domain.ProgressEvent{CampaignID: rec.CampaignID, Status: string(domain.RecipientSent), Phone: rec.Phone}
	if err := s.sink.CampaignProgress(ctx, rec.TenantID, ev); err != nil {
		logger.Warnf("Failed to emit progress event for recipient %d: %v", rec.ID, err)
	}

	if campaign.CRMRule == domain.TriggerOnSent {
		if err := s.deals.CreateDealForSend(ctx, campaign, rec.Phone); err != nil {
			logger.Errorf("Failed to create deal for recipient %d: %v", rec.ID, err)
		}
	}
}

func (s *DispatchService) handleFailure(ctx context.Context, rec *domain.Recipient, sendErr error) {
	logger.Errorf("Failed to send to recipient %d: %v", rec.ID, sendErr)

	if err := s.recipients.MarkAsFailed(ctx, rec.ID, sendErr.Error()); err != nil {
		logger.Errorf("Failed to mark recipient %d as failed: %v", rec.ID, err)
	}

	ev := domain.ProgressEvent{CampaignID: rec.CampaignID, Status: string(domain.RecipientFailed), Phone: rec.Phone}
	if err := s.sink.CampaignProgress(ctx, rec.TenantID, ev); err != nil {
		logger.Warnf("Failed to emit failure event for recipient %d: %v", rec.ID, err)
	}
}

// completionPass transitions every drained processing campaign to its
// terminal state, or back to scheduled for recurring campaigns. Runs
// after all tenant groups have joined.
func (s *DispatchService) completionPass(ctx context.Context) {
	campaigns, err := s.campaigns.FindCompletable(ctx)
	if err != nil {
		logger.Errorf("Completion check failed: %v", err)
		return
	}

	for i := range campaigns {
		s.finishCampaign(ctx, &campaigns[i])
	}
}

func (s *DispatchService) finishCampaign(ctx context.Context, campaign *domain.Campaign) {
	if campaign.Recurrence != "" {
		nextAt, err := s.nextRun.Next(campaign.Recurrence, time.Now())
		if err != nil {
			logger.Errorf("Invalid recurrence %q on campaign %d: %v", campaign.Recurrence, campaign.ID, err)
		} else {
			done, err := s.campaigns.Reschedule(ctx, campaign.ID, nextAt)
			if err != nil {
				logger.Errorf("Failed to reschedule campaign %d: %v", campaign.ID, err)
				return
			}
			if done {
				if reset, err := s.recipients.ResetForRecurrence(ctx, campaign.ID); err != nil {
					logger.Errorf("Failed to reset recipients of campaign %d: %v", campaign.ID, err)
				} else {
					logger.Infof("Campaign %d rescheduled for %v (%d recipients reset)", campaign.ID, nextAt, reset)
				}
			}
			return
		}
	}

	done, err := s.campaigns.Complete(ctx, campaign.ID)
	if err != nil {
		logger.Errorf("Failed to complete campaign %d: %v", campaign.ID, err)
		return
	}
	if !done {
		return
	}

	logger.Infof("Campaign %d completed", campaign.ID)

	ev := domain.CompletedEvent{CampaignID: campaign.ID}
	if err := s.sink.CampaignCompleted(ctx, campaign.TenantID, ev); err != nil {
		logger.Warnf("Failed to emit completion event for campaign %d: %v", campaign.ID, err)
	}
}
