package service

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bkarakus/wa-dispatch-service/internal/domain"
)

//
// Test fakes – only for this file.
//

type fakeDealStore struct {
	created []domain.Deal

	// existing deals keyed by phone|pipeline|stage; Create adds to it so
	// a second identical reply sees the first deal.
	existing map[string]bool
}

func dealKey(phone string, pipelineID, stageID int64) string {
	return phone + "|" + strconv.FormatInt(pipelineID, 10) + "|" + strconv.FormatInt(stageID, 10)
}

func (f *fakeDealStore) Create(ctx context.Context, deal *domain.Deal) error {
	deal.ID = int64(len(f.created) + 1)
	f.created = append(f.created, *deal)
	if f.existing == nil {
		f.existing = make(map[string]bool)
	}
	f.existing[dealKey(deal.ContactPhone, deal.PipelineID, deal.StageID)] = true
	return nil
}

func (f *fakeDealStore) Exists(ctx context.Context, tenantID int64, contactPhone string, pipelineID, stageID int64) (bool, error) {
	return f.existing[dealKey(contactPhone, pipelineID, stageID)], nil
}

type fakeReplyCampaigns struct {
	matches []domain.Campaign
}

func (f *fakeReplyCampaigns) FindRecentOnReply(ctx context.Context, tenantID int64, phone string, since time.Time) ([]domain.Campaign, error) {
	return f.matches, nil
}

func onReplyCampaign(id, pipeline, stage int64) domain.Campaign {
	return domain.Campaign{
		ID:            id,
		TenantID:      1,
		CRMRule:       domain.TriggerOnReply,
		CRMPipelineID: &pipeline,
		CRMStageID:    &stage,
	}
}

//
// Tests.
//

func TestCreateDealForSend_OpensDealEveryCall(t *testing.T) {
	ctx := context.Background()

	deals := &fakeDealStore{}
	s := NewCRMService(deals, &fakeReplyCampaigns{}, 24*time.Hour)

	pipeline, stage := int64(7), int64(3)
	campaign := &domain.Campaign{
		ID:            100,
		TenantID:      1,
		CRMRule:       domain.TriggerOnSent,
		CRMPipelineID: &pipeline,
		CRMStageID:    &stage,
	}

	if err := s.CreateDealForSend(ctx, campaign, "+905551112233"); err != nil {
		t.Fatalf("CreateDealForSend returned error: %v", err)
	}
	if err := s.CreateDealForSend(ctx, campaign, "+905551112233"); err != nil {
		t.Fatalf("second CreateDealForSend returned error: %v", err)
	}

	// One deal per send, even for the same contact.
	if len(deals.created) != 2 {
		t.Fatalf("expected 2 deals, got %d", len(deals.created))
	}

	deal := deals.created[0]
	if deal.PipelineID != 7 || deal.StageID != 3 {
		t.Errorf("deal placed in pipeline %d stage %d, want 7/3", deal.PipelineID, deal.StageID)
	}
	if deal.Title != "Campaign 100 - +905551112233" {
		t.Errorf("unexpected deal title %q", deal.Title)
	}
	if deal.Status != domain.DealOpen {
		t.Errorf("expected open deal, got %q", deal.Status)
	}
}

func TestCreateDealForSend_MissingPipelineIsAnError(t *testing.T) {
	ctx := context.Background()

	deals := &fakeDealStore{}
	s := NewCRMService(deals, &fakeReplyCampaigns{}, 24*time.Hour)

	campaign := &domain.Campaign{ID: 100, TenantID: 1, CRMRule: domain.TriggerOnSent}

	if err := s.CreateDealForSend(ctx, campaign, "+905551112233"); err == nil {
		t.Fatalf("expected error for campaign without pipeline/stage")
	}
	if len(deals.created) != 0 {
		t.Errorf("expected no deal created, got %d", len(deals.created))
	}
}

func TestHandleInboundReply_CreatesDealOnce(t *testing.T) {
	ctx := context.Background()

	deals := &fakeDealStore{}
	campaigns := &fakeReplyCampaigns{matches: []domain.Campaign{onReplyCampaign(100, 7, 3)}}
	s := NewCRMService(deals, campaigns, 24*time.Hour)

	if err := s.HandleInboundReply(ctx, 1, "+905551112233", "yes, interested"); err != nil {
		t.Fatalf("HandleInboundReply returned error: %v", err)
	}
	if len(deals.created) != 1 {
		t.Fatalf("expected 1 deal, got %d", len(deals.created))
	}

	deal := deals.created[0]
	if deal.Title != "Reply from +905551112233: yes, interested" {
		t.Errorf("unexpected deal title %q", deal.Title)
	}

	// Same contact replies again: the open deal suppresses a second one.
	if err := s.HandleInboundReply(ctx, 1, "+905551112233", "still interested"); err != nil {
		t.Fatalf("second HandleInboundReply returned error: %v", err)
	}
	if len(deals.created) != 1 {
		t.Errorf("expected reply dedup to hold, got %d deals", len(deals.created))
	}
}

func TestHandleInboundReply_TruncatesLongBodiesInTitle(t *testing.T) {
	ctx := context.Background()

	deals := &fakeDealStore{}
	campaigns := &fakeReplyCampaigns{matches: []domain.Campaign{onReplyCampaign(100, 7, 3)}}
	s := NewCRMService(deals, campaigns, 24*time.Hour)

	body := strings.Repeat("a", 200)
	if err := s.HandleInboundReply(ctx, 1, "+905551112233", body); err != nil {
		t.Fatalf("HandleInboundReply returned error: %v", err)
	}

	want := "Reply from +905551112233: " + strings.Repeat("a", 60)
	if deals.created[0].Title != want {
		t.Errorf("expected truncated title, got %q", deals.created[0].Title)
	}
}

func TestHandleInboundReply_TruncationKeepsRunesWhole(t *testing.T) {
	ctx := context.Background()

	deals := &fakeDealStore{}
	campaigns := &fakeReplyCampaigns{matches: []domain.Campaign{onReplyCampaign(100, 7, 3)}}
	s := NewCRMService(deals, campaigns, 24*time.Hour)

	// 100 two-byte runes; the cut must land on a rune boundary.
	body := strings.Repeat("ü", 100)
	if err := s.HandleInboundReply(ctx, 1, "+905551112233", body); err != nil {
		t.Fatalf("HandleInboundReply returned error: %v", err)
	}

	title := deals.created[0].Title
	if !utf8.ValidString(title) {
		t.Fatalf("deal title is not valid UTF-8: %q", title)
	}
	want := "Reply from +905551112233: " + strings.Repeat("ü", 60)
	if title != want {
		t.Errorf("expected 60-rune truncation, got %q", title)
	}
}

func TestHandleInboundReply_NoMatchingCampaignIsNoop(t *testing.T) {
	ctx := context.Background()

	deals := &fakeDealStore{}
	s := NewCRMService(deals, &fakeReplyCampaigns{}, 24*time.Hour)

	if err := s.HandleInboundReply(ctx, 1, "+905551112233", "hello?"); err != nil {
		t.Fatalf("HandleInboundReply returned error: %v", err)
	}
	if len(deals.created) != 0 {
		t.Errorf("expected no deal without a matching campaign, got %d", len(deals.created))
	}
}

func TestHandleInboundReply_NewestCampaignWins(t *testing.T) {
	ctx := context.Background()

	deals := &fakeDealStore{}
	campaigns := &fakeReplyCampaigns{matches: []domain.Campaign{
		onReplyCampaign(200, 9, 4), // newest first, as the store orders them
		onReplyCampaign(100, 7, 3),
	}}
	s := NewCRMService(deals, campaigns, 24*time.Hour)

	if err := s.HandleInboundReply(ctx, 1, "+905551112233", "ok"); err != nil {
		t.Fatalf("HandleInboundReply returned error: %v", err)
	}
	if len(deals.created) != 1 {
		t.Fatalf("expected 1 deal, got %d", len(deals.created))
	}
	if deals.created[0].PipelineID != 9 || deals.created[0].StageID != 4 {
		t.Errorf("expected newest campaign's pipeline 9 stage 4, got %d/%d",
			deals.created[0].PipelineID, deals.created[0].StageID)
	}
}
