package handlers

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/bkarakus/wa-dispatch-service/internal/domain"
	"github.com/bkarakus/wa-dispatch-service/internal/service"
	"github.com/bkarakus/wa-dispatch-service/pkg/response"
)

// CampaignHandler exposes read-only campaign/recipient listings and the
// explicit replay action. Campaign CRUD lives in the main application,
// not here.
type CampaignHandler struct {
	service *service.CampaignService
}

func NewCampaignHandler(service *service.CampaignService) *CampaignHandler {
	return &CampaignHandler{service: service}
}

func (h *CampaignHandler) GetAllCampaigns(c echo.Context) error {
	page, pageSize, err := parsePaginationParams(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	var status *domain.CampaignStatus
	if statusStr := c.QueryParam("status"); statusStr != "" {
		parsed := domain.CampaignStatus(statusStr)
		status = &parsed
	}

	campaigns, totalCount, err := h.service.GetAllCampaigns(c.Request().Context(), status, page, pageSize)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Paginated(c, campaigns, page, pageSize, totalCount)
}

func (h *CampaignHandler) GetCampaignStats(c echo.Context) error {
	campaignID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, err)
	}

	pending, sent, failed, err := h.service.GetCampaignStats(c.Request().Context(), campaignID)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, map[string]int64{
		"pending": pending,
		"sent":    sent,
		"failed":  failed,
		"total":   pending + sent + failed,
	})
}

// GetRecipients lists a campaign's recipients with optional status
// filter; failed rows carry their stored error text.
func (h *CampaignHandler) GetRecipients(c echo.Context) error {
	campaignID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, err)
	}

	page, pageSize, err := parsePaginationParams(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	var status *domain.RecipientStatus
	if statusStr := c.QueryParam("status"); statusStr != "" {
		parsed := domain.RecipientStatus(statusStr)
		status = &parsed
	}

	recipients, totalCount, err := h.service.GetRecipients(c.Request().Context(), campaignID, status, page, pageSize)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Paginated(c, recipients, page, pageSize, totalCount)
}

// ReplayCampaign resets every failed recipient of a campaign back to
// pending - the external reschedule action.
func (h *CampaignHandler) ReplayCampaign(c echo.Context) error {
	campaignID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, err)
	}

	count, err := h.service.ReplayFailedRecipients(c.Request().Context(), campaignID)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.OkWithMessage(c,
		fmt.Sprintf("%d failed recipients reset to pending", count),
		map[string]int64{"replayed": count})
}

func (h *CampaignHandler) ReplayRecipient(c echo.Context) error {
	recipientID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, err)
	}

	if err := h.service.ReplayFailedRecipient(c.Request().Context(), recipientID); err != nil {
		return response.NotFound(c, err.Error())
	}

	return response.OkWithMessage(c, "Recipient reset to pending", nil)
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return id, nil
}

func parsePaginationParams(c echo.Context) (page, pageSize int, err error) {
	page = 1
	pageSize = 20

	if pageStr := c.QueryParam("page"); pageStr != "" {
		page, err = strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return 0, 0, fmt.Errorf("invalid page parameter")
		}
	}

	if sizeStr := c.QueryParam("pageSize"); sizeStr != "" {
		pageSize, err = strconv.Atoi(sizeStr)
		if err != nil || pageSize < 1 || pageSize > 100 {
			return 0, 0, fmt.Errorf("invalid pageSize parameter (1-100)")
		}
	}

	return page, pageSize, nil
}
