package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/bkarakus/wa-dispatch-service/internal/service"
	"github.com/bkarakus/wa-dispatch-service/pkg/response"
	"github.com/bkarakus/wa-dispatch-service/pkg/validator"
)

// CRMHandler receives the reply hook from the inbound-webhook service.
// This is the dispatcher's only inbound surface besides ops endpoints.
type CRMHandler struct {
	service *service.CRMService
}

func NewCRMHandler(service *service.CRMService) *CRMHandler {
	return &CRMHandler{service: service}
}

type InboundReplyRequest struct {
	TenantID     int64  `json:"tenantId" validate:"required,min=1"`
	ContactPhone string `json:"contactPhone" validate:"required,e164"`
	MessageBody  string `json:"messageBody" validate:"required,max=4096"`
}

func (h *CRMHandler) InboundReply(c echo.Context) error {
	var req InboundReplyRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	err := h.service.HandleInboundReply(c.Request().Context(), req.TenantID, req.ContactPhone, req.MessageBody)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.OkWithMessage(c, "Reply processed", nil)
}
