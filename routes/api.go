package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/bkarakus/wa-dispatch-service/environments"
	"github.com/bkarakus/wa-dispatch-service/handlers"
	"github.com/bkarakus/wa-dispatch-service/internal/middlewares"
)

// RegisterRoutes wires the ops surface: dispatcher control and listings
// behind the ops key, the reply hook behind the CRM collaborator's key.
func RegisterRoutes(
	e *echo.Echo,
	healthHandler *handlers.HealthHandler,
	campaignHandler *handlers.CampaignHandler,
	dispatcherHandler *handlers.DispatcherHandler,
	crmHandler *handlers.CRMHandler,
	cfg *environments.Config,
) {
	e.GET("/health", healthHandler.Health)

	v1 := e.Group("/api/v1")

	ops := v1.Group("", middlewares.APIKeyAuth(cfg.Auth.OpsAPIKey))

	ops.GET("/campaigns", campaignHandler.GetAllCampaigns)
	ops.GET("/campaigns/:id/stats", campaignHandler.GetCampaignStats)
	ops.GET("/campaigns/:id/recipients", campaignHandler.GetRecipients)
	ops.POST("/campaigns/:id/replay", campaignHandler.ReplayCampaign)
	ops.POST("/recipients/:id/replay", campaignHandler.ReplayRecipient)

	ops.POST("/dispatcher/start", dispatcherHandler.Start)
	ops.POST("/dispatcher/stop", dispatcherHandler.Stop)
	ops.GET("/dispatcher/status", dispatcherHandler.Status)

	crm := v1.Group("/crm", middlewares.APIKeyAuth(cfg.Auth.CRMAPIKey))
	crm.POST("/reply", crmHandler.InboundReply)
}
