package handlers

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/bkarakus/wa-dispatch-service/internal/scheduler"
	"github.com/bkarakus/wa-dispatch-service/pkg/response"
)

// DispatcherHandler controls the dispatch loop. Pausing individual
// campaigns is an operator status write in the main application; this
// surface only starts and stops the whole dispatcher.
type DispatcherHandler struct {
	scheduler *scheduler.Scheduler
	ctx       context.Context
}

func NewDispatcherHandler(sched *scheduler.Scheduler, ctx context.Context) *DispatcherHandler {
	return &DispatcherHandler{
		scheduler: sched,
		ctx:       ctx,
	}
}

func (h *DispatcherHandler) Start(c echo.Context) error {
	if h.scheduler.IsRunning() {
		return response.OkWithMessage(c, "Dispatcher is already running", h.scheduler.GetStatus())
	}

	if err := h.scheduler.Start(h.ctx); err != nil {
		return response.InternalServerError(c, err)
	}

	return response.OkWithMessage(c, "Dispatcher started", h.scheduler.GetStatus())
}

func (h *DispatcherHandler) Stop(c echo.Context) error {
	if !h.scheduler.IsRunning() {
		return response.OkWithMessage(c, "Dispatcher is already stopped", h.scheduler.GetStatus())
	}

	if err := h.scheduler.Stop(); err != nil {
		return response.InternalServerError(c, err)
	}

	return response.OkWithMessage(c, "Dispatcher stopped", h.scheduler.GetStatus())
}

func (h *DispatcherHandler) Status(c echo.Context) error {
	return response.Ok(c, h.scheduler.GetStatus())
}
