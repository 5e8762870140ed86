package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cyphera/grantpay/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	stage string
	store Pinger
}

// NewHealthHandler builds the liveness handler. store may be nil for backends that cannot fail,
// such as the in-memory store.
func NewHealthHandler(stage string, store Pinger) *HealthHandler {
	return &HealthHandler{stage: stage, store: store}
}

type HealthResponse struct {
	Status string `json:"status"`
	Stage  string `json:"stage,omitempty"`
	Store  string `json:"store"`
}

// Health godoc
// @Summary      Health check
// @Description  Reports liveness and whether the grant store is reachable
// @Tags         health
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Failure      503  {object}  HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Stage: h.stage, Store: "ok"}
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			logger.FromContext(ctx).Error("Store health check failed", zap.Error(err))
			resp.Status, resp.Store = "degraded", "unavailable"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}
