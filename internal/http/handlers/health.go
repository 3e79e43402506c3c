package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/faqbridge/faqbridge-backend/internal/observability"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
)

// Pinger is the liveness surface the health endpoint polls.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	log     *logger.Logger
	db      Pinger
	kv      Pinger
	vectors Pinger
}

func NewHealthHandler(log *logger.Logger, db, kv, vectors Pinger) *HealthHandler {
	return &HealthHandler{
		log:     log.With("handler", "Health"),
		db:      db,
		kv:      kv,
		vectors: vectors,
	}
}

// HealthCheck reports overall liveness. The response keeps the
// {status, database, langfuse} shape consumed by the bot frontend;
// langfuse mirrors whether the tracing exporter is active.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	database := "connected"
	if err := h.ping(ctx, h.db); err != nil {
		h.log.Warn("database ping failed", "error", err)
		status = "degraded"
		database = "disconnected"
	}
	if err := h.ping(ctx, h.kv); err != nil {
		h.log.Warn("kv ping failed", "error", err)
		status = "degraded"
	}
	if err := h.ping(ctx, h.vectors); err != nil {
		h.log.Warn("vector store ping failed", "error", err)
		status = "degraded"
	}

	langfuse := "disabled"
	if observability.TracingActive() {
		langfuse = "enabled"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"database": database,
		"langfuse": langfuse,
	})
}

func (h *HealthHandler) ping(ctx context.Context, p Pinger) error {
	if p == nil {
		return nil
	}
	return p.Ping(ctx)
}
