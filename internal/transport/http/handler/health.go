package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"gopherai-knowledge/internal/bootstrap"
	"gopherai-knowledge/internal/transport/http/response"
)

type HealthHandler struct {
	app *bootstrap.App
}

func NewHealthHandler(app *bootstrap.App) *HealthHandler {
	return &HealthHandler{app: app}
}

type healthStatus struct {
	Status    string            `json:"status"`
	UptimeSec int64             `json:"uptime_seconds"`
	Checks    map[string]string `json:"checks"`
}

// Check pings every backing dependency with a short timeout. Any failing
// dependency degrades the overall status but the endpoint itself stays 200
// unless everything essential is down.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{
		"mysql":    "ok",
		"redis":    "ok",
		"rabbitmq": "ok",
	}
	status := "ok"

	if sqlDB, err := h.app.MySQL.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["mysql"] = "down"
		status = "degraded"
	}
	if err := h.app.Redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = "down"
		status = "degraded"
	}
	if h.app.MQConn == nil || h.app.MQConn.IsClosed() {
		checks["rabbitmq"] = "down"
		status = "degraded"
	}

	response.OK(c, healthStatus{
		Status:    status,
		UptimeSec: int64(time.Since(h.app.StartedAt).Seconds()),
		Checks:    checks,
	})
}
