package routes

import (
	"net/http"
	"time"

	"github.com/OFFIS-RIT/lexgraph/internal/queue"
	"github.com/OFFIS-RIT/lexgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/lexgraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

func PostIngestHandler(c echo.Context) error {
	type request struct {
		FragmentsKey string `json:"fragments_key"`
	}

	app := c.(*middleware.AppContext).App
	if app.Queue == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "no ingest queue configured"})
	}

	var req request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	msg := queue.IngestMessage{
		FragmentsKey: req.FragmentsKey,
		RequestedAt:  time.Now().UTC(),
	}
	if msg.FragmentsKey == "" {
		msg.FragmentsKey = app.FragmentsKey
	}
	if err := c.Validate(msg); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	keys := queue.KeyPolicy{Default: app.FragmentsKey, Prefix: app.KeyPrefix}
	if err := keys.Check(msg.FragmentsKey); err != nil {
		logger.Warn("[Server] rejected ingest request", "fragments_key", msg.FragmentsKey, "err", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "fragments_key not allowed"})
	}

	if err := queue.PublishIngest(c.Request().Context(), app.Queue, msg); err != nil {
		logger.Error("[Server] failed to publish ingest message", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to queue ingest"})
	}
	return c.JSON(http.StatusAccepted, msg)
}
