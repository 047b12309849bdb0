package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-powboard/internal/http/middleware"
	"github.com/tbourn/go-powboard/internal/repo"
)

// StatusResponse reports liveness and, when storage answers, row counts.
type StatusResponse struct {
	Status string          `json:"status" example:"OK"`
	Stats  *repo.FeedStats `json:"stats,omitempty"`
}

// Status answers the fixed /api/v0/status endpoint. It is mounted outside the
// API base path and left out of the swagger document, whose paths are
// relative to that base.
func (h *Handlers) Status(c *gin.Context) {
	resp := StatusResponse{Status: "OK"}
	if st, err := h.feed.Stats(c.Request.Context()); err == nil {
		resp.Stats = &st
	} else {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("status.stats_failed")
	}
	ok(c, http.StatusOK, resp)
}
