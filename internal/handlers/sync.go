package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SyncRotatedPins replays rotation notifications into the ledger and reports the counts
func (h *Handlers) SyncRotatedPins(c *gin.Context) {
	res, err := h.scheduler.RunOnce(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, SyncResponse(res))
}
