package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RunOnce starts a rotation sync in the background
func (h *Handlers) RunOnce(c *gin.Context) {
	h.scheduler.Trigger(5 * time.Minute)
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// GetSchedulerStatus returns scheduler status
func (h *Handlers) GetSchedulerStatus(c *gin.Context) {
	st := h.scheduler.Status()

	resp := SchedulerStatusResponse{
		Status:     "stopped",
		Interval:   st.Interval.String(),
		LastResult: SyncResponse(st.LastResult),
		LastError:  st.LastError,
	}
	if st.Running {
		resp.Status = "running"
	}
	if !st.NextRun.IsZero() {
		resp.NextRun = &st.NextRun
	}
	if !st.LastRun.IsZero() {
		resp.LastRun = &st.LastRun
	}

	c.JSON(http.StatusOK, resp)
}
