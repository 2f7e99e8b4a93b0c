package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	statusRefreshed = "refreshed"

	errNextRuns = "failed to load schedule"
	errRefresh  = "failed to refresh schedule"
)

// @Summary      Next run per zone
// @Description  display is Today, Tomorrow or MM/DD; next_time is the next start time or "..." when none resolves.
// @Tags         schedule
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, zones"
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/schedule/next [get]
// @Security     BearerAuth
func (h *Handler) getNextRuns(c *gin.Context) {
	runs, err := h.services.Scheduling.NextRuns(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, errNextRuns, "schedule_next_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(runs),
		"zones": runs,
	})
}

// @Summary      Refresh schedule
// @Description  Re-fetches every zone schedule and resolves symbolic start times again.
// @Tags         schedule
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, zones"
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/schedule/refresh [post]
// @Security     BearerAuth
func (h *Handler) refreshSchedule(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.services.Scheduling.Refresh(ctx); err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, errRefresh, "schedule_refresh_failed", err)
		return
	}
	resp := gin.H{"status": statusRefreshed}
	if runs, err := h.services.Scheduling.NextRuns(ctx); err == nil {
		resp["zones"] = runs
	}
	c.JSON(http.StatusOK, resp)
}
