package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"irrigation_monitor/internal/backend"
	"irrigation_monitor/internal/models"
	"irrigation_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK      = "ok"
	statusStarted = "started"
	statusStopped = "stopped"
	statusPending = "pending"

	errInvalidZoneID  = "invalid zone id"
	errZoneNotFound   = "zone not found"
	errStartTimer     = "failed to start zone timer"
	errStopTimer      = "failed to stop zone timer"
	errCommandPending = "service stopped before the controller answered; the zone will settle on the next poll"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// bindJSONOrBadRequest tries to bind the request body into dst and writes a 400 JSON on failure.
// Returns false if the request was already handled, true otherwise.
func (h *Handler) bindJSONOrBadRequest(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if h.log != nil {
			h.log.Infow("bad_request_body", "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return false
	}
	return true
}

// Respond with a status and the command, plus the zone's board entry if it has one.
func (h *Handler) respondWithStatusAndZone(c *gin.Context, status string, cmd models.Command) {
	resp := gin.H{"status": status, "command": cmd}
	if st, err := h.services.Monitoring.GetZone(c.Request.Context(), cmd.Zone); err == nil {
		resp["zone"] = st
	}
	c.JSON(http.StatusOK, resp)
}

// zoneParam parses :id; writes 400 and returns false when it is not a valid zone.
func zoneParam(c *gin.Context) (models.ZoneID, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || !models.ZoneID(id).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidZoneID})
		return 0, false
	}
	return models.ZoneID(id), true
}

// TimerRequest is the start-timer payload.
type TimerRequest struct {
	// Run time as HH:mm:ss, or up to six digits read as HHMMSS
	Duration string `json:"duration" binding:"required" example:"00:20:00"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      List zone statuses
// @Tags         zones
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, zones"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/zones [get]
// @Security     BearerAuth
func (h *Handler) getZones(c *gin.Context) {
	zones := h.services.Monitoring.GetZones(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"count": len(zones),
		"zones": zones,
	})
}

// @Summary      Get zone status
// @Tags         zones
// @Produce      json
// @Param        id   path      int  true  "Zone id"
// @Success      200  {object}  models.ZoneStatus
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/zones/{id} [get]
// @Security     BearerAuth
func (h *Handler) getZone(c *gin.Context) {
	zone, ok := zoneParam(c)
	if !ok {
		return
	}
	st, err := h.services.Monitoring.GetZone(c.Request.Context(), zone)
	if err != nil {
		if errors.Is(err, service.ErrZoneNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errZoneNotFound})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Start manual timer
// @Description  Runs the zone for the given duration. The zone reports orange until the controller confirms.
// @Tags         zones
// @Accept       json
// @Produce      json
// @Param        id    path  int           true  "Zone id"
// @Param        body  body  TimerRequest  true  "Duration payload"
// @Success      200   {object}  map[string]interface{}  "status, command, zone"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/zones/{id}/timer [post]
// @Security     BearerAuth
func (h *Handler) startTimer(c *gin.Context) {
	zone, ok := zoneParam(c)
	if !ok {
		return
	}
	var req TimerRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	seconds, err := service.ParseDuration(req.Duration)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd, err := h.services.Timer.StartTimer(c.Request.Context(), zone, seconds)
	if err != nil {
		h.commandError(c, cmd, errStartTimer, "zone_start_failed", err)
		return
	}
	h.respondWithStatusAndZone(c, statusStarted, cmd)
}

// @Summary      Stop manual timer
// @Tags         zones
// @Produce      json
// @Param        id   path  int  true  "Zone id"
// @Success      200  {object}  map[string]interface{}  "status, command, zone"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/zones/{id}/timer [delete]
// @Security     BearerAuth
func (h *Handler) stopTimer(c *gin.Context) {
	zone, ok := zoneParam(c)
	if !ok {
		return
	}
	cmd, err := h.services.Timer.StopTimer(c.Request.Context(), zone)
	if err != nil {
		h.commandError(c, cmd, errStopTimer, "zone_stop_failed", err)
		return
	}
	h.respondWithStatusAndZone(c, statusStopped, cmd)
}

// commandError maps a failed command to a response. Rolled-back commands are the controller's fault.
func (h *Handler) commandError(c *gin.Context, cmd models.Command, userMsg, logKey string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidZone), errors.Is(err, service.ErrNonPositiveDuration):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case cmd.Phase == models.PhasePending:
		c.JSON(http.StatusAccepted, gin.H{"status": statusPending, "command": cmd, "error": errCommandPending})
	default:
		code := http.StatusBadGateway
		var se *backend.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			code = http.StatusNotFound
		}
		h.logAndJSONError(c, code, userMsg, logKey, err, "zone", cmd.Zone, "command_id", cmd.ID)
	}
}
