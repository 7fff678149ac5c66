package handlers

import (
	"errors"
	"net/http"

	"energy_console/internal/control"
	"energy_console/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK       = "ok"
	statusModeSet  = "mode_set"
	statusOverride = "override_toggled"
	statusCommand  = "command_sent"
	statusCleared  = "alerts_cleared"

	errInternal        = "internal error"
	errInvalidBodyPref = "invalid body: "
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, control.ErrOverrideActive),
		errors.Is(err, control.ErrEcoMode),
		errors.Is(err, control.ErrDisconnected):
		return http.StatusConflict
	case errors.Is(err, control.ErrPublish):
		return http.StatusBadGateway
	case errors.Is(err, control.ErrInvalidMode),
		errors.Is(err, service.ErrInvalidAction),
		errors.Is(err, service.ErrInvalidTimeRange),
		errors.Is(err, service.ErrUnknownEventType):
		return http.StatusBadRequest
	case errors.Is(err, control.ErrUnknownDevice),
		errors.Is(err, service.ErrUnknownSeries):
		return http.StatusNotFound
	case errors.Is(err, service.ErrLoopStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Centralized error logging and response. Client errors are logged at debug.
func (h *Handler) respondError(c *gin.Context, err error, logKey string, kv ...interface{}) {
	code := statusFor(err)
	if h.log != nil {
		fields := append([]interface{}{"err", err, "status", code}, kv...)
		if code >= http.StatusInternalServerError {
			h.log.Errorw(logKey, fields...)
		} else {
			h.log.Debugw(logKey, fields...)
		}
	}
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = errInternal
	}
	c.JSON(code, gin.H{"error": msg})
}

// Respond with a status and include current state if available (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, status string, extra gin.H) {
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	if st, err := h.services.Monitoring.GetState(c.Request.Context()); err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"` // eco | manual
}

type commandRequest struct {
	Action string `json:"action" binding:"required"` // on | off
}

// SetModeRequest is an exported model for Swagger docs of the setMode payload.
type SetModeRequest struct {
	// Mode to set. Allowed: eco, manual
	Mode string `json:"mode" example:"manual"`
}

// CommandRequest is an exported model for Swagger docs of the device command payload.
type CommandRequest struct {
	// Allowed: on, off
	Action string `json:"action" example:"on"`
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

// @Summary      Console snapshot
// @Tags         console
// @Produce      json
// @Success      200  {object}  models.Snapshot
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/state [get]
func (h *Handler) getState(c *gin.Context) {
	st, err := h.services.Monitoring.GetState(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "get_state_failed")
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Rolling series
// @Tags         console
// @Produce      json
// @Param        name  path  string  true  "Series name"  Enums(power,temperature,humidity,price)
// @Success      200   {object}  models.SeriesSnapshot
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/series/{name} [get]
func (h *Handler) getSeries(c *gin.Context) {
	name := c.Param("name")
	s, err := h.services.Monitoring.GetSeries(c.Request.Context(), name)
	if err != nil {
		h.respondError(c, err, "get_series_failed", "series", name)
		return
	}
	c.JSON(http.StatusOK, s)
}

// @Summary      Alert feed, newest first
// @Tags         alerts
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, alerts"
// @Router       /api/v1/alerts [get]
func (h *Handler) getAlerts(c *gin.Context) {
	alerts, err := h.services.Monitoring.GetAlerts(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "get_alerts_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(alerts), "alerts": alerts})
}

// @Summary      Clear alerts
// @Tags         alerts
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/alerts [delete]
func (h *Handler) clearAlerts(c *gin.Context) {
	if err := h.services.Control.ClearAlerts(c.Request.Context()); err != nil {
		h.respondError(c, err, "clear_alerts_failed")
		return
	}
	h.respondWithStatusAndState(c, statusCleared, gin.H{})
}

// @Summary      Set mode
// @Description  Refused with 409 while the emergency override is active
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        body  body   SetModeRequest  true  "Mode payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/mode [post]
func (h *Handler) setMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Control.SetMode(c.Request.Context(), req.Mode); err != nil {
		h.respondError(c, err, "set_mode_failed", "mode", req.Mode)
		return
	}
	h.respondWithStatusAndState(c, statusModeSet, gin.H{"mode": req.Mode})
}

// @Summary      Toggle emergency override
// @Description  Activation switches every device off
// @Tags         control
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/override [post]
func (h *Handler) toggleOverride(c *gin.Context) {
	active, err := h.services.Control.ToggleOverride(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "toggle_override_failed")
		return
	}
	if h.log != nil {
		h.log.Infow("override_toggled", "active", active)
	}
	h.respondWithStatusAndState(c, statusOverride, gin.H{"override": active})
}

// @Summary      Command a device
// @Description  Only accepted in manual mode with the override inactive and the broker connected
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        room    path  string          true  "Room id"
// @Param        device  path  string          true  "Device"  Enums(fan,lamp)
// @Param        body    body  CommandRequest  true  "Command payload"
// @Success      200     {object}  map[string]interface{}
// @Failure      400     {object}  map[string]string
// @Failure      404     {object}  map[string]string
// @Failure      409     {object}  map[string]string
// @Failure      502     {object}  map[string]string
// @Router       /api/v1/devices/{room}/{device} [post]
func (h *Handler) commandDevice(c *gin.Context) {
	room, device := c.Param("room"), c.Param("device")
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Control.Command(c.Request.Context(), room, device, req.Action); err != nil {
		h.respondError(c, err, "device_command_failed", "room", room, "device", device, "action", req.Action)
		return
	}
	h.respondWithStatusAndState(c, statusCommand, gin.H{"room": room, "device": device, "action": req.Action})
}

// @Summary      Toggle a device
// @Tags         control
// @Produce      json
// @Param        room    path  string  true  "Room id"
// @Param        device  path  string  true  "Device"  Enums(fan,lamp)
// @Success      200     {object}  map[string]interface{}
// @Failure      404     {object}  map[string]string
// @Failure      409     {object}  map[string]string
// @Router       /api/v1/devices/{room}/{device}/toggle [post]
func (h *Handler) toggleDevice(c *gin.Context) {
	room, device := c.Param("room"), c.Param("device")
	action, err := h.services.Control.ToggleDevice(c.Request.Context(), room, device)
	if err != nil {
		h.respondError(c, err, "device_toggle_failed", "room", room, "device", device)
		return
	}
	h.respondWithStatusAndState(c, statusCommand, gin.H{"room": room, "device": device, "action": action})
}
