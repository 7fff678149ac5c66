package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"energy_console/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"

	maxLogLimit = 1000
)

var (
	errFromInvalid  = errors.New("invalid 'from' time; use RFC3339, 'YYYY-MM-DD HH:MM:SS' or YYYY-MM-DD")
	errToInvalid    = errors.New("invalid 'to' time; use RFC3339, 'YYYY-MM-DD HH:MM:SS' or YYYY-MM-DD")
	errSinceInvalid = errors.New("invalid 'since'; use a positive duration such as 30m or 24h")
	errSinceAndFrom = errors.New("'since' and 'from' are mutually exclusive")
	errLimitInvalid = fmt.Errorf("invalid 'limit'; use 1..%d", maxLogLimit)
)

// logQuery is the parsed query string of GET /api/v1/logs.
type logQuery struct {
	filter service.LogFilter
	limit  int // 0 = everything
}

// @Summary      List journal entries
// @Description  Filter the console journal by time range and type. A date-only 'to' is inclusive up to the end of that day.
// @Tags         logs
// @Produce      json
// @Param        from   query   string  false  "Start of range (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD')"  example(2025-08-01)
// @Param        to     query   string  false  "End of range, same formats; date-only means end of day"  example(2025-08-31)
// @Param        since  query   string  false  "Relative start, e.g. 1h; excludes 'from'"
// @Param        type   query   string  false  "Event type"  Enums(MODE_CHANGE,MODE_ECHO,OVERRIDE,COMMAND,COMMAND_REJECTED,DEVICE_ECHO,CONNECTIVITY,ANOMALY,PRICE_UNAVAILABLE,PUBLISH_FAILED)
// @Param        limit  query   int     false  "Keep only the most recent N entries"
// @Success      200   {object}  map[string]interface{}  "count, events"
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/logs [get]
func (h *Handler) getLogs(c *gin.Context) {
	q, err := parseLogQuery(c, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.services.EventLog.List(c.Request.Context(), q.filter)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			if h.log != nil {
				h.log.Errorw("logs_list_failed", "err", err, "from", q.filter.From, "to", q.filter.To, "type", q.filter.Type)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load logs"})
			return
		}
		h.respondError(c, err, "logs_list_rejected", "type", q.filter.Type)
		return
	}
	// entries come oldest first; the limit keeps the tail
	if q.limit > 0 && len(events) > q.limit {
		events = events[len(events)-q.limit:]
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

func parseLogQuery(c *gin.Context, now time.Time) (logQuery, error) {
	var q logQuery
	q.filter.Type = strings.ToUpper(strings.TrimSpace(c.Query("type")))

	if s := c.Query("from"); s != "" {
		t, err := parseQueryTime(s)
		if err != nil {
			return q, errFromInvalid
		}
		q.filter.From = t
	}
	if s := c.Query("since"); s != "" {
		if !q.filter.From.IsZero() {
			return q, errSinceAndFrom
		}
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return q, errSinceInvalid
		}
		q.filter.From = now.Add(-d).UTC()
	}
	if s := c.Query("to"); s != "" {
		t, err := parseQueryTime(s)
		if err != nil {
			return q, errToInvalid
		}
		if isDateOnly(s) {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		q.filter.To = t
	}
	if !q.filter.From.IsZero() && !q.filter.To.IsZero() && q.filter.From.After(q.filter.To) {
		return q, service.ErrInvalidTimeRange
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxLogLimit {
			return q, errLimitInvalid
		}
		q.limit = n
	}
	return q, nil
}

// isDateOnly reports whether the query string represents a date without time component.
func isDateOnly(s string) bool {
	return !strings.ContainsAny(s, "T ")
}

// parseQueryTime accepts RFC3339, "YYYY-MM-DD HH:MM:SS" or "YYYY-MM-DD" and returns UTC.
func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time format %q", s)
}
