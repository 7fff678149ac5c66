package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// accessLog logs every request and feeds the HTTP metrics.
func (h *Handler) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	status := c.Writer.Status()
	elapsed := time.Since(start)

	if h.metrics != nil {
		h.metrics.ObserveHTTP(route, status, elapsed)
	}
	if h.log == nil {
		return
	}
	fields := []interface{}{
		"method", c.Request.Method,
		"route", route,
		"status", status,
		"elapsed", elapsed,
		"client_ip", c.ClientIP(),
	}
	if len(c.Errors) > 0 {
		fields = append(fields, "errors", c.Errors.String())
	}
	if status >= 500 {
		h.log.Warnw("http_request", fields...)
		return
	}
	h.log.Debugw("http_request", fields...)
}
