package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000
	maxStreamSeries  = 4
)

// wsEnvelope is the frame format of the snapshot stream.
type wsEnvelope struct {
	Type   string      `json:"type"` // snapshot | series | error
	Series string      `json:"series,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // dashboard is served from a different origin
}

// wsSession is one connected dashboard client.
type wsSession struct {
	h        *Handler
	conn     *websocket.Conn
	interval time.Duration
	series   []string
}

// @Summary      Live console stream
// @Description  Pushes the snapshot every interval, followed by one frame per requested series (?series=power,price).
// @Tags         console
// @Param        interval     query  string  false  "Push interval, e.g. 2s (max 10s)"
// @Param        interval_ms  query  int     false  "Push interval in milliseconds"
// @Param        series       query  string  false  "Comma separated series names"
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)
	series := parseSeriesList(c.Query("series"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	s := &wsSession{h: h, conn: conn, interval: interval, series: series}
	s.run(c.Request.Context())
}

func (s *wsSession) run(ctx context.Context) {
	s.conn.SetReadLimit(maxMsgSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go s.drain(done)

	ticker := time.NewTicker(s.interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
	}()

	if err := s.push(ctx); err != nil {
		s.h.logInfo("ws_write_failed_initial", "err", err)
		return
	}

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.h.logInfo("ws_ping_failed", "err", err)
				return
			}
		case <-ticker.C:
			if err := s.push(ctx); err != nil {
				s.h.logInfo("ws_write_failed", "err", err)
				return
			}
		}
	}
}

// drain reads until the peer goes away so control frames get processed.
func (s *wsSession) drain(done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.h.logInfo("ws_read_closed", "err", err)
			return
		}
	}
}

// push writes one snapshot frame followed by the requested series frames.
// An unknown series name yields an error frame instead of closing the stream.
func (s *wsSession) push(ctx context.Context) error {
	st, err := s.h.services.Monitoring.GetState(ctx)
	if err != nil {
		if s.h.log != nil {
			s.h.log.Errorw("ws_get_state_failed", "err", err)
		}
		return err
	}
	if err := s.write(wsEnvelope{Type: "snapshot", Data: st}); err != nil {
		return err
	}
	for _, name := range s.series {
		snap, err := s.h.services.Monitoring.GetSeries(ctx, name)
		frame := wsEnvelope{Type: "series", Series: name, Data: snap}
		if err != nil {
			frame = wsEnvelope{Type: "error", Series: name, Error: err.Error()}
		}
		if err := s.write(frame); err != nil {
			return err
		}
	}
	return nil
}

func (s *wsSession) write(v wsEnvelope) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

// parseInterval reads ?interval=2s or ?interval_ms=2000 with bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}
	return defaultInterval
}

// parseSeriesList splits "power, price,power" into distinct trimmed names.
func parseSeriesList(raw string) []string {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
		if len(out) == maxStreamSeries {
			break
		}
	}
	return out
}

func (h *Handler) logInfo(msg string, kv ...interface{}) {
	if h.log != nil {
		h.log.Infow(msg, kv...)
	}
}
