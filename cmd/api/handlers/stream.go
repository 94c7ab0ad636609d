package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/lyzr/launchpad/cmd/api/container"
	"github.com/lyzr/launchpad/cmd/api/middleware"
	"github.com/lyzr/launchpad/common/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 30 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 25 * time.Second

	// Clients only send pongs
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// statusSource subscribes to an app's status messages
type statusSource interface {
	Subscribe(ctx context.Context, key string) <-chan []byte
}

// lastStatus returns the most recent status message of an app
type lastStatus interface {
	Last(ctx context.Context, appID string) ([]byte, bool, error)
}

// StreamHandler pushes build status changes to websocket clients
type StreamHandler struct {
	source statusSource
	last   lastStatus
	log    *logger.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(c *container.Container) *StreamHandler {
	var last lastStatus
	if c.Publisher != nil {
		last = c.Publisher
	}
	return newStreamHandler(c.Broadcaster, last, c.Components.Logger)
}

func newStreamHandler(source statusSource, last lastStatus, log *logger.Logger) *StreamHandler {
	return &StreamHandler{source: source, last: last, log: log}
}

// BuildStatus upgrades to a websocket and streams the app's build status
// messages until the client disconnects
// GET /api/v1/apps/:app_id/builds/stream
func (h *StreamHandler) BuildStatus(c echo.Context) error {
	appID := middleware.GetApp(c).ID.String()

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already replied
		h.log.Warn("websocket upgrade failed", "app_id", appID, "error", err)
		return nil
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	send := h.source.Subscribe(ctx, appID)
	h.log.Debug("build status stream opened", "app_id", appID, "remote", c.RealIP())

	var first []byte
	if h.last != nil {
		data, ok, err := h.last.Last(ctx, appID)
		if err != nil {
			h.log.Warn("failed to load last build status", "app_id", appID, "error", err)
		} else if ok {
			first = data
		}
	}

	go readPump(conn, cancel)
	writePump(ctx, conn, send, first)

	h.log.Debug("build status stream closed", "app_id", appID)
	return nil
}

// readPump drains the connection so pongs and close frames are processed.
// Any read error ends the stream.
func readPump(conn *websocket.Conn, done context.CancelFunc) {
	defer done()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump sends each status message as its own frame and keeps the
// connection alive with pings
func writePump(ctx context.Context, conn *websocket.Conn, send <-chan []byte, first []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	if first != nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, first); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return

		case message, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
