package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/launchpad/cmd/api/middleware"
	"github.com/lyzr/launchpad/common/logger"
	"github.com/lyzr/launchpad/common/models"
	"github.com/lyzr/launchpad/common/notifier"
)

type stubLast struct {
	data []byte
}

func (s stubLast) Last(ctx context.Context, appID string) ([]byte, bool, error) {
	return s.data, s.data != nil, nil
}

func newStreamServer(t *testing.T, app *models.App, h *StreamHandler) string {
	t.Helper()
	e := echo.New()
	e.GET("/apps/:app_id/builds/stream", h.BuildStatus, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(string(middleware.AppKey), app)
			return next(c)
		}
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/apps/" + app.ID.String() + "/builds/stream"
}

func TestBuildStatus_StreamsLastThenLiveMessages(t *testing.T) {
	app := &models.App{ID: uuid.New(), Slug: "acme"}
	key := app.ID.String()
	b := notifier.NewBroadcaster(logger.Discard())
	h := newStreamHandler(b, stubLast{data: []byte(`{"status":"queued"}`)}, logger.Discard())

	conn, _, err := websocket.DefaultDialer.Dial(newStreamServer(t, app, h), nil)
	require.NoError(t, err)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"queued"}`, string(msg))

	require.Eventually(t, func() bool { return b.SubscriberCount(key) == 1 }, time.Second, 10*time.Millisecond)

	b.Publish(key, []byte(`{"status":"started"}`))
	b.Publish(uuid.NewString(), []byte(`{"status":"other-app"}`))
	b.Publish(key, []byte(`{"status":"done"}`))

	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"started"}`, string(msg))
	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"done"}`, string(msg))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return b.SubscriberCount(key) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestBuildStatus_WithoutLastStatus(t *testing.T) {
	app := &models.App{ID: uuid.New(), Slug: "acme"}
	b := notifier.NewBroadcaster(logger.Discard())
	h := newStreamHandler(b, nil, logger.Discard())

	conn, _, err := websocket.DefaultDialer.Dial(newStreamServer(t, app, h), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	require.Eventually(t, func() bool { return b.SubscriberCount(app.ID.String()) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, notifier.NewLocalNotifier(b).Notify(context.Background(), models.BuildStatusMessage{
		BuildID: uuid.NewString(),
		AppID:   app.ID.String(),
		Status:  models.BuildStarted,
	}))

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"status":"started"`)
}
