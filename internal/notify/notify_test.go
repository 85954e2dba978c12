package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskbot/internal/model"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, event model.Event) error {
	return m.Called(ctx, event).Error(0)
}

func TestMulti(t *testing.T) {
	event := model.Event{Type: model.EventRewardGranted, UserID: 1}

	ok := new(mockNotifier)
	ok.On("Notify", mock.Anything, event).Return(nil)
	failing := new(mockNotifier)
	failing.On("Notify", mock.Anything, event).Return(errors.New("telegram down"))

	err := Multi{failing, nil, ok}.Notify(context.Background(), event)
	assert.ErrorContains(t, err, "telegram down")
	ok.AssertExpectations(t)
	failing.AssertExpectations(t)
}

func TestHubDeliversToUserConnections(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(ctx, 42, conn)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Connections(42) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Notify(ctx, model.Event{Type: model.EventRewardGranted, UserID: 7}))
	require.NoError(t, hub.Notify(ctx, model.Event{
		Type:    model.EventRankPromoted,
		UserID:  42,
		Payload: map[string]any{"rank": "bronze"},
	}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var got model.Event
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, model.EventRankPromoted, got.Type)
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, "bronze", got.Payload["rank"])

	conn.Close()
	require.Eventually(t, func() bool { return hub.Connections(42) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubNotifyWithoutConnections(t *testing.T) {
	hub := NewHub()
	assert.NoError(t, hub.Notify(context.Background(), model.Event{Type: model.EventRewardGranted, UserID: 1}))
}
