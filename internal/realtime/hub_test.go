package realtime

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func waitCount(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Count() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	t.Parallel()
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()
	defer h.Close()

	a := dial(t, srv)
	defer a.Close()
	b := dial(t, srv)
	defer b.Close()
	waitCount(t, h, 2)

	h.Broadcast(Event{Type: "rollover", Data: map[string]string{"to": "2026-03-05"}})

	for _, conn := range []*websocket.Conn{a, b} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got map[string]any
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, "rollover", got["type"])
		assert.Equal(t, "2026-03-05", got["data"].(map[string]any)["to"])
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	t.Parallel()
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn := dial(t, srv)
	waitCount(t, h, 1)
	require.NoError(t, conn.Close())
	waitCount(t, h, 0)

	// Broadcasting with nobody connected is a no-op.
	h.Broadcast(Event{Type: "rollover"})
}
