package websocket

import (
	"context"
	"net"
	"testing"
	"time"

	fws "github.com/fasthttp/websocket"
	"github.com/goccy/go-json"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Manager, string) {
	t.Helper()
	m := NewManager()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", websocket.New(m.Serve))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)

	t.Cleanup(func() {
		m.Close()
		app.Shutdown()
	})
	return m, "ws://" + ln.Addr().String() + "/ws"
}

func dial(t *testing.T, url string) *fws.Conn {
	t.Helper()
	conn, _, err := fws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type received struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *fws.Conn) received {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var f received
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func waitClients(t *testing.T, m *Manager, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return m.ClientCount() == n }, 3*time.Second, 10*time.Millisecond)
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	m, url := startHub(t)
	a := dial(t, url)
	b := dial(t, url)
	waitClients(t, m, 2)

	m.Broadcast("data-updated", map[string]string{"username": "alice"})

	for _, conn := range []*fws.Conn{a, b} {
		f := readFrame(t, conn)
		assert.Equal(t, "data-updated", f.Event)
		assert.JSONEq(t, `{"username":"alice"}`, string(f.Data))
	}
}

func TestRequestReplyGoesToSenderOnly(t *testing.T) {
	m, url := startHub(t)
	m.Handle("weather:fetch", func(ctx context.Context, data json.RawMessage) *Frame {
		var req struct {
			City string `json:"city"`
		}
		_ = json.Unmarshal(data, &req)
		return &Frame{Event: "weather:data", Data: map[string]string{"city": req.City}}
	})

	sender := dial(t, url)
	other := dial(t, url)
	waitClients(t, m, 2)

	require.NoError(t, sender.WriteJSON(map[string]any{"event": "weather:fetch", "data": map[string]string{"city": "Paris"}}))

	f := readFrame(t, sender)
	assert.Equal(t, "weather:data", f.Event)
	assert.JSONEq(t, `{"city":"Paris"}`, string(f.Data))

	// The other client only sees the next broadcast.
	m.Broadcast("data-updated", map[string]string{"username": "admin"})
	assert.Equal(t, "data-updated", readFrame(t, other).Event)
}

func TestPingIsAnswered(t *testing.T) {
	m, url := startHub(t)
	conn := dial(t, url)
	waitClients(t, m, 1)

	require.NoError(t, conn.WriteJSON(map[string]string{"event": EventPing}))
	assert.Equal(t, EventPong, readFrame(t, conn).Event)
}

func TestDisconnectUnregisters(t *testing.T) {
	m, url := startHub(t)
	conn := dial(t, url)
	waitClients(t, m, 1)

	conn.Close()
	waitClients(t, m, 0)
}

func TestCloseIsIdempotent(t *testing.T) {
	var nilManager *Manager
	assert.NotPanics(t, nilManager.Close)

	m := NewManager()
	m.Close()
	assert.NotPanics(t, m.Close)
	assert.NotPanics(t, func() { m.Broadcast("data-updated", nil) })
}
