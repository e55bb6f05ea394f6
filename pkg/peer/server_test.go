package peer

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"twister/pkg/mt19937"
	"twister/pkg/proto"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = 1337
	cfg.Range = 100
	cfg.Target = 5
	cfg.Flag = "test-flag"
	return cfg
}

func startServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	s, err := NewServer(cfg, nil, prometheus.NewRegistry())
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func dialGame(t *testing.T, base string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(base, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) interface{} {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	msg, err := proto.Decode(data)
	require.NoError(t, err)
	return msg
}

func TestServerPlaysAndReleasesFlag(t *testing.T) {
	cfg := testConfig()
	_, ts := startServer(t, cfg)
	ws := dialGame(t, ts.URL)
	mirror := mt19937.New(uint32(cfg.Seed))

	for i := 1; i <= cfg.Target; i++ {
		guess := int(mt19937.GuessRange(mirror.Uint32(), cfg.Range))
		require.NoError(t, ws.WriteJSON(proto.NewGuess(guess)))

		res, ok := readMessage(t, ws).(*proto.GuessResult)
		require.True(t, ok)
		assert.True(t, res.Correct(), "round %d", i)
		assert.Equal(t, i, res.Score)
	}

	flag, ok := readMessage(t, ws).(*proto.FlagMessage)
	require.True(t, ok)
	assert.Equal(t, "test-flag", flag.Flag)
}

func TestServerRejectsForeignMessages(t *testing.T) {
	cfg := testConfig()
	_, ts := startServer(t, cfg)
	ws := dialGame(t, ts.URL)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat"}`)))
	errMsg, ok := readMessage(t, ws).(*proto.ErrorMessage)
	require.True(t, ok)
	assert.Contains(t, errMsg.Error, "chat")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
	_, ok = readMessage(t, ws).(*proto.ErrorMessage)
	require.True(t, ok)

	// Rejected messages do not consume generator outputs.
	mirror := mt19937.New(uint32(cfg.Seed))
	raw := mirror.Uint32()
	require.NoError(t, ws.WriteJSON(proto.NewGuess(1)))
	res, ok := readMessage(t, ws).(*proto.GuessResult)
	require.True(t, ok)
	assert.Equal(t, raw, res.GuessID)
}

func TestServerHealthAndMetrics(t *testing.T) {
	s, ts := startServer(t, testConfig())
	ws := dialGame(t, ts.URL)
	require.NoError(t, ws.WriteJSON(proto.NewGuess(1)))
	readMessage(t, ws)
	assert.Equal(t, 1, s.Active())

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(1), health["active"])

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "twister_peer_connections_total 1")
	assert.Contains(t, string(body), "twister_peer_guesses_total")
}

func TestServeStopsOnCancel(t *testing.T) {
	s, err := NewServer(testConfig(), nil, nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.WriteJSON(proto.NewGuess(1)))
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = ws.ReadMessage()
	require.NoError(t, err)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Equal(t, 0, s.Active())
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Range = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Seed = 1 << 33
	assert.Error(t, cfg.Validate())

	_, err := NewServer(Config{Range: 10}, nil, nil)
	assert.Error(t, err)
}
