package session_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twister/pkg/mt19937"
	"twister/pkg/peer"
	"twister/pkg/proto"
	"twister/pkg/session"
	"twister/pkg/transport"
)

func TestSessionAgainstPracticePeer(t *testing.T) {
	if testing.Short() {
		t.Skip("plays 10624 websocket rounds")
	}

	cfg := peer.DefaultConfig()
	cfg.Flag = "test-flag"
	srv, err := peer.NewServer(cfg, nil, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conn, err := transport.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", transport.DefaultOptions())
	require.NoError(t, err)
	defer conn.Close()

	logger, _ := logtest.NewNullLogger()
	res, err := session.New(conn, session.DefaultConfig(), session.WithLogger(logger)).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, proto.PhaseSucceeded, res.Phase)
	assert.Equal(t, "test-flag", res.Flag)
	assert.Equal(t, session.DefaultTarget, res.Score)
	assert.Equal(t, mt19937.StateSize, res.Observations)
}
