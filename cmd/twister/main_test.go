package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twister/pkg/mt19937"
	"twister/pkg/peer"
	"twister/pkg/proto"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestConfigCommand(t *testing.T) {
	t.Setenv("TWISTER_URL", "ws://game.local:9000/ws")

	out, _, err := execute(t, "", "config", "--target", "77")
	require.NoError(t, err)
	assert.Contains(t, out, "url: ws://game.local:9000/ws\n")
	assert.Contains(t, out, "target: 77\n")
}

func TestPredictCommand(t *testing.T) {
	src := mt19937.New(31337)
	var in strings.Builder
	for i := 0; i < mt19937.StateSize+5; i++ {
		fmt.Fprintf(&in, "%d\n", src.Uint32())
	}

	out, _, err := execute(t, in.String(), "predict", "-n", "3", "--range", "100")
	require.NoError(t, err)

	var want strings.Builder
	for i := 0; i < 3; i++ {
		v := src.Uint32()
		fmt.Fprintf(&want, "%d %d\n", v, mt19937.GuessRange(v, 100))
	}
	assert.Equal(t, want.String(), out)
}

func TestPredictRejectsShortInput(t *testing.T) {
	_, _, err := execute(t, "1 2 3", "predict")
	assert.ErrorIs(t, err, mt19937.ErrWindowIncomplete)
}

func TestPredictDetectsMismatch(t *testing.T) {
	src := mt19937.New(1)
	var in strings.Builder
	for i := 0; i < mt19937.StateSize; i++ {
		fmt.Fprintf(&in, "%d ", src.Uint32())
	}
	fmt.Fprintf(&in, "%d", src.Uint32()+1)

	_, _, err := execute(t, in.String(), "predict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "value 625")
}

func TestCrackCommand(t *testing.T) {
	cfg := peer.DefaultConfig()
	cfg.Target = 50
	cfg.Flag = "flag{cli}"
	srv, err := peer.NewServer(cfg, nil, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	out, _, err := execute(t, "", "crack", "--url", url, "--target", "50", "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "Flag: flag{cli}")
}

func TestCrackRejectsBadURL(t *testing.T) {
	_, _, err := execute(t, "", "crack", "--url", "http://example.com")
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitFailure, exitCode(errors.New("boom")))
	assert.Equal(t, exitDesync, exitCode(&phaseError{phase: proto.PhaseDesynchronized, err: errors.New("x")}))
	assert.Equal(t, exitProto, exitCode(&phaseError{phase: proto.PhaseProtocolError, err: errors.New("x")}))
	assert.Equal(t, exitNetwork, exitCode(fmt.Errorf("wrapped: %w", &phaseError{phase: proto.PhaseTransportError, err: errors.New("x")})))
}
