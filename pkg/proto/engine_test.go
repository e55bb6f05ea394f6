package proto

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeGuessResult(t *testing.T) {
	raw := []byte(`{"type":"guess_result","guess_id":4294967295,"result":"incorrect","score":0,"number":17}`)

	msg, err := Decode(raw)
	require.NoError(t, err)

	res, ok := msg.(*GuessResult)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, uint32(4294967295), res.GuessID)
	assert.False(t, res.Correct())
	assert.Equal(t, 17, res.Number)
}

func TestDecodeFlag(t *testing.T) {
	msg, err := Expect([]byte(`{"type":"flag","flag":"test-flag"}`), TypeFlag)
	require.NoError(t, err)
	assert.Equal(t, "test-flag", msg.(*FlagMessage).Flag)
}

func TestExpectWrongType(t *testing.T) {
	raw := []byte(`{"type":"flag","flag":"early"}`)
	_, err := Expect(raw, TypeGuessResult)

	var v *ViolationError
	require.True(t, errors.As(err, &v))
	assert.ErrorIs(t, err, ErrUnexpectedType)
	assert.Equal(t, TypeGuessResult, v.Want)
	assert.Equal(t, TypeFlag, v.Got)
	assert.Contains(t, err.Error(), `"early"`)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Expect([]byte(`{"type":"chat","text":"hi"}`), TypeGuessResult)
	assert.ErrorIs(t, err, ErrUnexpectedType)
	assert.Contains(t, err.Error(), "chat")
}

func TestDecodeMalformed(t *testing.T) {
	for _, raw := range []string{``, `not json`, `{"type":"guess_result","guess_id":-1}`, `{"type":"guess_result","guess_id":"x"}`} {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformed, "input %q", raw)
	}
}

func TestGuessRequestWireFormat(t *testing.T) {
	b, err := json.Marshal(NewGuess(1))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"guess","number":1}`, string(b))
}

func TestPhaseTerminal(t *testing.T) {
	assert.False(t, PhaseCollecting.Terminal())
	assert.False(t, PhasePredicting.Terminal())
	assert.True(t, PhaseSucceeded.Terminal())
	assert.True(t, PhaseDesynchronized.Terminal())
	assert.True(t, PhaseProtocolError.Terminal())
	assert.Equal(t, "DESYNCHRONIZED", PhaseDesynchronized.String())
}

func TestGuessResultGuessIDPresence(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"guess_result","result":"incorrect","score":0,"number":3}`))
	require.NoError(t, err)
	assert.False(t, msg.(*GuessResult).HasGuessID())

	msg, err = Decode([]byte(`{"type":"guess_result","guess_id":0,"result":"incorrect"}`))
	require.NoError(t, err)
	assert.True(t, msg.(*GuessResult).HasGuessID())
	assert.Equal(t, uint32(0), msg.(*GuessResult).GuessID)
}
