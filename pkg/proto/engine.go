package proto

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ---------------------------------------------------------
// CONSTANTS & DEFINITIONS
// ---------------------------------------------------------

// MessageType is the value of the "type" field every record carries.
type MessageType string

const (
	TypeGuess       MessageType = "guess"
	TypeGuessResult MessageType = "guess_result"
	TypeFlag        MessageType = "flag"
	TypeError       MessageType = "error"
)

const (
	ResultCorrect   = "correct"
	ResultIncorrect = "incorrect"
)

var (
	ErrMalformed      = errors.New("malformed message")
	ErrUnexpectedType = errors.New("unexpected message type")
)

// ---------------------------------------------------------
// MESSAGES
//
// Textual JSON records, one per websocket text frame.
// ---------------------------------------------------------

// GuessRequest is the only message a client sends.
type GuessRequest struct {
	Type   MessageType `json:"type"`
	Number int         `json:"number"`
}

func NewGuess(n int) *GuessRequest {
	return &GuessRequest{Type: TypeGuess, Number: n}
}

// GuessResult answers every guess. GuessID is the raw generator output the
// peer drew for this round; Number is the value it expected.
type GuessResult struct {
	Type    MessageType `json:"type"`
	GuessID uint32      `json:"guess_id"`
	Result  string      `json:"result"`
	Score   int         `json:"score"`
	Number  int         `json:"number"`

	hasID bool
}

func (r *GuessResult) Correct() bool { return r.Result == ResultCorrect }

// HasGuessID reports whether the decoded record carried a guess_id field.
func (r *GuessResult) HasGuessID() bool { return r.hasID }

func (r *GuessResult) UnmarshalJSON(b []byte) error {
	type plain GuessResult
	var aux struct {
		*plain
		GuessID *uint32 `json:"guess_id"`
	}
	aux.plain = (*plain)(r)
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.GuessID != nil {
		r.GuessID = *aux.GuessID
		r.hasID = true
	}
	return nil
}

// FlagMessage is sent once, after the score target is reached.
type FlagMessage struct {
	Type MessageType `json:"type"`
	Flag string      `json:"flag"`
}

// ErrorMessage is what the practice peer sends back for input it rejects.
type ErrorMessage struct {
	Type  MessageType `json:"type"`
	Error string      `json:"error"`
}

type envelope struct {
	Type MessageType `json:"type"`
}

// ---------------------------------------------------------
// PARSER
// ---------------------------------------------------------

// ViolationError carries the raw message that broke the protocol so it can
// be dumped as a diagnostic.
type ViolationError struct {
	Want MessageType
	Got  MessageType
	Raw  []byte
	Err  error
}

func (e *ViolationError) Error() string {
	if e.Want != "" {
		return fmt.Sprintf("protocol violation: expected %q, got %q (%v): %s", e.Want, e.Got, e.Err, e.Raw)
	}
	return fmt.Sprintf("protocol violation: %v: %s", e.Err, e.Raw)
}

func (e *ViolationError) Unwrap() error { return e.Err }

// Decode parses a peer message and returns *GuessResult, *FlagMessage or
// *ErrorMessage depending on its type field.
func Decode(raw []byte) (interface{}, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &ViolationError{Raw: raw, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	var msg interface{}
	switch env.Type {
	case TypeGuessResult:
		msg = &GuessResult{}
	case TypeFlag:
		msg = &FlagMessage{}
	case TypeError:
		msg = &ErrorMessage{}
	case TypeGuess:
		msg = &GuessRequest{}
	default:
		return nil, &ViolationError{Got: env.Type, Raw: raw, Err: ErrUnexpectedType}
	}

	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, &ViolationError{Got: env.Type, Raw: raw, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	return msg, nil
}

// Expect decodes raw and requires it to be of type want.
func Expect(raw []byte, want MessageType) (interface{}, error) {
	msg, err := Decode(raw)
	if err != nil {
		var v *ViolationError
		if errors.As(err, &v) {
			v.Want = want
		}
		return nil, err
	}
	if got := typeOf(msg); got != want {
		return nil, &ViolationError{Want: want, Got: got, Raw: raw, Err: ErrUnexpectedType}
	}
	return msg, nil
}

func typeOf(msg interface{}) MessageType {
	switch m := msg.(type) {
	case *GuessRequest:
		return m.Type
	case *GuessResult:
		return m.Type
	case *FlagMessage:
		return m.Type
	case *ErrorMessage:
		return m.Type
	}
	return ""
}

// ---------------------------------------------------------
// STATE MACHINE
// ---------------------------------------------------------

// Phase is the logical state of a cracking session.
type Phase int

const (
	PhaseCollecting Phase = iota
	PhaseReconstructed
	PhasePredicting
	PhaseSucceeded
	PhaseDesynchronized
	PhaseProtocolError
	PhaseTransportError
)

func (p Phase) String() string {
	switch p {
	case PhaseCollecting:
		return "COLLECTING"
	case PhaseReconstructed:
		return "RECONSTRUCTED"
	case PhasePredicting:
		return "PREDICTING"
	case PhaseSucceeded:
		return "SUCCEEDED"
	case PhaseDesynchronized:
		return "DESYNCHRONIZED"
	case PhaseProtocolError:
		return "PROTOCOL_ERROR"
	case PhaseTransportError:
		return "TRANSPORT_ERROR"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Terminal reports whether the session has ended.
func (p Phase) Terminal() bool {
	return p >= PhaseSucceeded
}
