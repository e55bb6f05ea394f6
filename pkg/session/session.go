// Package session drives one game against a remote peer: it collects 624
// raw generator outputs, clones the generator, then answers every following
// round with the predicted number until the peer releases the flag.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"twister/pkg/mt19937"
	"twister/pkg/proto"
)

// ---------------------------------------------------------
// CONFIGURATION & CONSTANTS
// ---------------------------------------------------------

const (
	DefaultRange       = 1_000_000
	DefaultTarget      = 10_000
	DefaultPlaceholder = 1
)

var (
	ErrNoFlag         = errors.New("rounds exhausted without reaching the score target")
	ErrMissingGuessID = errors.New("guess_result without guess_id")
	ErrBadVerdict     = errors.New("guess_result with unknown result")
)

// Config describes the game being played.
type Config struct {
	Range       uint32 // guesses live in [1, Range]
	Target      int    // score the peer requires before it sends the flag
	Placeholder int    // number sent while collecting; its value is irrelevant
}

func DefaultConfig() Config {
	return Config{
		Range:       DefaultRange,
		Target:      DefaultTarget,
		Placeholder: DefaultPlaceholder,
	}
}

func (c Config) Validate() error {
	if c.Range == 0 {
		return fmt.Errorf("range must be positive")
	}
	if c.Target <= 0 {
		return fmt.Errorf("target must be positive, got %d", c.Target)
	}
	return nil
}

// ---------------------------------------------------------
// INTERFACES
// ---------------------------------------------------------

// Conn is one persistent message-oriented connection to the peer. Session
// strictly alternates Send and Recv and never pipelines requests.
type Conn interface {
	Send(ctx context.Context, v interface{}) error
	Recv(ctx context.Context) ([]byte, error)
}

// Observer is notified of progress. Calls happen on the session goroutine.
type Observer interface {
	OnObserve(collected, total int)
	OnGuess(round, score int)
}

type nopObserver struct{}

func (nopObserver) OnObserve(int, int) {}
func (nopObserver) OnGuess(int, int)   {}

// ---------------------------------------------------------
// ERRORS
// ---------------------------------------------------------

// DesyncError means the peer rejected a predicted guess: the cloned
// generator no longer mirrors the remote one.
type DesyncError struct {
	Round    int
	Expected int
	Guessed  int
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("generator desynchronized at round %d: peer expected %d, guessed %d",
		e.Round, e.Expected, e.Guessed)
}

// TransportError wraps a failed send or receive.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// Classify maps a Run error onto the terminal phase it represents.
func Classify(err error) proto.Phase {
	var (
		desync    *DesyncError
		violation *proto.ViolationError
		transport *TransportError
	)
	switch {
	case err == nil:
		return proto.PhaseSucceeded
	case errors.As(err, &desync):
		return proto.PhaseDesynchronized
	case errors.As(err, &transport):
		return proto.PhaseTransportError
	case errors.As(err, &violation), errors.Is(err, ErrNoFlag),
		errors.Is(err, ErrMissingGuessID), errors.Is(err, ErrBadVerdict):
		return proto.PhaseProtocolError
	}
	return proto.PhaseTransportError
}

// ---------------------------------------------------------
// SESSION
// ---------------------------------------------------------

// Result summarizes a finished session.
type Result struct {
	Phase        proto.Phase
	Flag         string
	Score        int
	Observations int
	Guesses      int
	Elapsed      time.Duration
}

// Session owns the observation window, the cloned generator and the score.
// It is single-use.
type Session struct {
	conn     Conn
	cfg      Config
	logger   logrus.FieldLogger
	observer Observer
	metrics  *Metrics

	phase proto.Phase
	gen   *mt19937.Generator
}

type Option func(*Session)

func WithLogger(l logrus.FieldLogger) Option { return func(s *Session) { s.logger = l } }
func WithObserver(o Observer) Option         { return func(s *Session) { s.observer = o } }
func WithMetrics(m *Metrics) Option          { return func(s *Session) { s.metrics = m } }

func New(conn Conn, cfg Config, opts ...Option) *Session {
	s := &Session{
		conn:     conn,
		cfg:      cfg,
		logger:   logrus.StandardLogger(),
		observer: nopObserver{},
		phase:    proto.PhaseCollecting,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Phase returns the current state of the session.
func (s *Session) Phase() proto.Phase { return s.phase }

// Run plays the whole game. The returned Result is never nil; its Phase is
// the terminal state, and err explains every state other than SUCCEEDED.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	if err := s.cfg.Validate(); err != nil {
		return &Result{Phase: s.phase}, fmt.Errorf("invalid session config: %w", err)
	}

	start := time.Now()
	res := &Result{}
	err := s.run(ctx, res)

	s.phase = Classify(err)
	res.Phase = s.phase
	res.Elapsed = time.Since(start)
	s.metrics.outcome(s.phase)

	fields := logrus.Fields{
		"phase":        s.phase.String(),
		"observations": res.Observations,
		"guesses":      res.Guesses,
		"score":        res.Score,
		"elapsed":      res.Elapsed.Round(time.Millisecond).String(),
	}
	if err != nil {
		s.logger.WithFields(fields).WithError(err).Error("Session aborted")
		return res, err
	}
	s.logger.WithFields(fields).Info("Session succeeded")
	return res, nil
}

func (s *Session) run(ctx context.Context, res *Result) error {
	window, err := s.collect(ctx, res)
	if err != nil {
		return err
	}

	s.gen, err = window.Clone()
	if err != nil {
		return err
	}
	s.phase = proto.PhaseReconstructed
	s.logger.WithField("observations", window.Len()).Info("Generator state reconstructed")

	return s.predict(ctx, res)
}

// collect sends placeholder guesses until the window holds exactly
// mt19937.StateSize raw outputs.
func (s *Session) collect(ctx context.Context, res *Result) (*mt19937.Window, error) {
	s.phase = proto.PhaseCollecting
	s.logger.WithField("count", mt19937.StateSize).Info("Collecting generator outputs")

	window := &mt19937.Window{}
	for window.Remaining() > 0 {
		msg, err := s.exchange(ctx, s.cfg.Placeholder, proto.TypeGuessResult)
		if err != nil {
			return nil, fmt.Errorf("collecting observation %d: %w", window.Len()+1, err)
		}
		result := msg.(*proto.GuessResult)
		if !result.HasGuessID() {
			return nil, fmt.Errorf("collecting observation %d: %w", window.Len()+1, ErrMissingGuessID)
		}
		if err := window.Add(result.GuessID); err != nil {
			return nil, err
		}

		res.Observations = window.Len()
		s.metrics.observed()
		s.observer.OnObserve(window.Len(), mt19937.StateSize)
	}
	return window, nil
}

// predict answers each round with the cloned generator's next output. The
// generator advances exactly once per round, in lockstep with the peer.
func (s *Session) predict(ctx context.Context, res *Result) error {
	s.phase = proto.PhasePredicting
	s.logger.WithFields(logrus.Fields{
		"target": s.cfg.Target,
		"range":  s.cfg.Range,
	}).Info("Predicting guesses")

	for round := 1; round <= s.cfg.Target; round++ {
		guess := int(mt19937.GuessRange(s.gen.Uint32(), s.cfg.Range))

		msg, err := s.exchange(ctx, guess, proto.TypeGuessResult)
		if err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}
		res.Guesses = round
		s.metrics.guessed()
		result := msg.(*proto.GuessResult)

		switch result.Result {
		case proto.ResultCorrect:
		case proto.ResultIncorrect:
			return &DesyncError{Round: round, Expected: result.Number, Guessed: guess}
		default:
			return fmt.Errorf("round %d: %w: %q", round, ErrBadVerdict, result.Result)
		}

		res.Score = result.Score
		s.observer.OnGuess(round, result.Score)
		s.logger.WithFields(logrus.Fields{
			"round": round,
			"guess": guess,
			"score": result.Score,
		}).Debug("Guess accepted")

		if result.Score == s.cfg.Target {
			flag, err := s.awaitFlag(ctx)
			if err != nil {
				return err
			}
			res.Flag = flag
			return nil
		}
	}
	return fmt.Errorf("%w: score %d of %d", ErrNoFlag, res.Score, s.cfg.Target)
}

func (s *Session) awaitFlag(ctx context.Context) (string, error) {
	s.logger.Info("Score target reached, waiting for flag")

	raw, err := s.conn.Recv(ctx)
	if err != nil {
		return "", &TransportError{Op: "recv flag", Err: err}
	}
	msg, err := proto.Expect(raw, proto.TypeFlag)
	if err != nil {
		return "", err
	}
	return msg.(*proto.FlagMessage).Flag, nil
}

// exchange sends one guess and waits for the single reply it provokes.
func (s *Session) exchange(ctx context.Context, number int, want proto.MessageType) (interface{}, error) {
	if err := s.conn.Send(ctx, proto.NewGuess(number)); err != nil {
		return nil, &TransportError{Op: "send guess", Err: err}
	}
	raw, err := s.conn.Recv(ctx)
	if err != nil {
		return nil, &TransportError{Op: "recv " + string(want), Err: err}
	}
	return proto.Expect(raw, want)
}
