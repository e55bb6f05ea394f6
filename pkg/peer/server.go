// Package peer is a practice game server. Every connection gets its own
// Mersenne Twister; each guess draws one output, reveals it as guess_id and
// judges the guess against (output mod range) + 1.
package peer

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"twister/pkg/proto"
	"twister/pkg/session"
)

// ---------------------------------------------------------
// CONFIGURATION
// ---------------------------------------------------------

const (
	DefaultAddr        = "0.0.0.0:3080"
	DefaultFlag        = "flag{not_so_random_after_all}"
	DefaultIdleTimeout = 2 * time.Minute
	shutdownTimeout    = 5 * time.Second
)

type Config struct {
	Addr   string
	Range  uint32
	Target int
	Flag   string

	// Seed seeds every connection's generator when non-negative; otherwise
	// each connection draws a seed from crypto/rand.
	Seed int64

	// Rate limits guesses per second per connection; 0 means unlimited.
	Rate  float64
	Burst int

	IdleTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:        DefaultAddr,
		Range:       session.DefaultRange,
		Target:      session.DefaultTarget,
		Flag:        DefaultFlag,
		Seed:        -1,
		Burst:       1,
		IdleTimeout: DefaultIdleTimeout,
	}
}

func (c Config) Validate() error {
	if c.Range == 0 {
		return fmt.Errorf("range must be positive")
	}
	if c.Target <= 0 {
		return fmt.Errorf("target must be positive, got %d", c.Target)
	}
	if c.Seed > int64(^uint32(0)) {
		return fmt.Errorf("seed %d does not fit in 32 bits", c.Seed)
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate must not be negative")
	}
	return nil
}

// ---------------------------------------------------------
// SERVER
// ---------------------------------------------------------

type Server struct {
	cfg      Config
	logger   *zap.Logger
	metrics  *metrics
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
	router   *mux.Router

	wg     sync.WaitGroup
	mu     sync.Mutex
	active int
}

// NewServer builds a server. reg receives the server's collectors and backs
// the /metrics endpoint; a nil reg gets a private registry.
func NewServer(cfg Config, logger *zap.Logger, reg *prometheus.Registry) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		metrics:  newMetrics(reg),
		gatherer: reg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.router }

// Active returns the number of open game connections.
func (s *Server) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ListenAndServe listens on the configured address until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// and waits for every game connection to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.logger.Info("Game server listening",
		zap.String("addr", ln.Addr().String()),
		zap.Uint32("range", s.cfg.Range),
		zap.Int("target", s.cfg.Target),
		zap.Bool("fixed_seed", s.cfg.Seed >= 0))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("game server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Game server shutdown failed", zap.Error(err))
		}
		return nil
	})

	err := g.Wait()
	s.wg.Wait()
	s.logger.Info("Game server stopped")
	return err
}

// HandleConnection plays one game over an upgraded websocket.
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	s.wg.Add(1)
	defer s.wg.Done()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	defer ws.Close()

	// Unblock the read loop when the server shuts down.
	stop := context.AfterFunc(r.Context(), func() { ws.Close() })
	defer stop()

	seed := s.nextSeed()
	g := newGame(uuid.NewString(), seed, s.cfg.Range, s.cfg.Target, s.cfg.Flag)
	log := s.logger.With(zap.String("game", g.id), zap.String("remote", r.RemoteAddr))

	s.track(1)
	defer s.track(-1)
	log.Info("Game started")

	limit := rate.Inf
	if s.cfg.Rate > 0 {
		limit = rate.Limit(s.cfg.Rate)
	}
	limiter := rate.NewLimiter(limit, s.cfg.Burst)

	for {
		if s.cfg.IdleTimeout > 0 {
			ws.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("Read failed", zap.Error(err))
			}
			break
		}
		if err := limiter.Wait(r.Context()); err != nil {
			break
		}

		msg, err := proto.Expect(data, proto.TypeGuess)
		if err != nil {
			s.metrics.invalid.Inc()
			log.Warn("Rejected message", zap.Error(err))
			if err := ws.WriteJSON(&proto.ErrorMessage{Type: proto.TypeError, Error: err.Error()}); err != nil {
				break
			}
			continue
		}

		res, flag := g.play(msg.(*proto.GuessRequest).Number)
		s.metrics.guesses.WithLabelValues(res.Result).Inc()
		if err := ws.WriteJSON(res); err != nil {
			log.Debug("Write failed", zap.Error(err))
			break
		}
		if flag != nil {
			s.metrics.flags.Inc()
			log.Info("Score target reached, releasing flag", zap.Int("rounds", g.rounds))
			if err := ws.WriteJSON(flag); err != nil {
				break
			}
		}
	}

	log.Info("Game ended", zap.Int("rounds", g.rounds), zap.Int("score", g.score), zap.Bool("won", g.flagSent))
}

func (s *Server) track(delta int) {
	s.mu.Lock()
	s.active += delta
	s.mu.Unlock()
	if delta > 0 {
		s.metrics.connections.Inc()
	}
	s.metrics.active.Add(float64(delta))
}

func (s *Server) nextSeed() uint32 {
	if s.cfg.Seed >= 0 {
		return uint32(s.cfg.Seed)
	}
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		s.logger.Error("crypto/rand failed, using time-based seed", zap.Error(err))
		return uint32(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint32(b[:])
}
