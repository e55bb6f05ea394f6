package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"twister/pkg/config"
	"twister/pkg/session"
	"twister/pkg/telemetry"
	"twister/pkg/transport"
)

func newCrackCmd(a *app) *cobra.Command {
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "crack",
		Short: "Play the game: collect 624 outputs, clone the generator, win",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.load()
			if err != nil {
				return err
			}
			if err := s.ValidateTarget(); err != nil {
				return err
			}
			return runCrack(cmd, s, noProgress)
		},
	}

	f := cmd.Flags()
	f.String("url", "", "websocket URL of the game")
	f.Duration("timeout", 0, "per-message read timeout (0 disables)")
	f.Duration("handshake-timeout", 0, "websocket handshake timeout")
	f.Int("placeholder", 0, "number sent while collecting outputs")
	f.Bool("insecure", false, "skip TLS certificate verification for wss://")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address while running")
	f.BoolVar(&noProgress, "no-progress", false, "disable progress bars")
	a.bind(cmd, "url", "timeout", "placeholder", "insecure")
	a.bindKey(cmd, "handshake_timeout", "handshake-timeout")
	a.bindKey(cmd, "metrics_addr", "metrics-addr")
	return cmd
}

func runCrack(cmd *cobra.Command, s *config.Settings, noProgress bool) error {
	log := newLogger(s.Verbose, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	metrics := session.NewMetrics(reg)
	if s.MetricsAddr != "" {
		mctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := telemetry.ServeMetrics(mctx, s.MetricsAddr, reg, log); err != nil {
				log.WithError(err).Warn("Metrics server unavailable")
			}
		}()
		defer func() {
			cancel()
			<-done
		}()
	}

	log.WithFields(logrus.Fields{
		"url":    s.URL,
		"range":  s.Range,
		"target": s.Target,
	}).Info("Connecting to game")

	conn, err := transport.Dial(ctx, s.URL, s.Transport())
	if err != nil {
		return err
	}
	defer conn.Close()

	opts := []session.Option{session.WithLogger(log), session.WithMetrics(metrics)}
	var bars *progress
	if !noProgress {
		bars = newProgress(cmd.ErrOrStderr(), s.Target)
		opts = append(opts, session.WithObserver(bars))
	}

	res, err := session.New(conn, s.Session(), opts...).Run(ctx)
	if bars != nil {
		bars.Finish()
	}
	if err != nil {
		return &phaseError{phase: res.Phase, err: err}
	}

	printFlag(cmd.OutOrStdout(), res)
	return nil
}

func printFlag(w io.Writer, res *session.Result) {
	banner := color.New(color.FgGreen, color.Bold)
	banner.Fprintf(w, "Flag: %s\n", res.Flag)
	fmt.Fprintf(w, "score %d after %d guesses and %d observations in %s\n",
		res.Score, res.Guesses, res.Observations, res.Elapsed.Round(time.Millisecond))
}
