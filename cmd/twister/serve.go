package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"twister/pkg/peer"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a practice game server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.load()
			if err != nil {
				return err
			}

			logger, err := newZapLogger(s.Verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			srv, err := peer.NewServer(s.Peer(), logger, prometheus.NewRegistry())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}

	f := cmd.Flags()
	f.String("addr", "", "listen address")
	f.String("flag", "", "flag released when the score target is reached")
	f.Int64("seed", 0, "fixed generator seed for every game (negative draws a random seed per game)")
	f.Float64("rate", 0, "guesses per second allowed per connection (0 is unlimited)")
	f.Int("burst", 0, "rate limiter burst")
	f.Duration("idle-timeout", 0, "close games idle for this long")
	a.bindKey(cmd, "serve.addr", "addr")
	a.bindKey(cmd, "serve.flag", "flag")
	a.bindKey(cmd, "serve.seed", "seed")
	a.bindKey(cmd, "serve.rate", "rate")
	a.bindKey(cmd, "serve.burst", "burst")
	a.bindKey(cmd, "serve.idle_timeout", "idle-timeout")
	return cmd
}
