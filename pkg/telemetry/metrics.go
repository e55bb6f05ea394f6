// Package telemetry exposes Prometheus metrics over HTTP.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

// ServeMetrics serves /metrics for gatherer on addr until ctx is cancelled.
func ServeMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer, log logrus.FieldLogger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return Serve(ctx, ln, gatherer, log)
}

// Serve is ServeMetrics on an existing listener.
func Serve(ctx context.Context, ln net.Listener, gatherer prometheus.Gatherer, log logrus.FieldLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	log.WithField("addr", ln.Addr().String()).Info("Metrics server started")

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Metrics server shutdown failed")
		return err
	}
	<-errc
	log.Info("Metrics server stopped")
	return nil
}
