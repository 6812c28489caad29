package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/wildlens/wildlens-go/internal/conf"
	"github.com/wildlens/wildlens-go/internal/logger"
)

// ShutdownTimeout bounds the graceful shutdown of the metrics server.
const ShutdownTimeout = 5 * time.Second

// Endpoint serves /metrics over plain HTTP.
type Endpoint struct {
	listenAddress string
	metrics       *Metrics
	server        *http.Server
	listener      net.Listener
	wg            sync.WaitGroup
}

// NewEndpoint creates the metrics endpoint. It fails when metrics are disabled.
func NewEndpoint(settings *conf.Settings, metrics *Metrics) (*Endpoint, error) {
	if !settings.Metrics.Enabled {
		return nil, errors.New("metrics endpoint not enabled in settings")
	}
	return &Endpoint{
		listenAddress: settings.Metrics.Listen,
		metrics:       metrics,
	}, nil
}

// Start binds the listen address and serves until ctx is cancelled.
func (e *Endpoint) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", e.listenAddress)
	if err != nil {
		return err
	}
	e.listener = ln

	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)
	e.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log := GetLogger()
	e.wg.Go(func() {
		log.Info("metrics endpoint starting", logger.String("address", ln.Addr().String()))
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics HTTP server error", logger.Error(err))
		}
	})
	e.wg.Go(func() {
		<-ctx.Done()
		log.Info("stopping metrics endpoint")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := e.server.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics server shutdown error", logger.Error(err))
		}
	})
	return nil
}

// Addr returns the bound address once Start succeeded.
func (e *Endpoint) Addr() string {
	if e.listener == nil {
		return e.listenAddress
	}
	return e.listener.Addr().String()
}

// Wait blocks until the server goroutines have exited.
func (e *Endpoint) Wait() {
	e.wg.Wait()
}

// GetLogger returns the observability module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("metrics")
}
