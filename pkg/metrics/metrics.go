// Package metrics runs the node's optional /metrics (Prometheus) and
// /debug/pprof HTTP endpoints — the operator-facing surfaces called out
// in SPEC_FULL.md's observability section, separate from the JSON-RPC
// boundary pkg/rpc/server owns.
package metrics

import (
	"context"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/noriachain/neonode/pkg/config"
)

// Service is a tiny HTTP server exposing one diagnostic endpoint; it is
// a no-op if its configuration is disabled or carries no address.
type Service struct {
	cfg  config.BasicService
	name string
	log  *zap.Logger
	http *http.Server
}

// NewPrometheusService builds the Prometheus text-exposition endpoint.
func NewPrometheusService(cfg config.BasicService, log *zap.Logger) *Service {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return newService("Prometheus", cfg, mux, log)
}

// NewPprofService builds the net/http/pprof profiling endpoint.
func NewPprofService(cfg config.BasicService, log *zap.Logger) *Service {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return newService("Pprof", cfg, mux, log)
}

func newService(name string, cfg config.BasicService, mux *http.ServeMux, log *zap.Logger) *Service {
	return &Service{cfg: cfg, name: name, log: log, http: &http.Server{Handler: mux}}
}

// Start begins serving in the background; disabled or addressless
// services return immediately without error.
func (s *Service) Start() error {
	if s == nil || !s.cfg.Enabled || len(s.cfg.Addresses) == 0 {
		return nil
	}
	s.http.Addr = s.cfg.Addresses[0]
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error(s.name+" service exited", zap.Error(err))
		}
	}()
	s.log.Info(s.name+" service started", zap.String("addr", s.http.Addr))
	return nil
}

// ShutDown stops serving; safe to call on a disabled or nil Service.
func (s *Service) ShutDown() {
	if s == nil || !s.cfg.Enabled || len(s.cfg.Addresses) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.http.Shutdown(ctx)
}
