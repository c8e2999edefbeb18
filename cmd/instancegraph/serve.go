package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chazu/instancegraph/internal/ctxlog"
	"github.com/chazu/instancegraph/pkg/payload"
	"github.com/chazu/instancegraph/pkg/store"
	"github.com/chazu/instancegraph/pkg/store/httpstore"
)

const shutdownTimeout = 5 * time.Second

func cmdServe(ctx context.Context, a *App, args []string, out io.Writer) error {
	fs := subcommand("serve")
	listen := fs.String("listen", a.cfg.Metrics.Listen, "`address` to listen on")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return usageErrorf("serve [-listen addr]")
	}
	if a.cfg.Store.Driver == store.DriverHTTP {
		return usageErrorf("serve needs a local store driver, not %q", a.cfg.Store.Driver)
	}
	s, err := openStore(ctx, a.cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           a.handler(s, a.metricsRegistry()),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	fmt.Fprintf(out, "serving %s store on %s\n", s.Driver(), ln.Addr())
	a.logger.Info("serving", "addr", ln.Addr().String(), "driver", string(s.Driver()), "metrics", a.cfg.Metrics.Enabled)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// metricsRegistry returns a registry with the runtime collectors, or nil
// when metrics are disabled.
func (a *App) metricsRegistry() *prometheus.Registry {
	if !a.cfg.Metrics.Enabled {
		return nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// handler mounts the store routes, payload stats and, with a registry,
// request metrics and /metrics.
//
//	GET /stats/{key...}   payload statistics as JSON
//	GET /metrics          Prometheus exposition
func (a *App) handler(s store.Store, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if reg != nil {
		r.Use(requestMetrics(reg))
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	httpstore.NewServer(s, a.logger).RegisterHTTP(r)

	conn := a.connector(s)
	r.Get("/stats/*", func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		ctx := ctxlog.WithLogger(r.Context(), a.logger)
		p, n, err := conn.Load(ctx, key)
		switch {
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		case errors.Is(err, store.ErrInvalidKey):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			a.logger.Error("stats failed", "key", key, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Key      string        `json:"key"`
			RootName string        `json:"rootName"`
			Units    string        `json:"units"`
			Bytes    int           `json:"bytes"`
			Stats    payload.Stats `json:"stats"`
		}{key, p.RootName, p.Units, n, p.Stats()})
	})
	return r
}

// requestMetrics counts requests by method and status code.
func requestMetrics(reg prometheus.Registerer) func(http.Handler) http.Handler {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "instancegraph",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method and status code.",
	}, []string{"method", "code"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "instancegraph",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
	reg.MustRegister(requests, latency)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			requests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
			latency.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		})
	}
}
