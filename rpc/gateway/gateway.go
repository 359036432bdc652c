package gateway

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/kvd/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

var Logger = logger.GetLogger("gateway")

const (
	requestIDHeader = "X-Request-ID"
	shutdownTimeout = 5 * time.Second
)

// --------------------------------------------------------------------------
// Store Provider
// --------------------------------------------------------------------------

// IStoreProvider resolves the store of a shard. It is implemented by the RPC server
// (local shards) and by StoreMap (e.g. remote stores of an RPC client).
type IStoreProvider interface {
	Store(shardId uint64) (store.IStore, bool)
}

// StoreMap is a fixed set of stores by shard id
type StoreMap map[uint64]store.IStore

func (m StoreMap) Store(shardId uint64) (store.IStore, bool) {
	st, ok := m[shardId]
	return st, ok
}

// --------------------------------------------------------------------------
// Gateway
// --------------------------------------------------------------------------

// Options configures the gateway
type Options struct {
	// DefaultShard is used if a request has no shard query parameter
	DefaultShard uint64
	// Metrics are additional writers of Prometheus metrics exported at /metrics
	Metrics []func(w io.Writer)
	// Debug logs every request
	Debug bool
}

// Gateway serves the stores of a provider over a REST API.
//
// Routes (the shard is selected with ?shard=<id>, default Options.DefaultShard):
//
//	GET    /health               {"status":"healthy","timestamp":<unix>}
//	GET    /stats                statistics of the store
//	GET    /metrics              Prometheus metrics
//	GET    /kv/?prefix=&limit=   sorted keys (404 with [] if there are none)
//	GET    /kv/{key}             raw value
//	GET    /kv/{key}/info        metadata
//	GET    /kv/{key}/exists      {"exists":bool}
//	POST   /kv/{key}             create (201, 409 if the key exists)
//	PUT    /kv/{key}             update (404 if the key does not exist)
//	DELETE /kv/{key}             delete
//	DELETE /kv/prefix/{prefix}   {"deleted_count":n}
//	GET    /kv/r/{regex}         values of matching keys (404 if none match)
//	POST   /batch                [{"key","value"}] -> {"success_count":n}
//	POST   /backup               {"status","path"}
//	POST   /compact
//
// Thread-safety: ServeHTTP is safe for concurrent use.
type Gateway struct {
	provider IStoreProvider
	opts     Options
	mux      *http.ServeMux
	metrics  *metrics.Set

	mu     sync.Mutex // Protects server and closed
	server *http.Server
	closed bool
}

// NewGateway creates a new gateway for the stores of provider
func NewGateway(provider IStoreProvider, opts Options) *Gateway {
	g := &Gateway{
		provider: provider,
		opts:     opts,
		mux:      http.NewServeMux(),
		metrics:  metrics.NewSet(),
	}
	g.registerRoutes()
	return g
}

// ServeHTTP implements http.Handler. Every request gets a request id (the X-Request-ID
// header of the request or a new uuid) and is counted in the request metrics.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	requestID := r.Header.Get(requestIDHeader)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	w.Header().Set(requestIDHeader, requestID)

	rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
	g.mux.ServeHTTP(rw, r)

	route := r.Pattern
	if route == "" {
		route = "unmatched"
	}
	g.metrics.GetOrCreateCounter(fmt.Sprintf(`kvd_http_requests_total{route=%q,status="%d"}`, route, rw.statusCode)).Inc()
	g.metrics.GetOrCreateHistogram(fmt.Sprintf(`kvd_http_request_duration_seconds{route=%q}`, route)).UpdateDuration(start)

	if g.opts.Debug {
		Logger.Debugf("[%s] %s %s => %d took %s", requestID, r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	}
}

// Listen serves the gateway on endpoint. It blocks until Close is called (returns nil)
// or the server fails.
func (g *Gateway) Listen(endpoint string) error {
	server := &http.Server{
		Addr:              endpoint,
		Handler:           g,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.server = server
	g.mu.Unlock()

	Logger.Infof("Starting HTTP gateway on %s", endpoint)

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close stops the gateway and waits for running requests
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.closed = true
	if g.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := g.server.Shutdown(ctx)
	g.server = nil
	return err
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// storeOf resolves the store addressed by the request. It writes the error response
// and returns false if there is none.
func (g *Gateway) storeOf(w http.ResponseWriter, r *http.Request) (store.IStore, bool) {
	shardId := g.opts.DefaultShard
	if s := r.URL.Query().Get("shard"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			http.Error(w, "Invalid shard", http.StatusBadRequest)
			return nil, false
		}
		shardId = id
	}

	st, ok := g.provider.Store(shardId)
	if !ok {
		http.Error(w, fmt.Sprintf("Shard %d not found", shardId), http.StatusNotFound)
		return nil, false
	}
	return st, true
}

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
