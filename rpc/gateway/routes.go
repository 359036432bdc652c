package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ValentinKolb/kvd/lib/db"
	"github.com/ValentinKolb/kvd/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"io"
	"net/http"
	"strconv"
	"time"
)

func (g *Gateway) registerRoutes() {
	g.mux.HandleFunc("GET /health", g.handleHealth)
	g.mux.HandleFunc("GET /stats", g.handleStats)
	g.mux.HandleFunc("GET /metrics", g.handleMetrics)

	g.mux.HandleFunc("GET /kv/{$}", g.handleList)
	g.mux.HandleFunc("GET /kv/{key}", g.handleGet)
	g.mux.HandleFunc("GET /kv/{key}/{rest...}", g.handleKeySub)
	g.mux.HandleFunc("POST /kv/{key}", g.handleCreate)
	g.mux.HandleFunc("PUT /kv/{key}", g.handleUpdate)
	g.mux.HandleFunc("DELETE /kv/{key}", g.handleDelete)
	g.mux.HandleFunc("DELETE /kv/prefix/{prefix...}", g.handleDeletePrefix)

	g.mux.HandleFunc("POST /batch", g.handleBatch)
	g.mux.HandleFunc("POST /backup", g.handleBackup)
	g.mux.HandleFunc("POST /compact", g.handleCompact)
}

// --------------------------------------------------------------------------
// Response Types
// --------------------------------------------------------------------------

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

type infoResponse struct {
	Key         string `json:"key"`
	Size        int    `json:"size"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
	AccessCount uint64 `json:"access_count"`
}

type existsResponse struct {
	Exists bool `json:"exists"`
}

type deletePrefixResponse struct {
	DeletedCount int `json:"deleted_count"`
}

type batchItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type batchResponse struct {
	SuccessCount int `json:"success_count"`
}

type backupResponse struct {
	Status string `json:"status"`
	Path   string `json:"path"`
}

// --------------------------------------------------------------------------
// Service Routes
// --------------------------------------------------------------------------

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Timestamp: time.Now().Unix()})
}

func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	st, ok := g.storeOf(w, r)
	if !ok {
		return
	}

	stats, err := st.Stats()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (g *Gateway) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	g.metrics.WritePrometheus(w)
	for _, write := range g.opts.Metrics {
		write(w)
	}
	metrics.WritePrometheus(w, true)
}

// --------------------------------------------------------------------------
// Key Routes
// --------------------------------------------------------------------------

func (g *Gateway) handleList(w http.ResponseWriter, r *http.Request) {
	st, ok := g.storeOf(w, r)
	if !ok {
		return
	}

	// an unparsable limit is ignored
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	keys, err := st.List(r.URL.Query().Get("prefix"), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if len(keys) == 0 {
		writeJSON(w, http.StatusNotFound, []string{})
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (g *Gateway) handleGet(w http.ResponseWriter, r *http.Request) {
	st, ok := g.storeOf(w, r)
	if !ok {
		return
	}

	value, err := st.Get(r.PathValue("key"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(value); err != nil {
		Logger.Errorf("Failed to write response: %v", err)
	}
}

// handleKeySub serves GET /kv/{key}/info, GET /kv/{key}/exists and GET /kv/r/{regex}.
// They share one pattern because the mux can not tell /kv/r/{regex} from /kv/{key}/info.
func (g *Gateway) handleKeySub(w http.ResponseWriter, r *http.Request) {
	key, rest := r.PathValue("key"), r.PathValue("rest")

	switch {
	case key == "r" && rest == "":
		http.NotFound(w, r)
	case key == "r":
		g.handleSearch(w, r, rest)
	case rest == "info":
		g.handleInfo(w, r, key)
	case rest == "exists":
		g.handleExists(w, r, key)
	default:
		http.NotFound(w, r)
	}
}

func (g *Gateway) handleInfo(w http.ResponseWriter, r *http.Request, key string) {
	st, ok := g.storeOf(w, r)
	if !ok {
		return
	}

	meta, err := st.Info(key)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infoResponse{
		Key:         key,
		Size:        meta.Size,
		CreatedAt:   meta.CreatedAt.Unix(),
		UpdatedAt:   meta.UpdatedAt.Unix(),
		AccessCount: meta.AccessCount,
	})
}

func (g *Gateway) handleExists(w http.ResponseWriter, r *http.Request, key string) {
	st, ok := g.storeOf(w, r)
	if !ok {
		return
	}

	exists, err := st.Exists(key)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existsResponse{Exists: exists})
}

func (g *Gateway) handleSearch(w http.ResponseWriter, r *http.Request, pattern string) {
	st, ok := g.storeOf(w, r)
	if !ok {
		return
	}

	values, err := st.Search(pattern)
	if errors.Is(err, db.ErrInvalidPattern) {
		http.Error(w, fmt.Sprintf("Invalid regex pattern: %s", errorMessage(err)), http.StatusBadRequest)
		return
	} else if err != nil {
		writeStoreError(w, err)
		return
	}

	if len(values) == 0 {
		http.Error(w, "No values matched the pattern", http.StatusNotFound)
		return
	}

	result := make([]string, len(values))
	for i, v := range values {
		result[i] = string(v)
	}
	writeJSON(w, http.StatusOK, result)
}

func (g *Gateway) handleCreate(w http.ResponseWriter, r *http.Request) {
	st, ok := g.storeOf(w, r)
	if !ok {
		return
	}

	value, ok := readBody(w, r)
	if !ok {
		return
	}

	if err := st.Create(r.PathValue("key"), value); err != nil {
		writeStoreError(w, err)
		return
	}
	writeText(w, http.StatusCreated, "OK")
}

func (g *Gateway) handleUpdate(w http.ResponseWriter, r *http.Request) {
	st, ok := g.storeOf(w, r)
	if !ok {
		return
	}

	value, ok := readBody(w, r)
	if !ok {
		return
	}

	if err := st.Update(r.PathValue("key"), value); err != nil {
		writeStoreError(w, err)
		return
	}
	writeText(w, http.StatusOK, "OK")
}

func (g *Gateway) handleDelete(w http.ResponseWriter, r *http.Request) {
	st, ok := g.storeOf(w, r)
	if !ok {
		return
	}

	if err := st.Delete(r.PathValue("key")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeText(w, http.StatusOK, "OK")
}

// handleDeletePrefix serves DELETE /kv/prefix/{prefix}. The wildcard also matches an
// empty remainder, which must not reach the store as "delete everything".
func (g *Gateway) handleDeletePrefix(w http.ResponseWriter, r *http.Request) {
	prefix := r.PathValue("prefix")
	if prefix == "" {
		http.NotFound(w, r)
		return
	}

	st, ok := g.storeOf(w, r)
	if !ok {
		return
	}

	count, err := st.DeletePrefix(prefix)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deletePrefixResponse{DeletedCount: count})
}

// --------------------------------------------------------------------------
// Maintenance Routes
// --------------------------------------------------------------------------

func (g *Gateway) handleBatch(w http.ResponseWriter, r *http.Request) {
	st, ok := g.storeOf(w, r)
	if !ok {
		return
	}

	var items []batchItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		http.Error(w, fmt.Sprintf("Invalid batch: %v", err), http.StatusBadRequest)
		return
	}

	pairs := make([]db.Pair, len(items))
	for i, item := range items {
		pairs[i] = db.Pair{Key: item.Key, Value: []byte(item.Value)}
	}

	count, err := st.BatchSet(pairs)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{SuccessCount: count})
}

func (g *Gateway) handleBackup(w http.ResponseWriter, r *http.Request) {
	st, ok := g.storeOf(w, r)
	if !ok {
		return
	}

	path, err := st.Backup()
	if err != nil {
		http.Error(w, fmt.Sprintf("Backup failed: %s", errorMessage(err)), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, backupResponse{Status: "Backup created successfully", Path: path})
}

func (g *Gateway) handleCompact(w http.ResponseWriter, r *http.Request) {
	st, ok := g.storeOf(w, r)
	if !ok {
		return
	}

	if err := st.Compact(); err != nil {
		http.Error(w, fmt.Sprintf("Compaction failed: %s", errorMessage(err)), http.StatusInternalServerError)
		return
	}
	writeText(w, http.StatusOK, "Database compacted successfully")
}

// --------------------------------------------------------------------------
// Response Helper
// --------------------------------------------------------------------------

// statusOf maps the code of a store error to a http status
func statusOf(code store.RetCode) int {
	switch code {
	case store.RetCNotFound:
		return http.StatusNotFound
	case store.RetCConflict:
		return http.StatusConflict
	case store.RetCEmptyKey, store.RetCKeyTooLarge, store.RetCValueTooLarge, store.RetCInvalidPattern:
		return http.StatusBadRequest
	case store.RetCClosed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeStoreError writes err with the status of its code
func writeStoreError(w http.ResponseWriter, err error) {
	code := store.CodeOf(err)
	switch code {
	case store.RetCNotFound:
		http.Error(w, "Key not found", http.StatusNotFound)
	case store.RetCConflict:
		http.Error(w, "Key already exists", http.StatusConflict)
	default:
		if statusOf(code) == http.StatusInternalServerError {
			Logger.Errorf("store error: %v", err)
		}
		http.Error(w, errorMessage(err), statusOf(code))
	}
}

// errorMessage returns the message of a store error without the code prefix
func errorMessage(err error) string {
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return storeErr.Msg
	}
	return err.Error()
}

// readBody reads a value from the request body. Bodies larger than a value may be
// are rejected.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	value, err := io.ReadAll(http.MaxBytesReader(w, r.Body, db.MaxValueSize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, db.ErrValueTooLarge.Error(), http.StatusRequestEntityTooLarge)
		} else {
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
		}
		return nil, false
	}
	return value, true
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, text); err != nil {
		Logger.Errorf("Failed to write response: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Errorf("Failed to write response: %v", err)
	}
}
