package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"avaxdash/internal/application"
	"avaxdash/internal/config"
	"avaxdash/internal/domain"
)

type RPCStatus interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

type Server struct {
	cfg        config.Config
	board      *application.Board
	queries    application.QuerySet
	rpc        RPCStatus
	validators Pinger
	metrics    *Metrics
	buildInfo  BuildInfo

	// streams parents every websocket view; hijacked connections are not
	// tracked by http.Server.Shutdown.
	streams     context.Context
	stopStreams context.CancelFunc
}

// NewServer serves the shared board over HTTP. Websocket viewers get their
// own subscriptions built from queries.
func NewServer(cfg config.Config, board *application.Board, queries application.QuerySet, rpc RPCStatus, validators Pinger, metrics *Metrics, buildInfo BuildInfo) (*Server, error) {
	if board == nil || rpc == nil {
		return nil, errors.New("http server dependencies must not be nil")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	streams, stopStreams := context.WithCancel(context.Background())
	return &Server{
		cfg:        cfg,
		board:      board,
		queries:    queries,
		rpc:        rpc,
		validators: validators,
		metrics:    metrics,
		buildInfo:  buildInfo,

		streams:     streams,
		stopStreams: stopStreams,
	}, nil
}

func (s *Server) MetricsObserver() *Metrics {
	return s.metrics
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/validators", s.handleValidators)
	mux.HandleFunc("/transactions", s.handleTransactions)
	mux.HandleFunc("/throughput", s.handleThroughput)
	mux.HandleFunc("/network", s.handleNetwork)
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/ws", s.handleStream)
	return mux
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.stopStreams()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// queryResponse is the envelope of every query endpoint. Stale is set when
// the latest fetch failed and Data is the last good collection.
type queryResponse struct {
	Data      any       `json:"data"`
	FetchedAt time.Time `json:"fetched_at"`
	Stale     bool      `json:"stale"`
	Error     string    `json:"error,omitempty"`
}

func envelope[T any](result application.Result[T], data any) queryResponse {
	return queryResponse{
		Data:      data,
		FetchedAt: result.FetchedAt,
		Stale:     result.Failed(),
		Error:     domain.FailureKind(result.Err),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.validators != nil {
		if err := s.validators.Ping(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, "validators registry not ready")
			return
		}
	}
	if _, err := s.rpc.LatestBlockNumber(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "rpc not ready")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleValidators(w http.ResponseWriter, r *http.Request) {
	view, err := parseValidatorView(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, ok := s.board.Validators()
	if !ok {
		respondError(w, http.StatusServiceUnavailable, "no data yet")
		return
	}
	respondJSON(w, http.StatusOK, envelope(result, application.FilterValidators(result.Data, view)))
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	view, err := parseTransactionView(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, ok := s.board.Transactions()
	if !ok {
		respondError(w, http.StatusServiceUnavailable, "no data yet")
		return
	}
	respondJSON(w, http.StatusOK, envelope(result, application.FilterTransactions(result.Data.Transactions, view)))
}

func (s *Server) handleThroughput(w http.ResponseWriter, r *http.Request) {
	result, ok := s.board.Throughput()
	if !ok {
		respondError(w, http.StatusServiceUnavailable, "no data yet")
		return
	}
	data := result.Data
	if data == nil {
		data = []domain.ThroughputPoint{}
	}
	respondJSON(w, http.StatusOK, envelope(result, data))
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	result, ok := s.board.Network()
	if !ok {
		respondError(w, http.StatusServiceUnavailable, "no data yet")
		return
	}
	respondJSON(w, http.StatusOK, envelope(result, result.Data))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"latest_block": s.metrics.Snapshot().LatestBlock,
		"config": map[string]any{
			"rpc_url":               s.cfg.RPCURL,
			"http_addr":             s.cfg.HTTPAddr,
			"throughput_window":     s.cfg.ThroughputWindow,
			"throughput_workers":    s.cfg.ThroughputWorkers,
			"validators_interval":   s.cfg.ValidatorsInterval.String(),
			"throughput_interval":   s.cfg.ThroughputInterval.String(),
			"transactions_interval": s.cfg.TransactionsInterval.String(),
			"network_interval":      s.cfg.NetworkInterval.String(),
			"validators_registry":   s.cfg.ValidatorsDSN != "",
			"redis_enabled":         s.cfg.RedisAddr != "",
			"kafka_enabled":         len(s.cfg.KafkaBrokers) > 0,
		},
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	snap := s.metrics.Snapshot()

	fmt.Fprintf(w, "avaxdash_uptime_seconds %.0f\n", time.Since(snap.StartTime).Seconds())
	fmt.Fprintf(w, "avaxdash_latest_block %d\n", snap.LatestBlock)
	for _, query := range sortedKeys(snap.Ticks) {
		fmt.Fprintf(w, "avaxdash_poll_ticks_total{query=%q} %d\n", query, snap.Ticks[query])
	}
	for _, query := range sortedKeys(snap.Failures) {
		kinds := snap.Failures[query]
		for _, kind := range sortedKeys(kinds) {
			fmt.Fprintf(w, "avaxdash_poll_failures_total{query=%q,kind=%q} %d\n", query, kind, kinds[kind])
		}
	}
	for _, query := range sortedKeys(snap.LastDuration) {
		fmt.Fprintf(w, "avaxdash_poll_last_duration_seconds{query=%q} %.3f\n", query, snap.LastDuration[query].Seconds())
	}
	for _, query := range sortedKeys(snap.LastSuccess) {
		fmt.Fprintf(w, "avaxdash_poll_last_success_timestamp{query=%q} %d\n", query, snap.LastSuccess[query].Unix())
	}
	for _, sink := range sortedKeys(snap.SinkSent) {
		fmt.Fprintf(w, "avaxdash_sink_published_total{sink=%q} %d\n", sink, snap.SinkSent[sink])
	}
	for _, sink := range sortedKeys(snap.SinkErrors) {
		fmt.Fprintf(w, "avaxdash_sink_errors_total{sink=%q} %d\n", sink, snap.SinkErrors[sink])
	}
	fmt.Fprintf(w, "avaxdash_ws_clients %d\n", snap.WSClients)
	fmt.Fprintf(w, "avaxdash_ws_connections_total %d\n", snap.WSTotal)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

func parseTransactionView(r *http.Request) (application.TransactionView, error) {
	query := r.URL.Query()
	sortBy, err := application.ParseTransactionSort(query.Get("sort"))
	if err != nil {
		return application.TransactionView{}, err
	}
	limit, err := parseLimit(r)
	if err != nil {
		return application.TransactionView{}, err
	}
	var minValue float64
	if raw := query.Get("min_value"); raw != "" {
		minValue, err = strconv.ParseFloat(raw, 64)
		if err != nil || minValue < 0 {
			return application.TransactionView{}, errors.New("invalid min_value")
		}
	}
	return application.TransactionView{SortBy: sortBy, MinValue: minValue, Limit: limit}, nil
}

func parseValidatorView(r *http.Request) (application.ValidatorView, error) {
	query := r.URL.Query()
	sortBy, err := application.ParseValidatorSort(query.Get("sort"))
	if err != nil {
		return application.ValidatorView{}, err
	}
	return application.ValidatorView{Search: query.Get("search"), SortBy: sortBy}, nil
}

func parseLimit(r *http.Request) (int, error) {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return 0, errors.New("invalid limit")
		}
		return value, nil
	}
	return 0, nil
}

// parseQueryNames reads a comma separated list of query names; empty means
// every query.
func parseQueryNames(r *http.Request) ([]string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("queries"))
	if raw == "" {
		return application.QueryNames, nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" || seen[name] {
			continue
		}
		known := false
		for _, candidate := range application.QueryNames {
			if candidate == name {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown query %q", name)
		}
		seen[name] = true
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, errors.New("queries must not be empty")
	}
	return names, nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
