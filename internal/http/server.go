// Package http exposes one registry node over HTTP: the gossip endpoints
// peers pull from and push to, and the rule API local applications use. It
// is the serving side of the transport contract the HTTPHandle client
// consumes.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rulereg/pkg/query"
	"rulereg/pkg/record"
	"rulereg/pkg/regerrors"
	"rulereg/pkg/types"
)

const (
	contentTypeJSON        = "application/json"
	defaultHTTPPort        = "8080"
	defaultShutdownTimeout = time.Second * 5
)

// iRegistryAPI is the slice of the registry the handlers need. It allows
// using a fake registry in tests.
type iRegistryAPI interface {
	Node() types.NodeID
	AddLocal(key types.Key, body json.RawMessage) error
	Update(key types.Key, body json.RawMessage) error
	Merge(key types.Key, incoming *record.Record) error
	Get(key types.Key) (json.RawMessage, bool)
	Records() []*record.Record
}

// Server represents the HTTP server for one node.
type Server struct {
	reg        iRegistryAPI
	coord      *query.Coordinator // optional cluster-wide reads
	metricsH   http.Handler       // optional /metrics
	httpServer *http.Server
	URL        string
	addr       string
}

// NewServer creates a new server instance around reg.
func NewServer(reg iRegistryAPI, port string) *Server {
	if port == "" {
		port = defaultHTTPPort
	}
	return &Server{
		reg:  reg,
		URL:  "http://localhost:" + port,
		addr: ":" + port,
	}
}

// WithCoordinator enables the cluster-wide rule listing endpoint.
func (s *Server) WithCoordinator(c *query.Coordinator) *Server {
	s.coord = c
	return s
}

// WithMetricsHandler mounts a scrape endpoint at /metrics.
func (s *Server) WithMetricsHandler(h http.Handler) *Server {
	s.metricsH = h
	return s
}

// Start starts the server.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.createRouter(),
		ReadHeaderTimeout: time.Second,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("HTTP server started", "addr", s.URL, "node", s.reg.Node())
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// createRouter builds the chi router.
func (s *Server) createRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	if s.metricsH != nil {
		r.Handle("/metrics", s.metricsH)
	}

	r.Get("/gossip/records", s.handleGossipPull)
	r.Post("/gossip/records", s.handleGossipPush)

	r.Post("/api/rules", s.handleAdd)
	r.Put("/api/rules/{key}", s.handleUpdate)
	r.Get("/api/rules/{key}", s.handleGet)
	r.Get("/api/rules", s.handleList)
	if s.coord != nil {
		r.Get("/api/cluster/rules", s.handleClusterList)
	}

	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Error encoding response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, NewOKResponse())
}

// handleGossipPull discloses the node's full record snapshot to a peer.
func (s *Server) handleGossipPull(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.reg.Records())
}

// handleGossipPush merges one record pushed by a peer. An unresolved
// conflict keeps the local record and reports 409 so the sender knows the
// pair needs application-level resolution.
func (s *Server) handleGossipPush(w http.ResponseWriter, r *http.Request) {
	var rec record.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("invalid record: "+err.Error()))
		return
	}
	if rec.Key == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("record key required"))
		return
	}

	if err := s.reg.Merge(rec.Key, &rec); err != nil {
		if errors.Is(err, regerrors.ErrUnresolvedConflict) {
			s.writeJSON(w, http.StatusConflict, NewConflictResponse(rec.Key, err.Error()))
			return
		}
		s.writeJSON(w, http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse(rec.Key))
}

type addRequest struct {
	Key  string          `json:"key"`
	Body json.RawMessage `json:"body"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("invalid request: "+err.Error()))
		return
	}
	if req.Key == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("key required"))
		return
	}

	if err := s.reg.AddLocal(req.Key, req.Body); err != nil {
		if errors.Is(err, regerrors.ErrKeyExists) {
			s.writeJSON(w, http.StatusConflict, NewErrorResponse(err.Error()))
			return
		}
		s.writeJSON(w, http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	s.writeJSON(w, http.StatusCreated, NewSuccessResponse(req.Key))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("invalid body: "+err.Error()))
		return
	}

	if err := s.reg.Update(key, body); err != nil {
		if errors.Is(err, regerrors.ErrNotFound) {
			s.writeJSON(w, http.StatusNotFound, NewErrorResponse(err.Error()))
			return
		}
		s.writeJSON(w, http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse(key))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	body, ok := s.reg.Get(key)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, NewErrorResponse("rule not found"))
		return
	}
	s.writeJSON(w, http.StatusOK, NewValueResponse(key, body))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.reg.Records())
}

type clusterListResponse struct {
	Records []*record.Record  `json:"records"`
	Missing []types.ShardID   `json:"missing_shards,omitempty"`
	Errors  map[string]string `json:"shard_errors,omitempty"`
}

// handleClusterList fans the read out across all shards. Partial results
// are served with the missing shards reported, never as a hard failure.
func (s *Server) handleClusterList(w http.ResponseWriter, r *http.Request) {
	res := s.coord.Query(r.Context())

	resp := clusterListResponse{
		Records: res.Records,
		Missing: res.Missing,
	}
	if len(res.Errs) > 0 {
		resp.Errors = make(map[string]string, len(res.Errs))
		for id, err := range res.Errs {
			resp.Errors[fmt.Sprintf("%d", id)] = err.Error()
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}
