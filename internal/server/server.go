// Package server exposes the operation log over HTTP: an idempotent
// batch append, a cursor-based incremental fetch, and a WebSocket push
// channel that tells subscribed sessions when a document's log grows.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sketchsync/sketchsync/internal/core/op"
	"github.com/sketchsync/sketchsync/internal/store"
)

type Server struct {
	cfg      Config
	st       store.Store
	hub      *Hub
	notifier store.Notifier
	log      *zap.Logger
	http     *http.Server
}

// New wires the RPC surface around a store backend. notifier may be
// nil for single-instance deployments.
func New(cfg Config, st store.Store, notifier store.Notifier, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		st:       st,
		hub:      NewHub(logger),
		notifier: notifier,
		log:      logger,
	}
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Router builds the HTTP routes. Exposed for httptest in addition to
// Start.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/documents/{documentID}/operations", s.handleAppend).Methods(http.MethodPost)
	r.HandleFunc("/v1/documents/{documentID}/operations", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/v1/documents/{documentID}/ws", s.handleSubscribe).Methods(http.MethodGet)
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully. If
// a notifier is configured, appends from other instances are folded
// into the local push hub.
func (s *Server) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("listening", zap.String("addr", s.cfg.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if s.notifier != nil {
		g.Go(func() error {
			err := s.notifier.Subscribe(ctx, s.hub.Broadcast)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.hub.Close()
		return s.http.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["documentID"]

	var req store.AppendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.ClientID == "" {
		httpError(w, http.StatusBadRequest, "clientId is required")
		return
	}

	// Schema-validate before accepting; malformed operations are
	// rejected per entry, not by failing the whole batch.
	batch := make([]op.Operation, 0, len(req.Operations))
	for _, wireOp := range req.Operations {
		o := wireOp.Operation
		if o.ID == "" {
			o.ID = wireOp.OperationID
		}
		if err := o.Validate(); err != nil {
			s.log.Warn("rejecting malformed operation",
				zap.String("document", documentID),
				zap.String("operation", wireOp.OperationID),
				zap.Error(err),
			)
			continue
		}
		batch = append(batch, o)
	}

	res, err := s.st.AppendOperations(r.Context(), documentID, req.ClientID, batch)
	if err != nil {
		s.log.Error("append failed", zap.String("document", documentID), zap.Error(err))
		httpError(w, statusFor(err), "append failed")
		return
	}

	if res.AppliedCount > 0 {
		s.hub.Broadcast(documentID, res.LastPosition)
		if s.notifier != nil {
			if err := s.notifier.Publish(r.Context(), documentID, res.LastPosition); err != nil {
				s.log.Warn("publish append event failed", zap.Error(err))
			}
		}
	}

	writeJSON(w, store.AppendResponse{
		LastPosition: res.LastPosition,
		AppliedCount: res.AppliedCount,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["documentID"]

	since := int64(0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid since position")
			return
		}
		since = parsed
	}
	exclude := r.URL.Query().Get("excludeClient")

	recs, err := s.st.GetOperationsSince(r.Context(), documentID, since, exclude)
	if err != nil {
		s.log.Error("fetch failed", zap.String("document", documentID), zap.Error(err))
		httpError(w, statusFor(err), "fetch failed")
		return
	}
	if recs == nil {
		recs = []store.Record{}
	}
	writeJSON(w, store.OperationsResponse{Operations: recs})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	s.hub.Subscribe(w, r, mux.Vars(r)["documentID"])
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, store.ErrEmptyDocumentID):
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
