// Package api exposes the roll database over JSON HTTP endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/avielmenter/CritiQL/internal/app"
	"github.com/avielmenter/CritiQL/internal/adapters/repository"
	"github.com/avielmenter/CritiQL/internal/domain/ingest"
	"github.com/avielmenter/CritiQL/internal/domain/model"
	"github.com/avielmenter/CritiQL/internal/domain/query"
	"github.com/avielmenter/CritiQL/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SyncDependencies
	RefreshDependencies
	StatsProvider

	FindEpisodes(ctx context.Context, f query.EpisodeFilter) ([]model.Episode, error)
	FindParticipants(ctx context.Context, f query.ParticipantFilter) ([]model.Participant, error)
	RollDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps           Dependencies
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	syncHandler    *SyncHandler
	episodeHandler *EpisodeHandler
	rollHandler    *RollHandler
	logger         logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		deps:           deps,
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		syncHandler:    NewSyncHandler(deps),
		episodeHandler: NewEpisodeHandler(deps),
		rollHandler:    NewRollHandler(deps),
		logger:         logger.Get().Named("api"),
	}
}

// Register attaches all HTTP routes to mux. Read endpoints go through the
// refresh middleware so that traffic keeps the data current.
func (s *Server) Register(mux *http.ServeMux) {
	refresh := func(next http.HandlerFunc) http.HandlerFunc {
		return RefreshMiddleware(next, s.deps, s.logger)
	}

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /sync", MetricsMiddleware(s.syncHandler.HandleSync, "sync"))
	mux.HandleFunc("GET /episodes", MetricsMiddleware(refresh(s.episodeHandler.HandleEpisodes), "episodes"))
	mux.HandleFunc("GET /participants", MetricsMiddleware(refresh(s.episodeHandler.HandleParticipants), "participants"))
	mux.HandleFunc("GET /rolls", MetricsMiddleware(refresh(s.rollHandler.HandleRolls), "rolls"))
	mux.HandleFunc("GET /rolls/count", MetricsMiddleware(refresh(s.rollHandler.HandleCount), "rolls_count"))
	mux.HandleFunc("GET /rolls/aggregate", MetricsMiddleware(refresh(s.rollHandler.HandleAggregate), "rolls_aggregate"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps domain errors to HTTP statuses.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, query.ErrInvalidID),
		errors.Is(err, query.ErrInvalidLimit),
		errors.Is(err, query.ErrUnknownRollType),
		errors.Is(err, query.ErrUnknownSkillGroup),
		errors.Is(err, query.ErrUnknownField),
		errors.Is(err, service.ErrNoDocuments):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, ingest.ErrSourceUnavailable):
		writeError(w, http.StatusBadGateway, "source_unavailable", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
