package api

import (
	"net/http"

	"github.com/avielmenter/CritiQL/internal/domain/model"
	"github.com/avielmenter/CritiQL/internal/domain/query"
)

// EpisodeHandler serves episode and participant listings.
type EpisodeHandler struct {
	deps Dependencies
}

// NewEpisodeHandler creates a new episode handler.
func NewEpisodeHandler(deps Dependencies) *EpisodeHandler {
	return &EpisodeHandler{deps: deps}
}

// HandleEpisodes handles GET /episodes.
func (h *EpisodeHandler) HandleEpisodes(w http.ResponseWriter, r *http.Request) {
	p := newParams(r.URL.Query())
	f := query.EpisodeFilter{
		ID:             p.str("id"),
		Campaign:       p.integer("campaign"),
		Ordinal:        p.integer("episode_no"),
		Title:          p.str("title"),
		OrdinalAtLeast: p.integer("episode_no_min"),
		OrdinalAtMost:  p.integer("episode_no_max"),
		Limit:          p.limit(),
	}
	if p.err != nil {
		writeFailure(w, p.err)
		return
	}

	episodes, err := h.deps.FindEpisodes(r.Context(), f)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if episodes == nil {
		episodes = []model.Episode{}
	}
	writeJSON(w, http.StatusOK, episodes)
}

// HandleParticipants handles GET /participants.
func (h *EpisodeHandler) HandleParticipants(w http.ResponseWriter, r *http.Request) {
	p := newParams(r.URL.Query())
	f := query.ParticipantFilter{
		ID:    p.str("id"),
		Name:  p.str("name"),
		Key:   p.str("key"),
		Limit: p.limit(),
	}
	if p.err != nil {
		writeFailure(w, p.err)
		return
	}

	participants, err := h.deps.FindParticipants(r.Context(), f)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if participants == nil {
		participants = []model.Participant{}
	}
	writeJSON(w, http.StatusOK, participants)
}
