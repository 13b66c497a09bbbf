package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/avielmenter/CritiQL/internal/domain/ingest"
)

const maxSyncBody = 1 << 16

// SyncDependencies runs ingestion on demand.
type SyncDependencies interface {
	Sync(ctx context.Context, documentID string) (ingest.Report, error)
	SyncAll(ctx context.Context) ([]ingest.Report, error)
}

// SyncRequest optionally names one document to sync.
type SyncRequest struct {
	DocumentID string `json:"document_id"`
}

// SyncResponse lists one report per ingested document.
type SyncResponse struct {
	Reports []ingest.Report `json:"reports"`
}

// SyncHandler handles manual sync requests.
type SyncHandler struct {
	deps SyncDependencies
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(deps SyncDependencies) *SyncHandler {
	return &SyncHandler{deps: deps}
}

// HandleSync handles POST /sync. An empty body syncs every configured
// document.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxSyncBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeFailure(w, fmt.Errorf("%w: invalid json: %w", ErrBadRequest, err))
		return
	}

	if id := strings.TrimSpace(req.DocumentID); id != "" {
		report, err := h.deps.Sync(r.Context(), id)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SyncResponse{Reports: []ingest.Report{report}})
		return
	}

	reports, err := h.deps.SyncAll(r.Context())
	if err != nil && len(reports) == 0 {
		writeFailure(w, err)
		return
	}
	// Partial failures still return the documents that succeeded.
	writeJSON(w, http.StatusOK, SyncResponse{Reports: reports})
}
