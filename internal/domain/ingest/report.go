package ingest

// DiagnosticKind names what went wrong with a row or sheet.
type DiagnosticKind string

// Diagnostic kinds.
const (
	DiagnosticUnknownRollType       DiagnosticKind = "unknown_roll_type"
	DiagnosticUnresolvedParticipant DiagnosticKind = "unresolved_participant"
	DiagnosticSkippedSheet          DiagnosticKind = "skipped_sheet"
)

// Diagnostic describes one non-fatal problem found while ingesting.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Episode string         `json:"episode"`
	// Row is the 1-based position among the sheet's non-blank data rows, or
	// 0 for sheet-level diagnostics.
	Row     int            `json:"row,omitempty"`
	Label   string         `json:"label,omitempty"`
	Token   string         `json:"token,omitempty"`
}

// Report summarizes one document sync.
type Report struct {
	DocumentID       string       `json:"document_id"`
	Campaign         int          `json:"campaign"`
	Episodes         int          `json:"episodes"`
	Participants     int          `json:"participants"`
	Inserted         int64        `json:"inserted"`
	Dropped          int          `json:"dropped"`
	Cleared          int64        `json:"cleared"`
	RefreshedEpisode string       `json:"refreshed_episode,omitempty"`
	Skipped          int          `json:"skipped"`
	Diagnostics      []Diagnostic `json:"diagnostics,omitempty"`
}
