// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/avielmenter/CritiQL/internal/domain/taxonomy"
)

// Canonical column labels produced by the tabulation client after header
// aliasing.
const (
	ColumnEpisode  = "Episode"
	ColumnTime     = "Time"
	ColumnName     = "Character"
	ColumnRollType = "Type of Roll"
	ColumnTotal    = "Total Value"
	ColumnNatural  = "Natural Value"
	ColumnCrit     = "Crit?"
	ColumnDamage   = "Damage"
	ColumnKills    = "# Kills"
	ColumnNotes    = "Notes"
)

// Episode is one sheet of the source document.
type Episode struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Ordinal       *int   `json:"episode_no,omitempty"`
	Campaign      int    `json:"campaign"`
	RollsRecorded bool   `json:"rolls_recorded"`
}

// Participant is a character that made at least one roll.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RollTime is the offset into the episode at which a roll happened.
type RollTime struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// RollRecord is a single recorded roll.
type RollRecord struct {
	ID            string        `json:"id"`
	EpisodeID     string        `json:"episode_id"`
	ParticipantID string        `json:"participant_id"`
	Time          *RollTime     `json:"time,omitempty"`
	RollType      taxonomy.Code `json:"roll_type"`
	RawType       string        `json:"raw_type,omitempty"`
	Total         *int          `json:"total,omitempty"`
	Natural       *int          `json:"natural,omitempty"`
	Crit          bool          `json:"crit"`
	Damage        *string       `json:"damage,omitempty"`
	Kills         int           `json:"kills"`
	Notes         *string       `json:"notes,omitempty"`
}

// RequestLogEntry records one refresh-gate decision.
type RequestLogEntry struct {
	ID      string
	At      time.Time
	Origin  string
	Fetched bool
}

// Row is one spreadsheet row keyed by canonical column label.
type Row map[string]string

// Sheet is one tab of the source document.
type Sheet struct {
	Title string
	Rows  []Row
}

// Document is what the tabulation client returns for a spreadsheet.
type Document struct {
	ID     string
	Sheets []Sheet
}

// SyncJob asks a worker to ingest a set of documents.
type SyncJob struct {
	ID          string
	DocumentIDs []string
	Origin      string
	RequestedAt time.Time
}
