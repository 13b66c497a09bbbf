package ingest

import "errors"

var (
	// ErrSourceUnavailable is returned when the spreadsheet cannot be fetched.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrNoDocuments is returned by SyncAll when it is given nothing to do.
	ErrNoDocuments = errors.New("no documents to sync")
)
