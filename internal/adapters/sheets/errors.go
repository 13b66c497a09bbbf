package sheets

import "errors"

// Sentinel kinds for spreadsheet client errors.
var (
	ErrInvalidRange      = errors.New("invalid A1 range")
	ErrDocumentNotFound  = errors.New("spreadsheet not found")
	ErrRequestFailed     = errors.New("spreadsheet request failed")
	ErrMalformedResponse = errors.New("malformed spreadsheet response")
)
