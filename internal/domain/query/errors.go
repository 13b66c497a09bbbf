package query

import "errors"

// Sentinel kinds for rejected queries.
var (
	ErrInvalidID         = errors.New("invalid id")
	ErrInvalidLimit      = errors.New("invalid limit")
	ErrUnknownRollType   = errors.New("unknown roll type")
	ErrUnknownSkillGroup = errors.New("unknown skill group")
	ErrUnknownField      = errors.New("unknown aggregate field")
)
