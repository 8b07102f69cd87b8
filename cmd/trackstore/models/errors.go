package models

import "errors"

// Error taxonomy for the acquisition and streaming workflows.
// Layers wrap these with fmt.Errorf("%w: ...") and handlers map them with errors.Is.
var (
	ErrValidation    = errors.New("validation failed")
	ErrTrackNotFound = errors.New("track not found")
	ErrNoSource      = errors.New("no source found")
	ErrResolution    = errors.New("source resolution failed")
	ErrFetch         = errors.New("source fetch failed")
	ErrStorage       = errors.New("storage failure")
	ErrInvalidRange  = errors.New("invalid range")
	ErrIntegrity     = errors.New("track content missing")
	ErrDuplicateKey  = errors.New("duplicate track key")
)
