package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// MaxKeyLength bounds catalog keys
const MaxKeyLength = 256

// Acquisition outcomes
const (
	StatusExists   = "exists"
	StatusAcquired = "acquired"
)

// AcquireRequest is the body of POST /acquire
type AcquireRequest struct {
	Key         string `json:"key"`         // required
	DisplayName string `json:"displayName"` // required
}

// Validate trims and checks required fields
func (r *AcquireRequest) Validate() error {
	r.Key = strings.TrimSpace(r.Key)
	r.DisplayName = strings.TrimSpace(r.DisplayName)

	if err := ValidateKey(r.Key); err != nil {
		return err
	}
	if r.DisplayName == "" {
		return fmt.Errorf("%w: displayName is required", ErrValidation)
	}
	return nil
}

// ValidateKey checks a catalog key taken from a body or path
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key is required", ErrValidation)
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("%w: key exceeds %d bytes", ErrValidation, MaxKeyLength)
	}
	return nil
}

// AcquireResponse is returned by POST /acquire
type AcquireResponse struct {
	Status string `json:"status"`
	Record *Track `json:"record"`
}

// CheckExistingRequest is the body of POST /check-existing.
// Keys stays raw so a non-array value can be told apart from a missing one.
type CheckExistingRequest struct {
	Keys json.RawMessage `json:"keys"` // required, array of strings
}

// ParseKeys decodes Keys as a string array, dropping blanks and duplicates
func (r *CheckExistingRequest) ParseKeys() ([]string, error) {
	raw := bytes.TrimSpace(r.Keys)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: keys is required", ErrValidation)
	}
	if raw[0] != '[' {
		return nil, fmt.Errorf("%w: keys must be an array", ErrValidation)
	}

	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("%w: keys must be an array of strings", ErrValidation)
	}

	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out, nil
}

// CheckExistingResponse is returned by POST /check-existing
type CheckExistingResponse struct {
	ExistingKeys []string       `json:"existingKeys"`
	Records      []TrackSummary `json:"records"`
}

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
