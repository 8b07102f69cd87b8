package models

import "time"

// DefaultContentType is served for every stored track
const DefaultContentType = "audio/mpeg"

// Track is the catalog record for one acquired media item.
// Maps to: tracks table
type Track struct {
	// External catalog key, client supplied and immutable
	Key string `db:"key" json:"key"`

	// Free-text label used for resolution and logging
	DisplayName string `db:"display_name" json:"displayName"`

	// Where the bytes were fetched from (audit only)
	SourceLocator string `db:"source_locator" json:"sourceLocator"`

	// Opaque blob store reference; always resolves while the record exists
	BlobRef string `db:"blob_ref" json:"blobRef"`

	// Stored content facts
	SizeBytes     int64  `db:"size_bytes" json:"sizeBytes"`
	ContentDigest string `db:"content_digest" json:"contentDigest"`
	ContentType   string `db:"content_type" json:"contentType"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// TrackSummary is the short form returned by bulk existence checks
type TrackSummary struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
}

// Summary returns the short form of t
func (t *Track) Summary() TrackSummary {
	return TrackSummary{Key: t.Key, DisplayName: t.DisplayName}
}
