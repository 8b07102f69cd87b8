package repository

const postgresSchema = `
CREATE TABLE IF NOT EXISTS tracks (
  key            TEXT PRIMARY KEY,
  display_name   TEXT NOT NULL,
  source_locator TEXT NOT NULL,
  blob_ref       TEXT NOT NULL,
  size_bytes     BIGINT NOT NULL DEFAULT 0,
  content_digest TEXT NOT NULL DEFAULT '',
  content_type   TEXT NOT NULL DEFAULT 'audio/mpeg',
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS tracks_blob_ref_idx ON tracks (blob_ref);
`

// created_at holds unix milliseconds
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tracks (
  key            TEXT PRIMARY KEY,
  display_name   TEXT NOT NULL,
  source_locator TEXT NOT NULL,
  blob_ref       TEXT NOT NULL,
  size_bytes     INTEGER NOT NULL DEFAULT 0,
  content_digest TEXT NOT NULL DEFAULT '',
  content_type   TEXT NOT NULL DEFAULT 'audio/mpeg',
  created_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS tracks_blob_ref_idx ON tracks (blob_ref);
`
