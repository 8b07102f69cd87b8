package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/soundsphere/trackstore/cmd/trackstore/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteCatalog stores tracks in an embedded SQLite database
type SQLiteCatalog struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// OpenSQLiteCatalog opens dsn with the modernc driver and applies the schema
func OpenSQLiteCatalog(ctx context.Context, dsn string) (*SQLiteCatalog, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Each connection to :memory: is a separate database
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to apply catalog schema: %w", err)
	}

	return &SQLiteCatalog{
		db: conn,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question).RunWith(conn),
	}, nil
}

// Close closes the database
func (r *SQLiteCatalog) Close() error {
	return r.db.Close()
}

// Health pings the database
func (r *SQLiteCatalog) Health(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func isConstraintDuplicate(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}

func scanSQLiteTrack(row sq.RowScanner) (*models.Track, error) {
	t := &models.Track{}
	var createdAt int64
	err := row.Scan(
		&t.Key,
		&t.DisplayName,
		&t.SourceLocator,
		&t.BlobRef,
		&t.SizeBytes,
		&t.ContentDigest,
		&t.ContentType,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = time.UnixMilli(createdAt).UTC()
	return t, nil
}

// Get retrieves a track by key
func (r *SQLiteCatalog) Get(ctx context.Context, key string) (*models.Track, error) {
	row := r.sb.Select(trackColumns...).From("tracks").Where(sq.Eq{"key": key}).QueryRowContext(ctx)

	t, err := scanSQLiteTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrTrackNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get track: %w", models.ErrStorage, err)
	}
	return t, nil
}

// Insert adds a new track; an existing key yields models.ErrDuplicateKey
func (r *SQLiteCatalog) Insert(ctx context.Context, t *models.Track) error {
	_, err := r.sb.Insert("tracks").
		Columns(trackColumns...).
		Values(t.Key, t.DisplayName, t.SourceLocator, t.BlobRef, t.SizeBytes, t.ContentDigest, t.ContentType, t.CreatedAt.UnixMilli()).
		ExecContext(ctx)
	if err != nil {
		if isConstraintDuplicate(err) {
			return fmt.Errorf("%w: %s", models.ErrDuplicateKey, t.Key)
		}
		return fmt.Errorf("%w: failed to insert track: %w", models.ErrStorage, err)
	}
	return nil
}

// BatchExists returns summaries for the keys that are present
func (r *SQLiteCatalog) BatchExists(ctx context.Context, keys []string) ([]models.TrackSummary, error) {
	out := make([]models.TrackSummary, 0, len(keys))

	for _, part := range chunk(keys, batchChunk) {
		rows, err := r.sb.Select("key", "display_name").
			From("tracks").
			Where(sq.Eq{"key": part}).
			QueryContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to check tracks: %w", models.ErrStorage, err)
		}

		for rows.Next() {
			var s models.TrackSummary
			if err := rows.Scan(&s.Key, &s.DisplayName); err != nil {
				rows.Close()
				return nil, fmt.Errorf("%w: failed to scan track: %w", models.ErrStorage, err)
			}
			out = append(out, s)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read tracks: %w", models.ErrStorage, err)
		}
	}

	return out, nil
}

// Delete removes a track and returns it
func (r *SQLiteCatalog) Delete(ctx context.Context, key string) (*models.Track, error) {
	query, args, err := r.sb.Delete("tracks").
		Where(sq.Eq{"key": key}).
		Suffix("RETURNING " + joinColumns()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	t, err := scanSQLiteTrack(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrTrackNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to delete track: %w", models.ErrStorage, err)
	}
	return t, nil
}
