package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/soundsphere/trackstore/cmd/trackstore/models"
	"github.com/soundsphere/trackstore/common/db"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure
const uniqueViolation = "23505"

// PostgresCatalog stores tracks in Postgres
type PostgresCatalog struct {
	db *db.DB
	sb sq.StatementBuilderType
}

// NewPostgresCatalog creates a new Postgres-backed catalog
func NewPostgresCatalog(db *db.DB) *PostgresCatalog {
	return &PostgresCatalog{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// EnsurePostgresSchema creates the tracks table if needed.
// Used as a bootstrap DB init hook.
func EnsurePostgresSchema(database *db.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := database.ApplySchema(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to apply catalog schema: %w", err)
	}
	return nil
}

func scanTrack(row pgx.Row) (*models.Track, error) {
	t := &models.Track{}
	err := row.Scan(
		&t.Key,
		&t.DisplayName,
		&t.SourceLocator,
		&t.BlobRef,
		&t.SizeBytes,
		&t.ContentDigest,
		&t.ContentType,
		&t.CreatedAt,
	)
	return t, err
}

// Get retrieves a track by key
func (r *PostgresCatalog) Get(ctx context.Context, key string) (*models.Track, error) {
	query, args, err := r.sb.Select(trackColumns...).From("tracks").Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	t, err := scanTrack(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrTrackNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get track: %w", models.ErrStorage, err)
	}
	return t, nil
}

// Insert adds a new track; an existing key yields models.ErrDuplicateKey
func (r *PostgresCatalog) Insert(ctx context.Context, t *models.Track) error {
	query, args, err := r.sb.Insert("tracks").
		Columns(trackColumns...).
		Values(t.Key, t.DisplayName, t.SourceLocator, t.BlobRef, t.SizeBytes, t.ContentDigest, t.ContentType, t.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", models.ErrDuplicateKey, t.Key)
		}
		return fmt.Errorf("%w: failed to insert track: %w", models.ErrStorage, err)
	}
	return nil
}

// BatchExists returns summaries for the keys that are present
func (r *PostgresCatalog) BatchExists(ctx context.Context, keys []string) ([]models.TrackSummary, error) {
	if len(keys) == 0 {
		return []models.TrackSummary{}, nil
	}

	query, args, err := r.sb.Select("key", "display_name").
		From("tracks").
		Where(sq.Expr("key = ANY(?)", keys)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to check tracks: %w", models.ErrStorage, err)
	}
	defer rows.Close()

	out := make([]models.TrackSummary, 0, len(keys))
	for rows.Next() {
		var s models.TrackSummary
		if err := rows.Scan(&s.Key, &s.DisplayName); err != nil {
			return nil, fmt.Errorf("%w: failed to scan track: %w", models.ErrStorage, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read tracks: %w", models.ErrStorage, err)
	}
	return out, nil
}

// Delete removes a track and returns it
func (r *PostgresCatalog) Delete(ctx context.Context, key string) (*models.Track, error) {
	query, args, err := r.sb.Delete("tracks").
		Where(sq.Eq{"key": key}).
		Suffix("RETURNING " + joinColumns()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	t, err := scanTrack(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrTrackNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to delete track: %w", models.ErrStorage, err)
	}
	return t, nil
}
