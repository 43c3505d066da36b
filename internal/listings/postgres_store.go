package listings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/motorlot/marketplace-api/internal/lifecycle"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS listings (
	id                TEXT PRIMARY KEY,
	owner_user_id     TEXT NOT NULL,
	showroom_id       TEXT,
	title             TEXT NOT NULL,
	make              TEXT NOT NULL,
	model             TEXT NOT NULL,
	year              INTEGER NOT NULL,
	price_cents       BIGINT NOT NULL,
	currency          CHAR(3) NOT NULL,
	mileage_km        INTEGER NOT NULL DEFAULT 0,
	status            TEXT NOT NULL,
	is_featured       BOOLEAN NOT NULL DEFAULT FALSE,
	feature_start     TIMESTAMPTZ,
	feature_end       TIMESTAMPTZ,
	rejection_reason  TEXT NOT NULL DEFAULT '',
	version           BIGINT NOT NULL,
	last_action       TEXT NOT NULL DEFAULT '',
	last_actor_id     TEXT NOT NULL DEFAULT '',
	status_changed_at TIMESTAMPTZ NOT NULL,
	sold_at           TIMESTAMPTZ,
	deleted_at        TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS listings_owner_idx ON listings (owner_user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS listings_showroom_idx ON listings (showroom_id, created_at DESC);
CREATE INDEX IF NOT EXISTS listings_status_idx ON listings (status, created_at DESC);
`

const listingColumns = `id, owner_user_id, showroom_id, title, make, model, year, price_cents, currency,
	mileage_km, status, is_featured, feature_start, feature_end, rejection_reason, version,
	last_action, last_actor_id, status_changed_at, sold_at, deleted_at, created_at, updated_at`

// PostgresStore persists listings through database/sql with the pgx driver.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens a pooled connection and verifies it answers.
func OpenPostgres(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("listings: open db: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("listings: ping db: %w", err)
	}
	return db, nil
}

// Migrate creates the listings table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("listings: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, listing lifecycle.Listing) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO listings (`+listingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		listing.ID,
		listing.OwnerUserID,
		nullString(listing.ShowroomID),
		listing.Title,
		listing.Make,
		listing.Model,
		listing.Year,
		listing.PriceCents,
		listing.Currency,
		listing.MileageKM,
		string(listing.Status),
		listing.IsFeatured,
		nullTime(listing.FeatureStart),
		nullTime(listing.FeatureEnd),
		listing.RejectionReason,
		listing.Version,
		string(listing.LastAction),
		listing.LastActorID,
		listing.StatusChangedAt,
		nullTime(listing.SoldAt),
		nullTime(listing.DeletedAt),
		listing.CreatedAt,
		listing.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("listings: insert %s: %w", listing.ID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, listingID string) (lifecycle.Listing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, listingID)
	listing, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return lifecycle.Listing{}, ErrNotFound
	}
	if err != nil {
		return lifecycle.Listing{}, fmt.Errorf("listings: get %s: %w", listingID, err)
	}
	return listing, nil
}

func (s *PostgresStore) Update(ctx context.Context, listing lifecycle.Listing, expectedVersion int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE listings SET
			showroom_id = $2, title = $3, make = $4, model = $5, year = $6, price_cents = $7,
			currency = $8, mileage_km = $9, status = $10, is_featured = $11, feature_start = $12,
			feature_end = $13, rejection_reason = $14, version = $15, last_action = $16,
			last_actor_id = $17, status_changed_at = $18, sold_at = $19, deleted_at = $20, updated_at = $21
		WHERE id = $1 AND version = $22`,
		listing.ID,
		nullString(listing.ShowroomID),
		listing.Title,
		listing.Make,
		listing.Model,
		listing.Year,
		listing.PriceCents,
		listing.Currency,
		listing.MileageKM,
		string(listing.Status),
		listing.IsFeatured,
		nullTime(listing.FeatureStart),
		nullTime(listing.FeatureEnd),
		listing.RejectionReason,
		listing.Version,
		string(listing.LastAction),
		listing.LastActorID,
		listing.StatusChangedAt,
		nullTime(listing.SoldAt),
		nullTime(listing.DeletedAt),
		listing.UpdatedAt,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("listings: update %s: %w", listing.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("listings: update %s: %w", listing.ID, err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerUserID string) ([]lifecycle.Listing, error) {
	return s.query(ctx,
		`SELECT `+listingColumns+` FROM listings
		WHERE owner_user_id = $1 AND status <> 'deleted'
		ORDER BY created_at DESC`,
		ownerUserID,
	)
}

func (s *PostgresStore) ListByShowroom(ctx context.Context, showroomID string) ([]lifecycle.Listing, error) {
	if showroomID == "" {
		return []lifecycle.Listing{}, nil
	}
	return s.query(ctx,
		`SELECT `+listingColumns+` FROM listings
		WHERE showroom_id = $1 AND status <> 'deleted'
		ORDER BY created_at DESC`,
		showroomID,
	)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status lifecycle.Status, limit, offset int) ([]lifecycle.Listing, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx,
		`SELECT `+listingColumns+` FROM listings
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		string(status), limit, offset,
	)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]lifecycle.Listing, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listings: query: %w", err)
	}
	defer rows.Close()

	items := make([]lifecycle.Listing, 0)
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("listings: scan: %w", err)
		}
		items = append(items, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listings: rows: %w", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (lifecycle.Listing, error) {
	var (
		listing      lifecycle.Listing
		showroomID   sql.NullString
		status       string
		lastAction   string
		featureStart sql.NullTime
		featureEnd   sql.NullTime
		soldAt       sql.NullTime
		deletedAt    sql.NullTime
	)

	err := row.Scan(
		&listing.ID,
		&listing.OwnerUserID,
		&showroomID,
		&listing.Title,
		&listing.Make,
		&listing.Model,
		&listing.Year,
		&listing.PriceCents,
		&listing.Currency,
		&listing.MileageKM,
		&status,
		&listing.IsFeatured,
		&featureStart,
		&featureEnd,
		&listing.RejectionReason,
		&listing.Version,
		&lastAction,
		&listing.LastActorID,
		&listing.StatusChangedAt,
		&soldAt,
		&deletedAt,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		return lifecycle.Listing{}, err
	}

	listing.ShowroomID = showroomID.String
	listing.Status = lifecycle.Status(status)
	listing.LastAction = lifecycle.Action(lastAction)
	listing.FeatureStart = timePtr(featureStart)
	listing.FeatureEnd = timePtr(featureEnd)
	listing.SoldAt = timePtr(soldAt)
	listing.DeletedAt = timePtr(deletedAt)
	return listing, nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC()
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}
