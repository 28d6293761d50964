package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/fleet-calendar/internal/domain"
)

// SegmentRepo defines the persistence operations for Segments.
type SegmentRepo interface {
	// Create inserts a new segment and returns the persisted record.
	// The parent ride must exist; a foreign key violation is returned otherwise.
	Create(ctx context.Context, segment domain.Segment) (domain.Segment, error)

	// GetByID retrieves a single segment by its UUID.
	// Returns domain.ErrNotFound if no segment with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Segment, error)

	// List returns every segment ordered by start_at ascending.
	List(ctx context.Context) ([]domain.Segment, error)

	// ListByRideID returns the segments of one ride ordered by start_at ascending.
	ListByRideID(ctx context.Context, rideID uuid.UUID) ([]domain.Segment, error)

	// UpdateTimes rewrites start_at and end_at of a segment whose ride is
	// planned. Returns domain.ErrNotFound if the segment does not exist and
	// domain.ErrNotReschedulable if its ride is no longer planned.
	UpdateTimes(ctx context.Context, id uuid.UUID, start, end time.Time) (domain.Segment, error)

	// Delete removes a segment by ID.
	// Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}

const segmentColumns = `id, ride_id, origin, destination, start_at, end_at, created_at, updated_at`

// pgSegmentRepo is the Postgres implementation of SegmentRepo.
type pgSegmentRepo struct {
	db db
}

// NewSegmentRepo constructs a SegmentRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewSegmentRepo(db db) SegmentRepo {
	return &pgSegmentRepo{db: db}
}

func (r *pgSegmentRepo) Create(ctx context.Context, segment domain.Segment) (domain.Segment, error) {
	q := `
		INSERT INTO segments (ride_id, origin, destination, start_at, end_at)
		VALUES (@ride_id, @origin, @destination, @start_at, @end_at)
		RETURNING ` + segmentColumns

	args := pgx.NamedArgs{
		"ride_id":     segment.RideID,
		"origin":      segment.Origin,
		"destination": segment.Destination,
		"start_at":    segment.StartAt,
		"end_at":      segment.EndAt,
	}

	result, err := scanSegment(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Segment{}, fmt.Errorf("repo.SegmentRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgSegmentRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Segment, error) {
	q := `SELECT ` + segmentColumns + ` FROM segments WHERE id = @id`

	result, err := scanSegment(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Segment{}, fmt.Errorf("repo.SegmentRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgSegmentRepo) List(ctx context.Context) ([]domain.Segment, error) {
	q := `SELECT ` + segmentColumns + ` FROM segments ORDER BY start_at, id`

	segments, err := r.query(ctx, q, pgx.NamedArgs{})
	if err != nil {
		return nil, fmt.Errorf("repo.SegmentRepo.List: %w", err)
	}
	return segments, nil
}

func (r *pgSegmentRepo) ListByRideID(ctx context.Context, rideID uuid.UUID) ([]domain.Segment, error) {
	q := `SELECT ` + segmentColumns + ` FROM segments WHERE ride_id = @ride_id ORDER BY start_at, id`

	segments, err := r.query(ctx, q, pgx.NamedArgs{"ride_id": rideID})
	if err != nil {
		return nil, fmt.Errorf("repo.SegmentRepo.ListByRideID: %w", err)
	}
	return segments, nil
}

// UpdateTimes moves a segment, but only while its ride is planned.
func (r *pgSegmentRepo) UpdateTimes(ctx context.Context, id uuid.UUID, start, end time.Time) (domain.Segment, error) {
	const q = `
		UPDATE segments s
		SET start_at   = @start_at,
		    end_at     = @end_at,
		    updated_at = now()
		FROM rides r
		WHERE s.id = @id AND r.id = s.ride_id AND r.status = 'planned'
		RETURNING s.id, s.ride_id, s.origin, s.destination, s.start_at, s.end_at, s.created_at, s.updated_at`

	args := pgx.NamedArgs{"id": id, "start_at": start, "end_at": end}
	result, err := scanSegment(r.db.QueryRow(ctx, q, args))
	if errors.Is(err, domain.ErrNotFound) {
		if _, gerr := r.GetByID(ctx, id); gerr == nil {
			err = domain.ErrNotReschedulable
		}
	}
	if err != nil {
		return domain.Segment{}, fmt.Errorf("repo.SegmentRepo.UpdateTimes: %w", err)
	}
	return result, nil
}

func (r *pgSegmentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM segments WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.SegmentRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.SegmentRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgSegmentRepo) query(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.Segment, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	segments := []domain.Segment{}
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		segments = append(segments, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return segments, nil
}

// scanSegment maps a single database row into a domain.Segment.
func scanSegment(s scanner) (domain.Segment, error) {
	var (
		seg    domain.Segment
		id     pgtype.UUID
		rideID pgtype.UUID
		endAt  pgtype.Timestamptz
	)

	err := s.Scan(&id, &rideID, &seg.Origin, &seg.Destination, &seg.StartAt, &endAt, &seg.CreatedAt, &seg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Segment{}, domain.ErrNotFound
		}
		return domain.Segment{}, err
	}

	seg.ID = uuid.UUID(id.Bytes)
	seg.RideID = uuid.UUID(rideID.Bytes)
	seg.StartAt = seg.StartAt.UTC()
	seg.EndAt = optionalTime(endAt)
	return seg, nil
}
