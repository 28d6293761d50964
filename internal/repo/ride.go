// Package repo contains all database access logic for the fleet calendar.
// Each table has its own file with an interface and a Postgres implementation.
// No business logic lives here: only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/fleet-calendar/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RideRepo defines the persistence operations for Rides.
// The calendar services depend on this interface, not the concrete Postgres
// implementation, which allows them to be unit-tested with a mock.
type RideRepo interface {
	// Create inserts a new ride and returns the persisted record (with DB-generated
	// id, created_at, and updated_at populated).
	Create(ctx context.Context, ride domain.Ride) (domain.Ride, error)

	// GetByID retrieves a single ride by its UUID primary key.
	// Returns domain.ErrNotFound if no ride with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Ride, error)

	// List returns all rides ordered by start_at ascending.
	List(ctx context.Context) ([]domain.Ride, error)

	// UpdateTimes rewrites start_at and end_at of a planned ride. A nil end
	// stores NULL. Returns domain.ErrNotFound if the ride does not exist and
	// domain.ErrNotReschedulable if it is no longer planned.
	UpdateTimes(ctx context.Context, id uuid.UUID, start time.Time, end *time.Time) (domain.Ride, error)

	// Delete removes a ride (and, by cascade, its segments).
	// Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}

const rideColumns = `id, type, status, label, origin, destination, start_at, end_at,
		       driver_id, vehicle_id, total_price, created_at, updated_at`

// pgRideRepo is the Postgres implementation of RideRepo.
type pgRideRepo struct {
	db db
}

// NewRideRepo constructs a RideRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewRideRepo(db db) RideRepo {
	return &pgRideRepo{db: db}
}

// Create inserts a new ride row and returns the full persisted record.
func (r *pgRideRepo) Create(ctx context.Context, ride domain.Ride) (domain.Ride, error) {
	q := `
		INSERT INTO rides (type, status, label, origin, destination, start_at, end_at,
		                   driver_id, vehicle_id, total_price)
		VALUES (@type, @status, @label, @origin, @destination, @start_at, @end_at,
		        @driver_id, @vehicle_id, @total_price)
		RETURNING ` + rideColumns

	status := ride.Status
	if status == "" {
		status = domain.RideStatusPlanned
	}
	args := pgx.NamedArgs{
		"type":        string(ride.Type),
		"status":      string(status),
		"label":       ride.Label,
		"origin":      ride.Origin,
		"destination": ride.Destination,
		"start_at":    ride.StartAt,
		"end_at":      ride.EndAt, // nil becomes NULL
		"driver_id":   ride.DriverID,
		"vehicle_id":  ride.VehicleID,
		"total_price": ride.TotalPrice,
	}

	result, err := scanRide(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Ride{}, fmt.Errorf("repo.RideRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves a ride by primary key.
func (r *pgRideRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Ride, error) {
	q := `SELECT ` + rideColumns + ` FROM rides WHERE id = @id`

	result, err := scanRide(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Ride{}, fmt.Errorf("repo.RideRepo.GetByID: %w", err)
	}
	return result, nil
}

// List returns all rides ordered by start_at ascending.
func (r *pgRideRepo) List(ctx context.Context) ([]domain.Ride, error) {
	q := `SELECT ` + rideColumns + ` FROM rides ORDER BY start_at, id`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.RideRepo.List: %w", err)
	}
	defer rows.Close()

	rides := []domain.Ride{}
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.RideRepo.List: scan: %w", err)
		}
		rides = append(rides, ride)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.RideRepo.List: rows: %w", err)
	}
	return rides, nil
}

// UpdateTimes moves a planned ride. The status predicate is repeated in SQL
// so a ride completed after the client projected it is not moved.
func (r *pgRideRepo) UpdateTimes(ctx context.Context, id uuid.UUID, start time.Time, end *time.Time) (domain.Ride, error) {
	q := `
		UPDATE rides
		SET start_at   = @start_at,
		    end_at     = @end_at,
		    updated_at = now()
		WHERE id = @id AND status = 'planned'
		RETURNING ` + rideColumns

	args := pgx.NamedArgs{"id": id, "start_at": start, "end_at": end}
	result, err := scanRide(r.db.QueryRow(ctx, q, args))
	if errors.Is(err, domain.ErrNotFound) {
		if _, gerr := r.GetByID(ctx, id); gerr == nil {
			err = domain.ErrNotReschedulable
		}
	}
	if err != nil {
		return domain.Ride{}, fmt.Errorf("repo.RideRepo.UpdateTimes: %w", err)
	}
	return result, nil
}

// Delete removes a ride by primary key.
func (r *pgRideRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM rides WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.RideRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.RideRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing the scan
// helpers to be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanRide maps a single database row into a domain.Ride.
// It handles the UUID, nullable instant, and numeric conversions.
func scanRide(s scanner) (domain.Ride, error) {
	var (
		r         domain.Ride
		id        pgtype.UUID
		rideType  string
		status    string
		endAt     pgtype.Timestamptz
		driverID  pgtype.UUID
		vehicleID pgtype.UUID
		price     pgtype.Numeric
	)

	err := s.Scan(&id, &rideType, &status, &r.Label, &r.Origin, &r.Destination,
		&r.StartAt, &endAt, &driverID, &vehicleID, &price, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Ride{}, domain.ErrNotFound
		}
		return domain.Ride{}, err
	}

	r.ID = uuid.UUID(id.Bytes)
	r.Type = domain.RideType(rideType)
	r.Status = domain.RideStatus(status)
	r.StartAt = r.StartAt.UTC()
	r.EndAt = optionalTime(endAt)
	r.DriverID = optionalUUID(driverID)
	r.VehicleID = optionalUUID(vehicleID)
	if price.Valid {
		f, err := price.Float64Value()
		if err != nil {
			return domain.Ride{}, fmt.Errorf("total_price: %w", err)
		}
		r.TotalPrice = &f.Float64
	}
	return r, nil
}

func optionalTime(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}

func optionalUUID(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}
