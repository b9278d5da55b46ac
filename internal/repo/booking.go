package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pkordes/cruise-price-tracker/internal/domain"
)

// BookingRepo is the append-only log of observed reservations.
type BookingRepo interface {
	// Insert appends a booking snapshot.
	Insert(ctx context.Context, b domain.BookedCruise) (domain.BookedCruise, error)

	// ListCurrent returns the latest snapshot per (account, reservation),
	// ordered by sail date.
	ListCurrent(ctx context.Context) ([]domain.BookedCruise, error)

	// PurgeOlderThan deletes snapshots taken strictly before cutoff.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type pgBookingRepo struct {
	db db
}

// NewBookingRepo constructs a BookingRepo backed by the provided db connection.
func NewBookingRepo(db db) BookingRepo {
	return &pgBookingRepo{db: db}
}

const bookingColumns = `id, checked_at, account_identity, cruise_line, reservation_id,
		sail_date, ship_code, ship_name, stateroom_number, guest_count, raw_details`

func (r *pgBookingRepo) Insert(ctx context.Context, b domain.BookedCruise) (domain.BookedCruise, error) {
	const q = `
		INSERT INTO booked_cruises (
			checked_at, account_identity, cruise_line, reservation_id, sail_date,
			ship_code, ship_name, stateroom_number, guest_count, raw_details)
		VALUES (
			COALESCE(@checked_at, now()), @account, @cruise_line, @reservation_id, @sail_date,
			@ship_code, @ship_name, @stateroom, @guest_count, @raw)
		RETURNING ` + bookingColumns

	args := pgx.NamedArgs{
		"checked_at":     optTime(b.CheckedAt),
		"account":        b.AccountIdentity,
		"cruise_line":    b.CruiseLine,
		"reservation_id": b.ReservationID,
		"sail_date":      b.SailDate,
		"ship_code":      b.ShipCode,
		"ship_name":      b.ShipName,
		"stateroom":      b.Stateroom,
		"guest_count":    b.GuestCount,
		"raw":            jsonArg(b.RawDetails),
	}

	result, err := scanBooking(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.BookedCruise{}, fmt.Errorf("repo.BookingRepo.Insert: %w", err)
	}
	return result, nil
}

func (r *pgBookingRepo) ListCurrent(ctx context.Context) ([]domain.BookedCruise, error) {
	const q = `
		SELECT ` + bookingColumns + `
		FROM (
			SELECT DISTINCT ON (account_identity, reservation_id) *
			FROM booked_cruises
			ORDER BY account_identity, reservation_id, id DESC
		) latest
		ORDER BY sail_date, reservation_id`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.BookingRepo.ListCurrent: %w", err)
	}
	defer rows.Close()

	bookings := []domain.BookedCruise{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.BookingRepo.ListCurrent: scan: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.BookingRepo.ListCurrent: rows: %w", err)
	}
	return bookings, nil
}

func (r *pgBookingRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM booked_cruises WHERE checked_at < @cutoff`, pgx.NamedArgs{"cutoff": cutoff})
	if err != nil {
		return 0, fmt.Errorf("repo.BookingRepo.PurgeOlderThan: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanBooking(s scanner) (domain.BookedCruise, error) {
	var (
		b   domain.BookedCruise
		raw []byte
	)
	err := s.Scan(&b.ID, &b.CheckedAt, &b.AccountIdentity, &b.CruiseLine, &b.ReservationID,
		&b.SailDate, &b.ShipCode, &b.ShipName, &b.Stateroom, &b.GuestCount, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.BookedCruise{}, domain.ErrNotFound
		}
		return domain.BookedCruise{}, err
	}
	b.RawDetails = raw
	b.CheckedAt = b.CheckedAt.UTC()
	return b, nil
}
