package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pkordes/cruise-price-tracker/internal/domain"
)

// OfferRepo stores promotional offers keyed by (offer code, account).
// Repeated sightings update the existing row instead of appending.
type OfferRepo interface {
	// Exists reports whether the code has been seen before. An empty code is
	// never seen. A nil account matches the code under any account.
	Exists(ctx context.Context, code string, account *string) (bool, error)

	// Insert stores a first sighting and returns the persisted record.
	Insert(ctx context.Context, offer domain.OfferRecord) (domain.OfferRecord, error)

	// UpdateInPlace refreshes checked_at, details and expiry of the row
	// matching (code, account); is_new is left untouched.
	// Returns domain.ErrNotFound if no row matched.
	UpdateInPlace(ctx context.Context, offer domain.OfferRecord) error

	// PurgeOlderThan deletes offers last seen strictly before cutoff.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// ListCurrent returns the newest row per offer code, soonest expiry first.
	ListCurrent(ctx context.Context, limit int) ([]domain.OfferRecord, error)
}

// pgOfferRepo is the Postgres implementation of OfferRepo.
type pgOfferRepo struct {
	db db
}

// NewOfferRepo constructs an OfferRepo backed by the provided db connection.
func NewOfferRepo(db db) OfferRepo {
	return &pgOfferRepo{db: db}
}

const offerColumns = `id, checked_at, account_identity, offer_code, offer_type,
		offer_details, expiry_date, is_new`

func (r *pgOfferRepo) Exists(ctx context.Context, code string, account *string) (bool, error) {
	if code == "" {
		return false, nil
	}

	const q = `
		SELECT EXISTS (
			SELECT 1 FROM casino_offers
			WHERE offer_code = @code
			  AND (@account::text IS NULL OR account_identity = @account::text)
		)`

	var exists bool
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"code": code, "account": account}).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repo.OfferRepo.Exists: %w", err)
	}
	return exists, nil
}

func (r *pgOfferRepo) Insert(ctx context.Context, offer domain.OfferRecord) (domain.OfferRecord, error) {
	const q = `
		INSERT INTO casino_offers (
			checked_at, account_identity, offer_code, offer_type, offer_details, expiry_date, is_new)
		VALUES (
			COALESCE(@checked_at, now()), @account, @code, @type, @details, @expiry, @is_new)
		RETURNING ` + offerColumns

	args := pgx.NamedArgs{
		"checked_at": optTime(offer.CheckedAt),
		"account":    offer.AccountIdentity,
		"code":       offer.OfferCode,
		"type":       offer.OfferType,
		"details":    jsonArg(offer.OfferDetails),
		"expiry":     offer.ExpiryDate,
		"is_new":     offer.IsNew,
	}

	result, err := scanOffer(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.OfferRecord{}, fmt.Errorf("repo.OfferRepo.Insert: %w", err)
	}
	return result, nil
}

func (r *pgOfferRepo) UpdateInPlace(ctx context.Context, offer domain.OfferRecord) error {
	const q = `
		UPDATE casino_offers
		SET checked_at    = COALESCE(@checked_at, now()),
		    offer_details = @details,
		    expiry_date   = @expiry
		WHERE offer_code = @code
		  AND account_identity IS NOT DISTINCT FROM @account`

	args := pgx.NamedArgs{
		"checked_at": optTime(offer.CheckedAt),
		"details":    jsonArg(offer.OfferDetails),
		"expiry":     offer.ExpiryDate,
		"code":       offer.OfferCode,
		"account":    offer.AccountIdentity,
	}

	tag, err := r.db.Exec(ctx, q, args)
	if err != nil {
		return fmt.Errorf("repo.OfferRepo.UpdateInPlace: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.OfferRepo.UpdateInPlace: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgOfferRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM casino_offers WHERE checked_at < @cutoff`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"cutoff": cutoff})
	if err != nil {
		return 0, fmt.Errorf("repo.OfferRepo.PurgeOlderThan: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgOfferRepo) ListCurrent(ctx context.Context, limit int) ([]domain.OfferRecord, error) {
	const q = `
		SELECT ` + offerColumns + `
		FROM (
			SELECT DISTINCT ON (offer_code) *
			FROM casino_offers
			ORDER BY offer_code, id DESC
		) latest
		ORDER BY expiry_date ASC NULLS LAST, id DESC
		LIMIT @limit`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("repo.OfferRepo.ListCurrent: %w", err)
	}
	defer rows.Close()

	offers := []domain.OfferRecord{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.OfferRepo.ListCurrent: scan: %w", err)
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.OfferRepo.ListCurrent: rows: %w", err)
	}
	return offers, nil
}

// jsonArg passes raw JSON through as text so an empty payload becomes NULL
// rather than an invalid jsonb literal.
func jsonArg(raw []byte) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}

// scanOffer maps a single database row into a domain.OfferRecord.
func scanOffer(s scanner) (domain.OfferRecord, error) {
	var (
		o       domain.OfferRecord
		details []byte
	)
	err := s.Scan(&o.ID, &o.CheckedAt, &o.AccountIdentity, &o.OfferCode, &o.OfferType,
		&details, &o.ExpiryDate, &o.IsNew)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OfferRecord{}, domain.ErrNotFound
		}
		return domain.OfferRecord{}, err
	}
	o.OfferDetails = details
	o.CheckedAt = o.CheckedAt.UTC()
	return o, nil
}
