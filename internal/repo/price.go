package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pkordes/cruise-price-tracker/internal/domain"
)

// PriceRepo is the append-only ledger of observed prices.
// The service layer depends on this interface, not the Postgres
// implementation, so the tracker can be unit-tested with a fake.
type PriceRepo interface {
	// Insert appends a record and returns it with the DB-generated id and,
	// when the caller left CheckedAt zero, the DB timestamp.
	Insert(ctx context.Context, rec domain.PriceRecord) (domain.PriceRecord, error)

	// GetLast returns the most recently inserted record for the identity.
	// Returns domain.ErrNotFound when the identity has no history.
	GetLast(ctx context.Context, id domain.PriceIdentity) (domain.PriceRecord, error)

	// PurgeOlderThan deletes records checked strictly before cutoff and
	// returns how many were removed.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// ListRecent returns one page of history, newest first, and the total
	// number of rows matching the filter.
	ListRecent(ctx context.Context, f domain.PriceFilter, p domain.ListParams) ([]domain.PriceRecord, int64, error)

	// Summary returns record/alert counts and the per-account add-on roll-up.
	Summary(ctx context.Context) (domain.PriceSummary, error)
}

// pgPriceRepo is the Postgres implementation of PriceRepo.
type pgPriceRepo struct {
	db db
}

// NewPriceRepo constructs a PriceRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewPriceRepo(db db) PriceRepo {
	return &pgPriceRepo{db: db}
}

const priceColumns = `id, checked_at, record_type, account_identity, reservation_id,
		product_code, product_name, passenger_name, sail_date, ship_code,
		paid_price, current_price, currency, notified, label`

func (r *pgPriceRepo) Insert(ctx context.Context, rec domain.PriceRecord) (domain.PriceRecord, error) {
	const q = `
		INSERT INTO price_history (
			checked_at, record_type, account_identity, reservation_id, product_code,
			product_name, passenger_name, sail_date, ship_code, paid_price,
			current_price, currency, notified, label)
		VALUES (
			COALESCE(@checked_at, now()), @record_type, @account, @reservation_id, @product_code,
			@product_name, @passenger_name, @sail_date, @ship_code, @paid_price,
			@current_price, @currency, @notified, @label)
		RETURNING ` + priceColumns

	currency := rec.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	args := pgx.NamedArgs{
		"checked_at":     optTime(rec.CheckedAt),
		"record_type":    string(rec.RecordType),
		"account":        rec.AccountIdentity,
		"reservation_id": rec.ReservationID,
		"product_code":   rec.ProductCode,
		"product_name":   rec.ProductName,
		"passenger_name": rec.PassengerName,
		"sail_date":      rec.SailDate,
		"ship_code":      rec.ShipCode,
		"paid_price":     rec.PaidPrice,
		"current_price":  rec.CurrentPrice,
		"currency":       currency,
		"notified":       rec.Notified,
		"label":          rec.Label,
	}

	result, err := scanPrice(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.PriceRecord{}, fmt.Errorf("repo.PriceRepo.Insert: %w", err)
	}
	return result, nil
}

// GetLast matches reservation and passenger with IS NOT DISTINCT FROM so a
// NULL key only ever matches another NULL. The account narrows the match only
// when supplied.
func (r *pgPriceRepo) GetLast(ctx context.Context, id domain.PriceIdentity) (domain.PriceRecord, error) {
	const q = `
		SELECT ` + priceColumns + `
		FROM price_history
		WHERE product_code = @product_code
		  AND reservation_id IS NOT DISTINCT FROM @reservation_id
		  AND passenger_name IS NOT DISTINCT FROM @passenger_name
		  AND (@account::text IS NULL OR account_identity = @account::text)
		ORDER BY id DESC
		LIMIT 1`

	args := pgx.NamedArgs{
		"product_code":   id.ProductCode,
		"reservation_id": id.ReservationID,
		"passenger_name": id.PassengerName,
		"account":        id.AccountIdentity,
	}

	result, err := scanPrice(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.PriceRecord{}, fmt.Errorf("repo.PriceRepo.GetLast: %w", err)
	}
	return result, nil
}

func (r *pgPriceRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM price_history WHERE checked_at < @cutoff`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"cutoff": cutoff})
	if err != nil {
		return 0, fmt.Errorf("repo.PriceRepo.PurgeOlderThan: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgPriceRepo) ListRecent(ctx context.Context, f domain.PriceFilter, p domain.ListParams) ([]domain.PriceRecord, int64, error) {
	const where = `
		WHERE (@record_type = '' OR record_type = @record_type)
		  AND (@account = '' OR COALESCE(account_identity, label) = @account)`

	args := pgx.NamedArgs{
		"record_type": string(f.RecordType),
		"account":     f.Account,
		"limit":       p.Limit,
		"offset":      p.Offset(),
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM price_history`+where, args).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.PriceRepo.ListRecent: count: %w", err)
	}

	rows, err := r.db.Query(ctx, `SELECT `+priceColumns+` FROM price_history`+where+`
		ORDER BY id DESC
		LIMIT @limit OFFSET @offset`, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.PriceRepo.ListRecent: %w", err)
	}
	defer rows.Close()

	records := []domain.PriceRecord{}
	for rows.Next() {
		rec, err := scanPrice(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.PriceRepo.ListRecent: scan: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.PriceRepo.ListRecent: rows: %w", err)
	}
	return records, total, nil
}

// Summary folds the offers table into the per-account roll-up so the
// dashboard needs one call.
func (r *pgPriceRepo) Summary(ctx context.Context) (domain.PriceSummary, error) {
	var s domain.PriceSummary

	const totals = `
		SELECT count(*), count(*) FILTER (WHERE notified)
		FROM price_history`
	if err := r.db.QueryRow(ctx, totals).Scan(&s.Records, &s.AlertsSent); err != nil {
		return domain.PriceSummary{}, fmt.Errorf("repo.PriceRepo.Summary: totals: %w", err)
	}

	const perAccount = `
		WITH addons AS (
			SELECT COALESCE(account_identity, label, 'Unassigned') AS account,
			       count(*) AS checks,
			       count(*) FILTER (WHERE notified) AS alerts,
			       max(checked_at) AS last_activity
			FROM price_history
			WHERE record_type = 'addon'
			GROUP BY 1
		), offers AS (
			SELECT COALESCE(account_identity, 'Unassigned') AS account,
			       count(*) AS offers,
			       count(*) FILTER (WHERE is_new) AS new_offers,
			       max(checked_at) AS last_activity
			FROM casino_offers
			GROUP BY 1
		)
		SELECT COALESCE(a.account, o.account),
		       COALESCE(a.checks, 0), COALESCE(a.alerts, 0),
		       COALESCE(o.offers, 0), COALESCE(o.new_offers, 0),
		       COALESCE(a.last_activity, o.last_activity)
		FROM addons a
		FULL OUTER JOIN offers o ON o.account = a.account
		ORDER BY 1`

	rows, err := r.db.Query(ctx, perAccount)
	if err != nil {
		return domain.PriceSummary{}, fmt.Errorf("repo.PriceRepo.Summary: %w", err)
	}
	defer rows.Close()

	s.Accounts = []domain.AccountSummary{}
	for rows.Next() {
		var a domain.AccountSummary
		if err := rows.Scan(&a.Account, &a.AddonChecks, &a.AddonAlerts, &a.OfferCount, &a.NewOffers, &a.LastActivity); err != nil {
			return domain.PriceSummary{}, fmt.Errorf("repo.PriceRepo.Summary: scan: %w", err)
		}
		s.Accounts = append(s.Accounts, a)
	}
	if err := rows.Err(); err != nil {
		return domain.PriceSummary{}, fmt.Errorf("repo.PriceRepo.Summary: rows: %w", err)
	}
	return s, nil
}

// scanPrice maps a single database row into a domain.PriceRecord.
func scanPrice(s scanner) (domain.PriceRecord, error) {
	var (
		rec        domain.PriceRecord
		recordType string
	)
	err := s.Scan(
		&rec.ID, &rec.CheckedAt, &recordType, &rec.AccountIdentity, &rec.ReservationID,
		&rec.ProductCode, &rec.ProductName, &rec.PassengerName, &rec.SailDate, &rec.ShipCode,
		&rec.PaidPrice, &rec.CurrentPrice, &rec.Currency, &rec.Notified, &rec.Label,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PriceRecord{}, domain.ErrNotFound
		}
		return domain.PriceRecord{}, err
	}
	rec.RecordType = domain.RecordType(recordType)
	rec.CheckedAt = rec.CheckedAt.UTC()
	return rec, nil
}
