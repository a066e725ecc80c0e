package appointment

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookline/bookline/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

// NewRepoPG returns the Postgres-backed appointment store. loc is the
// scheduling location used for day bucketing and the booking lock key.
func NewRepoPG(pool *pgxpool.Pool, loc *time.Location) Repository {
	if loc == nil {
		loc = time.UTC
	}
	return &repoPG{pool: pool, loc: loc}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const apptCols = `id, customer_id, service_id, provider_id, start_at, duration_minutes,
	end_at, status, booking_channel, price, notes, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.CustomerID, &a.ServiceID, &a.ProviderID, &a.StartAt, &a.DurationMinutes,
		&a.EndAt, &a.Status, &a.BookingChannel, &a.Price, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

// bookingLockKey derives the advisory lock key serializing bookings for one
// provider and calendar day. Both processes computing the key for the same
// (provider, day) pair get the same value, so the lock is effective across
// independent server instances.
func bookingLockKey(providerID int64, day time.Time) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "booking:%d:%s", providerID, day.Format("2006-01-02"))
	return int64(h.Sum64())
}

// Book inserts a new appointment after re-checking conflicts inside a
// transaction. The advisory lock makes the check-then-insert atomic per
// (provider, day); the table's exclusion constraint backstops anything the
// lock does not cover.
func (r *repoPG) Book(ctx context.Context, a *Appointment) error {
	return r.writeChecked(ctx, a, 0, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO appointment (customer_id, service_id, provider_id, start_at,
				duration_minutes, end_at, status, booking_channel, price, notes)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			RETURNING id, created_at, updated_at`,
			a.CustomerID, a.ServiceID, a.ProviderID, a.StartAt,
			a.DurationMinutes, a.EndAt, a.Status, a.BookingChannel, a.Price, a.Notes,
		).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	})
}

// Reschedule rewrites an appointment whose window or provider changed,
// re-checking conflicts (excluding the row itself) in the same transaction
// as the update.
func (r *repoPG) Reschedule(ctx context.Context, a *Appointment) error {
	return r.writeChecked(ctx, a, a.ID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE appointment SET customer_id=$2, service_id=$3, provider_id=$4,
				start_at=$5, duration_minutes=$6, end_at=$7, status=$8,
				booking_channel=$9, price=$10, notes=$11, updated_at=NOW()
			WHERE id = $1`,
			a.ID, a.CustomerID, a.ServiceID, a.ProviderID,
			a.StartAt, a.DurationMinutes, a.EndAt, a.Status,
			a.BookingChannel, a.Price, a.Notes)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// writeChecked runs the conflict check and the given write as one atomic
// unit: advisory lock on (provider, day), load the day's rows, run the pure
// conflict decision, then write.
func (r *repoPG) writeChecked(ctx context.Context, a *Appointment, excludeID int64, write func(tx pgx.Tx) error) error {
	dayStart, dayEnd := DayBounds(a.StartAt, r.loc)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, bookingLockKey(a.ProviderID, dayStart)); err != nil {
		return fmt.Errorf("acquire booking lock: %w", err)
	}

	existing, err := listDayRows(ctx, tx, a.ProviderID, dayStart, dayEnd)
	if err != nil {
		return err
	}
	if hit := FindConflict(a.ProviderID, a.StartAt, a.DurationMinutes, existing, excludeID, r.loc); hit != nil {
		return &ConflictError{Existing: hit}
	}

	if err := write(tx); err != nil {
		return r.mapWriteErr(ctx, err, a, excludeID)
	}
	return tx.Commit(ctx)
}

// mapWriteErr translates constraint violations into domain errors. An
// exclusion violation means a competing booking won a race on a different
// day bucket than the lock covered; it is reported as the same conflict a
// pre-check would have found.
func (r *repoPG) mapWriteErr(ctx context.Context, err error, a *Appointment, excludeID int64) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23P01":
		dayStart, dayEnd := DayBounds(a.StartAt, r.loc)
		if existing, lookupErr := listDayRows(ctx, r.pool, a.ProviderID, dayStart, dayEnd); lookupErr == nil {
			if hit := FindConflict(a.ProviderID, a.StartAt, a.DurationMinutes, existing, excludeID, r.loc); hit != nil {
				return &ConflictError{Existing: hit}
			}
		}
		return fmt.Errorf("%w: window is no longer available", ErrConflict)
	case "23503":
		return validationErr("referenced record does not exist (%s)", pgErr.ConstraintName)
	case "23514":
		return validationErr("constraint %s violated", pgErr.ConstraintName)
	}
	return err
}

// Update rewrites non-window fields. Callers must route window changes
// through Reschedule.
func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET customer_id=$2, service_id=$3, status=$4,
			booking_channel=$5, price=$6, notes=$7, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.CustomerID, a.ServiceID, a.Status, a.BookingChannel, a.Price, a.Notes)
	if err != nil {
		return r.mapWriteErr(ctx, err, a, a.ID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus sets the status column. Reviving a cancelled or no-show
// appointment can trip the exclusion constraint when its old window has
// been taken since; that surfaces as a conflict.
func (r *repoPG) UpdateStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointment SET status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
			return fmt.Errorf("%w: window is no longer available", ErrConflict)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	query := `SELECT ` + apptCols + ` FROM appointment WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM appointment WHERE 1=1`
	var args []interface{}
	idx := 1

	addFilter := func(clause string, value interface{}) {
		query += fmt.Sprintf(clause, idx)
		countQuery += fmt.Sprintf(clause, idx)
		args = append(args, value)
		idx++
	}
	if f.ProviderID != 0 {
		addFilter(` AND provider_id = $%d`, f.ProviderID)
	}
	if f.CustomerID != 0 {
		addFilter(` AND customer_id = $%d`, f.CustomerID)
	}
	if f.Status != "" {
		addFilter(` AND status = $%d`, f.Status)
	}
	if !f.From.IsZero() {
		addFilter(` AND start_at >= $%d`, f.From)
	}
	if !f.To.IsZero() {
		addFilter(` AND start_at < $%d`, f.To)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY start_at DESC, id DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListDay(ctx context.Context, providerID int64, dayStart, dayEnd time.Time) ([]*Appointment, error) {
	return listDayRows(ctx, r.conn(ctx), providerID, dayStart, dayEnd)
}

// listDayRows loads one provider's appointments whose start falls on the
// day, every status included: the pure conflict and busy-set functions
// decide which rows count. Ordered by start then id so conflict reporting
// is deterministic.
func listDayRows(ctx context.Context, q queryable, providerID int64, dayStart, dayEnd time.Time) ([]*Appointment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE provider_id = $1 AND start_at >= $2 AND start_at < $3
		ORDER BY start_at, id`,
		providerID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) ListDayDetailed(ctx context.Context, providerID int64, dayStart, dayEnd time.Time) ([]*CalendarEntry, error) {
	query := `
		SELECT a.id, a.customer_id, a.service_id, a.provider_id, a.start_at, a.duration_minutes,
			a.end_at, a.status, a.booking_channel, a.price, a.notes, a.created_at, a.updated_at,
			c.full_name AS customer_name, p.full_name AS provider_name, s.name AS service_name
		FROM appointment a
		JOIN customer c ON c.id = a.customer_id
		JOIN provider p ON p.id = a.provider_id
		LEFT JOIN service s ON s.id = a.service_id
		WHERE a.start_at >= $1 AND a.start_at < $2`
	args := []interface{}{dayStart, dayEnd}
	if providerID != 0 {
		query += ` AND a.provider_id = $3`
		args = append(args, providerID)
	}
	query += ` ORDER BY a.start_at, a.id`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*CalendarEntry
	for rows.Next() {
		var e CalendarEntry
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.ServiceID, &e.ProviderID, &e.StartAt, &e.DurationMinutes,
			&e.EndAt, &e.Status, &e.BookingChannel, &e.Price, &e.Notes, &e.CreatedAt, &e.UpdatedAt,
			&e.CustomerName, &e.ProviderName, &e.ServiceName); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
