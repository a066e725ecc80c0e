package customer

import (
	"context"
	"errors"
	"strconv"

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

type customerRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &customerRepoPG{pool: pool}
}

func (r *customerRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const customerCols = `id, full_name, phone, email, notes, created_at, updated_at`

func (r *customerRepoPG) scanRow(row pgx.Row) (*Customer, error) {
	var cu Customer
	err := row.Scan(&cu.ID, &cu.FullName, &cu.Phone, &cu.Email, &cu.Notes, &cu.CreatedAt, &cu.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cu, nil
}

func (r *customerRepoPG) Create(ctx context.Context, cu *Customer) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO customer (full_name, phone, email, notes)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at, updated_at`,
		cu.FullName, cu.Phone, cu.Email, cu.Notes).
		Scan(&cu.ID, &cu.CreatedAt, &cu.UpdatedAt)
}

func (r *customerRepoPG) GetByID(ctx context.Context, id int64) (*Customer, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+customerCols+` FROM customer WHERE id = $1`, id))
}

func (r *customerRepoPG) Update(ctx context.Context, cu *Customer) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE customer SET full_name=$2, phone=$3, email=$4, notes=$5, updated_at=NOW()
		WHERE id = $1`,
		cu.ID, cu.FullName, cu.Phone, cu.Email, cu.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *customerRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM customer WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *customerRepoPG) List(ctx context.Context, query string, limit, offset int) ([]*Customer, int, error) {
	where := ``
	args := []interface{}{}
	if query != "" {
		where = ` WHERE full_name ILIKE $1 OR phone = $2 OR email = $2`
		args = append(args, "%"+query+"%", query)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM customer`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageArgs := append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+customerCols+` FROM customer`+where+
			` ORDER BY created_at DESC LIMIT $`+strconv.Itoa(len(args)+1)+` OFFSET $`+strconv.Itoa(len(args)+2),
		pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Customer
	for rows.Next() {
		cu, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, cu)
	}
	return items, total, rows.Err()
}
