package customer

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, cu *Customer) error
	GetByID(ctx context.Context, id int64) (*Customer, error)
	Update(ctx context.Context, cu *Customer) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, query string, limit, offset int) ([]*Customer, int, error)
}
