package provider

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, p *Provider) error
	GetByID(ctx context.Context, id int64) (*Provider, error)
	Update(ctx context.Context, p *Provider) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Provider, int, error)
}
