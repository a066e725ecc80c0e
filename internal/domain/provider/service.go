package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no provider matches the given id.
var ErrNotFound = errors.New("provider not found")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) validate(p *Provider) error {
	p.FullName = strings.TrimSpace(p.FullName)
	if p.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	return nil
}

func (s *Service) CreateProvider(ctx context.Context, p *Provider) error {
	if err := s.validate(p); err != nil {
		return err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) GetProvider(ctx context.Context, id int64) (*Provider, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateProvider(ctx context.Context, p *Provider) error {
	if err := s.validate(p); err != nil {
		return err
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) DeleteProvider(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListProviders(ctx context.Context, activeOnly bool, limit, offset int) ([]*Provider, int, error) {
	return s.repo.List(ctx, activeOnly, limit, offset)
}

// IsBookable reports whether the provider exists and is active. Unknown
// providers answer false with no error; the booking service turns that into
// a validation failure.
func (s *Service) IsBookable(ctx context.Context, providerID int64) (bool, error) {
	p, err := s.repo.GetByID(ctx, providerID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.Active, nil
}
