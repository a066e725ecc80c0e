package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no service matches the given id.
var ErrNotFound = errors.New("service not found")

// FallbackDurationMinutes applies when a service is created without a
// duration.
const FallbackDurationMinutes = 30

// Catalog manages the set of bookable services.
type Catalog struct {
	repo Repository
}

func NewCatalog(repo Repository) *Catalog {
	return &Catalog{repo: repo}
}

func (ct *Catalog) validate(s *Service) error {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.DurationMinutes < 0 {
		return fmt.Errorf("duration_minutes must be positive")
	}
	if s.Price != nil && *s.Price < 0 {
		return fmt.Errorf("price must not be negative")
	}
	return nil
}

func (ct *Catalog) CreateService(ctx context.Context, s *Service) error {
	if err := ct.validate(s); err != nil {
		return err
	}
	if s.DurationMinutes == 0 {
		s.DurationMinutes = FallbackDurationMinutes
	}
	return ct.repo.Create(ctx, s)
}

func (ct *Catalog) GetService(ctx context.Context, id int64) (*Service, error) {
	return ct.repo.GetByID(ctx, id)
}

func (ct *Catalog) UpdateService(ctx context.Context, s *Service) error {
	if err := ct.validate(s); err != nil {
		return err
	}
	if s.DurationMinutes == 0 {
		s.DurationMinutes = FallbackDurationMinutes
	}
	return ct.repo.Update(ctx, s)
}

func (ct *Catalog) DeleteService(ctx context.Context, id int64) error {
	return ct.repo.Delete(ctx, id)
}

func (ct *Catalog) ListServices(ctx context.Context, activeOnly bool, limit, offset int) ([]*Service, int, error) {
	return ct.repo.List(ctx, activeOnly, limit, offset)
}

// DefaultDuration reports the service's default duration in minutes. Unknown
// services answer zero with no error so that booking falls back to the
// system default instead of failing.
func (ct *Catalog) DefaultDuration(ctx context.Context, serviceID int64) (int, error) {
	s, err := ct.repo.GetByID(ctx, serviceID)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return s.DurationMinutes, nil
}
