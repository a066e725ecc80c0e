package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no customer matches the given id.
var ErrNotFound = errors.New("customer not found")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) validate(cu *Customer) error {
	cu.FullName = strings.TrimSpace(cu.FullName)
	if cu.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	if cu.Email != nil && !strings.Contains(*cu.Email, "@") {
		return fmt.Errorf("invalid email: %s", *cu.Email)
	}
	return nil
}

func (s *Service) CreateCustomer(ctx context.Context, cu *Customer) error {
	if err := s.validate(cu); err != nil {
		return err
	}
	return s.repo.Create(ctx, cu)
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateCustomer(ctx context.Context, cu *Customer) error {
	if err := s.validate(cu); err != nil {
		return err
	}
	return s.repo.Update(ctx, cu)
}

func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// ListCustomers returns customers newest first. A non-empty query matches
// name, phone and email.
func (s *Service) ListCustomers(ctx context.Context, query string, limit, offset int) ([]*Customer, int, error) {
	return s.repo.List(ctx, strings.TrimSpace(query), limit, offset)
}
