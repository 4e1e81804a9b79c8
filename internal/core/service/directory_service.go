package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rl1809/backoffice/internal/core/domain"
	"github.com/rl1809/backoffice/internal/port"
)

// DirectoryService registers the customers and employees that orders and
// tickets refer to.
type DirectoryService struct {
	store port.Store
	options
}

func NewDirectoryService(store port.Store, opts ...Option) *DirectoryService {
	return &DirectoryService{store: store, options: newOptions(opts)}
}

func (s *DirectoryService) CreateCustomer(ctx context.Context, name, email string) (domain.Customer, error) {
	if err := validateContact(name, email); err != nil {
		return domain.Customer{}, err
	}
	return s.store.CreateCustomer(ctx, domain.Customer{
		Name:      name,
		Email:     email,
		CreatedAt: s.now(),
	})
}

func (s *DirectoryService) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	return s.store.GetCustomer(ctx, id)
}

func (s *DirectoryService) CreateEmployee(ctx context.Context, name, email string) (domain.Employee, error) {
	if err := validateContact(name, email); err != nil {
		return domain.Employee{}, err
	}
	return s.store.CreateEmployee(ctx, domain.Employee{
		Name:      name,
		Email:     email,
		CreatedAt: s.now(),
	})
}

func (s *DirectoryService) GetEmployee(ctx context.Context, id int64) (domain.Employee, error) {
	return s.store.GetEmployee(ctx, id)
}

func validateContact(name, email string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required: %w", domain.ErrInvalidArgument)
	}
	if at := strings.Index(email, "@"); at <= 0 || at == len(email)-1 {
		return fmt.Errorf("email %q is not valid: %w", email, domain.ErrInvalidArgument)
	}
	return nil
}
