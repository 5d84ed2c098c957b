package billing

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/apperr"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/storage"
)

var ErrCustomerNotFound = fmt.Errorf("customer: %w", apperr.ErrNotFound)

// Customers manages customer accounts.
type Customers struct {
	store     storage.Storage
	locations map[string]bool
	log       *zap.Logger
}

// NewCustomers returns a customer service. knownLocations lists the cities
// the weather lookup can resolve; other locations are accepted with a warning.
func NewCustomers(st storage.Storage, knownLocations []string, log *zap.Logger) *Customers {
	locs := make(map[string]bool, len(knownLocations))
	for _, l := range knownLocations {
		locs[l] = true
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Customers{store: st, locations: locs, log: log.Named("customers")}
}

// Add validates and stores a new customer with status "active".
func (s *Customers) Add(ctx context.Context, c storage.Customer) (storage.Customer, error) {
	c.NationalID = strings.TrimSpace(c.NationalID)
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	if c.NationalID == "" {
		return storage.Customer{}, fmt.Errorf("national id is required: %w", apperr.ErrInvalidArgument)
	}
	if c.Name == "" {
		return storage.Customer{}, fmt.Errorf("name is required: %w", apperr.ErrInvalidArgument)
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return storage.Customer{}, fmt.Errorf("email %q: %w", c.Email, apperr.ErrInvalidArgument)
		}
	}
	if c.Location != "" && len(s.locations) > 0 && !s.locations[c.Location] {
		s.log.Warn("customer location has no weather coordinates",
			zap.String("customer_id", c.NationalID), zap.String("location", c.Location))
	}
	c.Status = "active"

	existing, err := s.store.GetCustomer(ctx, c.NationalID)
	if err != nil {
		return storage.Customer{}, err
	}
	if existing != nil {
		return storage.Customer{}, fmt.Errorf("customer %s: %w", c.NationalID, apperr.ErrAlreadyExists)
	}
	if err := s.store.CreateCustomer(ctx, c); err != nil {
		return storage.Customer{}, err
	}
	s.log.Info("customer added", zap.String("customer_id", c.NationalID), zap.String("name", c.Name))
	return c, nil
}

// Get returns the customer or ErrCustomerNotFound.
func (s *Customers) Get(ctx context.Context, nationalID string) (storage.Customer, error) {
	c, err := s.store.GetCustomer(ctx, nationalID)
	if err != nil {
		return storage.Customer{}, err
	}
	if c == nil {
		return storage.Customer{}, fmt.Errorf("%w: %s", ErrCustomerNotFound, nationalID)
	}
	return *c, nil
}

func (s *Customers) List(ctx context.Context) ([]storage.Customer, error) {
	return s.store.ListCustomers(ctx)
}
