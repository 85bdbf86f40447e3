// Package velocity counts a customer's claims over a trailing window.
package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

// ClaimCounter is the subset of the claim store velocity reads from.
type ClaimCounter interface {
	CountClaimsByCustomer(ctx context.Context, customerID string, since time.Time) (int64, error)
}

// Service calculates claim velocity for customers.
type Service struct {
	claims ClaimCounter
	now    func() time.Time
}

// NewService creates a new velocity service.
func NewService(claims ClaimCounter) *Service {
	return &Service{
		claims: claims,
		now:    time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CountCustomerClaims returns the number of claims the customer filed strictly within
// the trailing window, regardless of status. This is the VelocityGetter signature the
// rule engine expects.
func (s *Service) CountCustomerClaims(ctx context.Context, customerID string, window time.Duration) (int64, error) {
	if customerID == "" {
		return 0, fmt.Errorf("customerID is required: %w", domain.ErrInvalidInput)
	}
	if window <= 0 {
		return 0, fmt.Errorf("window must be positive: %w", domain.ErrInvalidInput)
	}
	if s.claims == nil {
		return 0, fmt.Errorf("no data source available")
	}

	since := s.now().UTC().Add(-window)
	count, err := s.claims.CountClaimsByCustomer(ctx, customerID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count claims: %w", err)
	}
	return count, nil
}

// GetVelocityGetter returns CountCustomerClaims as a rule engine getter.
func (s *Service) GetVelocityGetter() func(ctx context.Context, customerID string, window time.Duration) (int64, error) {
	return s.CountCustomerClaims
}
