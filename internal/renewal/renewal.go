// Package renewal schedules renewal reminders and notifies customers whose policies
// are about to expire.
package renewal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/metrics"
	"github.com/opensource-finance/heron/internal/notify"
	"github.com/opensource-finance/heron/internal/refid"
)

// ErrEmptySchedule is returned when no reminder could be scheduled.
var ErrEmptySchedule = errors.New("no reminders could be scheduled")

// EmptyScheduleMessage is the user-facing form of ErrEmptySchedule.
const EmptyScheduleMessage = "Could not schedule reminders. Please review the expiry date or lead time configuration."

// Request is a renewal reminder schedule request.
type Request struct {
	PolicyNumber  string `json:"policyNumber"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	ExpiryDate    string `json:"expiryDate"`
	ContactPhone  string `json:"contactPhone,omitempty"`

	// LeadTimes is a JSON array of days or a comma-separated string.
	LeadTimes any `json:"leadTimes,omitempty"`
}

// Validate returns a *domain.ValidationError listing every invalid field.
func (r *Request) Validate() error {
	errs := map[string]string{}

	if strings.TrimSpace(r.PolicyNumber) == "" {
		errs["policyNumber"] = "Policy number is required."
	}
	if strings.TrimSpace(r.CustomerName) == "" {
		errs["customerName"] = "Customer name is required."
	}
	if strings.TrimSpace(r.CustomerEmail) == "" {
		errs["customerEmail"] = "Customer email is required."
	} else if !domain.ValidEmail(r.CustomerEmail) {
		errs["customerEmail"] = "Enter a valid email address."
	}
	if strings.TrimSpace(r.ExpiryDate) == "" {
		errs["expiryDate"] = "Policy expiry date is required."
	} else if _, ok := ParseExpiry(r.ExpiryDate); !ok {
		errs["expiryDate"] = "Invalid expiry date."
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// SweepResult reports one expiring-policy sweep.
type SweepResult struct {
	PoliciesDue   int `json:"policiesDue"`
	RemindersSent int `json:"remindersSent"`
}

// Service schedules reminders and runs the expiring-policy sweep.
type Service struct {
	store    domain.RenewalStore
	policies domain.PolicyStore
	notifier *notify.Service
	cfg      domain.RenewalsConfig
	now      func() time.Time
}

// NewService creates a renewal service.
func NewService(store domain.RenewalStore, policies domain.PolicyStore, notifier *notify.Service, cfg domain.RenewalsConfig) *Service {
	if cfg.Window <= 0 {
		cfg.Window = 30 * 24 * time.Hour
	}
	if cfg.DedupeWindow <= 0 {
		cfg.DedupeWindow = 7 * 24 * time.Hour
	}
	if len(cfg.LeadTimes) == 0 {
		cfg.LeadTimes = domain.DefaultLeadTimes
	}
	return &Service{store: store, policies: policies, notifier: notifier, cfg: cfg, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Schedule validates req and stores its reminder schedule.
func (s *Service) Schedule(ctx context.Context, req Request) (*domain.RenewalRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	expiry, _ := ParseExpiry(req.ExpiryDate)
	reminders := BuildSchedule(expiry, ParseLeadTimes(req.LeadTimes, s.cfg.LeadTimes), now)
	if len(reminders) == 0 {
		return nil, ErrEmptySchedule
	}

	id, err := refid.New(refid.PrefixRenewal, now)
	if err != nil {
		return nil, err
	}

	leads := make([]int, len(reminders))
	for i, r := range reminders {
		leads[i] = r.LeadDays
	}

	rec := &domain.RenewalRecord{
		ID:            id,
		PolicyNumber:  strings.TrimSpace(req.PolicyNumber),
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		ContactPhone:  strings.TrimSpace(req.ContactPhone),
		ExpiryDate:    expiry,
		LeadTimes:     leads,
		Reminders:     reminders,
		CreatedAt:     now,
	}
	if err := s.store.SaveRenewal(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save renewal schedule: %w", err)
	}
	return rec, nil
}

// List returns every schedule ordered by expiry date.
func (s *Service) List(ctx context.Context) ([]*domain.RenewalRecord, error) {
	return s.store.ListRenewals(ctx)
}

// Sweep notifies the customers of active policies expiring within the window, skipping
// those already reminded within the dedupe window.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.now().UTC()
	due, err := s.policies.ListExpiringPolicies(ctx, now, now.Add(s.cfg.Window))
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to list expiring policies: %w", err)
	}

	var result SweepResult
	for _, p := range due {
		if !p.CoverageEnd.After(now) {
			continue
		}
		result.PoliciesDue++

		if p.CustomerID == "" {
			continue
		}
		recent, err := s.notifier.SentRecently(ctx, p.CustomerID, domain.NotificationRenewal, p.PolicyNumber, s.cfg.DedupeWindow)
		if err != nil {
			slog.Error("renewal dedupe lookup failed", "policy_number", p.PolicyNumber, "error", err)
			continue
		}
		if recent {
			continue
		}

		message := fmt.Sprintf("Your policy %s expires on %s. Please renew to maintain coverage.",
			p.PolicyNumber, p.CoverageEnd.Format(domain.DateFormat))
		if _, err := s.notifier.Notify(ctx, p.CustomerID, "Policy Renewal Reminder", message, domain.NotificationRenewal); err != nil {
			slog.Error("renewal reminder failed", "policy_number", p.PolicyNumber, "error", err)
			continue
		}
		result.RemindersSent++
		metrics.RenewalRemindersSent.Inc()
	}

	slog.Info("renewal sweep complete",
		"policies_due", result.PoliciesDue,
		"reminders_sent", result.RemindersSent,
	)
	return result, nil
}
