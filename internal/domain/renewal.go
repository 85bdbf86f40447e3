package domain

import "time"

// ReminderStatus is the state of one scheduled renewal reminder.
type ReminderStatus string

const (
	ReminderScheduled ReminderStatus = "scheduled"
	ReminderSent      ReminderStatus = "sent"
	ReminderSkipped   ReminderStatus = "skipped"
)

// RenewalReminder is one reminder date ahead of a policy expiry.
type RenewalReminder struct {
	LeadDays     int            `json:"leadDays"`
	ScheduledFor time.Time      `json:"scheduledFor"`
	Status       ReminderStatus `json:"status"`
}

// RenewalRecord is a renewal reminder schedule for one policy.
type RenewalRecord struct {
	ID            string            `json:"id"`
	PolicyNumber  string            `json:"policyNumber"`
	CustomerName  string            `json:"customerName"`
	CustomerEmail string            `json:"customerEmail"`
	ContactPhone  string            `json:"contactPhone,omitempty"`
	ExpiryDate    time.Time         `json:"expiryDate"`
	LeadTimes     []int             `json:"leadTimes"`
	Reminders     []RenewalReminder `json:"reminders"`
	CreatedAt     time.Time         `json:"createdAt"`
}
