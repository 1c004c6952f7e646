package models

import "time"

type PaymentStatus string

const (
	PaymentStatusCreated   PaymentStatus = "created"
	PaymentStatusActive    PaymentStatus = "active"
	PaymentStatusPastDue   PaymentStatus = "past_due"
	PaymentStatusPaused    PaymentStatus = "paused"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is one subscription attempt for a user. Status transitions are
// driven by provider webhook events; session_used is incremented on each
// approved paid session start and reset once per billing cycle.
type Payment struct {
	ID                 string
	UserID             string
	PlanID             *string
	RazorpayCustomerID string
	RazorpaySubID      string
	Status             PaymentStatus
	SessionLimit       int
	SessionUsed        int
	StartedAt          *time.Time
	EndedAt            *time.Time
	NextBillingAt      *time.Time
	LastResetAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Plan is a static catalog row; read-only from this service.
type Plan struct {
	ID             string
	Name           string
	MonthlyPrice   int
	SessionLimit   int
	RazorpayPlanID string
	CreatedAt      time.Time
}
