package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeStatus represents the approval state of an agent's claim
type FeeStatus string

const (
	FeeStatusProcessing FeeStatus = "PROCESSING" // Waiting for admin review
	FeeStatusConfirmed  FeeStatus = "CONFIRMED"  // Approved, terminal
	FeeStatusRejected   FeeStatus = "REJECTED"   // Declined, terminal
)

func (s FeeStatus) Valid() bool {
	switch s {
	case FeeStatusProcessing, FeeStatusConfirmed, FeeStatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s
func (s FeeStatus) IsTerminal() bool {
	switch s {
	case FeeStatusConfirmed, FeeStatusRejected:
		return true
	case FeeStatusProcessing:
		return false
	}
	return true
}

// AgentCommissionFee is one agent's claim to be paid out for a Commission
type AgentCommissionFee struct {
	ID           uint `gorm:"primaryKey;autoIncrement" json:"id"`
	CommissionID uint `gorm:"not null;index" json:"commission_id"`
	AgentID      uint `gorm:"not null;index" json:"agent_id"`

	// Fixed at creation as latest_price * commission_rate / 100, never recomputed
	CommissionValue decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"commission_value"`
	Status          FeeStatus       `gorm:"type:varchar(20);not null;default:'PROCESSING';index" json:"status"`
	RejectReason    *string         `gorm:"type:text" json:"reject_reason,omitempty"`
	ReviewedBy      *uint           `json:"reviewed_by,omitempty"`

	// Gateway correlation
	OrderCode        int64      `gorm:"not null;uniqueIndex" json:"order_code"`
	CheckoutURL      string     `gorm:"type:text" json:"checkout_url"`
	QRCode           string     `gorm:"type:text" json:"qr_code"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	GatewayReference *string    `gorm:"type:varchar(128)" json:"gateway_reference,omitempty"`

	ConfirmedAt *time.Time `gorm:"index" json:"confirmed_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Commission *Commission `gorm:"foreignKey:CommissionID;constraint:OnDelete:CASCADE" json:"commission,omitempty"`
}

func (AgentCommissionFee) TableName() string {
	return "agent_commission_fees"
}

func (f *AgentCommissionFee) IsProcessing() bool {
	return f.Status == FeeStatusProcessing
}

func (f *AgentCommissionFee) IsPaid() bool {
	return f.PaidAt != nil
}

// CanTransitionTo enforces the fee state machine: PROCESSING -> CONFIRMED | REJECTED
func (f *AgentCommissionFee) CanTransitionTo(next FeeStatus) bool {
	switch f.Status {
	case FeeStatusProcessing:
		switch next {
		case FeeStatusConfirmed, FeeStatusRejected:
			return true
		case FeeStatusProcessing:
			return false
		}
		return false
	case FeeStatusConfirmed, FeeStatusRejected:
		return false
	}
	return false
}

// ComputeCommissionValue returns price * rate / 100 rounded to whole currency units
func ComputeCommissionValue(price, rate decimal.Decimal) decimal.Decimal {
	return price.Mul(rate).Div(decimal.NewFromInt(100)).Round(0)
}
