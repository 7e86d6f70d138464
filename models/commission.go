package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionStatus represents the lifecycle state of a commission agreement
type CommissionStatus string

const (
	CommissionStatusProcessing CommissionStatus = "PROCESSING" // Open for claims
	CommissionStatusCompleted  CommissionStatus = "COMPLETED"  // Sale or rental closed
	CommissionStatusFailed     CommissionStatus = "FAILED"     // Abandoned cycle
)

// Valid reports whether s is one of the known commission statuses
func (s CommissionStatus) Valid() bool {
	switch s {
	case CommissionStatusProcessing, CommissionStatusCompleted, CommissionStatusFailed:
		return true
	}
	return false
}

// CommissionType distinguishes sale commissions from rental commissions
type CommissionType string

const (
	CommissionTypeBuying CommissionType = "BUYING"
	CommissionTypeRental CommissionType = "RENTAL"
)

func (t CommissionType) Valid() bool {
	switch t {
	case CommissionTypeBuying, CommissionTypeRental:
		return true
	}
	return false
}

// Commission is one commission agreement for a property's sale or rental cycle.
// A property accumulates one row per cycle; only one may be PROCESSING at a time.
type Commission struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`
	PropertyID uint      `gorm:"not null;index:idx_commissions_property_status,priority:1" json:"property_id"`

	Status         CommissionStatus    `gorm:"type:varchar(20);not null;default:'PROCESSING';index:idx_commissions_property_status,priority:2" json:"status"`
	Type           CommissionType      `gorm:"type:varchar(20);not null;index" json:"type"`
	CommissionRate decimal.Decimal     `gorm:"type:numeric(7,4);not null" json:"commission_rate"` // percentage, e.g. 2.5
	LatestPrice    decimal.NullDecimal `gorm:"type:numeric(20,2)" json:"latest_price"`
	ContractURL    *string             `gorm:"type:text" json:"contract_url,omitempty"`

	CompletedAt *time.Time     `gorm:"index" json:"completed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Fees []AgentCommissionFee `gorm:"foreignKey:CommissionID" json:"fees,omitempty"`
}

func (Commission) TableName() string {
	return "commissions"
}

// BeforeCreate ensures UUID is set
func (c *Commission) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	return nil
}

// IsProcessing returns true while the commission accepts claims
func (c *Commission) IsProcessing() bool {
	return c.Status == CommissionStatusProcessing
}

// IsCompleted returns true once the property transaction has closed
func (c *Commission) IsCompleted() bool {
	return c.Status == CommissionStatusCompleted
}

// CanTransitionTo enforces the commission state machine.
// PROCESSING may move to COMPLETED or FAILED, or stay PROCESSING on a reject-and-resubmit cycle.
// COMPLETED and FAILED are terminal.
func (c *Commission) CanTransitionTo(next CommissionStatus) bool {
	switch c.Status {
	case CommissionStatusProcessing:
		switch next {
		case CommissionStatusProcessing, CommissionStatusCompleted, CommissionStatusFailed:
			return true
		}
		return false
	case CommissionStatusCompleted, CommissionStatusFailed:
		return false
	}
	return false
}
