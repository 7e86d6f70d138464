package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PendingCompletionStatus tracks the second step of the confirm saga
type PendingCompletionStatus string

const (
	PendingCompletionStatusPending PendingCompletionStatus = "PENDING" // property not yet notified
	PendingCompletionStatusDone    PendingCompletionStatus = "DONE"    // property marked complete
	PendingCompletionStatusFailed  PendingCompletionStatus = "FAILED"  // retries exhausted, needs an operator
)

// Property lifecycle values requested on completion
const (
	ListingStatusSold        = "SOLD"
	ListingStatusRented      = "RENTED"
	RequestStatusCompleted   = "COMPLETED"
	ListingStatusForSale     = "FOR_SALE"
	ListingStatusForRent     = "FOR_RENT"
	ListingStatusPendingDeal = "PENDING_APPROVAL"
)

// PendingCompletion is the durable marker written together with a fee confirmation.
// It stays PENDING until the property service acknowledges the completion.
type PendingCompletion struct {
	ID            uint                    `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID          uuid.UUID               `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`
	FeeID         uint                    `gorm:"not null;uniqueIndex" json:"fee_id"`
	CommissionID  uint                    `gorm:"not null;index" json:"commission_id"`
	PropertyID    uint                    `gorm:"not null;index" json:"property_id"`
	ListingStatus string                  `gorm:"type:varchar(30);not null" json:"listing_status"`
	RequestStatus string                  `gorm:"type:varchar(30);not null" json:"request_status"`
	Status        PendingCompletionStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	Attempts      int                     `gorm:"not null;default:0" json:"attempts"`
	LastError     *string                 `gorm:"type:text" json:"last_error,omitempty"`
	NextAttemptAt time.Time               `gorm:"not null;index" json:"next_attempt_at"`
	CompletedAt   *time.Time              `json:"completed_at,omitempty"`
	CreatedAt     time.Time               `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time               `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PendingCompletion) TableName() string {
	return "pending_completions"
}

// BeforeCreate ensures UUID is set
func (p *PendingCompletion) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	return nil
}

func (p *PendingCompletion) IsPending() bool {
	return p.Status == PendingCompletionStatusPending
}
