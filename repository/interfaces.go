// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/estate-settlement/models"
	"github.com/shopspring/decimal"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

var (
	// ErrDuplicateRecord is returned when a unique constraint rejects a write
	ErrDuplicateRecord = errors.New("duplicate record")
	// ErrStaleTransition is returned when a guarded status update matched no row
	ErrStaleTransition = errors.New("status transition did not apply")
)

// Repository is the lookup and insert surface shared by every entity
type Repository[T any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	Save(ctx context.Context, entity *T) error
}

// FilteredRepository adds filter queries for entities listed by arbitrary criteria
type FilteredRepository[T any, F any] interface {
	Repository[T]
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Count(ctx context.Context, filter F) (int64, error)
}

// TimeWindow is an inclusive [Start, End] range
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// CommissionRepository defines operations for commissions
type CommissionRepository interface {
	Repository[models.Commission]
	// LatestByPropertyID returns the most recent commission for the property
	LatestByPropertyID(ctx context.Context, propertyID uint) (*models.Commission, error)
	ActiveByPropertyID(ctx context.Context, propertyID uint) (*models.Commission, error)
	UpdateClaimTerms(ctx context.Context, id uint, latestPrice, rate decimal.Decimal, contractURL *string) error
	// TransitionStatus moves the commission from one status to another and fails with ErrStaleTransition
	// when the row is no longer in the expected status
	TransitionStatus(ctx context.Context, id uint, from, to models.CommissionStatus) error
	ListCompletedTransactions(ctx context.Context, filter CommissionTransactionFilter, limit, offset int) ([]*CommissionTransaction, int64, error)
	ListProcessingForAgent(ctx context.Context, agentID uint, filter CommissionTransactionFilter, limit, offset int) ([]*CommissionTransaction, int64, error)
}

// AgentCommissionFeeRepository defines operations for agent commission fees
type AgentCommissionFeeRepository interface {
	Repository[models.AgentCommissionFee]
	ByOrderCode(ctx context.Context, orderCode int64) (*models.AgentCommissionFee, error)
	ProcessingByCommissionID(ctx context.Context, commissionID uint) (*models.AgentCommissionFee, error)
	LatestByCommissionID(ctx context.Context, commissionID uint) (*models.AgentCommissionFee, error)
	// Transition applies a guarded PROCESSING -> CONFIRMED/REJECTED update
	Transition(ctx context.Context, id uint, from, to models.FeeStatus, reviewerID *uint, rejectReason *string) error
	// MarkPaid records the gateway payment once; returns false when it was already recorded
	MarkPaid(ctx context.Context, id uint, reference string, paidAt time.Time) (bool, error)
	AggregateByAgents(ctx context.Context, agentIDs []uint, window TimeWindow) (map[uint]*AgentFeeAggregate, error)
	ListDecidedForAgent(ctx context.Context, agentID uint, window TimeWindow, search string, limit, offset int) ([]*AgentFeeTransaction, int64, error)
}

// SaleBonusRecordRepository defines operations for monthly settlements
type SaleBonusRecordRepository interface {
	FilteredRepository[models.SaleBonusRecord, models.SaleBonusRecordFilter]
	ByAgentAndMonth(ctx context.Context, agentID uint, month string) (*models.SaleBonusRecord, error)
	// SettledAgentIDs returns the subset of agentIDs that already have a record for month
	SettledAgentIDs(ctx context.Context, agentIDs []uint, month string) (map[uint]bool, error)
}

// PendingCompletionRepository defines operations for confirm saga markers
type PendingCompletionRepository interface {
	Repository[models.PendingCompletion]
	ByFeeID(ctx context.Context, feeID uint) (*models.PendingCompletion, error)
	// ClaimDue locks due PENDING markers and leases them until now+lease so no other relay picks them up
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.PendingCompletion, error)
	MarkDone(ctx context.Context, id uint) error
	// MarkAttemptFailed records a failed attempt when the marker still has seenAttempts attempts;
	// exhausted moves it to FAILED
	MarkAttemptFailed(ctx context.Context, id uint, seenAttempts int, lastError string, nextAttemptAt time.Time, exhausted bool) error
}

// CommissionTransactionFilter narrows commission/fee projections
type CommissionTransactionFilter struct {
	Type          *models.CommissionType
	PropertyIDs   []uint
	AgentID       *uint
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// CommissionTransaction joins a commission with its latest relevant fee
type CommissionTransaction struct {
	CommissionID    uint                    `gorm:"column:commission_id"`
	PropertyID      uint                    `gorm:"column:property_id"`
	Type            models.CommissionType   `gorm:"column:type"`
	Status          models.CommissionStatus `gorm:"column:status"`
	CommissionRate  decimal.Decimal         `gorm:"column:commission_rate"`
	LatestPrice     decimal.NullDecimal     `gorm:"column:latest_price"`
	ContractURL     *string                 `gorm:"column:contract_url"`
	FeeID           *uint                   `gorm:"column:fee_id"`
	AgentID         *uint                   `gorm:"column:agent_id"`
	FeeStatus       *models.FeeStatus       `gorm:"column:fee_status"`
	CommissionValue decimal.NullDecimal     `gorm:"column:commission_value"`
	OrderCode       *int64                  `gorm:"column:order_code"`
	PaidAt          *time.Time              `gorm:"column:paid_at"`
	CreatedAt       time.Time               `gorm:"column:created_at"`
	UpdatedAt       time.Time               `gorm:"column:updated_at"`
}

// AgentFeeAggregate holds per-agent counts and sums inside a salary window
type AgentFeeAggregate struct {
	AgentID                 uint            `gorm:"column:agent_id"`
	BuyingQuantityCompleted int             `gorm:"column:buying_completed"`
	RentalQuantityCompleted int             `gorm:"column:rental_completed"`
	QuantityRejected        int             `gorm:"column:rejected"`
	TotalBuyingCommission   decimal.Decimal `gorm:"column:total_buying"`
	TotalRentalCommission   decimal.Decimal `gorm:"column:total_rental"`
}

// TotalCommission returns the sum of CONFIRMED buying and rental commission values
func (a *AgentFeeAggregate) TotalCommission() decimal.Decimal {
	return a.TotalBuyingCommission.Add(a.TotalRentalCommission)
}

// AgentFeeTransaction is one decided fee with its commission terms
type AgentFeeTransaction struct {
	FeeID           uint                  `gorm:"column:fee_id"`
	CommissionID    uint                  `gorm:"column:commission_id"`
	PropertyID      uint                  `gorm:"column:property_id"`
	Type            models.CommissionType `gorm:"column:type"`
	Status          models.FeeStatus      `gorm:"column:status"`
	CommissionValue decimal.Decimal       `gorm:"column:commission_value"`
	CommissionRate  decimal.Decimal       `gorm:"column:commission_rate"`
	LatestPrice     decimal.NullDecimal   `gorm:"column:latest_price"`
	RejectReason    *string               `gorm:"column:reject_reason"`
	OrderCode       int64                 `gorm:"column:order_code"`
	DecidedAt       time.Time             `gorm:"column:decided_at"`
}
