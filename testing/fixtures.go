package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/estate-settlement/models"
	"github.com/amirphl/estate-settlement/utils"
	"github.com/shopspring/decimal"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestCommission creates a PROCESSING commission on a random property
func (tf *TestFixtures) CreateTestCommission(commissionType models.CommissionType, rate string) (*models.Commission, error) {
	commission := &models.Commission{
		PropertyID:     uint(rand.Intn(1_000_000) + 1),
		Status:         models.CommissionStatusProcessing,
		Type:           commissionType,
		CommissionRate: decimal.RequireFromString(rate),
	}
	if err := tf.DB.DB.Create(commission).Error; err != nil {
		return nil, fmt.Errorf("failed to create commission: %w", err)
	}
	return commission, nil
}

// CreateTestFee creates a fee for agentID with the given status and decision time
func (tf *TestFixtures) CreateTestFee(commission *models.Commission, agentID uint, value string, status models.FeeStatus, decidedAt time.Time) (*models.AgentCommissionFee, error) {
	fee := &models.AgentCommissionFee{
		CommissionID:    commission.ID,
		AgentID:         agentID,
		CommissionValue: decimal.RequireFromString(value),
		Status:          status,
		OrderCode:       rand.Int63n(1<<52) + 1,
	}
	switch status {
	case models.FeeStatusConfirmed:
		fee.ConfirmedAt = &decidedAt
	case models.FeeStatusRejected:
		fee.RejectedAt = &decidedAt
		fee.RejectReason = utils.ToPtr("invalid contract")
	case models.FeeStatusProcessing:
	}

	if err := tf.DB.DB.Create(fee).Error; err != nil {
		return nil, fmt.Errorf("failed to create fee: %w", err)
	}
	return fee, nil
}

// CreateTestSettlement creates a settlement record for agentID and month
func (tf *TestFixtures) CreateTestSettlement(agentID uint, month string) (*models.SaleBonusRecord, error) {
	record := &models.SaleBonusRecord{
		AgentID:               agentID,
		BuyingQuantity:        1,
		TotalBuyingCommission: decimal.NewFromInt(1_000_000),
		Bonus:                 decimal.NewFromInt(50_000),
		Penalty:               decimal.Zero,
		Review:                "good month",
		ReviewBy:              1,
		BonusOfMonth:          month,
	}
	if err := tf.DB.DB.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to create settlement: %w", err)
	}
	return record, nil
}
