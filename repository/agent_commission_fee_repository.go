package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/estate-settlement/models"
	"github.com/amirphl/estate-settlement/utils"
	"gorm.io/gorm"
)

// decided_at of a fee is the moment an admin confirmed or rejected it
const feeDecidedAt = "COALESCE(f.confirmed_at, f.rejected_at)"

// AgentCommissionFeeRepositoryImpl implements AgentCommissionFeeRepository interface
type AgentCommissionFeeRepositoryImpl struct {
	*BaseRepository[models.AgentCommissionFee]
}

// NewAgentCommissionFeeRepository creates a new agent commission fee repository
func NewAgentCommissionFeeRepository(db *gorm.DB) AgentCommissionFeeRepository {
	return &AgentCommissionFeeRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AgentCommissionFee](db),
	}
}

// ByOrderCode finds a fee by its gateway order code
func (r *AgentCommissionFeeRepositoryImpl) ByOrderCode(ctx context.Context, orderCode int64) (*models.AgentCommissionFee, error) {
	db := r.getDB(ctx)
	var fee models.AgentCommissionFee
	err := db.Where("order_code = ?", orderCode).Last(&fee).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &fee, nil
}

// ProcessingByCommissionID returns the open claim of a commission, if any
func (r *AgentCommissionFeeRepositoryImpl) ProcessingByCommissionID(ctx context.Context, commissionID uint) (*models.AgentCommissionFee, error) {
	db := r.getDB(ctx)
	var fee models.AgentCommissionFee
	err := db.Where("commission_id = ? AND status = ?", commissionID, models.FeeStatusProcessing).
		Last(&fee).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &fee, nil
}

// LatestByCommissionID returns the newest claim of a commission
func (r *AgentCommissionFeeRepositoryImpl) LatestByCommissionID(ctx context.Context, commissionID uint) (*models.AgentCommissionFee, error) {
	db := r.getDB(ctx)
	var fee models.AgentCommissionFee
	err := db.Where("commission_id = ?", commissionID).Order("id DESC").First(&fee).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &fee, nil
}

// Transition moves a fee from one status to another; ErrStaleTransition when the guard fails
func (r *AgentCommissionFeeRepositoryImpl) Transition(ctx context.Context, id uint, from, to models.FeeStatus, reviewerID *uint, rejectReason *string) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = finishWrite(db, shouldCommit, err)
	}()

	now := utils.UTCNow()
	updates := map[string]any{
		"status":     to,
		"updated_at": now,
	}
	if reviewerID != nil {
		updates["reviewed_by"] = *reviewerID
	}
	switch to {
	case models.FeeStatusConfirmed:
		updates["confirmed_at"] = now
	case models.FeeStatusRejected:
		updates["rejected_at"] = now
		updates["reject_reason"] = rejectReason
	case models.FeeStatusProcessing:
	}

	res := db.Model(&models.AgentCommissionFee{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if err = res.Error; err != nil {
		return fmt.Errorf("failed to transition fee %d: %w", id, err)
	}
	if res.RowsAffected == 0 {
		err = ErrStaleTransition
		return err
	}
	return nil
}

// MarkPaid stores the gateway payment reference the first time it is reported
func (r *AgentCommissionFeeRepositoryImpl) MarkPaid(ctx context.Context, id uint, reference string, paidAt time.Time) (updated bool, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		err = finishWrite(db, shouldCommit, err)
	}()

	res := db.Model(&models.AgentCommissionFee{}).
		Where("id = ? AND paid_at IS NULL", id).
		Updates(map[string]any{
			"paid_at":           paidAt,
			"gateway_reference": reference,
			"updated_at":        utils.UTCNow(),
		})
	if err = res.Error; err != nil {
		return false, fmt.Errorf("failed to mark fee %d as paid: %w", id, err)
	}
	return res.RowsAffected > 0, nil
}

// AggregateByAgents counts and sums decided fees per agent inside the window
func (r *AgentCommissionFeeRepositoryImpl) AggregateByAgents(ctx context.Context, agentIDs []uint, window TimeWindow) (map[uint]*AgentFeeAggregate, error) {
	result := make(map[uint]*AgentFeeAggregate, len(agentIDs))
	if len(agentIDs) == 0 {
		return result, nil
	}

	db := r.getDB(ctx)
	var rows []*AgentFeeAggregate
	err := db.Table("agent_commission_fees AS f").
		Select(`f.agent_id,
			COUNT(*) FILTER (WHERE f.status = @confirmed AND c.type = @buying) AS buying_completed,
			COUNT(*) FILTER (WHERE f.status = @confirmed AND c.type = @rental) AS rental_completed,
			COUNT(*) FILTER (WHERE f.status = @rejected) AS rejected,
			COALESCE(SUM(f.commission_value) FILTER (WHERE f.status = @confirmed AND c.type = @buying), 0) AS total_buying,
			COALESCE(SUM(f.commission_value) FILTER (WHERE f.status = @confirmed AND c.type = @rental), 0) AS total_rental`,
			map[string]any{
				"confirmed": models.FeeStatusConfirmed,
				"rejected":  models.FeeStatusRejected,
				"buying":    models.CommissionTypeBuying,
				"rental":    models.CommissionTypeRental,
			}).
		Joins("JOIN commissions c ON c.id = f.commission_id").
		Where("f.agent_id IN ?", agentIDs).
		Where("f.status IN ?", []models.FeeStatus{models.FeeStatusConfirmed, models.FeeStatusRejected}).
		Where(feeDecidedAt+" BETWEEN ? AND ?", window.Start, window.End).
		Group("f.agent_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate fees: %w", err)
	}

	for _, row := range rows {
		result[row.AgentID] = row
	}
	return result, nil
}

// ListDecidedForAgent lists CONFIRMED and REJECTED fees of an agent inside the window
func (r *AgentCommissionFeeRepositoryImpl) ListDecidedForAgent(ctx context.Context, agentID uint, window TimeWindow, search string, limit, offset int) ([]*AgentFeeTransaction, int64, error) {
	db := r.getDB(ctx)

	base := db.Table("agent_commission_fees AS f").
		Joins("JOIN commissions c ON c.id = f.commission_id").
		Where("f.agent_id = ?", agentID).
		Where("f.status IN ?", []models.FeeStatus{models.FeeStatusConfirmed, models.FeeStatusRejected}).
		Where(feeDecidedAt+" BETWEEN ? AND ?", window.Start, window.End)

	if search = strings.TrimSpace(search); search != "" {
		like := "%" + search + "%"
		base = base.Where("(CAST(c.property_id AS TEXT) LIKE ? OR CAST(f.order_code AS TEXT) LIKE ? OR f.reject_reason ILIKE ?)", like, like, like)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := base.Select(`f.id AS fee_id, f.commission_id, c.property_id, c.type, f.status, f.commission_value,
		c.commission_rate, c.latest_price, f.reject_reason, f.order_code, ` + feeDecidedAt + ` AS decided_at`).
		Order("decided_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*AgentFeeTransaction
	if err := query.Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
