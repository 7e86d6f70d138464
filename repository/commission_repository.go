package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/estate-settlement/models"
	"github.com/amirphl/estate-settlement/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const commissionTransactionColumns = `c.id AS commission_id, c.property_id, c.type, c.status, c.commission_rate, c.latest_price, c.contract_url,
	f.id AS fee_id, f.agent_id, f.status AS fee_status, f.commission_value, f.order_code, f.paid_at,
	c.created_at, c.updated_at`

// CommissionRepositoryImpl implements CommissionRepository interface
type CommissionRepositoryImpl struct {
	*BaseRepository[models.Commission]
}

// NewCommissionRepository creates a new commission repository
func NewCommissionRepository(db *gorm.DB) CommissionRepository {
	return &CommissionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Commission](db),
	}
}

// LatestByPropertyID finds the newest commission cycle of a property
func (r *CommissionRepositoryImpl) LatestByPropertyID(ctx context.Context, propertyID uint) (*models.Commission, error) {
	db := r.getDB(ctx)
	var commission models.Commission
	err := db.Where("property_id = ?", propertyID).Order("id DESC").First(&commission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

// ActiveByPropertyID finds the PROCESSING commission of a property, if any
func (r *CommissionRepositoryImpl) ActiveByPropertyID(ctx context.Context, propertyID uint) (*models.Commission, error) {
	db := r.getDB(ctx)
	var commission models.Commission
	err := db.Where("property_id = ? AND status = ?", propertyID, models.CommissionStatusProcessing).
		Order("id DESC").First(&commission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

// UpdateClaimTerms stores the price, rate and contract of the latest claim
func (r *CommissionRepositoryImpl) UpdateClaimTerms(ctx context.Context, id uint, latestPrice, rate decimal.Decimal, contractURL *string) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = finishWrite(db, shouldCommit, err)
	}()

	res := db.Model(&models.Commission{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"latest_price":    latestPrice,
			"commission_rate": rate,
			"contract_url":    contractURL,
			"updated_at":      utils.UTCNow(),
		})
	if err = res.Error; err != nil {
		return fmt.Errorf("failed to update commission %d claim terms: %w", id, err)
	}
	if res.RowsAffected == 0 {
		err = gorm.ErrRecordNotFound
		return err
	}
	return nil
}

// TransitionStatus applies a guarded status change
func (r *CommissionRepositoryImpl) TransitionStatus(ctx context.Context, id uint, from, to models.CommissionStatus) (err error) {
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
	if to == models.CommissionStatusCompleted {
		updates["completed_at"] = now
	}

	res := db.Model(&models.Commission{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if err = res.Error; err != nil {
		return fmt.Errorf("failed to transition commission %d: %w", id, err)
	}
	if res.RowsAffected == 0 {
		err = ErrStaleTransition
		return err
	}
	return nil
}

// ListCompletedTransactions returns COMPLETED commissions with their confirmed fee
func (r *CommissionRepositoryImpl) ListCompletedTransactions(ctx context.Context, filter CommissionTransactionFilter, limit, offset int) ([]*CommissionTransaction, int64, error) {
	db := r.getDB(ctx)

	base := db.Table("commissions AS c").
		Joins(`LEFT JOIN LATERAL (
			SELECT * FROM agent_commission_fees fx
			WHERE fx.commission_id = c.id AND fx.status = ?
			ORDER BY fx.id DESC LIMIT 1
		) f ON TRUE`, models.FeeStatusConfirmed).
		Where("c.status = ? AND c.deleted_at IS NULL", models.CommissionStatusCompleted)
	base = r.applyTransactionFilter(base, filter)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := base.Select(commissionTransactionColumns).Order("c.updated_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*CommissionTransaction
	if err := query.Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListProcessingForAgent returns an agent's open claims joined with their commission
func (r *CommissionRepositoryImpl) ListProcessingForAgent(ctx context.Context, agentID uint, filter CommissionTransactionFilter, limit, offset int) ([]*CommissionTransaction, int64, error) {
	db := r.getDB(ctx)

	base := db.Table("agent_commission_fees AS f").
		Joins("JOIN commissions c ON c.id = f.commission_id AND c.deleted_at IS NULL").
		Where("f.agent_id = ? AND f.status = ?", agentID, models.FeeStatusProcessing)
	base = r.applyTransactionFilter(base, filter)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := base.Select(commissionTransactionColumns).Order("f.created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*CommissionTransaction
	if err := query.Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *CommissionRepositoryImpl) applyTransactionFilter(query *gorm.DB, filter CommissionTransactionFilter) *gorm.DB {
	if filter.Type != nil {
		query = query.Where("c.type = ?", *filter.Type)
	}
	if len(filter.PropertyIDs) > 0 {
		query = query.Where("c.property_id IN ?", filter.PropertyIDs)
	}
	if filter.AgentID != nil {
		query = query.Where("f.agent_id = ?", *filter.AgentID)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("c.created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("c.created_at <= ?", *filter.CreatedBefore)
	}
	return query
}
