package repository

import (
	"context"
	"errors"

	"github.com/amirphl/estate-settlement/models"
	"gorm.io/gorm"
)

// SaleBonusRecordRepositoryImpl implements SaleBonusRecordRepository interface
type SaleBonusRecordRepositoryImpl struct {
	*BaseRepository[models.SaleBonusRecord]
}

// NewSaleBonusRecordRepository creates a new sale bonus record repository
func NewSaleBonusRecordRepository(db *gorm.DB) SaleBonusRecordRepository {
	return &SaleBonusRecordRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SaleBonusRecord](db),
	}
}

// ByAgentAndMonth finds the settlement of an agent for a salary month
func (r *SaleBonusRecordRepositoryImpl) ByAgentAndMonth(ctx context.Context, agentID uint, month string) (*models.SaleBonusRecord, error) {
	db := r.getDB(ctx)
	var record models.SaleBonusRecord
	err := db.Where("agent_id = ? AND bonus_of_month = ?", agentID, month).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// SettledAgentIDs returns which of agentIDs already have a record for month
func (r *SaleBonusRecordRepositoryImpl) SettledAgentIDs(ctx context.Context, agentIDs []uint, month string) (map[uint]bool, error) {
	settled := make(map[uint]bool, len(agentIDs))
	if len(agentIDs) == 0 {
		return settled, nil
	}

	db := r.getDB(ctx)
	var ids []uint
	err := db.Model(&models.SaleBonusRecord{}).
		Where("agent_id IN ? AND bonus_of_month = ?", agentIDs, month).
		Pluck("agent_id", &ids).Error
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		settled[id] = true
	}
	return settled, nil
}

// ByFilter retrieves settlements based on filter criteria
func (r *SaleBonusRecordRepositoryImpl) ByFilter(ctx context.Context, filter models.SaleBonusRecordFilter, orderBy string, limit, offset int) ([]*models.SaleBonusRecord, error) {
	db := r.getDB(ctx)
	var records []*models.SaleBonusRecord

	query := db.Model(&models.SaleBonusRecord{})
	query = r.applyFilter(query, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	} else {
		query = query.Order("created_at DESC")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Count returns the number of settlements matching the filter
func (r *SaleBonusRecordRepositoryImpl) Count(ctx context.Context, filter models.SaleBonusRecordFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.SaleBonusRecord{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies the filter to the query
func (r *SaleBonusRecordRepositoryImpl) applyFilter(query *gorm.DB, filter models.SaleBonusRecordFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.AgentID != nil {
		query = query.Where("agent_id = ?", *filter.AgentID)
	}
	if len(filter.AgentIDs) > 0 {
		query = query.Where("agent_id IN ?", filter.AgentIDs)
	}
	if filter.BonusOfMonth != nil {
		query = query.Where("bonus_of_month = ?", *filter.BonusOfMonth)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}
