// Package businessflow contains the business logic for the application.
package businessflow

import (
	"fmt"

	"github.com/amirphl/estate-settlement/app/dto"
	"github.com/amirphl/estate-settlement/app/services"
	"github.com/amirphl/estate-settlement/config"
	"github.com/amirphl/estate-settlement/models"
	"github.com/amirphl/estate-settlement/repository"
	"github.com/amirphl/estate-settlement/utils"
	"github.com/shopspring/decimal"
)

const RequestIDKey = "X-Request-ID"

// Redis keys, relative to the configured prefix
const (
	feeReviewLockKey    = "lock:fee-review:%d"
	windowAggregatesKey = "settlement:aggregates:%s:%s"
)

func redisKey(cfg config.CacheConfig, key string) string {
	return cfg.RedisPrefix + key
}

// Pagination is a validated 1-based page request
type Pagination struct {
	Page  int
	Limit int
}

// NewPagination applies defaults to zero values and rejects out-of-range input
func NewPagination(page, limit int) (Pagination, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = utils.DefaultPageSize
	}
	if page < 1 {
		return Pagination{}, ErrInvalidPage
	}
	if limit < 1 || limit > utils.MaxPageSize {
		return Pagination{}, ErrInvalidPageSize
	}
	return Pagination{Page: page, Limit: limit}, nil
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

func (p Pagination) Info(total int64) dto.PageInfo {
	return dto.PageInfo{Page: p.Page, Limit: p.Limit, Total: total}
}

func nullDecimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

// ToCommissionResponse converts a commission model to its API shape
func ToCommissionResponse(c *models.Commission) dto.CommissionResponse {
	return dto.CommissionResponse{
		ID:             c.ID,
		UUID:           c.UUID.String(),
		PropertyID:     c.PropertyID,
		Status:         string(c.Status),
		Type:           string(c.Type),
		CommissionRate: c.CommissionRate,
		LatestPrice:    nullDecimalPtr(c.LatestPrice),
		ContractURL:    c.ContractURL,
		CompletedAt:    c.CompletedAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// ToFeeResponse converts a fee model to its API shape
func ToFeeResponse(f *models.AgentCommissionFee) *dto.FeeResponse {
	if f == nil {
		return nil
	}
	return &dto.FeeResponse{
		ID:              f.ID,
		CommissionID:    f.CommissionID,
		AgentID:         f.AgentID,
		CommissionValue: f.CommissionValue,
		Status:          string(f.Status),
		RejectReason:    f.RejectReason,
		ReviewedBy:      f.ReviewedBy,
		OrderCode:       f.OrderCode,
		CheckoutURL:     f.CheckoutURL,
		PaidAt:          f.PaidAt,
		ConfirmedAt:     f.ConfirmedAt,
		RejectedAt:      f.RejectedAt,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

// ToSettlementResponse converts a settlement record to its API shape
func ToSettlementResponse(r *models.SaleBonusRecord) dto.SettlementResponse {
	return dto.SettlementResponse{
		ID:                    r.ID,
		AgentID:               r.AgentID,
		BuyingQuantity:        r.BuyingQuantity,
		RentalQuantity:        r.RentalQuantity,
		TotalBuyingCommission: r.TotalBuyingCommission,
		TotalRentalCommission: r.TotalRentalCommission,
		TotalCommission:       r.TotalCommission(),
		Bonus:                 r.Bonus,
		Penalty:               r.Penalty,
		NetPayout:             r.NetPayout(),
		Review:                r.Review,
		ReviewBy:              r.ReviewBy,
		BonusOfMonth:          r.BonusOfMonth,
		CreatedAt:             r.CreatedAt,
	}
}

func toAgentDTO(a *services.AgentInfo) *dto.AgentDTO {
	if a == nil {
		return nil
	}
	return &dto.AgentDTO{ID: a.ID, Name: a.Name, Email: a.Email, Avatar: a.Avatar, Phone: a.Phone}
}

func toCommissionTransactionItem(t *repository.CommissionTransaction) dto.CommissionTransactionItem {
	item := dto.CommissionTransactionItem{
		CommissionID:    t.CommissionID,
		PropertyID:      t.PropertyID,
		Type:            string(t.Type),
		Status:          string(t.Status),
		CommissionRate:  t.CommissionRate,
		LatestPrice:     nullDecimalPtr(t.LatestPrice),
		ContractURL:     t.ContractURL,
		FeeID:           t.FeeID,
		AgentID:         t.AgentID,
		CommissionValue: nullDecimalPtr(t.CommissionValue),
		OrderCode:       t.OrderCode,
		PaidAt:          t.PaidAt,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
	if t.FeeStatus != nil {
		s := string(*t.FeeStatus)
		item.FeeStatus = &s
	}
	return item
}

func toTotals(a *repository.AgentFeeAggregate) dto.CommissionTotals {
	if a == nil {
		return dto.CommissionTotals{
			TotalBuyingCommission: decimal.Zero,
			TotalRentalCommission: decimal.Zero,
			TotalCommissions:      decimal.Zero,
		}
	}
	return dto.CommissionTotals{
		BuyingQuantityCompleted: a.BuyingQuantityCompleted,
		RentalQuantityCompleted: a.RentalQuantityCompleted,
		QuantityRejected:        a.QuantityRejected,
		TotalBuyingCommission:   a.TotalBuyingCommission,
		TotalRentalCommission:   a.TotalRentalCommission,
		TotalCommissions:        a.TotalCommission(),
	}
}

// DisplayStatus derives the listing status shown for a commission and its latest fee
func DisplayStatus(c *models.Commission, latest *models.AgentCommissionFee) string {
	switch c.Status {
	case models.CommissionStatusCompleted:
		return completedListingStatus(c.Type)
	case models.CommissionStatusProcessing:
		if latest != nil && latest.Status == models.FeeStatusProcessing {
			return models.ListingStatusPendingDeal
		}
	case models.CommissionStatusFailed:
	}
	if c.Type == models.CommissionTypeRental {
		return models.ListingStatusForRent
	}
	return models.ListingStatusForSale
}

// completedListingStatus is the property listing status requested when a commission completes
func completedListingStatus(t models.CommissionType) string {
	if t == models.CommissionTypeRental {
		return models.ListingStatusRented
	}
	return models.ListingStatusSold
}

func lockKey(cfg config.CacheConfig, feeID uint) string {
	return redisKey(cfg, fmt.Sprintf(feeReviewLockKey, feeID))
}
