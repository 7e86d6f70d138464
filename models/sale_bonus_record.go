package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleBonusRecord is the finalized monthly settlement snapshot for one agent.
// (agent_id, bonus_of_month) is unique.
type SaleBonusRecord struct {
	ID      uint `gorm:"primaryKey;autoIncrement" json:"id"`
	AgentID uint `gorm:"not null;uniqueIndex:ux_sale_bonus_agent_month,priority:1" json:"agent_id"`

	BuyingQuantity        int             `gorm:"not null;default:0" json:"buying_quantity"`
	RentalQuantity        int             `gorm:"not null;default:0" json:"rental_quantity"`
	TotalBuyingCommission decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"total_buying_commission"`
	TotalRentalCommission decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"total_rental_commission"`
	Bonus                 decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"bonus"`
	Penalty               decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"penalty"`

	Review   string `gorm:"type:text" json:"review"`
	ReviewBy uint   `gorm:"not null" json:"review_by"`

	// "MM/YYYY"
	BonusOfMonth string `gorm:"type:varchar(7);not null;uniqueIndex:ux_sale_bonus_agent_month,priority:2;index" json:"bonus_of_month"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (SaleBonusRecord) TableName() string {
	return "sale_bonus_records"
}

// TotalCommission returns buying plus rental commission
func (r *SaleBonusRecord) TotalCommission() decimal.Decimal {
	return r.TotalBuyingCommission.Add(r.TotalRentalCommission)
}

// NetPayout returns total commission plus bonus minus penalty
func (r *SaleBonusRecord) NetPayout() decimal.Decimal {
	return r.TotalCommission().Add(r.Bonus).Sub(r.Penalty)
}

// SaleBonusRecordFilter represents filter criteria for settlement queries
type SaleBonusRecordFilter struct {
	ID            *uint      `json:"id,omitempty"`
	AgentID       *uint      `json:"agent_id,omitempty"`
	AgentIDs      []uint     `json:"agent_ids,omitempty"`
	BonusOfMonth  *string    `json:"bonus_of_month,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
