package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// AgentDTO is an agent's public profile
type AgentDTO struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

// ListAgentsInMonthRequest asks for every agent's summary in a salary month.
// An empty Month resolves to the month currently being settled.
type ListAgentsInMonthRequest struct {
	PageRequest
	Month  string `json:"month" query:"month" validate:"omitempty,salary_month"`
	Search string `json:"search" query:"search" validate:"max=100"`
}

// CommissionTotals aggregates decided fees inside a salary window
type CommissionTotals struct {
	BuyingQuantityCompleted int             `json:"buyingQuantityCompleted"`
	RentalQuantityCompleted int             `json:"rentalQuantityCompleted"`
	QuantityRejected        int             `json:"quantityRejected"`
	TotalBuyingCommission   decimal.Decimal `json:"totalBuyingCommission"`
	TotalRentalCommission   decimal.Decimal `json:"totalRentalCommission"`
	TotalCommissions        decimal.Decimal `json:"totalCommissions"`
}

// AgentMonthSummary is one agent's row in the monthly settlement screen
type AgentMonthSummary struct {
	Agent AgentDTO `json:"agent"`
	CommissionTotals
	Notified bool `json:"notified"`
}

// ListAgentsInMonthResponse is one page of agent summaries
type ListAgentsInMonthResponse struct {
	Month       string              `json:"month"`
	WindowStart time.Time           `json:"windowStart"`
	WindowEnd   time.Time           `json:"windowEnd"`
	Agents      []AgentMonthSummary `json:"agents"`
	AllNotified bool                `json:"allNotified"`
	Pagination  PageInfo            `json:"pagination"`
}

// AgentTransactionsRequest asks for one agent's decided fees in a salary month
type AgentTransactionsRequest struct {
	PageRequest
	AgentID uint   `json:"agentId" query:"agentId" validate:"required,gt=0"`
	Month   string `json:"month" query:"month" validate:"omitempty,salary_month"`
	Search  string `json:"search" query:"search" validate:"max=100"`
}

// AgentTransactionItem is one CONFIRMED or REJECTED fee
type AgentTransactionItem struct {
	FeeID           uint             `json:"feeId"`
	CommissionID    uint             `json:"commissionId"`
	PropertyID      uint             `json:"propertyId"`
	Type            string           `json:"type"`
	Status          string           `json:"status"`
	CommissionValue decimal.Decimal  `json:"commissionValue"`
	CommissionRate  decimal.Decimal  `json:"commissionRate"`
	LatestPrice     *decimal.Decimal `json:"latestPrice"`
	RejectReason    *string          `json:"rejectReason"`
	OrderCode       int64            `json:"orderCode"`
	DecidedAt       time.Time        `json:"decidedAt"`
}

// AgentTransactionsResponse is one agent's month with its transactions
type AgentTransactionsResponse struct {
	Month          string                 `json:"month"`
	Agent          *AgentDTO              `json:"agent"`
	Summary        CommissionTotals       `json:"summary"`
	Transactions   []AgentTransactionItem `json:"transactions"`
	AlreadySettled bool                   `json:"alreadySettled"`
	Pagination     PageInfo               `json:"pagination"`
}

// CreateSettlementRequest records an agent's monthly bonus and penalty.
// Counts and commission sums are recomputed from the ledger.
type CreateSettlementRequest struct {
	AgentID    uint            `json:"agentId" validate:"required,gt=0"`
	Month      string          `json:"bonusOfMonth" validate:"required,salary_month"`
	Bonus      decimal.Decimal `json:"bonus"`
	Penalty    decimal.Decimal `json:"penalty"`
	Review     string          `json:"review" validate:"max=2000"`
	ReviewerID uint            `json:"-"`
}

// SettlementResponse represents a finalized monthly settlement
type SettlementResponse struct {
	ID                    uint            `json:"id"`
	AgentID               uint            `json:"agentId"`
	BuyingQuantity        int             `json:"buyingQuantity"`
	RentalQuantity        int             `json:"rentalQuantity"`
	TotalBuyingCommission decimal.Decimal `json:"totalBuyingCommission"`
	TotalRentalCommission decimal.Decimal `json:"totalRentalCommission"`
	TotalCommission       decimal.Decimal `json:"totalCommission"`
	Bonus                 decimal.Decimal `json:"bonus"`
	Penalty               decimal.Decimal `json:"penalty"`
	NetPayout             decimal.Decimal `json:"netPayout"`
	Review                string          `json:"review"`
	ReviewBy              uint            `json:"reviewBy"`
	BonusOfMonth          string          `json:"bonusOfMonth"`
	CreatedAt             time.Time       `json:"createdAt"`
}

// SettlementHistoryRequest filters an agent's settlements by creation date
type SettlementHistoryRequest struct {
	PageRequest
	AgentID   uint       `json:"agentId" validate:"required,gt=0"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

// SettlementHistoryResponse is one page of settlements
type SettlementHistoryResponse struct {
	Items      []SettlementResponse `json:"items"`
	Pagination PageInfo             `json:"pagination"`
}

// NotifyMonthRequest asks to mail every settled agent of a month
type NotifyMonthRequest struct {
	Month string `json:"month" validate:"omitempty,salary_month"`
}

// NotifyMonthResponse reports the bulk payout mail outcome
type NotifyMonthResponse struct {
	Month       string `json:"month"`
	Recipients  int    `json:"recipients"`
	AllNotified bool   `json:"allNotified"`
}
