package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateCommissionRequest opens a commission cycle on a property
type CreateCommissionRequest struct {
	PropertyID     uint            `json:"propertyId" validate:"required,gt=0"`
	Type           string          `json:"type" validate:"required,oneof=BUYING RENTAL"`
	CommissionRate decimal.Decimal `json:"commissionRate"`
}

// CommissionResponse represents a commission agreement
type CommissionResponse struct {
	ID             uint             `json:"id"`
	UUID           string           `json:"uuid"`
	PropertyID     uint             `json:"propertyId"`
	Status         string           `json:"status"`
	Type           string           `json:"type"`
	CommissionRate decimal.Decimal  `json:"commissionRate"`
	LatestPrice    *decimal.Decimal `json:"latestPrice"`
	ContractURL    *string          `json:"contractUrl"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// CreatePaymentRequest is an agent's claim on a commission.
// AgentID is taken from the access token, never from the body.
type CreatePaymentRequest struct {
	PropertyID     uint            `json:"propertyId" validate:"required,gt=0"`
	CommissionID   uint            `json:"commissionId" validate:"required,gt=0"`
	LastPrice      decimal.Decimal `json:"lastPrice"`
	CommissionRate decimal.Decimal `json:"commissionRate"`
	ContractURL    *string         `json:"contractUrl,omitempty" validate:"omitempty,url,max=2048"`
	ReturnURL      string          `json:"returnUrl,omitempty" validate:"omitempty,url"`
	CancelURL      string          `json:"cancelUrl,omitempty" validate:"omitempty,url"`
	AgentID        uint            `json:"-"`
}

// CreatePaymentResponse carries the gateway checkout artifacts
type CreatePaymentResponse struct {
	FeeID           uint            `json:"feeId"`
	CommissionID    uint            `json:"commissionId"`
	CommissionValue decimal.Decimal `json:"commissionValue"`
	CheckoutURL     string          `json:"checkoutUrl"`
	QRCode          string          `json:"qrCode"`
	OrderCode       int64           `json:"orderCode"`
}

// ConfirmTransactionRequest is filled from path params and the admin token
type ConfirmTransactionRequest struct {
	FeeID      uint `json:"-" validate:"required,gt=0"`
	PropertyID uint `json:"-" validate:"required,gt=0"`
	ReviewerID uint `json:"-" validate:"required,gt=0"`
}

// RejectTransactionRequest is the admin reject body
type RejectTransactionRequest struct {
	RejectReason string `json:"rejectReason" validate:"required,min=1,max=1000"`
	FeeID        uint   `json:"-"`
	ReviewerID   uint   `json:"-"`
}

// FeeResponse represents an agent commission fee
type FeeResponse struct {
	ID              uint            `json:"id"`
	CommissionID    uint            `json:"commissionId"`
	AgentID         uint            `json:"agentId"`
	CommissionValue decimal.Decimal `json:"commissionValue"`
	Status          string          `json:"status"`
	RejectReason    *string         `json:"rejectReason"`
	ReviewedBy      *uint           `json:"reviewedBy,omitempty"`
	OrderCode       int64           `json:"orderCode"`
	CheckoutURL     string          `json:"checkoutUrl,omitempty"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	ConfirmedAt     *time.Time      `json:"confirmedAt,omitempty"`
	RejectedAt      *time.Time      `json:"rejectedAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ListCommissionTransactionsRequest filters commission dashboards
type ListCommissionTransactionsRequest struct {
	PageRequest
	Type       *string    `json:"type,omitempty" validate:"omitempty,oneof=BUYING RENTAL"`
	PropertyID *uint      `json:"propertyId,omitempty"`
	AgentID    *uint      `json:"agentId,omitempty"`
	StartDate  *time.Time `json:"startDate,omitempty"`
	EndDate    *time.Time `json:"endDate,omitempty"`
}

// CommissionTransactionItem is a commission joined with its relevant fee
type CommissionTransactionItem struct {
	CommissionID    uint             `json:"commissionId"`
	PropertyID      uint             `json:"propertyId"`
	Type            string           `json:"type"`
	Status          string           `json:"status"`
	CommissionRate  decimal.Decimal  `json:"commissionRate"`
	LatestPrice     *decimal.Decimal `json:"latestPrice"`
	ContractURL     *string          `json:"contractUrl"`
	FeeID           *uint            `json:"feeId"`
	AgentID         *uint            `json:"agentId"`
	FeeStatus       *string          `json:"feeStatus"`
	CommissionValue *decimal.Decimal `json:"commissionValue"`
	OrderCode       *int64           `json:"orderCode"`
	PaidAt          *time.Time       `json:"paidAt,omitempty"`
	Agent           *AgentDTO        `json:"agent,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// ListCommissionTransactionsResponse is one page of commission transactions
type ListCommissionTransactionsResponse struct {
	Items      []CommissionTransactionItem `json:"items"`
	Pagination PageInfo                    `json:"pagination"`
}

// CommissionDetailResponse is a commission with its latest fee and derived listing status
type CommissionDetailResponse struct {
	Commission    CommissionResponse `json:"commission"`
	LatestFee     *FeeResponse       `json:"latestFee"`
	Agent         *AgentDTO          `json:"agent"`
	DisplayStatus string             `json:"displayStatus"`
}

// WebhookAckResponse acknowledges a verified gateway webhook
type WebhookAckResponse struct {
	OrderCode int64 `json:"orderCode"`
	Paid      bool  `json:"paid"`
	Applied   bool  `json:"applied"`
}
