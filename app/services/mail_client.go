package services

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// AgentCommissionMail is one line of the monthly payout mail
type AgentCommissionMail struct {
	AgentID         uint            `json:"agentId"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Month           string          `json:"month"`
	TotalCommission decimal.Decimal `json:"totalCommission"`
	Bonus           decimal.Decimal `json:"bonus"`
	Penalty         decimal.Decimal `json:"penalty"`
	NetPayout       decimal.Decimal `json:"netPayout"`
}

// Mailer sends payout notifications
type Mailer interface {
	SendBulkCommissionEmails(ctx context.Context, items []AgentCommissionMail) error
}

type MailClient struct {
	client internalClient
}

func NewMailClient(baseURL, apiKey string, timeout time.Duration) *MailClient {
	return &MailClient{client: newInternalClient("mail-service", baseURL, apiKey, timeout)}
}

type bulkCommissionRequest struct {
	AgentCommissions []AgentCommissionMail `json:"agentCommissions"`
}

func (c *MailClient) SendBulkCommissionEmails(ctx context.Context, items []AgentCommissionMail) error {
	if len(items) == 0 {
		return nil
	}
	return c.client.do(ctx, http.MethodPost, "/internal/mail/commission-bulk", bulkCommissionRequest{AgentCommissions: items}, nil)
}
