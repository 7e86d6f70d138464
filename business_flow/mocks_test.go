package businessflow

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/amirphl/estate-settlement/app/services"
	"github.com/amirphl/estate-settlement/models"
	"github.com/amirphl/estate-settlement/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// noopTx runs fn inline, surfacing its error like a rolled back transaction
type noopTx struct{ calls int }

func (t *noopTx) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type seqOrderCodes struct{ n atomic.Int64 }

func (s *seqOrderCodes) Next() int64 { return 1000 + s.n.Add(1) }

// Commission repository

type commissionRepoMock struct{ mock.Mock }

func (m *commissionRepoMock) ByID(ctx context.Context, id uint) (*models.Commission, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*models.Commission)
	return c, args.Error(1)
}

func (m *commissionRepoMock) Save(ctx context.Context, entity *models.Commission) error {
	return m.Called(ctx, entity).Error(0)
}

func (m *commissionRepoMock) LatestByPropertyID(ctx context.Context, propertyID uint) (*models.Commission, error) {
	args := m.Called(ctx, propertyID)
	c, _ := args.Get(0).(*models.Commission)
	return c, args.Error(1)
}

func (m *commissionRepoMock) ActiveByPropertyID(ctx context.Context, propertyID uint) (*models.Commission, error) {
	args := m.Called(ctx, propertyID)
	c, _ := args.Get(0).(*models.Commission)
	return c, args.Error(1)
}

func (m *commissionRepoMock) UpdateClaimTerms(ctx context.Context, id uint, latestPrice, rate decimal.Decimal, contractURL *string) error {
	return m.Called(ctx, id, latestPrice, rate, contractURL).Error(0)
}

func (m *commissionRepoMock) TransitionStatus(ctx context.Context, id uint, from, to models.CommissionStatus) error {
	return m.Called(ctx, id, from, to).Error(0)
}

func (m *commissionRepoMock) ListCompletedTransactions(ctx context.Context, filter repository.CommissionTransactionFilter, limit, offset int) ([]*repository.CommissionTransaction, int64, error) {
	args := m.Called(ctx, filter, limit, offset)
	rows, _ := args.Get(0).([]*repository.CommissionTransaction)
	return rows, args.Get(1).(int64), args.Error(2)
}

func (m *commissionRepoMock) ListProcessingForAgent(ctx context.Context, agentID uint, filter repository.CommissionTransactionFilter, limit, offset int) ([]*repository.CommissionTransaction, int64, error) {
	args := m.Called(ctx, agentID, filter, limit, offset)
	rows, _ := args.Get(0).([]*repository.CommissionTransaction)
	return rows, args.Get(1).(int64), args.Error(2)
}

// Fee repository

type feeRepoMock struct{ mock.Mock }

func (m *feeRepoMock) ByID(ctx context.Context, id uint) (*models.AgentCommissionFee, error) {
	args := m.Called(ctx, id)
	f, _ := args.Get(0).(*models.AgentCommissionFee)
	return f, args.Error(1)
}

func (m *feeRepoMock) Save(ctx context.Context, entity *models.AgentCommissionFee) error {
	return m.Called(ctx, entity).Error(0)
}

func (m *feeRepoMock) ByOrderCode(ctx context.Context, orderCode int64) (*models.AgentCommissionFee, error) {
	args := m.Called(ctx, orderCode)
	f, _ := args.Get(0).(*models.AgentCommissionFee)
	return f, args.Error(1)
}

func (m *feeRepoMock) ProcessingByCommissionID(ctx context.Context, commissionID uint) (*models.AgentCommissionFee, error) {
	args := m.Called(ctx, commissionID)
	f, _ := args.Get(0).(*models.AgentCommissionFee)
	return f, args.Error(1)
}

func (m *feeRepoMock) LatestByCommissionID(ctx context.Context, commissionID uint) (*models.AgentCommissionFee, error) {
	args := m.Called(ctx, commissionID)
	f, _ := args.Get(0).(*models.AgentCommissionFee)
	return f, args.Error(1)
}

func (m *feeRepoMock) Transition(ctx context.Context, id uint, from, to models.FeeStatus, reviewerID *uint, rejectReason *string) error {
	return m.Called(ctx, id, from, to, reviewerID, rejectReason).Error(0)
}

func (m *feeRepoMock) MarkPaid(ctx context.Context, id uint, reference string, paidAt time.Time) (bool, error) {
	args := m.Called(ctx, id, reference, paidAt)
	return args.Bool(0), args.Error(1)
}

func (m *feeRepoMock) AggregateByAgents(ctx context.Context, agentIDs []uint, window repository.TimeWindow) (map[uint]*repository.AgentFeeAggregate, error) {
	args := m.Called(ctx, agentIDs, window)
	a, _ := args.Get(0).(map[uint]*repository.AgentFeeAggregate)
	return a, args.Error(1)
}

func (m *feeRepoMock) ListDecidedForAgent(ctx context.Context, agentID uint, window repository.TimeWindow, search string, limit, offset int) ([]*repository.AgentFeeTransaction, int64, error) {
	args := m.Called(ctx, agentID, window, search, limit, offset)
	rows, _ := args.Get(0).([]*repository.AgentFeeTransaction)
	return rows, args.Get(1).(int64), args.Error(2)
}

// Settlement repository

type settlementRepoMock struct{ mock.Mock }

func (m *settlementRepoMock) ByID(ctx context.Context, id uint) (*models.SaleBonusRecord, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*models.SaleBonusRecord)
	return r, args.Error(1)
}

func (m *settlementRepoMock) ByFilter(ctx context.Context, filter models.SaleBonusRecordFilter, orderBy string, limit, offset int) ([]*models.SaleBonusRecord, error) {
	args := m.Called(ctx, filter, orderBy, limit, offset)
	r, _ := args.Get(0).([]*models.SaleBonusRecord)
	return r, args.Error(1)
}

func (m *settlementRepoMock) Save(ctx context.Context, entity *models.SaleBonusRecord) error {
	return m.Called(ctx, entity).Error(0)
}

func (m *settlementRepoMock) Count(ctx context.Context, filter models.SaleBonusRecordFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *settlementRepoMock) ByAgentAndMonth(ctx context.Context, agentID uint, month string) (*models.SaleBonusRecord, error) {
	args := m.Called(ctx, agentID, month)
	r, _ := args.Get(0).(*models.SaleBonusRecord)
	return r, args.Error(1)
}

func (m *settlementRepoMock) SettledAgentIDs(ctx context.Context, agentIDs []uint, month string) (map[uint]bool, error) {
	args := m.Called(ctx, agentIDs, month)
	r, _ := args.Get(0).(map[uint]bool)
	return r, args.Error(1)
}

// Pending completion repository

type pendingRepoMock struct{ mock.Mock }

func (m *pendingRepoMock) ByID(ctx context.Context, id uint) (*models.PendingCompletion, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.PendingCompletion)
	return p, args.Error(1)
}

func (m *pendingRepoMock) Save(ctx context.Context, entity *models.PendingCompletion) error {
	return m.Called(ctx, entity).Error(0)
}

func (m *pendingRepoMock) ByFeeID(ctx context.Context, feeID uint) (*models.PendingCompletion, error) {
	args := m.Called(ctx, feeID)
	p, _ := args.Get(0).(*models.PendingCompletion)
	return p, args.Error(1)
}

func (m *pendingRepoMock) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.PendingCompletion, error) {
	args := m.Called(ctx, now, lease, limit)
	p, _ := args.Get(0).([]*models.PendingCompletion)
	return p, args.Error(1)
}

func (m *pendingRepoMock) MarkDone(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *pendingRepoMock) MarkAttemptFailed(ctx context.Context, id uint, seenAttempts int, lastError string, nextAttemptAt time.Time, exhausted bool) error {
	return m.Called(ctx, id, seenAttempts, lastError, nextAttemptAt, exhausted).Error(0)
}

// Collaborators

type gatewayMock struct{ mock.Mock }

func (m *gatewayMock) BuildPaymentRequest(propertyID uint, orderCode int64, amount decimal.Decimal, returnURL, cancelURL string) (*services.PaymentRequest, error) {
	args := m.Called(propertyID, orderCode, amount, returnURL, cancelURL)
	r, _ := args.Get(0).(*services.PaymentRequest)
	return r, args.Error(1)
}

func (m *gatewayMock) RequestCheckout(ctx context.Context, req *services.PaymentRequest) (*services.CheckoutResult, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*services.CheckoutResult)
	return r, args.Error(1)
}

func (m *gatewayMock) VerifyWebhook(raw []byte) (*services.WebhookEvent, error) {
	args := m.Called(raw)
	e, _ := args.Get(0).(*services.WebhookEvent)
	return e, args.Error(1)
}

func (m *gatewayMock) DefaultReturnURL() string { return "https://app.test/return" }
func (m *gatewayMock) DefaultCancelURL() string { return "https://app.test/cancel" }

type propertyMock struct{ mock.Mock }

func (m *propertyMock) CompleteTransaction(ctx context.Context, propertyID uint, listingStatus, requestStatus string) error {
	return m.Called(ctx, propertyID, listingStatus, requestStatus).Error(0)
}

type directoryMock struct{ mock.Mock }

func (m *directoryMock) GetAgentPublicInfo(ctx context.Context, agentID uint) (*services.AgentInfo, error) {
	args := m.Called(ctx, agentID)
	a, _ := args.Get(0).(*services.AgentInfo)
	return a, args.Error(1)
}

func (m *directoryMock) ListAgents(ctx context.Context, page, limit int, search string, onlyAgents bool) (*services.AgentPage, error) {
	args := m.Called(ctx, page, limit, search, onlyAgents)
	p, _ := args.Get(0).(*services.AgentPage)
	return p, args.Error(1)
}

func (m *directoryMock) ListUsersByIDs(ctx context.Context, ids []uint, search string) ([]services.AgentInfo, error) {
	args := m.Called(ctx, ids, search)
	a, _ := args.Get(0).([]services.AgentInfo)
	return a, args.Error(1)
}

type publisherMock struct{ mock.Mock }

func (m *publisherMock) Publish(ctx context.Context, routingKey string, payload any) error {
	return m.Called(ctx, routingKey, payload).Error(0)
}

func (m *publisherMock) Close() error { return nil }

type mailerMock struct{ mock.Mock }

func (m *mailerMock) SendBulkCommissionEmails(ctx context.Context, items []services.AgentCommissionMail) error {
	return m.Called(ctx, items).Error(0)
}
