package businessflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/estate-settlement/app/services"
	"github.com/amirphl/estate-settlement/models"
	"github.com/amirphl/estate-settlement/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var maxCommissionRate = decimal.NewFromInt(100)

// PaymentClaim is an agent's request to be paid out for a commission
type PaymentClaim struct {
	PropertyID   uint
	CommissionID uint
	AgentID      uint
	LastPrice    decimal.Decimal
	Rate         decimal.Decimal
	ContractURL  *string
	ReturnURL    string
	CancelURL    string
}

// PaymentClaimResult is the persisted fee together with the checkout artifacts
type PaymentClaimResult struct {
	Fee      *models.AgentCommissionFee
	Checkout *services.CheckoutResult
}

// CommissionView is a commission with its latest fee and derived listing status
type CommissionView struct {
	Commission    *models.Commission
	LatestFee     *models.AgentCommissionFee
	Agent         *services.AgentInfo
	DisplayStatus string
}

// CommissionLedger owns commissions and agent fees and their state machines
type CommissionLedger interface {
	CreateCommission(ctx context.Context, propertyID uint, commissionType models.CommissionType, rate decimal.Decimal) (*models.Commission, error)
	CreatePaymentClaim(ctx context.Context, claim PaymentClaim) (*PaymentClaimResult, error)
	ConfirmFee(ctx context.Context, feeID, reviewerID uint) (*models.AgentCommissionFee, error)
	RejectFee(ctx context.Context, feeID, reviewerID uint, reason string) (*models.AgentCommissionFee, error)
	// CompleteCommission moves a commission to COMPLETED; completing a COMPLETED commission is a no-op
	CompleteCommission(ctx context.Context, commissionID uint) (*models.Commission, error)
	// RecordPayment stores the gateway payment on the fee with orderCode; applied is false on redelivery
	RecordPayment(ctx context.Context, orderCode int64, reference string, paidAt time.Time) (fee *models.AgentCommissionFee, applied bool, err error)
	ListCompleted(ctx context.Context, filter repository.CommissionTransactionFilter, page Pagination) ([]*repository.CommissionTransaction, int64, error)
	ListProcessingForAgent(ctx context.Context, agentID uint, filter repository.CommissionTransactionFilter, page Pagination) ([]*repository.CommissionTransaction, int64, error)
	GetByProperty(ctx context.Context, propertyID uint) (*CommissionView, error)
	GetDetail(ctx context.Context, commissionID uint) (*CommissionView, error)
}

// CommissionLedgerImpl implements CommissionLedger
type CommissionLedgerImpl struct {
	commissionRepo repository.CommissionRepository
	feeRepo        repository.AgentCommissionFeeRepository
	txManager      repository.TxManager
	gateway        services.PaymentGateway
	orderCodes     services.OrderCodeGenerator
	agents         services.AgentDirectory
	logger         logrus.FieldLogger
}

// NewCommissionLedger creates a new commission ledger
func NewCommissionLedger(
	commissionRepo repository.CommissionRepository,
	feeRepo repository.AgentCommissionFeeRepository,
	txManager repository.TxManager,
	gateway services.PaymentGateway,
	orderCodes services.OrderCodeGenerator,
	agents services.AgentDirectory,
	logger logrus.FieldLogger,
) CommissionLedger {
	return &CommissionLedgerImpl{
		commissionRepo: commissionRepo,
		feeRepo:        feeRepo,
		txManager:      txManager,
		gateway:        gateway,
		orderCodes:     orderCodes,
		agents:         agents,
		logger:         logger,
	}
}

func validateRate(rate decimal.Decimal) error {
	if !rate.IsPositive() || rate.GreaterThan(maxCommissionRate) {
		return ErrInvalidCommissionRate
	}
	return nil
}

// CreateCommission opens a PROCESSING commission with no price yet
func (l *CommissionLedgerImpl) CreateCommission(ctx context.Context, propertyID uint, commissionType models.CommissionType, rate decimal.Decimal) (*models.Commission, error) {
	if propertyID == 0 {
		return nil, ErrPropertyIDRequired
	}
	if !commissionType.Valid() {
		return nil, ErrInvalidCommissionType
	}
	if err := validateRate(rate); err != nil {
		return nil, err
	}

	active, err := l.commissionRepo.ActiveByPropertyID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrCommissionAlreadyOpen
	}

	commission := &models.Commission{
		PropertyID:     propertyID,
		Status:         models.CommissionStatusProcessing,
		Type:           commissionType,
		CommissionRate: rate,
	}
	if err := l.commissionRepo.Save(ctx, commission); err != nil {
		if errors.Is(err, repository.ErrDuplicateRecord) {
			return nil, ErrCommissionAlreadyOpen
		}
		return nil, err
	}
	return commission, nil
}

func validateClaim(claim PaymentClaim) error {
	if claim.PropertyID == 0 {
		return ErrPropertyIDRequired
	}
	if claim.CommissionID == 0 {
		return ErrCommissionIDRequired
	}
	if claim.AgentID == 0 {
		return ErrAgentIDRequired
	}
	if !claim.LastPrice.IsPositive() {
		return ErrInvalidPrice
	}
	return validateRate(claim.Rate)
}

// CreatePaymentClaim obtains a checkout from the gateway, then records the fee and the new claim terms.
// Nothing is written when the gateway fails.
func (l *CommissionLedgerImpl) CreatePaymentClaim(ctx context.Context, claim PaymentClaim) (*PaymentClaimResult, error) {
	if err := validateClaim(claim); err != nil {
		return nil, err
	}

	commission, err := l.commissionRepo.ByID(ctx, claim.CommissionID)
	if err != nil {
		return nil, err
	}
	if commission == nil {
		return nil, ErrCommissionNotFound
	}
	if commission.PropertyID != claim.PropertyID {
		return nil, ErrPropertyMismatch
	}
	if !commission.IsProcessing() {
		return nil, ErrCommissionNotProcessing
	}

	open, err := l.feeRepo.ProcessingByCommissionID(ctx, commission.ID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, ErrClaimAlreadyProcessing
	}

	value := models.ComputeCommissionValue(claim.LastPrice, claim.Rate)
	if !value.IsPositive() {
		return nil, ErrCommissionValueTooLow
	}

	orderCode := l.orderCodes.Next()
	req, err := l.gateway.BuildPaymentRequest(claim.PropertyID, orderCode, value, claim.ReturnURL, claim.CancelURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCheckoutFailed, err)
	}
	checkout, err := l.gateway.RequestCheckout(ctx, req)
	if err != nil {
		checkoutRequestsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %w", ErrCheckoutFailed, err)
	}
	checkoutRequestsTotal.WithLabelValues("issued").Inc()

	fee := &models.AgentCommissionFee{
		CommissionID:    commission.ID,
		AgentID:         claim.AgentID,
		CommissionValue: value,
		Status:          models.FeeStatusProcessing,
		OrderCode:       orderCode,
		CheckoutURL:     checkout.CheckoutURL,
		QRCode:          checkout.QRCode,
	}

	err = l.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := l.feeRepo.Save(txCtx, fee); err != nil {
			if errors.Is(err, repository.ErrDuplicateRecord) {
				return ErrClaimAlreadyProcessing
			}
			return err
		}
		if err := l.commissionRepo.UpdateClaimTerms(txCtx, commission.ID, claim.LastPrice, claim.Rate, claim.ContractURL); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		l.logger.WithFields(logrus.Fields{
			"commission_id": commission.ID,
			"order_code":    orderCode,
		}).WithError(err).Warn("checkout issued but claim was not recorded")
		return nil, err
	}

	return &PaymentClaimResult{Fee: fee, Checkout: checkout}, nil
}

// ConfirmFee moves a PROCESSING fee to CONFIRMED. A decided fee is a conflict and nothing is written.
func (l *CommissionLedgerImpl) ConfirmFee(ctx context.Context, feeID, reviewerID uint) (*models.AgentCommissionFee, error) {
	return l.transitionFee(ctx, feeID, reviewerID, models.FeeStatusConfirmed, nil)
}

// RejectFee moves a PROCESSING fee to REJECTED and keeps its commission open for a new claim
func (l *CommissionLedgerImpl) RejectFee(ctx context.Context, feeID, reviewerID uint, reason string) (*models.AgentCommissionFee, error) {
	if reason == "" {
		return nil, ErrRejectReasonRequired
	}
	return l.transitionFee(ctx, feeID, reviewerID, models.FeeStatusRejected, &reason)
}

func (l *CommissionLedgerImpl) transitionFee(ctx context.Context, feeID, reviewerID uint, to models.FeeStatus, reason *string) (*models.AgentCommissionFee, error) {
	if feeID == 0 {
		return nil, ErrFeeIDRequired
	}
	if reviewerID == 0 {
		return nil, ErrReviewerIDRequired
	}

	fee, err := l.feeRepo.ByID(ctx, feeID)
	if err != nil {
		return nil, err
	}
	if fee == nil {
		return nil, ErrFeeNotFound
	}
	if !fee.CanTransitionTo(to) {
		return nil, ErrFeeNotProcessing
	}

	err = l.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := l.feeRepo.Transition(txCtx, fee.ID, models.FeeStatusProcessing, to, &reviewerID, reason); err != nil {
			if errors.Is(err, repository.ErrStaleTransition) {
				return ErrFeeNotProcessing
			}
			return err
		}
		if to != models.FeeStatusRejected {
			return nil
		}
		// The commission stays PROCESSING; the guarded write also refreshes updated_at
		if err := l.commissionRepo.TransitionStatus(txCtx, fee.CommissionID, models.CommissionStatusProcessing, models.CommissionStatusProcessing); err != nil {
			if errors.Is(err, repository.ErrStaleTransition) {
				return ErrCommissionNotProcessing
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	feeTransitionsTotal.WithLabelValues(string(to)).Inc()

	updated, err := l.feeRepo.ByID(ctx, fee.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrFeeNotFound
	}
	return updated, nil
}

// CompleteCommission moves a commission to COMPLETED; repeated calls return the completed commission
func (l *CommissionLedgerImpl) CompleteCommission(ctx context.Context, commissionID uint) (*models.Commission, error) {
	if commissionID == 0 {
		return nil, ErrCommissionIDRequired
	}
	commission, err := l.commissionRepo.ByID(ctx, commissionID)
	if err != nil {
		return nil, err
	}
	if commission == nil {
		return nil, ErrCommissionNotFound
	}
	if commission.IsCompleted() {
		return commission, nil
	}
	if !commission.CanTransitionTo(models.CommissionStatusCompleted) {
		return nil, ErrCommissionNotProcessing
	}

	err = l.commissionRepo.TransitionStatus(ctx, commission.ID, models.CommissionStatusProcessing, models.CommissionStatusCompleted)
	if err != nil && !errors.Is(err, repository.ErrStaleTransition) {
		return nil, err
	}

	current, rerr := l.commissionRepo.ByID(ctx, commission.ID)
	if rerr != nil {
		return nil, rerr
	}
	if current == nil {
		return nil, ErrCommissionNotFound
	}
	if !current.IsCompleted() {
		return nil, ErrCommissionNotProcessing
	}
	return current, nil
}

// RecordPayment stores paid_at and the gateway reference once per fee
func (l *CommissionLedgerImpl) RecordPayment(ctx context.Context, orderCode int64, reference string, paidAt time.Time) (*models.AgentCommissionFee, bool, error) {
	fee, err := l.feeRepo.ByOrderCode(ctx, orderCode)
	if err != nil {
		return nil, false, err
	}
	if fee == nil {
		return nil, false, ErrWebhookOrderCodeUnknown
	}
	applied, err := l.feeRepo.MarkPaid(ctx, fee.ID, reference, paidAt.UTC())
	if err != nil {
		return nil, false, err
	}
	return fee, applied, nil
}

func validateTransactionFilter(filter repository.CommissionTransactionFilter) error {
	if filter.Type != nil && !filter.Type.Valid() {
		return ErrInvalidCommissionType
	}
	if filter.CreatedAfter != nil && filter.CreatedBefore != nil && filter.CreatedAfter.After(*filter.CreatedBefore) {
		return ErrStartDateAfterEndDate
	}
	return nil
}

// ListCompleted pages through COMPLETED commissions with their confirmed fee
func (l *CommissionLedgerImpl) ListCompleted(ctx context.Context, filter repository.CommissionTransactionFilter, page Pagination) ([]*repository.CommissionTransaction, int64, error) {
	if err := validateTransactionFilter(filter); err != nil {
		return nil, 0, err
	}
	return l.commissionRepo.ListCompletedTransactions(ctx, filter, page.Limit, page.Offset())
}

// ListProcessingForAgent pages through the agent's claims awaiting review
func (l *CommissionLedgerImpl) ListProcessingForAgent(ctx context.Context, agentID uint, filter repository.CommissionTransactionFilter, page Pagination) ([]*repository.CommissionTransaction, int64, error) {
	if agentID == 0 {
		return nil, 0, ErrAgentIDRequired
	}
	if err := validateTransactionFilter(filter); err != nil {
		return nil, 0, err
	}
	return l.commissionRepo.ListProcessingForAgent(ctx, agentID, filter, page.Limit, page.Offset())
}

// GetByProperty returns the latest commission cycle of a property
func (l *CommissionLedgerImpl) GetByProperty(ctx context.Context, propertyID uint) (*CommissionView, error) {
	if propertyID == 0 {
		return nil, ErrPropertyIDRequired
	}
	commission, err := l.commissionRepo.LatestByPropertyID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if commission == nil {
		return nil, ErrCommissionNotFound
	}
	return l.view(ctx, commission, false)
}

// GetDetail returns a commission with its latest fee and the claiming agent's profile
func (l *CommissionLedgerImpl) GetDetail(ctx context.Context, commissionID uint) (*CommissionView, error) {
	if commissionID == 0 {
		return nil, ErrCommissionIDRequired
	}
	commission, err := l.commissionRepo.ByID(ctx, commissionID)
	if err != nil {
		return nil, err
	}
	if commission == nil {
		return nil, ErrCommissionNotFound
	}
	return l.view(ctx, commission, true)
}

func (l *CommissionLedgerImpl) view(ctx context.Context, commission *models.Commission, withAgent bool) (*CommissionView, error) {
	latest, err := l.feeRepo.LatestByCommissionID(ctx, commission.ID)
	if err != nil {
		return nil, err
	}

	v := &CommissionView{
		Commission:    commission,
		LatestFee:     latest,
		DisplayStatus: DisplayStatus(commission, latest),
	}
	if withAgent && latest != nil && l.agents != nil {
		agent, err := l.agents.GetAgentPublicInfo(ctx, latest.AgentID)
		if err != nil {
			// The detail stays useful without the profile
			l.logger.WithField("agent_id", latest.AgentID).WithError(err).Warn("agent lookup failed")
		} else {
			v.Agent = agent
		}
	}
	return v, nil
}
