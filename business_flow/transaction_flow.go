package businessflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/estate-settlement/app/dto"
	"github.com/amirphl/estate-settlement/app/services"
	"github.com/amirphl/estate-settlement/config"
	"github.com/amirphl/estate-settlement/models"
	"github.com/amirphl/estate-settlement/repository"
	"github.com/amirphl/estate-settlement/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// TransactionFlow is the commission use-case layer behind the HTTP handlers
type TransactionFlow interface {
	CreateCommission(ctx context.Context, req *dto.CreateCommissionRequest) (*dto.CommissionResponse, error)
	CreatePayment(ctx context.Context, req *dto.CreatePaymentRequest) (*dto.CreatePaymentResponse, error)
	ConfirmTransaction(ctx context.Context, req *dto.ConfirmTransactionRequest) (*dto.FeeResponse, error)
	RejectTransaction(ctx context.Context, req *dto.RejectTransactionRequest) (*dto.FeeResponse, error)
	HandleWebhook(ctx context.Context, raw []byte) (*dto.WebhookAckResponse, error)
	ListCompleted(ctx context.Context, req *dto.ListCommissionTransactionsRequest) (*dto.ListCommissionTransactionsResponse, error)
	ListMine(ctx context.Context, agentID uint, req *dto.ListCommissionTransactionsRequest) (*dto.ListCommissionTransactionsResponse, error)
	GetByProperty(ctx context.Context, propertyID uint) (*dto.CommissionDetailResponse, error)
	GetDetail(ctx context.Context, commissionID uint) (*dto.CommissionDetailResponse, error)
	// RetryPendingCompletions re-sends due property completions and returns how many were attempted
	RetryPendingCompletions(ctx context.Context) (int, error)
}

// TransactionFlowImpl implements TransactionFlow
type TransactionFlowImpl struct {
	ledger         CommissionLedger
	commissionRepo repository.CommissionRepository
	feeRepo        repository.AgentCommissionFeeRepository
	pendingRepo    repository.PendingCompletionRepository
	txManager      repository.TxManager
	gateway        services.PaymentGateway
	property       services.PropertyLifecycle
	agents         services.AgentDirectory
	publisher      services.EventPublisher
	rc             *redis.Client
	cacheConfig    config.CacheConfig
	settlementCfg  config.SettlementConfig
	logger         logrus.FieldLogger
	now            func() time.Time
}

// NewTransactionFlow creates a new transaction flow; rc may be nil to disable review locks
func NewTransactionFlow(
	ledger CommissionLedger,
	commissionRepo repository.CommissionRepository,
	feeRepo repository.AgentCommissionFeeRepository,
	pendingRepo repository.PendingCompletionRepository,
	txManager repository.TxManager,
	gateway services.PaymentGateway,
	property services.PropertyLifecycle,
	agents services.AgentDirectory,
	publisher services.EventPublisher,
	rc *redis.Client,
	cacheConfig config.CacheConfig,
	settlementCfg config.SettlementConfig,
	logger logrus.FieldLogger,
) TransactionFlow {
	return &TransactionFlowImpl{
		ledger:         ledger,
		commissionRepo: commissionRepo,
		feeRepo:        feeRepo,
		pendingRepo:    pendingRepo,
		txManager:      txManager,
		gateway:        gateway,
		property:       property,
		agents:         agents,
		publisher:      publisher,
		rc:             rc,
		cacheConfig:    cacheConfig,
		settlementCfg:  settlementCfg,
		logger:         logger,
		now:            utils.UTCNow,
	}
}

// CreateCommission opens a commission cycle on a property
func (f *TransactionFlowImpl) CreateCommission(ctx context.Context, req *dto.CreateCommissionRequest) (*dto.CommissionResponse, error) {
	commission, err := f.ledger.CreateCommission(ctx, req.PropertyID, models.CommissionType(req.Type), req.CommissionRate)
	if err != nil {
		return nil, NewBusinessError("CREATE_COMMISSION_FAILED", "Failed to create commission", err)
	}
	resp := ToCommissionResponse(commission)
	return &resp, nil
}

// CreatePayment files the agent's claim and returns the checkout artifacts
func (f *TransactionFlowImpl) CreatePayment(ctx context.Context, req *dto.CreatePaymentRequest) (*dto.CreatePaymentResponse, error) {
	result, err := f.ledger.CreatePaymentClaim(ctx, PaymentClaim{
		PropertyID:   req.PropertyID,
		CommissionID: req.CommissionID,
		AgentID:      req.AgentID,
		LastPrice:    req.LastPrice,
		Rate:         req.CommissionRate,
		ContractURL:  req.ContractURL,
		ReturnURL:    req.ReturnURL,
		CancelURL:    req.CancelURL,
	})
	if err != nil {
		return nil, NewBusinessError("CREATE_PAYMENT_FAILED", "Failed to create payment", err)
	}

	f.publish(ctx, services.EventPaymentRequested, map[string]any{
		"feeId":           result.Fee.ID,
		"commissionId":    result.Fee.CommissionID,
		"propertyId":      req.PropertyID,
		"agentId":         result.Fee.AgentID,
		"orderCode":       result.Fee.OrderCode,
		"commissionValue": result.Fee.CommissionValue,
	})

	return &dto.CreatePaymentResponse{
		FeeID:           result.Fee.ID,
		CommissionID:    result.Fee.CommissionID,
		CommissionValue: result.Fee.CommissionValue,
		CheckoutURL:     result.Checkout.CheckoutURL,
		QRCode:          result.Checkout.QRCode,
		OrderCode:       result.Fee.OrderCode,
	}, nil
}

// acquireReviewLock serializes admin reviews of one fee across instances
func (f *TransactionFlowImpl) acquireReviewLock(ctx context.Context, feeID uint) (func(), error) {
	if f.rc == nil {
		return func() {}, nil
	}
	key := lockKey(f.cacheConfig, feeID)
	ttl := f.cacheConfig.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	ok, err := f.rc.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return nil, NewBusinessError("REVIEW_LOCK_FAILED", "Failed to acquire review lock", err)
	}
	if !ok {
		return nil, ErrReviewInProgress
	}
	return func() {
		_ = f.rc.Del(context.Background(), key).Err()
	}, nil
}

// ConfirmTransaction confirms the fee, completes the commission and records a pending completion in one
// transaction, then asks the property service to complete the listing. When that call fails the marker
// stays PENDING for the relay and a partial failure is returned.
func (f *TransactionFlowImpl) ConfirmTransaction(ctx context.Context, req *dto.ConfirmTransactionRequest) (*dto.FeeResponse, error) {
	if req.FeeID == 0 {
		return nil, NewBusinessError("CONFIRM_TRANSACTION_FAILED", "Failed to confirm transaction", ErrFeeIDRequired)
	}
	if req.PropertyID == 0 {
		return nil, NewBusinessError("CONFIRM_TRANSACTION_FAILED", "Failed to confirm transaction", ErrPropertyIDRequired)
	}

	unlock, err := f.acquireReviewLock(ctx, req.FeeID)
	if err != nil {
		return nil, NewBusinessError("CONFIRM_TRANSACTION_FAILED", "Failed to confirm transaction", err)
	}
	defer unlock()

	fee, commission, err := f.loadFeeForProperty(ctx, req.FeeID, req.PropertyID)
	if err != nil {
		return nil, NewBusinessError("CONFIRM_TRANSACTION_FAILED", "Failed to confirm transaction", err)
	}
	if !fee.CanTransitionTo(models.FeeStatusConfirmed) {
		return nil, NewBusinessError("CONFIRM_TRANSACTION_FAILED", "Failed to confirm transaction", ErrFeeNotProcessing)
	}

	listingStatus := completedListingStatus(commission.Type)
	var confirmed *models.AgentCommissionFee
	var marker *models.PendingCompletion

	err = f.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		confirmed, err = f.ledger.ConfirmFee(txCtx, fee.ID, req.ReviewerID)
		if err != nil {
			return err
		}
		if _, err = f.ledger.CompleteCommission(txCtx, commission.ID); err != nil {
			return err
		}
		marker = &models.PendingCompletion{
			FeeID:         confirmed.ID,
			CommissionID:  commission.ID,
			PropertyID:    commission.PropertyID,
			ListingStatus: listingStatus,
			RequestStatus: models.RequestStatusCompleted,
			Status:        models.PendingCompletionStatusPending,
			NextAttemptAt: nextAttemptAt(f.now(), f.settlementCfg.RelayBaseBackoff, 1),
		}
		return f.pendingRepo.Save(txCtx, marker)
	})
	if err != nil {
		return nil, NewBusinessError("CONFIRM_TRANSACTION_FAILED", "Failed to confirm transaction", err)
	}

	f.publish(ctx, services.EventFeeConfirmed, map[string]any{
		"feeId":           confirmed.ID,
		"commissionId":    commission.ID,
		"propertyId":      commission.PropertyID,
		"agentId":         confirmed.AgentID,
		"commissionValue": confirmed.CommissionValue,
		"reviewedBy":      req.ReviewerID,
	})

	if err := f.property.CompleteTransaction(ctx, commission.PropertyID, listingStatus, models.RequestStatusCompleted); err != nil {
		partialFailuresTotal.Inc()
		f.logger.WithFields(logrus.Fields{
			"fee_id":      confirmed.ID,
			"property_id": commission.PropertyID,
			"marker_id":   marker.ID,
		}).WithError(err).Error("fee confirmed but property completion failed")

		next := nextAttemptAt(f.now(), f.settlementCfg.RelayBaseBackoff, 1)
		if merr := f.pendingRepo.MarkAttemptFailed(ctx, marker.ID, marker.Attempts, err.Error(), next, f.exhausted(1)); merr != nil {
			f.logger.WithField("marker_id", marker.ID).WithError(merr).Error("failed to record completion attempt")
		}
		return nil, NewBusinessErrorf("PARTIAL_FAILURE", "Fee %d confirmed but property %d was not completed", fmt.Errorf("%w: %w", ErrPropertyCompletionPending, err), confirmed.ID, commission.PropertyID)
	}

	if err := f.pendingRepo.MarkDone(ctx, marker.ID); err != nil {
		// The relay repeats the idempotent completion call later
		f.logger.WithField("marker_id", marker.ID).WithError(err).Warn("failed to close pending completion")
	}

	return ToFeeResponse(confirmed), nil
}

// RejectTransaction rejects the fee and leaves the commission open for a new claim
func (f *TransactionFlowImpl) RejectTransaction(ctx context.Context, req *dto.RejectTransactionRequest) (*dto.FeeResponse, error) {
	if req.FeeID == 0 {
		return nil, NewBusinessError("REJECT_TRANSACTION_FAILED", "Failed to reject transaction", ErrFeeIDRequired)
	}

	unlock, err := f.acquireReviewLock(ctx, req.FeeID)
	if err != nil {
		return nil, NewBusinessError("REJECT_TRANSACTION_FAILED", "Failed to reject transaction", err)
	}
	defer unlock()

	rejected, err := f.ledger.RejectFee(ctx, req.FeeID, req.ReviewerID, req.RejectReason)
	if err != nil {
		return nil, NewBusinessError("REJECT_TRANSACTION_FAILED", "Failed to reject transaction", err)
	}

	f.publish(ctx, services.EventFeeRejected, map[string]any{
		"feeId":        rejected.ID,
		"commissionId": rejected.CommissionID,
		"agentId":      rejected.AgentID,
		"rejectReason": req.RejectReason,
		"reviewedBy":   req.ReviewerID,
	})
	return ToFeeResponse(rejected), nil
}

// HandleWebhook verifies a gateway webhook before anything in it is used.
// A successful payment is recorded once on the fee with the matching order code.
func (f *TransactionFlowImpl) HandleWebhook(ctx context.Context, raw []byte) (*dto.WebhookAckResponse, error) {
	event, err := f.gateway.VerifyWebhook(raw)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrWebhookSignatureMismatch):
			webhooksTotal.WithLabelValues("bad_signature").Inc()
			return nil, NewBusinessError("WEBHOOK_REJECTED", "Webhook rejected", fmt.Errorf("%w: %w", ErrWebhookSignature, err))
		case errors.Is(err, services.ErrMalformedWebhook):
			webhooksTotal.WithLabelValues("malformed").Inc()
			return nil, NewBusinessError("WEBHOOK_REJECTED", "Webhook rejected", fmt.Errorf("%w: %w", ErrMalformedWebhook, err))
		}
		return nil, NewBusinessError("WEBHOOK_FAILED", "Webhook processing failed", err)
	}

	log := f.logger.WithFields(logrus.Fields{
		"order_code": event.Data.OrderCode,
		"code":       event.Code,
		"data_code":  event.Data.Code,
	})
	ack := &dto.WebhookAckResponse{OrderCode: event.Data.OrderCode, Paid: event.Paid()}
	if !event.Paid() {
		webhooksTotal.WithLabelValues("not_paid").Inc()
		log.Info("webhook acknowledged without payment")
		return ack, nil
	}

	fee, applied, err := f.ledger.RecordPayment(ctx, event.Data.OrderCode, event.Data.Reference, event.Data.PaidAt())
	if err != nil {
		if errors.Is(err, ErrWebhookOrderCodeUnknown) {
			// Gateway test pings and checkouts whose claim was never recorded land here
			webhooksTotal.WithLabelValues("unknown_order").Inc()
			log.Warn("webhook for unknown order code acknowledged")
			return ack, nil
		}
		return nil, NewBusinessError("WEBHOOK_FAILED", "Webhook processing failed", err)
	}
	ack.Applied = applied
	if !applied {
		webhooksTotal.WithLabelValues("duplicate").Inc()
		log.Info("payment already recorded")
		return ack, nil
	}

	webhooksTotal.WithLabelValues("paid").Inc()
	log.WithField("fee_id", fee.ID).Info("payment recorded")
	f.publish(ctx, services.EventPaymentReceived, map[string]any{
		"feeId":     fee.ID,
		"orderCode": event.Data.OrderCode,
		"amount":    event.Data.Amount,
		"reference": event.Data.Reference,
	})
	return ack, nil
}

func transactionFilter(req *dto.ListCommissionTransactionsRequest) repository.CommissionTransactionFilter {
	filter := repository.CommissionTransactionFilter{
		AgentID:       req.AgentID,
		CreatedAfter:  req.StartDate,
		CreatedBefore: req.EndDate,
	}
	if req.Type != nil {
		t := models.CommissionType(*req.Type)
		filter.Type = &t
	}
	if req.PropertyID != nil {
		filter.PropertyIDs = []uint{*req.PropertyID}
	}
	return filter
}

// ListCompleted returns a page of completed commissions for the admin dashboard
func (f *TransactionFlowImpl) ListCompleted(ctx context.Context, req *dto.ListCommissionTransactionsRequest) (*dto.ListCommissionTransactionsResponse, error) {
	page, err := NewPagination(req.Page, req.Limit)
	if err != nil {
		return nil, NewBusinessError("LIST_COMMISSIONS_FAILED", "Failed to list commissions", err)
	}
	rows, total, err := f.ledger.ListCompleted(ctx, transactionFilter(req), page)
	if err != nil {
		return nil, NewBusinessError("LIST_COMMISSIONS_FAILED", "Failed to list commissions", err)
	}
	return f.transactionsResponse(ctx, rows, total, page, true), nil
}

// ListMine returns a page of the agent's claims awaiting review
func (f *TransactionFlowImpl) ListMine(ctx context.Context, agentID uint, req *dto.ListCommissionTransactionsRequest) (*dto.ListCommissionTransactionsResponse, error) {
	page, err := NewPagination(req.Page, req.Limit)
	if err != nil {
		return nil, NewBusinessError("LIST_COMMISSIONS_FAILED", "Failed to list commissions", err)
	}
	filter := transactionFilter(req)
	filter.AgentID = nil
	rows, total, err := f.ledger.ListProcessingForAgent(ctx, agentID, filter, page)
	if err != nil {
		return nil, NewBusinessError("LIST_COMMISSIONS_FAILED", "Failed to list commissions", err)
	}
	return f.transactionsResponse(ctx, rows, total, page, false), nil
}

func (f *TransactionFlowImpl) transactionsResponse(ctx context.Context, rows []*repository.CommissionTransaction, total int64, page Pagination, withAgents bool) *dto.ListCommissionTransactionsResponse {
	items := make([]dto.CommissionTransactionItem, 0, len(rows))
	agentIDs := make([]uint, 0, len(rows))
	seen := make(map[uint]bool)
	for _, row := range rows {
		items = append(items, toCommissionTransactionItem(row))
		if row.AgentID != nil && !seen[*row.AgentID] {
			seen[*row.AgentID] = true
			agentIDs = append(agentIDs, *row.AgentID)
		}
	}

	if withAgents && f.agents != nil && len(agentIDs) > 0 {
		agents, err := f.agents.ListUsersByIDs(ctx, agentIDs, "")
		if err != nil {
			f.logger.WithError(err).Warn("agent lookup for commission list failed")
		} else {
			byID := make(map[uint]services.AgentInfo, len(agents))
			for _, a := range agents {
				byID[a.ID] = a
			}
			for i := range items {
				if items[i].AgentID == nil {
					continue
				}
				if a, ok := byID[*items[i].AgentID]; ok {
					items[i].Agent = toAgentDTO(&a)
				}
			}
		}
	}

	return &dto.ListCommissionTransactionsResponse{Items: items, Pagination: page.Info(total)}
}

func (f *TransactionFlowImpl) GetByProperty(ctx context.Context, propertyID uint) (*dto.CommissionDetailResponse, error) {
	view, err := f.ledger.GetByProperty(ctx, propertyID)
	if err != nil {
		return nil, NewBusinessError("GET_COMMISSION_FAILED", "Failed to get commission", err)
	}
	return toDetailResponse(view), nil
}

func (f *TransactionFlowImpl) GetDetail(ctx context.Context, commissionID uint) (*dto.CommissionDetailResponse, error) {
	view, err := f.ledger.GetDetail(ctx, commissionID)
	if err != nil {
		return nil, NewBusinessError("GET_COMMISSION_FAILED", "Failed to get commission", err)
	}
	return toDetailResponse(view), nil
}

func toDetailResponse(v *CommissionView) *dto.CommissionDetailResponse {
	return &dto.CommissionDetailResponse{
		Commission:    ToCommissionResponse(v.Commission),
		LatestFee:     ToFeeResponse(v.LatestFee),
		Agent:         toAgentDTO(v.Agent),
		DisplayStatus: v.DisplayStatus,
	}
}

// RetryPendingCompletions re-sends due property completions. Markers that exhaust their attempts become FAILED.
func (f *TransactionFlowImpl) RetryPendingCompletions(ctx context.Context) (int, error) {
	batch := f.settlementCfg.RelayBatchSize
	if batch <= 0 {
		batch = 50
	}
	lease := f.settlementCfg.RelayLease
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	due, err := f.pendingRepo.ClaimDue(ctx, f.now(), lease, batch)
	if err != nil {
		return 0, err
	}

	for _, marker := range due {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		log := f.logger.WithFields(logrus.Fields{
			"marker_id":   marker.ID,
			"fee_id":      marker.FeeID,
			"property_id": marker.PropertyID,
			"attempt":     marker.Attempts + 1,
		})

		cerr := f.property.CompleteTransaction(ctx, marker.PropertyID, marker.ListingStatus, marker.RequestStatus)
		if cerr == nil {
			completionRelayTotal.WithLabelValues("done").Inc()
			if err := f.pendingRepo.MarkDone(ctx, marker.ID); err != nil && !errors.Is(err, repository.ErrStaleTransition) {
				log.WithError(err).Warn("failed to close pending completion")
			}
			log.Info("property completion relayed")
			continue
		}

		attempts := marker.Attempts + 1
		exhausted := f.exhausted(attempts)
		next := nextAttemptAt(f.now(), f.settlementCfg.RelayBaseBackoff, attempts)
		if err := f.pendingRepo.MarkAttemptFailed(ctx, marker.ID, marker.Attempts, cerr.Error(), next, exhausted); err != nil && !errors.Is(err, repository.ErrStaleTransition) {
			log.WithError(err).Warn("failed to record completion attempt")
		}
		if exhausted {
			completionRelayTotal.WithLabelValues("failed").Inc()
			log.WithError(cerr).Error("property completion abandoned after max attempts")
		} else {
			completionRelayTotal.WithLabelValues("retry").Inc()
			log.WithError(cerr).Warn("property completion retry failed")
		}
	}
	return len(due), nil
}

func (f *TransactionFlowImpl) exhausted(attempts int) bool {
	max := f.settlementCfg.RelayMaxAttempts
	if max <= 0 {
		return false
	}
	return attempts >= max
}

// loadFeeForProperty loads a fee and its commission, checking both belong to propertyID
func (f *TransactionFlowImpl) loadFeeForProperty(ctx context.Context, feeID, propertyID uint) (*models.AgentCommissionFee, *models.Commission, error) {
	fee, err := f.feeRepo.ByID(ctx, feeID)
	if err != nil {
		return nil, nil, err
	}
	if fee == nil {
		return nil, nil, ErrFeeNotFound
	}
	commission, err := f.commissionRepo.ByID(ctx, fee.CommissionID)
	if err != nil {
		return nil, nil, err
	}
	if commission == nil {
		return nil, nil, ErrCommissionNotFound
	}
	if commission.PropertyID != propertyID {
		return nil, nil, ErrPropertyMismatch
	}
	return fee, commission, nil
}

// publish emits an event; failures are logged only
func (f *TransactionFlowImpl) publish(ctx context.Context, routingKey string, payload any) {
	if f.publisher == nil {
		return
	}
	if err := f.publisher.Publish(ctx, routingKey, payload); err != nil {
		f.logger.WithField("event", routingKey).WithError(err).Warn("event publish failed")
	}
}

// nextAttemptAt returns when the attempt after the n-th failed one is due, doubling from base up to an hour
func nextAttemptAt(now time.Time, base time.Duration, attempts int) time.Time {
	if base <= 0 {
		base = 30 * time.Second
	}
	backoff := base
	for i := 1; i < attempts && backoff < time.Hour; i++ {
		backoff *= 2
	}
	if backoff > time.Hour {
		backoff = time.Hour
	}
	return now.Add(backoff)
}
