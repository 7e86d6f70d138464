package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/estate-settlement/app/services"
	"github.com/amirphl/estate-settlement/config"
	"github.com/amirphl/estate-settlement/models"
	"github.com/amirphl/estate-settlement/repository"
	"github.com/amirphl/estate-settlement/utils"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// AgentSummary is one agent's aggregate in a salary month
type AgentSummary struct {
	Agent     services.AgentInfo
	Aggregate *repository.AgentFeeAggregate
	Settled   bool
}

// AgentsInWindow is one page of agent summaries
type AgentsInWindow struct {
	Month       SalaryMonth
	Window      repository.TimeWindow
	Agents      []AgentSummary
	Total       int64
	AllNotified bool
}

// AgentTransactions is one agent's decided fees in a salary month
type AgentTransactions struct {
	Month          SalaryMonth
	Window         repository.TimeWindow
	Agent          *services.AgentInfo
	Aggregate      *repository.AgentFeeAggregate
	Transactions   []*repository.AgentFeeTransaction
	Total          int64
	AlreadySettled bool
}

// SettlementInput is the snapshot persisted for one agent and month
type SettlementInput struct {
	AgentID               uint
	Month                 SalaryMonth
	BuyingQuantity        int
	RentalQuantity        int
	TotalBuyingCommission decimal.Decimal
	TotalRentalCommission decimal.Decimal
	Bonus                 decimal.Decimal
	Penalty               decimal.Decimal
	Review                string
	ReviewerID            uint
}

// SettlementAggregator computes salary-month aggregates and owns settlement records
type SettlementAggregator interface {
	ResolveSalaryMonth(ref time.Time) SalaryMonth
	WindowForSalaryMonth(month SalaryMonth) repository.TimeWindow
	SummarizeAgentsInWindow(ctx context.Context, month SalaryMonth, page Pagination, search string) (*AgentsInWindow, error)
	SummarizeAgentTransactions(ctx context.Context, agentID uint, month SalaryMonth, page Pagination, search string) (*AgentTransactions, error)
	// AgentAggregate returns the agent's counts and sums for the month; nil when the agent decided nothing
	AgentAggregate(ctx context.Context, agentID uint, month SalaryMonth) (*repository.AgentFeeAggregate, error)
	CreateSettlement(ctx context.Context, in SettlementInput) (*models.SaleBonusRecord, error)
	GetSettlementHistory(ctx context.Context, agentID uint, from, to *time.Time, page Pagination) ([]*models.SaleBonusRecord, int64, error)
	GetSettlementByID(ctx context.Context, id uint) (*models.SaleBonusRecord, error)
	MonthSettlements(ctx context.Context, month SalaryMonth) ([]*models.SaleBonusRecord, error)
}

// SettlementAggregatorImpl implements SettlementAggregator
type SettlementAggregatorImpl struct {
	feeRepo        repository.AgentCommissionFeeRepository
	settlementRepo repository.SaleBonusRecordRepository
	agents         services.AgentDirectory
	rc             *redis.Client
	cacheConfig    config.CacheConfig
	loc            *time.Location
	now            func() time.Time
	logger         logrus.FieldLogger
}

// NewSettlementAggregator creates a new settlement aggregator; rc may be nil
func NewSettlementAggregator(
	feeRepo repository.AgentCommissionFeeRepository,
	settlementRepo repository.SaleBonusRecordRepository,
	agents services.AgentDirectory,
	rc *redis.Client,
	cacheConfig config.CacheConfig,
	loc *time.Location,
	logger logrus.FieldLogger,
) SettlementAggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &SettlementAggregatorImpl{
		feeRepo:        feeRepo,
		settlementRepo: settlementRepo,
		agents:         agents,
		rc:             rc,
		cacheConfig:    cacheConfig,
		loc:            loc,
		now:            utils.UTCNow,
		logger:         logger,
	}
}

func (a *SettlementAggregatorImpl) ResolveSalaryMonth(ref time.Time) SalaryMonth {
	return ResolveSalaryMonth(ref.In(a.loc))
}

func (a *SettlementAggregatorImpl) WindowForSalaryMonth(month SalaryMonth) repository.TimeWindow {
	return WindowForSalaryMonth(month, a.loc)
}

// SummarizeAgentsInWindow aggregates every agent of a directory page and flags who is already settled.
// AllNotified holds when each agent of the page has a settlement for the month.
func (a *SettlementAggregatorImpl) SummarizeAgentsInWindow(ctx context.Context, month SalaryMonth, page Pagination, search string) (*AgentsInWindow, error) {
	window := a.WindowForSalaryMonth(month)

	agentPage, err := a.agents.ListAgents(ctx, page.Page, page.Limit, search, true)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}

	ids := make([]uint, 0, len(agentPage.Agents))
	for _, ag := range agentPage.Agents {
		ids = append(ids, ag.ID)
	}

	aggregates, err := a.aggregates(ctx, ids, month, window)
	if err != nil {
		return nil, err
	}
	settled, err := a.settlementRepo.SettledAgentIDs(ctx, ids, month.String())
	if err != nil {
		return nil, err
	}

	out := &AgentsInWindow{
		Month:       month,
		Window:      window,
		Agents:      make([]AgentSummary, 0, len(agentPage.Agents)),
		Total:       agentPage.Total,
		AllNotified: true,
	}
	for _, ag := range agentPage.Agents {
		s := AgentSummary{Agent: ag, Aggregate: aggregates[ag.ID], Settled: settled[ag.ID]}
		if !s.Settled {
			out.AllNotified = false
		}
		out.Agents = append(out.Agents, s)
	}
	return out, nil
}

// aggregates reads per-agent aggregates. Windows that already ended cannot change,
// so their aggregates are served from redis when possible.
func (a *SettlementAggregatorImpl) aggregates(ctx context.Context, ids []uint, month SalaryMonth, window repository.TimeWindow) (map[uint]*repository.AgentFeeAggregate, error) {
	if len(ids) == 0 {
		return map[uint]*repository.AgentFeeAggregate{}, nil
	}

	closed := window.End.Before(a.now())
	var cacheKey string
	if closed && a.rc != nil && a.cacheConfig.Enabled {
		cacheKey = redisKey(a.cacheConfig, fmt.Sprintf(windowAggregatesKey, strings.ReplaceAll(month.String(), "/", "-"), idsKey(ids)))
		bs, err := a.rc.Get(ctx, cacheKey).Bytes()
		if err == nil && len(bs) > 0 {
			var cached map[uint]*repository.AgentFeeAggregate
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		} else if err != nil && !errors.Is(err, redis.Nil) {
			a.logger.WithError(err).Warn("aggregate cache read failed")
		}
	}

	aggregates, err := a.feeRepo.AggregateByAgents(ctx, ids, window)
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		if bs, err := json.Marshal(aggregates); err == nil {
			if err := a.rc.Set(ctx, cacheKey, bs, a.cacheConfig.DefaultTTL).Err(); err != nil {
				a.logger.WithError(err).Warn("aggregate cache write failed")
			}
		}
	}
	return aggregates, nil
}

func idsKey(ids []uint) string {
	sorted := append([]uint(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}

func (a *SettlementAggregatorImpl) AgentAggregate(ctx context.Context, agentID uint, month SalaryMonth) (*repository.AgentFeeAggregate, error) {
	if agentID == 0 {
		return nil, ErrAgentIDRequired
	}
	aggregates, err := a.aggregates(ctx, []uint{agentID}, month, a.WindowForSalaryMonth(month))
	if err != nil {
		return nil, err
	}
	return aggregates[agentID], nil
}

// SummarizeAgentTransactions lists one agent's CONFIRMED and REJECTED fees in the month
func (a *SettlementAggregatorImpl) SummarizeAgentTransactions(ctx context.Context, agentID uint, month SalaryMonth, page Pagination, search string) (*AgentTransactions, error) {
	if agentID == 0 {
		return nil, ErrAgentIDRequired
	}
	window := a.WindowForSalaryMonth(month)

	aggregates, err := a.feeRepo.AggregateByAgents(ctx, []uint{agentID}, window)
	if err != nil {
		return nil, err
	}
	txs, total, err := a.feeRepo.ListDecidedForAgent(ctx, agentID, window, search, page.Limit, page.Offset())
	if err != nil {
		return nil, err
	}
	existing, err := a.settlementRepo.ByAgentAndMonth(ctx, agentID, month.String())
	if err != nil {
		return nil, err
	}

	out := &AgentTransactions{
		Month:          month,
		Window:         window,
		Aggregate:      aggregates[agentID],
		Transactions:   txs,
		Total:          total,
		AlreadySettled: existing != nil,
	}
	if a.agents != nil {
		agent, err := a.agents.GetAgentPublicInfo(ctx, agentID)
		if err != nil {
			a.logger.WithField("agent_id", agentID).WithError(err).Warn("agent lookup failed")
		} else {
			out.Agent = agent
		}
	}
	return out, nil
}

// CreateSettlement inserts the month's settlement. A second settlement for the same agent and month is a conflict.
func (a *SettlementAggregatorImpl) CreateSettlement(ctx context.Context, in SettlementInput) (*models.SaleBonusRecord, error) {
	if in.AgentID == 0 {
		return nil, ErrAgentIDRequired
	}
	if in.ReviewerID == 0 {
		return nil, ErrReviewerIDRequired
	}
	if in.Bonus.IsNegative() || in.Penalty.IsNegative() {
		return nil, ErrNegativeAdjustment
	}

	key := in.Month.String()
	existing, err := a.settlementRepo.ByAgentAndMonth(ctx, in.AgentID, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrSettlementExists
	}

	record := &models.SaleBonusRecord{
		AgentID:               in.AgentID,
		BuyingQuantity:        in.BuyingQuantity,
		RentalQuantity:        in.RentalQuantity,
		TotalBuyingCommission: in.TotalBuyingCommission,
		TotalRentalCommission: in.TotalRentalCommission,
		Bonus:                 in.Bonus,
		Penalty:               in.Penalty,
		Review:                in.Review,
		ReviewBy:              in.ReviewerID,
		BonusOfMonth:          key,
	}
	if err := a.settlementRepo.Save(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicateRecord) {
			return nil, ErrSettlementExists
		}
		return nil, err
	}
	settlementsCreatedTotal.Inc()
	return record, nil
}

// GetSettlementHistory pages through an agent's settlements created in [from, to]
func (a *SettlementAggregatorImpl) GetSettlementHistory(ctx context.Context, agentID uint, from, to *time.Time, page Pagination) ([]*models.SaleBonusRecord, int64, error) {
	if agentID == 0 {
		return nil, 0, ErrAgentIDRequired
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, 0, ErrStartDateAfterEndDate
	}

	filter := models.SaleBonusRecordFilter{
		AgentID:       &agentID,
		CreatedAfter:  from,
		CreatedBefore: to,
	}
	total, err := a.settlementRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	records, err := a.settlementRepo.ByFilter(ctx, filter, "", page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (a *SettlementAggregatorImpl) GetSettlementByID(ctx context.Context, id uint) (*models.SaleBonusRecord, error) {
	record, err := a.settlementRepo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrSettlementNotFound
	}
	return record, nil
}

// MonthSettlements returns every settlement recorded for the month
func (a *SettlementAggregatorImpl) MonthSettlements(ctx context.Context, month SalaryMonth) ([]*models.SaleBonusRecord, error) {
	key := month.String()
	return a.settlementRepo.ByFilter(ctx, models.SaleBonusRecordFilter{BonusOfMonth: &key}, "agent_id ASC", 0, 0)
}
