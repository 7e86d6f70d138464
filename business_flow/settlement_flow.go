package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/estate-settlement/app/dto"
	"github.com/amirphl/estate-settlement/app/services"
	"github.com/amirphl/estate-settlement/models"
	"github.com/amirphl/estate-settlement/utils"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// SettlementFlow is the monthly settlement use-case layer behind the /sale routes
type SettlementFlow interface {
	RunMonthlySettlement(ctx context.Context, req *dto.ListAgentsInMonthRequest) (*dto.ListAgentsInMonthResponse, error)
	GetAgentMonthlySummary(ctx context.Context, req *dto.AgentTransactionsRequest) (*dto.AgentTransactionsResponse, error)
	RecordSettlement(ctx context.Context, req *dto.CreateSettlementRequest) (*dto.SettlementResponse, error)
	GetSettlementHistory(ctx context.Context, req *dto.SettlementHistoryRequest) (*dto.SettlementHistoryResponse, error)
	GetSettlementByID(ctx context.Context, id, requesterID uint, isAdmin bool) (*dto.SettlementResponse, error)
	NotifyMonth(ctx context.Context, req *dto.NotifyMonthRequest) (*dto.NotifyMonthResponse, error)
	// ExportMonth renders the month's agent summary as an xlsx workbook
	ExportMonth(ctx context.Context, month string) (filename string, data []byte, err error)
}

// SettlementFlowImpl implements SettlementFlow
type SettlementFlowImpl struct {
	aggregator SettlementAggregator
	agents     services.AgentDirectory
	mailer     services.Mailer
	publisher  services.EventPublisher
	loc        *time.Location
	now        func() time.Time
	logger     logrus.FieldLogger
}

// NewSettlementFlow creates a new settlement flow
func NewSettlementFlow(
	aggregator SettlementAggregator,
	agents services.AgentDirectory,
	mailer services.Mailer,
	publisher services.EventPublisher,
	loc *time.Location,
	logger logrus.FieldLogger,
) SettlementFlow {
	if loc == nil {
		loc = time.UTC
	}
	return &SettlementFlowImpl{
		aggregator: aggregator,
		agents:     agents,
		mailer:     mailer,
		publisher:  publisher,
		loc:        loc,
		now:        utils.UTCNow,
		logger:     logger,
	}
}

func (f *SettlementFlowImpl) month(s string) (SalaryMonth, error) {
	return resolveMonthOrCurrent(s, f.now(), f.loc)
}

// RunMonthlySettlement lists every agent's totals for the month and who is already settled
func (f *SettlementFlowImpl) RunMonthlySettlement(ctx context.Context, req *dto.ListAgentsInMonthRequest) (*dto.ListAgentsInMonthResponse, error) {
	month, err := f.month(req.Month)
	if err != nil {
		return nil, NewBusinessError("LIST_AGENTS_IN_MONTH_FAILED", "Failed to list agents in month", err)
	}
	page, err := NewPagination(req.Page, req.Limit)
	if err != nil {
		return nil, NewBusinessError("LIST_AGENTS_IN_MONTH_FAILED", "Failed to list agents in month", err)
	}

	summary, err := f.aggregator.SummarizeAgentsInWindow(ctx, month, page, strings.TrimSpace(req.Search))
	if err != nil {
		return nil, NewBusinessError("LIST_AGENTS_IN_MONTH_FAILED", "Failed to list agents in month", err)
	}

	agents := make([]dto.AgentMonthSummary, 0, len(summary.Agents))
	for _, s := range summary.Agents {
		agents = append(agents, dto.AgentMonthSummary{
			Agent:            *toAgentDTO(&s.Agent),
			CommissionTotals: toTotals(s.Aggregate),
			Notified:         s.Settled,
		})
	}

	return &dto.ListAgentsInMonthResponse{
		Month:       month.String(),
		WindowStart: summary.Window.Start,
		WindowEnd:   summary.Window.End,
		Agents:      agents,
		AllNotified: summary.AllNotified,
		Pagination:  page.Info(summary.Total),
	}, nil
}

// GetAgentMonthlySummary returns one agent's decided fees and totals for the month
func (f *SettlementFlowImpl) GetAgentMonthlySummary(ctx context.Context, req *dto.AgentTransactionsRequest) (*dto.AgentTransactionsResponse, error) {
	month, err := f.month(req.Month)
	if err != nil {
		return nil, NewBusinessError("AGENT_MONTH_SUMMARY_FAILED", "Failed to get agent monthly summary", err)
	}
	page, err := NewPagination(req.Page, req.Limit)
	if err != nil {
		return nil, NewBusinessError("AGENT_MONTH_SUMMARY_FAILED", "Failed to get agent monthly summary", err)
	}

	out, err := f.aggregator.SummarizeAgentTransactions(ctx, req.AgentID, month, page, strings.TrimSpace(req.Search))
	if err != nil {
		return nil, NewBusinessError("AGENT_MONTH_SUMMARY_FAILED", "Failed to get agent monthly summary", err)
	}

	txs := make([]dto.AgentTransactionItem, 0, len(out.Transactions))
	for _, t := range out.Transactions {
		txs = append(txs, dto.AgentTransactionItem{
			FeeID:           t.FeeID,
			CommissionID:    t.CommissionID,
			PropertyID:      t.PropertyID,
			Type:            string(t.Type),
			Status:          string(t.Status),
			CommissionValue: t.CommissionValue,
			CommissionRate:  t.CommissionRate,
			LatestPrice:     nullDecimalPtr(t.LatestPrice),
			RejectReason:    t.RejectReason,
			OrderCode:       t.OrderCode,
			DecidedAt:       t.DecidedAt,
		})
	}

	return &dto.AgentTransactionsResponse{
		Month:          month.String(),
		Agent:          toAgentDTO(out.Agent),
		Summary:        toTotals(out.Aggregate),
		Transactions:   txs,
		AlreadySettled: out.AlreadySettled,
		Pagination:     page.Info(out.Total),
	}, nil
}

// RecordSettlement snapshots the agent's month with the reviewer's bonus and penalty.
// Counts and sums come from the ledger, not from the request.
func (f *SettlementFlowImpl) RecordSettlement(ctx context.Context, req *dto.CreateSettlementRequest) (*dto.SettlementResponse, error) {
	month, err := ParseSalaryMonth(req.Month)
	if err != nil {
		return nil, NewBusinessError("CREATE_SETTLEMENT_FAILED", "Failed to create settlement", err)
	}

	aggregate, err := f.aggregator.AgentAggregate(ctx, req.AgentID, month)
	if err != nil {
		return nil, NewBusinessError("CREATE_SETTLEMENT_FAILED", "Failed to create settlement", err)
	}
	totals := toTotals(aggregate)

	record, err := f.aggregator.CreateSettlement(ctx, SettlementInput{
		AgentID:               req.AgentID,
		Month:                 month,
		BuyingQuantity:        totals.BuyingQuantityCompleted,
		RentalQuantity:        totals.RentalQuantityCompleted,
		TotalBuyingCommission: totals.TotalBuyingCommission,
		TotalRentalCommission: totals.TotalRentalCommission,
		Bonus:                 req.Bonus,
		Penalty:               req.Penalty,
		Review:                strings.TrimSpace(req.Review),
		ReviewerID:            req.ReviewerID,
	})
	if err != nil {
		return nil, NewBusinessError("CREATE_SETTLEMENT_FAILED", "Failed to create settlement", err)
	}

	f.logger.WithFields(logrus.Fields{
		"settlement_id": record.ID,
		"agent_id":      record.AgentID,
		"month":         record.BonusOfMonth,
		"reviewed_by":   record.ReviewBy,
	}).Info("settlement recorded")

	if f.publisher != nil {
		if err := f.publisher.Publish(ctx, services.EventSettlementCreated, map[string]any{
			"settlementId": record.ID,
			"agentId":      record.AgentID,
			"month":        record.BonusOfMonth,
			"netPayout":    record.NetPayout(),
		}); err != nil {
			f.logger.WithField("event", services.EventSettlementCreated).WithError(err).Warn("event publish failed")
		}
	}

	resp := ToSettlementResponse(record)
	return &resp, nil
}

// GetSettlementHistory pages through one agent's settlements
func (f *SettlementFlowImpl) GetSettlementHistory(ctx context.Context, req *dto.SettlementHistoryRequest) (*dto.SettlementHistoryResponse, error) {
	page, err := NewPagination(req.Page, req.Limit)
	if err != nil {
		return nil, NewBusinessError("SETTLEMENT_HISTORY_FAILED", "Failed to get settlement history", err)
	}
	records, total, err := f.aggregator.GetSettlementHistory(ctx, req.AgentID, req.StartDate, req.EndDate, page)
	if err != nil {
		return nil, NewBusinessError("SETTLEMENT_HISTORY_FAILED", "Failed to get settlement history", err)
	}

	items := make([]dto.SettlementResponse, 0, len(records))
	for _, r := range records {
		items = append(items, ToSettlementResponse(r))
	}
	return &dto.SettlementHistoryResponse{Items: items, Pagination: page.Info(total)}, nil
}

// GetSettlementByID returns a settlement to an admin or to the agent it belongs to.
// Other agents get NotFound so record ids are not disclosed.
func (f *SettlementFlowImpl) GetSettlementByID(ctx context.Context, id, requesterID uint, isAdmin bool) (*dto.SettlementResponse, error) {
	record, err := f.aggregator.GetSettlementByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("GET_SETTLEMENT_FAILED", "Failed to get settlement", err)
	}
	if !isAdmin && record.AgentID != requesterID {
		return nil, NewBusinessError("GET_SETTLEMENT_FAILED", "Failed to get settlement", ErrSettlementNotFound)
	}
	resp := ToSettlementResponse(record)
	return &resp, nil
}

// NotifyMonth mails every settled agent of the month their payout.
// Mail failures are logged and reported through AllNotified.
func (f *SettlementFlowImpl) NotifyMonth(ctx context.Context, req *dto.NotifyMonthRequest) (*dto.NotifyMonthResponse, error) {
	month, err := f.month(req.Month)
	if err != nil {
		return nil, NewBusinessError("NOTIFY_MONTH_FAILED", "Failed to notify month", err)
	}

	records, err := f.aggregator.MonthSettlements(ctx, month)
	if err != nil {
		return nil, NewBusinessError("NOTIFY_MONTH_FAILED", "Failed to notify month", err)
	}
	resp := &dto.NotifyMonthResponse{Month: month.String(), AllNotified: true}
	if len(records) == 0 {
		return resp, nil
	}

	ids := make([]uint, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.AgentID)
	}
	profiles := f.profilesByID(ctx, ids)

	items := make([]services.AgentCommissionMail, 0, len(records))
	for _, r := range records {
		p, ok := profiles[r.AgentID]
		if !ok || p.Email == "" {
			f.logger.WithField("agent_id", r.AgentID).Warn("no mail address for settled agent")
			resp.AllNotified = false
			continue
		}
		items = append(items, services.AgentCommissionMail{
			AgentID:         r.AgentID,
			Name:            p.Name,
			Email:           p.Email,
			Month:           r.BonusOfMonth,
			TotalCommission: r.TotalCommission(),
			Bonus:           r.Bonus,
			Penalty:         r.Penalty,
			NetPayout:       r.NetPayout(),
		})
	}
	if len(items) == 0 {
		return resp, nil
	}

	if err := f.mailer.SendBulkCommissionEmails(ctx, items); err != nil {
		f.logger.WithFields(logrus.Fields{
			"month":      resp.Month,
			"recipients": len(items),
		}).WithError(err).Error("bulk commission mail failed")
		resp.AllNotified = false
		return resp, nil
	}
	resp.Recipients = len(items)
	return resp, nil
}

func (f *SettlementFlowImpl) profilesByID(ctx context.Context, ids []uint) map[uint]services.AgentInfo {
	out := make(map[uint]services.AgentInfo, len(ids))
	if f.agents == nil || len(ids) == 0 {
		return out
	}
	agents, err := f.agents.ListUsersByIDs(ctx, ids, "")
	if err != nil {
		f.logger.WithError(err).Warn("agent lookup failed")
		return out
	}
	for _, a := range agents {
		out[a.ID] = a
	}
	return out
}

var exportHeader = []string{
	"agent_id", "name", "email",
	"buying_completed", "rental_completed", "rejected",
	"total_buying_commission", "total_rental_commission", "total_commission",
	"settled", "bonus", "penalty", "net_payout", "review",
}

// ExportMonth walks the whole agent directory for the month and writes one row per agent
func (f *SettlementFlowImpl) ExportMonth(ctx context.Context, monthKey string) (string, []byte, error) {
	month, err := f.month(monthKey)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_MONTH_FAILED", "Failed to export month", err)
	}

	records, err := f.aggregator.MonthSettlements(ctx, month)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_MONTH_FAILED", "Failed to export month", err)
	}
	byAgent := make(map[uint]*models.SaleBonusRecord, len(records))
	for _, r := range records {
		byAgent[r.AgentID] = r
	}

	var summaries []AgentSummary
	for p := 1; ; p++ {
		page, err := f.aggregator.SummarizeAgentsInWindow(ctx, month, Pagination{Page: p, Limit: utils.MaxPageSize}, "")
		if err != nil {
			return "", nil, NewBusinessError("EXPORT_MONTH_FAILED", "Failed to export month", err)
		}
		summaries = append(summaries, page.Agents...)
		if len(page.Agents) < utils.MaxPageSize || int64(len(summaries)) >= page.Total {
			break
		}
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := strings.ReplaceAll(month.String(), "/", "-")
	if err := xl.SetSheetName(xl.GetSheetName(0), sheet); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	if err := xl.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	for i, s := range summaries {
		totals := toTotals(s.Aggregate)
		row := []any{
			s.Agent.ID, s.Agent.Name, s.Agent.Email,
			totals.BuyingQuantityCompleted, totals.RentalQuantityCompleted, totals.QuantityRejected,
			totals.TotalBuyingCommission.StringFixed(2), totals.TotalRentalCommission.StringFixed(2), totals.TotalCommissions.StringFixed(2),
			strconv.FormatBool(s.Settled),
		}
		if r, ok := byAgent[s.Agent.ID]; ok {
			row = append(row, r.Bonus.StringFixed(2), r.Penalty.StringFixed(2), r.NetPayout().StringFixed(2), r.Review)
		} else {
			row = append(row, "", "", totals.TotalCommissions.StringFixed(2), "")
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := xl.SetSheetRow(sheet, cell, &row); err != nil {
			return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	return fmt.Sprintf("settlement_%s.xlsx", sheet), buf.Bytes(), nil
}
