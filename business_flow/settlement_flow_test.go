package businessflow

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/estate-settlement/app/dto"
	"github.com/amirphl/estate-settlement/app/services"
	"github.com/amirphl/estate-settlement/models"
	"github.com/amirphl/estate-settlement/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type settlementFlowFixture struct {
	*aggregatorFixture
	mailer    *mailerMock
	publisher *publisherMock
	flow      *SettlementFlowImpl
}

func newSettlementFlowFixture(now time.Time) *settlementFlowFixture {
	af := newAggregatorFixture()
	af.agg.now = func() time.Time { return now }
	f := &settlementFlowFixture{
		aggregatorFixture: af,
		mailer:            &mailerMock{},
		publisher:         &publisherMock{},
	}
	f.flow = NewSettlementFlow(af.agg, af.agents, f.mailer, f.publisher, time.UTC, quietLogger()).(*SettlementFlowImpl)
	f.flow.now = func() time.Time { return now }
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return f
}

func TestRunMonthlySettlementDefaultsToCurrentMonth(t *testing.T) {
	// On the 8th the previous month is still being settled
	f := newSettlementFlowFixture(time.Date(2025, 3, 8, 9, 0, 0, 0, time.UTC))
	feb := WindowForSalaryMonth(SalaryMonth{Year: 2025, Month: time.February}, time.UTC)

	f.agents.On("ListAgents", mock.Anything, 1, 10, "", true).Return(&services.AgentPage{Agents: []services.AgentInfo{{ID: 1, Name: "A"}}, Total: 1}, nil)
	f.fees.On("AggregateByAgents", mock.Anything, []uint{1}, feb).Return(map[uint]*repository.AgentFeeAggregate{}, nil)
	f.settlements.On("SettledAgentIDs", mock.Anything, []uint{1}, "02/2025").Return(map[uint]bool{1: true}, nil)

	resp, err := f.flow.RunMonthlySettlement(context.Background(), &dto.ListAgentsInMonthRequest{})
	require.NoError(t, err)
	assert.Equal(t, "02/2025", resp.Month)
	assert.Equal(t, feb.Start, resp.WindowStart)
	assert.True(t, resp.AllNotified)
	require.Len(t, resp.Agents, 1)
	assert.True(t, resp.Agents[0].TotalCommissions.IsZero())
	assert.True(t, resp.Agents[0].Notified)

	_, err = f.flow.RunMonthlySettlement(context.Background(), &dto.ListAgentsInMonthRequest{Month: "2025-02"})
	assert.True(t, IsValidation(err))
}

func TestRecordSettlementRecomputesTotals(t *testing.T) {
	f := newSettlementFlowFixture(time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC))
	march := WindowForSalaryMonth(SalaryMonth{Year: 2025, Month: time.March}, time.UTC)

	f.fees.On("AggregateByAgents", mock.Anything, []uint{42}, march).Return(map[uint]*repository.AgentFeeAggregate{
		42: {
			AgentID:                 42,
			BuyingQuantityCompleted: 1,
			RentalQuantityCompleted: 2,
			TotalBuyingCommission:   decimal.NewFromInt(30_000_000),
			TotalRentalCommission:   decimal.NewFromInt(4_000_000),
		},
	}, nil)
	f.settlements.On("ByAgentAndMonth", mock.Anything, uint(42), "03/2025").Return(nil, nil)
	f.settlements.On("Save", mock.Anything, mock.MatchedBy(func(r *models.SaleBonusRecord) bool {
		return r.BuyingQuantity == 1 && r.RentalQuantity == 2 &&
			r.TotalBuyingCommission.Equal(decimal.NewFromInt(30_000_000)) &&
			r.ReviewBy == 1
	})).Return(nil)

	resp, err := f.flow.RecordSettlement(context.Background(), &dto.CreateSettlementRequest{
		AgentID:    42,
		Month:      "03/2025",
		Bonus:      decimal.NewFromInt(500_000),
		Penalty:    decimal.Zero,
		ReviewerID: 1,
	})
	require.NoError(t, err)
	assert.True(t, resp.TotalCommission.Equal(decimal.NewFromInt(34_000_000)))
	assert.True(t, resp.NetPayout.Equal(decimal.NewFromInt(34_500_000)))
	f.publisher.AssertCalled(t, "Publish", mock.Anything, services.EventSettlementCreated, mock.Anything)
}

func TestGetSettlementByIDOwnership(t *testing.T) {
	f := newSettlementFlowFixture(time.Now())
	f.settlements.On("ByID", mock.Anything, uint(9)).Return(&models.SaleBonusRecord{ID: 9, AgentID: 42}, nil)
	f.settlements.On("ByID", mock.Anything, uint(10)).Return(nil, nil)
	ctx := context.Background()

	_, err := f.flow.GetSettlementByID(ctx, 9, 42, false)
	assert.NoError(t, err)

	_, err = f.flow.GetSettlementByID(ctx, 9, 1, true)
	assert.NoError(t, err)

	_, err = f.flow.GetSettlementByID(ctx, 9, 43, false)
	assert.ErrorIs(t, err, ErrSettlementNotFound)

	_, err = f.flow.GetSettlementByID(ctx, 10, 1, true)
	assert.True(t, IsNotFound(err))
}

func TestNotifyMonth(t *testing.T) {
	ctx := context.Background()
	records := []*models.SaleBonusRecord{
		{AgentID: 1, BonusOfMonth: "03/2025", TotalBuyingCommission: decimal.NewFromInt(10), Bonus: decimal.NewFromInt(1)},
		{AgentID: 2, BonusOfMonth: "03/2025"},
	}

	t.Run("skips agents without mail", func(t *testing.T) {
		f := newSettlementFlowFixture(time.Now())
		f.settlements.On("ByFilter", mock.Anything, mock.Anything, "agent_id ASC", 0, 0).Return(records, nil)
		f.agents.On("ListUsersByIDs", mock.Anything, []uint{1, 2}, "").Return([]services.AgentInfo{{ID: 1, Name: "A", Email: "a@x.test"}}, nil)
		f.mailer.On("SendBulkCommissionEmails", mock.Anything, mock.MatchedBy(func(items []services.AgentCommissionMail) bool {
			return len(items) == 1 && items[0].NetPayout.Equal(decimal.NewFromInt(11))
		})).Return(nil)

		resp, err := f.flow.NotifyMonth(ctx, &dto.NotifyMonthRequest{Month: "03/2025"})
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Recipients)
		assert.False(t, resp.AllNotified)
	})

	t.Run("mail failure is reported not returned", func(t *testing.T) {
		f := newSettlementFlowFixture(time.Now())
		f.settlements.On("ByFilter", mock.Anything, mock.Anything, "agent_id ASC", 0, 0).Return(records[:1], nil)
		f.agents.On("ListUsersByIDs", mock.Anything, []uint{1}, "").Return([]services.AgentInfo{{ID: 1, Email: "a@x.test"}}, nil)
		f.mailer.On("SendBulkCommissionEmails", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

		resp, err := f.flow.NotifyMonth(ctx, &dto.NotifyMonthRequest{Month: "03/2025"})
		require.NoError(t, err)
		assert.Zero(t, resp.Recipients)
		assert.False(t, resp.AllNotified)
	})

	t.Run("nothing settled", func(t *testing.T) {
		f := newSettlementFlowFixture(time.Now())
		f.settlements.On("ByFilter", mock.Anything, mock.Anything, "agent_id ASC", 0, 0).Return(nil, nil)

		resp, err := f.flow.NotifyMonth(ctx, &dto.NotifyMonthRequest{Month: "03/2025"})
		require.NoError(t, err)
		assert.True(t, resp.AllNotified)
		f.mailer.AssertNotCalled(t, "SendBulkCommissionEmails", mock.Anything, mock.Anything)
	})
}

func TestExportMonth(t *testing.T) {
	f := newSettlementFlowFixture(time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC))
	march := WindowForSalaryMonth(SalaryMonth{Year: 2025, Month: time.March}, time.UTC)

	f.settlements.On("ByFilter", mock.Anything, mock.Anything, "agent_id ASC", 0, 0).Return([]*models.SaleBonusRecord{
		{AgentID: 1, TotalBuyingCommission: decimal.NewFromInt(100), Bonus: decimal.NewFromInt(5), Penalty: decimal.Zero, Review: "good"},
	}, nil)
	f.agents.On("ListAgents", mock.Anything, 1, 100, "", true).Return(&services.AgentPage{
		Agents: []services.AgentInfo{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}},
		Total:  2,
	}, nil)
	f.fees.On("AggregateByAgents", mock.Anything, []uint{1, 2}, march).Return(map[uint]*repository.AgentFeeAggregate{
		1: {AgentID: 1, BuyingQuantityCompleted: 1, TotalBuyingCommission: decimal.NewFromInt(100), TotalRentalCommission: decimal.Zero},
	}, nil)
	f.settlements.On("SettledAgentIDs", mock.Anything, []uint{1, 2}, "03/2025").Return(map[uint]bool{1: true}, nil)

	name, data, err := f.flow.ExportMonth(context.Background(), "03/2025")
	require.NoError(t, err)
	assert.Equal(t, "settlement_03-2025.xlsx", name)

	xl, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	rows, err := xl.GetRows("03-2025")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, "A", rows[1][1])
	assert.Equal(t, "105.00", rows[1][12])
	assert.Equal(t, "false", rows[2][9])
}
