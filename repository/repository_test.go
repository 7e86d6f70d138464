package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/estate-settlement/models"
	"github.com/amirphl/estate-settlement/repository"
	testingutil "github.com/amirphl/estate-settlement/testing"
	"github.com/amirphl/estate-settlement/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withDB(t *testing.T, fn func(*testingutil.TestDB)) {
	t.Helper()
	err := testingutil.TestWithDB(func(db *testingutil.TestDB) error {
		fn(db)
		return nil
	})
	if errors.Is(err, testingutil.ErrNoDatabase) {
		t.Skipf("skipping database test: %v", err)
	}
	require.NoError(t, err)
}

func TestAgentCommissionFeeRepository(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB) {
		fixtures := testingutil.NewTestFixtures(testDB)
		feeRepo := repository.NewAgentCommissionFeeRepository(testDB.DB)
		ctx := context.Background()

		t.Run("SecondProcessingFeeIsRejectedByIndex", func(t *testing.T) {
			commission, err := fixtures.CreateTestCommission(models.CommissionTypeBuying, "2.5")
			require.NoError(t, err)
			_, err = fixtures.CreateTestFee(commission, 7, "25000", models.FeeStatusProcessing, time.Time{})
			require.NoError(t, err)

			dup := &models.AgentCommissionFee{
				CommissionID:    commission.ID,
				AgentID:         8,
				CommissionValue: decimal.NewFromInt(25000),
				Status:          models.FeeStatusProcessing,
				OrderCode:       time.Now().UnixNano() & (1<<52 - 1),
			}
			err = feeRepo.Save(ctx, dup)
			require.Error(t, err)
			assert.True(t, errors.Is(err, repository.ErrDuplicateRecord))
		})

		t.Run("TransitionIsGuardedByCurrentStatus", func(t *testing.T) {
			commission, err := fixtures.CreateTestCommission(models.CommissionTypeRental, "10")
			require.NoError(t, err)
			fee, err := fixtures.CreateTestFee(commission, 9, "1000", models.FeeStatusProcessing, time.Time{})
			require.NoError(t, err)

			reviewer := uint(1)
			err = feeRepo.Transition(ctx, fee.ID, models.FeeStatusProcessing, models.FeeStatusConfirmed, &reviewer, nil)
			require.NoError(t, err)

			err = feeRepo.Transition(ctx, fee.ID, models.FeeStatusProcessing, models.FeeStatusRejected, &reviewer, utils.ToPtr("late"))
			assert.ErrorIs(t, err, repository.ErrStaleTransition)

			stored, err := feeRepo.ByID(ctx, fee.ID)
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, models.FeeStatusConfirmed, stored.Status)
			assert.NotNil(t, stored.ConfirmedAt)
			assert.Nil(t, stored.RejectReason)
			assert.True(t, stored.UpdatedAt.After(fee.UpdatedAt) || stored.UpdatedAt.Equal(fee.UpdatedAt))
			require.NotNil(t, stored.ReviewedBy)
			assert.Equal(t, reviewer, *stored.ReviewedBy)
		})

		t.Run("MarkPaidOnlyOnce", func(t *testing.T) {
			commission, err := fixtures.CreateTestCommission(models.CommissionTypeBuying, "1")
			require.NoError(t, err)
			fee, err := fixtures.CreateTestFee(commission, 10, "500", models.FeeStatusProcessing, time.Time{})
			require.NoError(t, err)

			updated, err := feeRepo.MarkPaid(ctx, fee.ID, "ref-1", utils.UTCNow())
			require.NoError(t, err)
			assert.True(t, updated)

			updated, err = feeRepo.MarkPaid(ctx, fee.ID, "ref-2", utils.UTCNow())
			require.NoError(t, err)
			assert.False(t, updated)

			stored, err := feeRepo.ByOrderCode(ctx, fee.OrderCode)
			require.NoError(t, err)
			require.NotNil(t, stored)
			require.NotNil(t, stored.GatewayReference)
			assert.Equal(t, "ref-1", *stored.GatewayReference)
		})

		t.Run("AggregateByAgentsInsideWindow", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			window := repository.TimeWindow{
				Start: time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2025, 4, 5, 23, 59, 59, 0, time.UTC),
			}
			inside := time.Date(2025, 3, 20, 10, 0, 0, 0, time.UTC)
			outside := time.Date(2025, 4, 6, 0, 0, 1, 0, time.UTC)
			agentID := uint(42)

			buying, err := fixtures.CreateTestCommission(models.CommissionTypeBuying, "2")
			require.NoError(t, err)
			_, err = fixtures.CreateTestFee(buying, agentID, "1000000", models.FeeStatusConfirmed, inside)
			require.NoError(t, err)

			rejected, err := fixtures.CreateTestCommission(models.CommissionTypeBuying, "2")
			require.NoError(t, err)
			_, err = fixtures.CreateTestFee(rejected, agentID, "500000", models.FeeStatusRejected, inside)
			require.NoError(t, err)

			late, err := fixtures.CreateTestCommission(models.CommissionTypeRental, "2")
			require.NoError(t, err)
			_, err = fixtures.CreateTestFee(late, agentID, "700000", models.FeeStatusConfirmed, outside)
			require.NoError(t, err)

			aggregates, err := feeRepo.AggregateByAgents(ctx, []uint{agentID, 43}, window)
			require.NoError(t, err)
			require.Contains(t, aggregates, agentID)
			assert.NotContains(t, aggregates, uint(43))

			agg := aggregates[agentID]
			assert.Equal(t, 1, agg.BuyingQuantityCompleted)
			assert.Equal(t, 0, agg.RentalQuantityCompleted)
			assert.Equal(t, 1, agg.QuantityRejected)
			assert.True(t, agg.TotalCommission().Equal(decimal.NewFromInt(1_000_000)), agg.TotalCommission().String())

			rows, total, err := feeRepo.ListDecidedForAgent(ctx, agentID, window, "", 10, 0)
			require.NoError(t, err)
			assert.Equal(t, int64(2), total)
			assert.Len(t, rows, 2)
		})
	})
}

func TestCommissionRepository(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB) {
		fixtures := testingutil.NewTestFixtures(testDB)
		commissionRepo := repository.NewCommissionRepository(testDB.DB)
		ctx := context.Background()

		t.Run("TransitionStatusSetsCompletedAt", func(t *testing.T) {
			commission, err := fixtures.CreateTestCommission(models.CommissionTypeBuying, "3")
			require.NoError(t, err)

			err = commissionRepo.TransitionStatus(ctx, commission.ID, models.CommissionStatusProcessing, models.CommissionStatusCompleted)
			require.NoError(t, err)

			err = commissionRepo.TransitionStatus(ctx, commission.ID, models.CommissionStatusProcessing, models.CommissionStatusCompleted)
			assert.ErrorIs(t, err, repository.ErrStaleTransition)

			stored, err := commissionRepo.ByID(ctx, commission.ID)
			require.NoError(t, err)
			assert.Equal(t, models.CommissionStatusCompleted, stored.Status)
			assert.NotNil(t, stored.CompletedAt)
		})

		t.Run("UpdateClaimTerms", func(t *testing.T) {
			commission, err := fixtures.CreateTestCommission(models.CommissionTypeRental, "3")
			require.NoError(t, err)

			url := "https://contracts.example.com/1.pdf"
			err = commissionRepo.UpdateClaimTerms(ctx, commission.ID, decimal.NewFromInt(2_000_000), decimal.RequireFromString("4.5"), &url)
			require.NoError(t, err)

			stored, err := commissionRepo.ActiveByPropertyID(ctx, commission.PropertyID)
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.True(t, stored.LatestPrice.Valid)
			assert.True(t, stored.LatestPrice.Decimal.Equal(decimal.NewFromInt(2_000_000)))
			assert.True(t, stored.CommissionRate.Equal(decimal.RequireFromString("4.5")))
			require.NotNil(t, stored.ContractURL)
			assert.Equal(t, url, *stored.ContractURL)
		})

		t.Run("ListCompletedTransactions", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			commission, err := fixtures.CreateTestCommission(models.CommissionTypeBuying, "2")
			require.NoError(t, err)
			fee, err := fixtures.CreateTestFee(commission, 5, "40000", models.FeeStatusConfirmed, utils.UTCNow())
			require.NoError(t, err)
			require.NoError(t, commissionRepo.TransitionStatus(ctx, commission.ID, models.CommissionStatusProcessing, models.CommissionStatusCompleted))

			_, err = fixtures.CreateTestCommission(models.CommissionTypeBuying, "2")
			require.NoError(t, err)

			rows, total, err := commissionRepo.ListCompletedTransactions(ctx, repository.CommissionTransactionFilter{}, 10, 0)
			require.NoError(t, err)
			assert.Equal(t, int64(1), total)
			require.Len(t, rows, 1)
			require.NotNil(t, rows[0].FeeID)
			assert.Equal(t, fee.ID, *rows[0].FeeID)
			assert.Equal(t, commission.PropertyID, rows[0].PropertyID)
		})

		t.Run("ListProcessingForAgent", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			commission, err := fixtures.CreateTestCommission(models.CommissionTypeRental, "2")
			require.NoError(t, err)
			_, err = fixtures.CreateTestFee(commission, 11, "40000", models.FeeStatusProcessing, time.Time{})
			require.NoError(t, err)

			rows, total, err := commissionRepo.ListProcessingForAgent(ctx, 11, repository.CommissionTransactionFilter{}, 10, 0)
			require.NoError(t, err)
			assert.Equal(t, int64(1), total)
			require.Len(t, rows, 1)
			assert.Equal(t, models.CommissionTypeRental, rows[0].Type)

			_, total, err = commissionRepo.ListProcessingForAgent(ctx, 12, repository.CommissionTransactionFilter{}, 10, 0)
			require.NoError(t, err)
			assert.Equal(t, int64(0), total)
		})
	})
}

func TestSaleBonusRecordRepository(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB) {
		fixtures := testingutil.NewTestFixtures(testDB)
		recordRepo := repository.NewSaleBonusRecordRepository(testDB.DB)
		ctx := context.Background()

		_, err := fixtures.CreateTestSettlement(21, "07/2025")
		require.NoError(t, err)

		t.Run("DuplicateAgentMonthConflicts", func(t *testing.T) {
			err := recordRepo.Save(ctx, &models.SaleBonusRecord{
				AgentID:      21,
				ReviewBy:     2,
				BonusOfMonth: "07/2025",
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, repository.ErrDuplicateRecord)

			count, err := recordRepo.Count(ctx, models.SaleBonusRecordFilter{AgentID: utils.ToPtr(uint(21))})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})

		t.Run("SettledAgentIDs", func(t *testing.T) {
			settled, err := recordRepo.SettledAgentIDs(ctx, []uint{21, 22}, "07/2025")
			require.NoError(t, err)
			assert.True(t, settled[21])
			assert.False(t, settled[22])

			record, err := recordRepo.ByAgentAndMonth(ctx, 21, "08/2025")
			require.NoError(t, err)
			assert.Nil(t, record)
		})
	})
}

func TestPendingCompletionRepository(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB) {
		fixtures := testingutil.NewTestFixtures(testDB)
		pendingRepo := repository.NewPendingCompletionRepository(testDB.DB)
		ctx := context.Background()

		newMarker := func(t *testing.T) *models.PendingCompletion {
			commission, err := fixtures.CreateTestCommission(models.CommissionTypeBuying, "2")
			require.NoError(t, err)
			fee, err := fixtures.CreateTestFee(commission, 3, "1000", models.FeeStatusConfirmed, utils.UTCNow())
			require.NoError(t, err)
			marker := &models.PendingCompletion{
				FeeID:         fee.ID,
				CommissionID:  commission.ID,
				PropertyID:    commission.PropertyID,
				ListingStatus: models.ListingStatusSold,
				RequestStatus: models.RequestStatusCompleted,
				Status:        models.PendingCompletionStatusPending,
				NextAttemptAt: utils.UTCNow().Add(-time.Minute),
			}
			require.NoError(t, pendingRepo.Save(ctx, marker))
			return marker
		}

		t.Run("ClaimLeasesAndAttemptsAreGuarded", func(t *testing.T) {
			marker := newMarker(t)
			now := utils.UTCNow()

			claimed, err := pendingRepo.ClaimDue(ctx, now, time.Minute, 10)
			require.NoError(t, err)
			require.Len(t, claimed, 1)
			assert.Equal(t, marker.ID, claimed[0].ID)
			assert.WithinDuration(t, now.Add(time.Minute), claimed[0].NextAttemptAt, time.Second)

			// leased rows stay hidden until the lease runs out
			again, err := pendingRepo.ClaimDue(ctx, now, time.Minute, 10)
			require.NoError(t, err)
			assert.Empty(t, again)

			next := now.Add(-time.Second)
			require.NoError(t, pendingRepo.MarkAttemptFailed(ctx, marker.ID, 0, "property service down", next, false))
			assert.ErrorIs(t,
				pendingRepo.MarkAttemptFailed(ctx, marker.ID, 0, "property service down", next, false),
				repository.ErrStaleTransition)

			claimed, err = pendingRepo.ClaimDue(ctx, utils.UTCNow(), time.Minute, 10)
			require.NoError(t, err)
			require.Len(t, claimed, 1)
			assert.Equal(t, 1, claimed[0].Attempts)

			require.NoError(t, pendingRepo.MarkAttemptFailed(ctx, marker.ID, 1, "property service down", next, true))
			assert.ErrorIs(t, pendingRepo.MarkDone(ctx, marker.ID), repository.ErrStaleTransition)

			stored, err := pendingRepo.ByFeeID(ctx, marker.FeeID)
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, models.PendingCompletionStatusFailed, stored.Status)
			assert.Equal(t, 2, stored.Attempts)

			claimed, err = pendingRepo.ClaimDue(ctx, utils.UTCNow().Add(time.Hour), time.Minute, 10)
			require.NoError(t, err)
			assert.Empty(t, claimed)
		})

		t.Run("ConcurrentClaimsAreDisjoint", func(t *testing.T) {
			first := newMarker(t)
			second := newMarker(t)
			now := utils.UTCNow()

			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				seen = map[uint]int{}
			)
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					claimed, err := pendingRepo.ClaimDue(ctx, now, time.Minute, 1)
					assert.NoError(t, err)
					mu.Lock()
					defer mu.Unlock()
					for _, m := range claimed {
						seen[m.ID]++
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, map[uint]int{first.ID: 1, second.ID: 1}, seen)
		})
	})
}
