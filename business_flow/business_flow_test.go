package businessflow

import (
	"errors"
	"fmt"
	"testing"

	"github.com/amirphl/estate-settlement/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPagination(t *testing.T) {
	p, err := NewPagination(0, 0)
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: 1, Limit: 10}, p)
	assert.Equal(t, 0, p.Offset())

	p, err = NewPagination(3, 25)
	require.NoError(t, err)
	assert.Equal(t, 50, p.Offset())
	assert.Equal(t, int64(99), p.Info(99).Total)

	_, err = NewPagination(-1, 10)
	assert.ErrorIs(t, err, ErrInvalidPage)
	_, err = NewPagination(1, 101)
	assert.ErrorIs(t, err, ErrInvalidPageSize)
	_, err = NewPagination(1, -5)
	assert.ErrorIs(t, err, ErrInvalidPageSize)
}

func TestDisplayStatus(t *testing.T) {
	processingFee := &models.AgentCommissionFee{Status: models.FeeStatusProcessing}
	rejectedFee := &models.AgentCommissionFee{Status: models.FeeStatusRejected}

	cases := []struct {
		name   string
		status models.CommissionStatus
		typ    models.CommissionType
		fee    *models.AgentCommissionFee
		want   string
	}{
		{"completed buying", models.CommissionStatusCompleted, models.CommissionTypeBuying, nil, models.ListingStatusSold},
		{"completed rental", models.CommissionStatusCompleted, models.CommissionTypeRental, nil, models.ListingStatusRented},
		{"claim under review", models.CommissionStatusProcessing, models.CommissionTypeBuying, processingFee, models.ListingStatusPendingDeal},
		{"rejected claim relists", models.CommissionStatusProcessing, models.CommissionTypeRental, rejectedFee, models.ListingStatusForRent},
		{"no claim yet", models.CommissionStatusProcessing, models.CommissionTypeBuying, nil, models.ListingStatusForSale},
		{"failed", models.CommissionStatusFailed, models.CommissionTypeBuying, nil, models.ListingStatusForSale},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &models.Commission{Status: tc.status, Type: tc.typ}
			assert.Equal(t, tc.want, DisplayStatus(c, tc.fee))
		})
	}
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{NewBusinessError("X", "x", ErrPropertyMismatch), "VALIDATION_ERROR"},
		{NewBusinessError("X", "x", ErrFeeNotFound), "NOT_FOUND"},
		{NewBusinessError("X", "x", ErrSettlementExists), "STATE_CONFLICT"},
		{NewBusinessError("X", "x", ErrWebhookSignature), "SIGNATURE_ERROR"},
		{NewBusinessError("X", "x", fmt.Errorf("%w: %w", ErrCheckoutFailed, errors.New("timeout"))), "GATEWAY_ERROR"},
		{NewBusinessError("PARTIAL", "x", ErrPropertyCompletionPending), "PARTIAL_FAILURE"},
		{NewBusinessError("LIST_FAILED", "x", errors.New("db down")), "LIST_FAILED"},
		{errors.New("boom"), "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ErrorCode(tc.err), tc.err.Error())
	}
}

func TestCauseSkipsWrappers(t *testing.T) {
	err := NewBusinessError("CONFIRM_TRANSACTION_FAILED", "Failed to confirm transaction", ErrFeeNotProcessing)
	assert.Equal(t, "commission fee is not processing", Cause(err))
	assert.True(t, errors.Is(err, ErrStateConflict))
	assert.Equal(t, "boom", Cause(errors.New("boom")))
}
