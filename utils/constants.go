package utils

import (
	"time"
)

// Token constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour
)

// Settlement constants
const (
	// SalaryWindowStartDay is the first day of a salary month window
	SalaryWindowStartDay = 6

	// SalaryLookbackFirstDay and SalaryLookbackLastDay bound the days on which
	// the previous calendar month is still being settled
	SalaryLookbackFirstDay = 4
	SalaryLookbackLastDay  = 12

	// PaymentDescriptionMaxLen is the gateway limit on description length
	PaymentDescriptionMaxLen = 25
)

// Pagination defaults
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)
