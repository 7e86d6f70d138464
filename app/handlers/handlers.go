// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/estate-settlement/app/dto"
	"github.com/amirphl/estate-settlement/app/middleware"
	"github.com/amirphl/estate-settlement/app/services"
	businessflow "github.com/amirphl/estate-settlement/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

const defaultRequestTimeout = 30 * time.Second

type requestContextKey string

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "url":
		return err.Field() + " must be a valid URL"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "salary_month":
		return err.Field() + " must be formatted as MM/YYYY"
	default:
		return err.Field() + " is invalid"
	}
}

// newValidator returns a validator with the settlement-specific tags registered
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("salary_month", func(fl validator.FieldLevel) bool {
		_, err := businessflow.ParseSalaryMonth(fl.Field().String())
		return err == nil
	})
	return v
}

func validationDetails(err error) []dto.ErrorDetail {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []dto.ErrorDetail{{Code: "VALIDATION_ERROR", Message: err.Error()}}
	}
	details := make([]dto.ErrorDetail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, dto.ErrorDetail{
			Code:    "VALIDATION_ERROR",
			Message: getValidationErrorMessage(fe),
			Details: fe.Field(),
		})
	}
	return details
}

// base carries the response helpers every handler shares
type base struct {
	validator *validator.Validate
	logger    logrus.FieldLogger
}

func (h *base) ErrorResponse(c fiber.Ctx, statusCode int, message string, details ...dto.ErrorDetail) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Message: message,
		Error:   details,
	})
}

func (h *base) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Message: message,
		Data:    data,
		Error:   []dto.ErrorDetail{},
	})
}

// statusForError maps an error kind to its HTTP status
func statusForError(err error) int {
	switch businessflow.Kind(err) {
	case businessflow.ErrValidation:
		return fiber.StatusBadRequest
	case businessflow.ErrNotFound:
		return fiber.StatusNotFound
	case businessflow.ErrStateConflict:
		return fiber.StatusConflict
	case businessflow.ErrSignatureMismatch:
		return fiber.StatusUnauthorized
	case businessflow.ErrGatewayFailure:
		return fiber.StatusBadGateway
	case businessflow.ErrPartialFailure:
		return fiber.StatusInternalServerError
	}
	return fiber.StatusInternalServerError
}

// BusinessErrorResponse renders a flow error; unclassified errors are logged and hidden
func (h *base) BusinessErrorResponse(c fiber.Ctx, err error, fallback string) error {
	status := statusForError(err)
	code := businessflow.ErrorCode(err)
	kind := businessflow.Kind(err)

	switch {
	case kind == nil:
		h.logger.WithFields(logrus.Fields{"path": c.Path(), "code": code}).WithError(err).Error(fallback)
		return h.ErrorResponse(c, status, fallback, dto.ErrorDetail{Code: code, Message: fallback})
	case kind == businessflow.ErrPartialFailure || kind == businessflow.ErrGatewayFailure:
		h.logger.WithFields(logrus.Fields{"path": c.Path(), "code": code}).WithError(err).Error(fallback)
	}

	message := businessflow.Cause(err)
	var be *businessflow.BusinessError
	if kind == businessflow.ErrPartialFailure && errors.As(err, &be) {
		message = be.Message
	}
	return h.ErrorResponse(c, status, message, dto.ErrorDetail{Code: code, Message: message})
}

// createRequestContext detaches the flow call from fasthttp's request lifetime and bounds it
func (h *base) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	ctx = context.WithValue(ctx, requestContextKey(businessflow.RequestIDKey), c.Get(businessflow.RequestIDKey))
	ctx = context.WithValue(ctx, requestContextKey("endpoint"), endpoint)
	return ctx, cancel
}

func callerID(c fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(middleware.LocalUserID).(uint)
	return id, ok && id > 0
}

func callerRole(c fiber.Ctx) services.Role {
	role, _ := c.Locals(middleware.LocalRole).(services.Role)
	return role
}

func parseUintParam(c fiber.Ctx, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

// parsePage reads page and limit; range checks happen in the flow
func parsePage(c fiber.Ctx) (dto.PageRequest, error) {
	var p dto.PageRequest
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, errors.New("page must be a number")
		}
		p.Page = n
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, errors.New("limit must be a number")
		}
		p.Limit = n
	}
	return p, nil
}

// parseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates
func parseDate(s string, endOfDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Microsecond)
	}
	return &t, nil
}

func parseDateRange(c fiber.Ctx, startKey, endKey string) (*time.Time, *time.Time, error) {
	start, err := parseDate(c.Query(startKey), false)
	if err != nil {
		return nil, nil, err
	}
	end, err := parseDate(c.Query(endKey), true)
	if err != nil {
		return nil, nil, err
	}
	return start, end, nil
}
