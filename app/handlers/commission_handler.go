package handlers

import (
	"strconv"

	"github.com/amirphl/estate-settlement/app/dto"
	businessflow "github.com/amirphl/estate-settlement/business_flow"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// CommissionHandlerInterface defines the contract for commission handlers
type CommissionHandlerInterface interface {
	CreateCommission(c fiber.Ctx) error
	CreatePayment(c fiber.Ctx) error
	ConfirmTransaction(c fiber.Ctx) error
	RejectTransaction(c fiber.Ctx) error
	GetAll(c fiber.Ctx) error
	GetMy(c fiber.Ctx) error
	GetByProperty(c fiber.Ctx) error
	GetDetail(c fiber.Ctx) error
	Webhook(c fiber.Ctx) error
}

// CommissionHandler handles commission and agent claim HTTP requests
type CommissionHandler struct {
	base
	flow businessflow.TransactionFlow
}

// NewCommissionHandler creates a new commission handler
func NewCommissionHandler(flow businessflow.TransactionFlow, logger logrus.FieldLogger) *CommissionHandler {
	return &CommissionHandler{
		base: base{validator: newValidator(), logger: logger},
		flow: flow,
	}
}

// CreateCommission opens a commission on a property
// @Summary Create Commission
// @Description Open a PROCESSING commission on a property. Rejected while the property already has one.
// @Tags Commission
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateCommissionRequest true "Commission terms"
// @Success 201 {object} dto.APIResponse{data=dto.CommissionResponse} "Commission created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Property already has a processing commission"
// @Router /api/v1/commission [post]
func (h *CommissionHandler) CreateCommission(c fiber.Ctx) error {
	var req dto.CreateCommissionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", dto.ErrorDetail{Code: "INVALID_REQUEST", Message: err.Error()})
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", validationDetails(err)...)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/commission")
	defer cancel()

	result, err := h.flow.CreateCommission(ctx, &req)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to create commission")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Commission created successfully", result)
}

// CreatePayment files the caller's claim on a commission and returns the checkout
// @Summary Create Commission Payment
// @Description Compute the commission value, request a signed checkout from the payment gateway and record the agent's claim
// @Tags Commission
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreatePaymentRequest true "Claim data"
// @Success 201 {object} dto.APIResponse{data=dto.CreatePaymentResponse} "Checkout issued"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Commission not found"
// @Failure 409 {object} dto.APIResponse "A claim is already processing"
// @Failure 502 {object} dto.APIResponse "Payment gateway failure"
// @Router /api/v1/commission/create-payment [post]
func (h *CommissionHandler) CreatePayment(c fiber.Ctx) error {
	var req dto.CreatePaymentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", dto.ErrorDetail{Code: "INVALID_REQUEST", Message: err.Error()})
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", validationDetails(err)...)
	}

	agentID, ok := callerID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", dto.ErrorDetail{Code: "MISSING_USER_ID"})
	}
	req.AgentID = agentID

	ctx, cancel := h.createRequestContext(c, "/api/v1/commission/create-payment")
	defer cancel()

	result, err := h.flow.CreatePayment(ctx, &req)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to create payment")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Payment created successfully", result)
}

// ConfirmTransaction approves an agent's claim and completes the property
// @Summary Confirm Transaction
// @Description Confirm a PROCESSING fee, complete its commission and mark the property sold or rented
// @Tags Commission
// @Produce json
// @Security BearerAuth
// @Param id path int true "Fee ID"
// @Param propertyId path int true "Property ID"
// @Success 200 {object} dto.APIResponse{data=dto.FeeResponse} "Transaction confirmed"
// @Failure 404 {object} dto.APIResponse "Fee not found"
// @Failure 409 {object} dto.APIResponse "Fee is not processing"
// @Failure 500 {object} dto.APIResponse "PARTIAL_FAILURE when the property was not completed"
// @Router /api/v1/commission/confirm/{id}/property/{propertyId} [post]
func (h *CommissionHandler) ConfirmTransaction(c fiber.Ctx) error {
	feeID, ok := parseUintParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid fee ID", dto.ErrorDetail{Code: "VALIDATION_ERROR", Message: "id must be a positive integer"})
	}
	propertyID, ok := parseUintParam(c, "propertyId")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid property ID", dto.ErrorDetail{Code: "VALIDATION_ERROR", Message: "propertyId must be a positive integer"})
	}
	reviewerID, ok := callerID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", dto.ErrorDetail{Code: "MISSING_USER_ID"})
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/commission/confirm")
	defer cancel()

	result, err := h.flow.ConfirmTransaction(ctx, &dto.ConfirmTransactionRequest{FeeID: feeID, PropertyID: propertyID, ReviewerID: reviewerID})
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to confirm transaction")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Transaction confirmed successfully", result)
}

// RejectTransaction declines an agent's claim
// @Summary Reject Transaction
// @Description Reject a PROCESSING fee. The commission stays open for a new claim.
// @Tags Commission
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Fee ID"
// @Param request body dto.RejectTransactionRequest true "Reject reason"
// @Success 200 {object} dto.APIResponse{data=dto.FeeResponse} "Transaction rejected"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Fee is not processing"
// @Router /api/v1/commission/reject/{id} [post]
func (h *CommissionHandler) RejectTransaction(c fiber.Ctx) error {
	feeID, ok := parseUintParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid fee ID", dto.ErrorDetail{Code: "VALIDATION_ERROR", Message: "id must be a positive integer"})
	}

	var req dto.RejectTransactionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", dto.ErrorDetail{Code: "INVALID_REQUEST", Message: err.Error()})
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", validationDetails(err)...)
	}

	reviewerID, ok := callerID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", dto.ErrorDetail{Code: "MISSING_USER_ID"})
	}
	req.FeeID = feeID
	req.ReviewerID = reviewerID

	ctx, cancel := h.createRequestContext(c, "/api/v1/commission/reject")
	defer cancel()

	result, err := h.flow.RejectTransaction(ctx, &req)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to reject transaction")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Transaction rejected successfully", result)
}

// parseListRequest reads the commission list filters from the query string
func (h *CommissionHandler) parseListRequest(c fiber.Ctx) (*dto.ListCommissionTransactionsRequest, error) {
	page, err := parsePage(c)
	if err != nil {
		return nil, err
	}
	req := &dto.ListCommissionTransactionsRequest{PageRequest: page}

	if t := c.Query("type"); t != "" {
		req.Type = &t
	}
	if v := c.Query("propertyId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, err
		}
		pid := uint(id)
		req.PropertyID = &pid
	}
	if v := c.Query("agentId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, err
		}
		aid := uint(id)
		req.AgentID = &aid
	}
	req.StartDate, req.EndDate, err = parseDateRange(c, "startDate", "endDate")
	if err != nil {
		return nil, err
	}
	return req, nil
}

// GetAll lists completed commissions
// @Summary List Completed Commissions
// @Description Paginated list of COMPLETED commissions with their confirmed fee and agent
// @Tags Commission
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (default: 1)" minimum(1)
// @Param limit query int false "Items per page (default: 10, max: 100)" minimum(1) maximum(100)
// @Param type query string false "BUYING or RENTAL"
// @Param propertyId query int false "Property filter"
// @Param agentId query int false "Agent filter"
// @Param startDate query string false "Created from (YYYY-MM-DD or RFC 3339)"
// @Param endDate query string false "Created until (YYYY-MM-DD or RFC 3339)"
// @Success 200 {object} dto.APIResponse{data=dto.ListCommissionTransactionsResponse} "Commissions"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/commission/get-all [get]
func (h *CommissionHandler) GetAll(c fiber.Ctx) error {
	req, err := h.parseListRequest(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", dto.ErrorDetail{Code: "VALIDATION_ERROR", Message: err.Error()})
	}
	if err := h.validator.Struct(req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", validationDetails(err)...)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/commission/get-all")
	defer cancel()

	result, err := h.flow.ListCompleted(ctx, req)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to list commissions")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Commissions retrieved successfully", result)
}

// GetMy lists the caller's claims awaiting review
// @Summary List My Processing Claims
// @Description Paginated list of the authenticated agent's PROCESSING claims
// @Tags Commission
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (default: 1)" minimum(1)
// @Param limit query int false "Items per page (default: 10, max: 100)" minimum(1) maximum(100)
// @Param type query string false "BUYING or RENTAL"
// @Success 200 {object} dto.APIResponse{data=dto.ListCommissionTransactionsResponse} "Claims"
// @Router /api/v1/commission/get-my [get]
func (h *CommissionHandler) GetMy(c fiber.Ctx) error {
	req, err := h.parseListRequest(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", dto.ErrorDetail{Code: "VALIDATION_ERROR", Message: err.Error()})
	}
	if err := h.validator.Struct(req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", validationDetails(err)...)
	}
	agentID, ok := callerID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", dto.ErrorDetail{Code: "MISSING_USER_ID"})
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/commission/get-my")
	defer cancel()

	result, err := h.flow.ListMine(ctx, agentID, req)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to list commissions")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Commissions retrieved successfully", result)
}

// GetByProperty returns a property's latest commission cycle
// @Summary Get Commission By Property
// @Tags Commission
// @Produce json
// @Security BearerAuth
// @Param propertyId path int true "Property ID"
// @Success 200 {object} dto.APIResponse{data=dto.CommissionDetailResponse} "Commission"
// @Failure 404 {object} dto.APIResponse "Commission not found"
// @Router /api/v1/commission/property/{propertyId} [get]
func (h *CommissionHandler) GetByProperty(c fiber.Ctx) error {
	propertyID, ok := parseUintParam(c, "propertyId")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid property ID", dto.ErrorDetail{Code: "VALIDATION_ERROR", Message: "propertyId must be a positive integer"})
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/commission/property")
	defer cancel()

	result, err := h.flow.GetByProperty(ctx, propertyID)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to get commission")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Commission retrieved successfully", result)
}

// GetDetail returns a commission with its latest fee and agent
// @Summary Get Commission Detail
// @Tags Commission
// @Produce json
// @Security BearerAuth
// @Param id path int true "Commission ID"
// @Success 200 {object} dto.APIResponse{data=dto.CommissionDetailResponse} "Commission"
// @Failure 404 {object} dto.APIResponse "Commission not found"
// @Router /api/v1/commission/{id} [get]
func (h *CommissionHandler) GetDetail(c fiber.Ctx) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid commission ID", dto.ErrorDetail{Code: "VALIDATION_ERROR", Message: "id must be a positive integer"})
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/commission/detail")
	defer cancel()

	result, err := h.flow.GetDetail(ctx, id)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to get commission")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Commission retrieved successfully", result)
}

// Webhook receives payment notifications from the gateway
// @Summary Payment Gateway Webhook
// @Description Verify the webhook signature and record the payment on the matching fee
// @Tags Commission
// @Accept json
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.WebhookAckResponse} "Webhook processed"
// @Failure 400 {object} dto.APIResponse "Malformed payload"
// @Failure 401 {object} dto.APIResponse "Signature mismatch"
// @Router /api/v1/commission/webhook [post]
func (h *CommissionHandler) Webhook(c fiber.Ctx) error {
	body := append([]byte(nil), c.Body()...)

	ctx, cancel := h.createRequestContext(c, "/api/v1/commission/webhook")
	defer cancel()

	result, err := h.flow.HandleWebhook(ctx, body)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to process webhook")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Webhook processed successfully", result)
}
