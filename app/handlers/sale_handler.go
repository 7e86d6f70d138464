package handlers

import (
	"strconv"

	"github.com/amirphl/estate-settlement/app/dto"
	"github.com/amirphl/estate-settlement/app/services"
	businessflow "github.com/amirphl/estate-settlement/business_flow"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SaleHandlerInterface defines the contract for monthly settlement handlers
type SaleHandlerInterface interface {
	ListAgentInMonth(c fiber.Ctx) error
	TransactionsInMonth(c fiber.Ctx) error
	CreateBonus(c fiber.Ctx) error
	MineHistory(c fiber.Ctx) error
	HistoryOfAgent(c fiber.Ctx) error
	GetSettlement(c fiber.Ctx) error
	NotifyMonth(c fiber.Ctx) error
	ExportMonth(c fiber.Ctx) error
}

// SaleHandler handles monthly settlement HTTP requests
type SaleHandler struct {
	base
	flow businessflow.SettlementFlow
}

// NewSaleHandler creates a new sale handler
func NewSaleHandler(flow businessflow.SettlementFlow, logger logrus.FieldLogger) *SaleHandler {
	return &SaleHandler{
		base: base{validator: newValidator(), logger: logger},
		flow: flow,
	}
}

// ListAgentInMonth lists every agent's totals for a salary month
// @Summary List Agents In Month
// @Description Per-agent completed and rejected counts and commission sums inside the salary window. Defaults to the month being settled.
// @Tags Sale
// @Produce json
// @Security BearerAuth
// @Param month query string false "Salary month (MM/YYYY)"
// @Param search query string false "Agent name or email"
// @Param page query int false "Page number (default: 1)" minimum(1)
// @Param limit query int false "Items per page (default: 10, max: 100)" minimum(1) maximum(100)
// @Success 200 {object} dto.APIResponse{data=dto.ListAgentsInMonthResponse} "Agent summaries"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/sale/list-agent-in-month [get]
func (h *SaleHandler) ListAgentInMonth(c fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", dto.ErrorDetail{Code: "VALIDATION_ERROR", Message: err.Error()})
	}
	req := &dto.ListAgentsInMonthRequest{
		PageRequest: page,
		Month:       c.Query("month"),
		Search:      c.Query("search"),
	}
	if err := h.validator.Struct(req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", validationDetails(err)...)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/sale/list-agent-in-month")
	defer cancel()

	result, err := h.flow.RunMonthlySettlement(ctx, req)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to list agents")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Agents retrieved successfully", result)
}

// TransactionsInMonth lists one agent's decided fees in a salary month
// @Summary Agent Transactions In Month
// @Description Agents always see their own month; admins pick the agent with agentId
// @Tags Sale
// @Produce json
// @Security BearerAuth
// @Param agentId query int false "Agent ID (admin only)"
// @Param month query string false "Salary month (MM/YYYY)"
// @Param search query string false "Reject reason search"
// @Param page query int false "Page number (default: 1)" minimum(1)
// @Param limit query int false "Items per page (default: 10, max: 100)" minimum(1) maximum(100)
// @Success 200 {object} dto.APIResponse{data=dto.AgentTransactionsResponse} "Agent month"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/sale/transactions-in-month [get]
func (h *SaleHandler) TransactionsInMonth(c fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", dto.ErrorDetail{Code: "VALIDATION_ERROR", Message: err.Error()})
	}
	agentID, err := h.targetAgent(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid agent ID", dto.ErrorDetail{Code: "VALIDATION_ERROR", Message: err.Error()})
	}
	req := &dto.AgentTransactionsRequest{
		PageRequest: page,
		AgentID:     agentID,
		Month:       c.Query("month"),
		Search:      c.Query("search"),
	}
	if err := h.validator.Struct(req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", validationDetails(err)...)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/sale/transactions-in-month")
	defer cancel()

	result, err := h.flow.GetAgentMonthlySummary(ctx, req)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to get agent transactions")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Agent transactions retrieved successfully", result)
}

// CreateBonus records an agent's monthly settlement
// @Summary Create Monthly Settlement
// @Description Record bonus, penalty and review for an agent's month. Totals are recomputed from confirmed fees. One settlement per agent and month.
// @Tags Sale
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateSettlementRequest true "Settlement data"
// @Success 201 {object} dto.APIResponse{data=dto.SettlementResponse} "Settlement recorded"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Month already settled for agent"
// @Router /api/v1/sale/bonus [post]
func (h *SaleHandler) CreateBonus(c fiber.Ctx) error {
	var req dto.CreateSettlementRequest
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
	req.ReviewerID = reviewerID

	ctx, cancel := h.createRequestContext(c, "/api/v1/sale/bonus")
	defer cancel()

	result, err := h.flow.RecordSettlement(ctx, &req)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to record settlement")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Settlement recorded successfully", result)
}

// MineHistory lists the caller's settlements
// @Summary My Settlement History
// @Tags Sale
// @Produce json
// @Security BearerAuth
// @Param startDate query string false "Created from (YYYY-MM-DD or RFC 3339)"
// @Param endDate query string false "Created until (YYYY-MM-DD or RFC 3339)"
// @Param page query int false "Page number (default: 1)" minimum(1)
// @Param limit query int false "Items per page (default: 10, max: 100)" minimum(1) maximum(100)
// @Success 200 {object} dto.APIResponse{data=dto.SettlementHistoryResponse} "Settlements"
// @Router /api/v1/sale/mine-history [get]
func (h *SaleHandler) MineHistory(c fiber.Ctx) error {
	agentID, ok := callerID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", dto.ErrorDetail{Code: "MISSING_USER_ID"})
	}
	return h.history(c, agentID, "/api/v1/sale/mine-history")
}

// HistoryOfAgent lists an agent's settlements
// @Summary Agent Settlement History
// @Tags Sale
// @Produce json
// @Security BearerAuth
// @Param agentId query int true "Agent ID"
// @Param startDate query string false "Created from (YYYY-MM-DD or RFC 3339)"
// @Param endDate query string false "Created until (YYYY-MM-DD or RFC 3339)"
// @Param page query int false "Page number (default: 1)" minimum(1)
// @Param limit query int false "Items per page (default: 10, max: 100)" minimum(1) maximum(100)
// @Success 200 {object} dto.APIResponse{data=dto.SettlementHistoryResponse} "Settlements"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/sale/history-of-agent [get]
func (h *SaleHandler) HistoryOfAgent(c fiber.Ctx) error {
	agentID, err := strconv.ParseUint(c.Query("agentId"), 10, 64)
	if err != nil || agentID == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid agent ID", dto.ErrorDetail{Code: "VALIDATION_ERROR", Message: "agentId must be a positive integer"})
	}
	return h.history(c, uint(agentID), "/api/v1/sale/history-of-agent")
}

func (h *SaleHandler) history(c fiber.Ctx, agentID uint, endpoint string) error {
	page, err := parsePage(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", dto.ErrorDetail{Code: "VALIDATION_ERROR", Message: err.Error()})
	}
	start, end, err := parseDateRange(c, "startDate", "endDate")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", dto.ErrorDetail{Code: "VALIDATION_ERROR", Message: err.Error()})
	}
	req := &dto.SettlementHistoryRequest{PageRequest: page, AgentID: agentID, StartDate: start, EndDate: end}
	if err := h.validator.Struct(req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", validationDetails(err)...)
	}

	ctx, cancel := h.createRequestContext(c, endpoint)
	defer cancel()

	result, err := h.flow.GetSettlementHistory(ctx, req)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to get settlement history")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Settlement history retrieved successfully", result)
}

// GetSettlement returns one settlement; agents only see their own
// @Summary Get Settlement
// @Tags Sale
// @Produce json
// @Security BearerAuth
// @Param id path int true "Settlement ID"
// @Success 200 {object} dto.APIResponse{data=dto.SettlementResponse} "Settlement"
// @Failure 404 {object} dto.APIResponse "Settlement not found"
// @Router /api/v1/sale/{id} [get]
func (h *SaleHandler) GetSettlement(c fiber.Ctx) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid settlement ID", dto.ErrorDetail{Code: "VALIDATION_ERROR", Message: "id must be a positive integer"})
	}
	requesterID, ok := callerID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", dto.ErrorDetail{Code: "MISSING_USER_ID"})
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/sale/detail")
	defer cancel()

	result, err := h.flow.GetSettlementByID(ctx, id, requesterID, callerRole(c) == services.RoleAdmin)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to get settlement")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Settlement retrieved successfully", result)
}

// NotifyMonth mails every settled agent of a month
// @Summary Notify Month Payouts
// @Description Send the payout email to every agent settled in the month. allNotified is false when any agent could not be mailed.
// @Tags Sale
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.NotifyMonthRequest false "Salary month"
// @Success 200 {object} dto.APIResponse{data=dto.NotifyMonthResponse} "Notification outcome"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/sale/notify-month [post]
func (h *SaleHandler) NotifyMonth(c fiber.Ctx) error {
	var req dto.NotifyMonthRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", dto.ErrorDetail{Code: "INVALID_REQUEST", Message: err.Error()})
		}
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", validationDetails(err)...)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/sale/notify-month")
	defer cancel()

	result, err := h.flow.NotifyMonth(ctx, &req)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to notify agents")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Agents notified", result)
}

// ExportMonth downloads the month's agent summary as a spreadsheet
// @Summary Export Month
// @Tags Sale
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param month query string false "Salary month (MM/YYYY)"
// @Success 200 {file} file "Workbook"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/sale/export-month [get]
func (h *SaleHandler) ExportMonth(c fiber.Ctx) error {
	month := c.Query("month")
	if month != "" {
		if _, err := businessflow.ParseSalaryMonth(month); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid month", dto.ErrorDetail{Code: "VALIDATION_ERROR", Message: "month must be formatted as MM/YYYY"})
		}
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/sale/export-month")
	defer cancel()

	filename, data, err := h.flow.ExportMonth(ctx, month)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to export month")
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Status(fiber.StatusOK).Send(data)
}

// targetAgent is the caller for agents and the agentId query for admins
func (h *SaleHandler) targetAgent(c fiber.Ctx) (uint, error) {
	if callerRole(c) != services.RoleAdmin {
		id, _ := callerID(c)
		return id, nil
	}
	v := c.Query("agentId")
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
