// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/amirphl/estate-settlement/app/dto"
	"github.com/amirphl/estate-settlement/app/handlers"
	"github.com/amirphl/estate-settlement/app/middleware"
	"github.com/amirphl/estate-settlement/app/services"
	"github.com/amirphl/estate-settlement/config"
	"github.com/amirphl/estate-settlement/docs"
	"github.com/amirphl/estate-settlement/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app               *fiber.App
	cfg               *config.ProductionConfig
	commissionHandler handlers.CommissionHandlerInterface
	saleHandler       handlers.SaleHandlerInterface
	authMiddleware    *middleware.AuthMiddleware
	logger            logrus.FieldLogger
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg *config.ProductionConfig,
	commissionHandler handlers.CommissionHandlerInterface,
	saleHandler handlers.SaleHandlerInterface,
	authMiddleware *middleware.AuthMiddleware,
	logger logrus.FieldLogger,
) *FiberRouter {
	r := &FiberRouter{
		cfg:               cfg,
		commissionHandler: commissionHandler,
		saleHandler:       saleHandler,
		authMiddleware:    authMiddleware,
		logger:            logger,
	}

	r.app = fiber.New(fiber.Config{
		AppName:      "Estate Settlement API",
		ServerHeader: "estate-settlement",
		ErrorHandler: r.errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.logger.Info("Setting up routes...")

	// Global middleware
	r.setupMiddleware()

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	// API routes
	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	// API documentation route (development only)
	if env := r.cfg.Deployment.Environment; env == "development" || env == "local" {
		api.Get("/swagger.json", r.serveSwaggerJSON)
		r.logger.Info("API documentation enabled for development")
	}

	// Gateway callbacks carry no bearer token; the payload signature authenticates them
	api.Post("/commission/webhook", limiter.New(limiter.Config{
		Max:          r.cfg.Security.WebhookRateLimit,
		Expiration:   r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string { return c.IP() },
		LimitReached: rateLimitReached,
	}), r.commissionHandler.Webhook)

	// Apply general rate limiting to authenticated routes
	protected := api.Group("", limiter.New(limiter.Config{
		Max:          r.cfg.Security.GlobalRateLimit,
		Expiration:   r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string { return c.IP() },
		LimitReached: rateLimitReached,
	}), r.authMiddleware.Authenticate())

	r.setupCommissionRoutes(protected)
	r.setupSaleRoutes(protected)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	r.logger.Info("Routes configured successfully")
}

// setupCommissionRoutes registers /commission; static paths precede /:id
func (r *FiberRouter) setupCommissionRoutes(api fiber.Router) {
	agent := r.authMiddleware.RequireRole(services.RoleAgent, services.RoleAdmin)
	admin := r.authMiddleware.RequireAdmin()

	commission := api.Group("/commission")
	commission.Post("/", admin, r.commissionHandler.CreateCommission)
	commission.Post("/create-payment", agent, r.commissionHandler.CreatePayment)
	commission.Post("/confirm/:id/property/:propertyId", admin, r.commissionHandler.ConfirmTransaction)
	commission.Post("/reject/:id", admin, r.commissionHandler.RejectTransaction)
	commission.Get("/get-all", admin, r.commissionHandler.GetAll)
	commission.Get("/get-my", agent, r.commissionHandler.GetMy)
	commission.Get("/property/:propertyId", agent, r.commissionHandler.GetByProperty)
	commission.Get("/:id", agent, r.commissionHandler.GetDetail)
}

// setupSaleRoutes registers /sale; static paths precede /:id
func (r *FiberRouter) setupSaleRoutes(api fiber.Router) {
	agent := r.authMiddleware.RequireRole(services.RoleAgent, services.RoleAdmin)
	admin := r.authMiddleware.RequireAdmin()

	sale := api.Group("/sale")
	sale.Get("/list-agent-in-month", admin, r.saleHandler.ListAgentInMonth)
	sale.Get("/transactions-in-month", agent, r.saleHandler.TransactionsInMonth)
	sale.Post("/bonus", admin, r.saleHandler.CreateBonus)
	sale.Get("/mine-history", agent, r.saleHandler.MineHistory)
	sale.Get("/history-of-agent", admin, r.saleHandler.HistoryOfAgent)
	sale.Post("/notify-month", admin, r.saleHandler.NotifyMonth)
	sale.Get("/export-month", admin, r.saleHandler.ExportMonth)
	sale.Get("/:id", agent, r.saleHandler.GetSettlement)
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.WithFields(logrus.Fields{
				"request_id": requestid.FromContext(c),
				"event":      "panic",
				"path":       c.Path(),
				"method":     c.Method(),
				"ip":         c.IP(),
			}).Errorf("panic: %v", e)
		},
	}))

	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics())
	}

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        r.cfg.Security.XContentTypeOptions,
		XFrameOptions:             r.cfg.Security.XFrameOptions,
		HSTSMaxAge:                r.cfg.Security.HSTSMaxAge,
		HSTSExcludeSubdomains:     !r.cfg.Security.HSTSIncludeSubDoms,
		HSTSPreloadEnabled:        r.cfg.Security.HSTSPreload,
		ContentSecurityPolicy:     r.cfg.Security.CSPPolicy,
		ReferrerPolicy:            r.cfg.Security.ReferrerPolicy,
		CrossOriginResourcePolicy: "cross-origin",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Security.AllowedOrigins,
		AllowMethods:     r.cfg.Security.AllowedMethods,
		AllowHeaders:     r.cfg.Security.AllowedHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
		}))
	}

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(r.accessLog)
	}
}

// accessLog writes one structured line per request
func (r *FiberRouter) accessLog(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if c.Path() == "/api/v1/health" || c.Path() == r.cfg.Metrics.Path {
		return err
	}
	r.logger.WithFields(logrus.Fields{
		"request_id": requestid.FromContext(c),
		"method":     c.Method(),
		"path":       c.Path(),
		"ip":         c.IP(),
		"status":     c.Response().StatusCode(),
		"latency_ms": time.Since(start).Milliseconds(),
		"bytes_in":   len(c.Body()),
		"bytes_out":  len(c.Response().Body()),
	}).Info("request")
	return err
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.logger.Infof("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   r.cfg.Deployment.Version,
			"service":   "estate-settlement",
		},
		Error: []dto.ErrorDetail{},
	})
}

// Serve the generated Swagger document
func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendString(docs.SwaggerInfo.ReadDoc())
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Message: "The requested resource was not found",
		Error: []dto.ErrorDetail{{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		}},
	})
}

// Global error handler
func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	// Default error code
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errCode := "INTERNAL_ERROR"

	// Retrieve the custom status code if it's a fiber.*Error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		if code < fiber.StatusInternalServerError {
			message = e.Message
			errCode = strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_"))
		}
	}

	r.logger.WithFields(logrus.Fields{
		"status":     code,
		"path":       c.Path(),
		"request_id": requestid.FromContext(c),
	}).WithError(err).Error("Unhandled request error")

	return c.Status(code).JSON(dto.APIResponse{
		Message: message,
		Error: []dto.ErrorDetail{{
			Code: errCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		}},
	})
}

func rateLimitReached(c fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
		Message: "Too many requests. Please try again later.",
		Error:   []dto.ErrorDetail{{Code: "RATE_LIMIT_EXCEEDED"}},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
