package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Abraxas-365/identity/pkg/config"
	"github.com/Abraxas-365/identity/pkg/errx"
	"github.com/Abraxas-365/identity/pkg/kernel"
	"github.com/Abraxas-365/identity/pkg/logx"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

func main() {
	// 1. Configuration (logx reads LOG_* on its own)
	cfg, err := config.Load()
	if err != nil {
		logx.Fatalf("Invalid configuration: %v", err)
	}

	logx.Info("🚀 Starting Identity Server...")

	// 2. Dependency container and background services
	ctx, cancel := context.WithCancel(context.Background())
	container := NewContainer(ctx, cfg)
	defer container.Cleanup()
	container.StartBackgroundServices(ctx)

	// 3. Fiber app
	app := fiber.New(fiber.Config{
		AppName:               "Identity",
		DisableStartupMessage: true,
		ErrorHandler:          globalErrorHandler,
		BodyLimit:             64 * 1024,
		IdleTimeout:           120 * time.Second,
	})

	// 4. Global middleware
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(requestid.New(requestid.Config{
		Header:    requestIDHeader,
		Generator: uuid.NewString,
	}))
	app.Use(requestContext)

	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods:  "GET, POST, DELETE, OPTIONS",
		ExposeHeaders: requestIDHeader,
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${respHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	}))

	// 5. Health & metrics
	app.Get("/health", healthCheckHandler(container))
	app.Get("/metrics", adaptor.HTTPHandler(container.Metrics.Handler()))

	// 6. Routes
	mw := container.IAM.AuthMiddleware

	// /connect/token, /connect/userinfo
	container.IAM.TokenHandlers.RegisterRoutes(app, mw)
	logx.Info("✓ Token routes registered")

	// /client/register/:regToken, /client/list, /client, /client/:id
	container.IAM.ClientHandlers.RegisterRoutes(app, mw)
	logx.Info("✓ Client routes registered")

	// /hub/client
	container.Pairing.HubHandler.RegisterRoutes(app, mw)
	logx.Info("✓ Pairing hub registered")

	// 7. 404
	app.Use(notFoundHandler)

	// 8. Serve until a signal arrives
	startServer(app, cfg.Server.Port)
	cancel()
}

// requestContext carries the request id into the user context so services
// log it through logx.WithContext.
func requestContext(c *fiber.Ctx) error {
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		c.SetUserContext(kernel.WithRequestID(c.UserContext(), id))
	}
	return c.Next()
}

// ============================================================================
// Handler Functions
// ============================================================================

func healthCheckHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{
			"status":  "healthy",
			"service": "identity",
			"version": container.Config.Server.Version,
		}

		failures := container.Probe(c.UserContext())
		for name, msg := range failures {
			health[name] = "unhealthy"
			health[name+"_error"] = msg
		}

		status := fiber.StatusOK
		if len(failures) > 0 {
			health["status"] = "degraded"
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(health)
	}
}

func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":      "Route not found",
		"code":       "NOT_FOUND",
		"path":       c.Path(),
		"method":     c.Method(),
		"request_id": c.GetRespHeader(requestIDHeader),
	})
}

// ============================================================================
// Error Handler
// ============================================================================

// globalErrorHandler renders errx errors with their registered message only.
// Causes are logged, never returned.
func globalErrorHandler(c *fiber.Ctx, err error) error {
	requestID := c.GetRespHeader(requestIDHeader)
	entry := logx.WithContext(c.UserContext()).WithFields(logx.Fields{
		"path":       c.Path(),
		"method":     c.Method(),
		"ip":         c.IP(),
		"user_agent": c.Get(fiber.HeaderUserAgent),
	}).WithError(err)

	if e, ok := err.(*fiber.Error); ok {
		entry.Warn("Request rejected")
		return c.Status(e.Code).JSON(fiber.Map{
			"error":      e.Message,
			"code":       "FIBER_ERROR",
			"status":     e.Code,
			"request_id": requestID,
		})
	}

	if e, ok := errx.As(err); ok {
		if e.HTTPStatus >= fiber.StatusInternalServerError {
			entry.Error("Request failed")
		} else {
			entry.Warn("Request rejected")
		}
		resp := e.ToHTTPResponse()
		resp.RequestID = requestID
		return c.Status(e.HTTPStatus).JSON(resp)
	}

	entry.Error("Unhandled request error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":      "Internal Server Error",
		"type":       "INTERNAL",
		"code":       "INTERNAL_ERROR",
		"request_id": requestID,
	})
}

// ============================================================================
// Server lifecycle
// ============================================================================

func startServer(app *fiber.App, port string) {
	go func() {
		logx.Infof("🚀 Server listening on port %s", port)
		logx.Infof("💚 Health Check: http://localhost:%s/health", port)

		if err := app.Listen(":" + port); err != nil {
			logx.Fatalf("Server error: %v", err)
		}
	}()

	gracefulShutdown(app)
}

func gracefulShutdown(app *fiber.App) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logx.Infof("🛑 Received signal: %v", sig)
	logx.Info("Shutting down gracefully...")

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		logx.Errorf("Server forced to shutdown: %v", err)
	}

	logx.Info("✅ Server exited successfully")
}
