package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"alfredoptarigan/cv-profiler/internal/apperrors"
	"alfredoptarigan/cv-profiler/internal/repositories"
	"alfredoptarigan/cv-profiler/internal/services"
)

type AppOptions struct {
	Orchestrator services.BatchOrchestrator
	// RunRepo is nil when the run log is disabled.
	RunRepo     repositories.BatchRunRepository
	MaxFileSize int64
	AccessLog   bool
}

// NewApp builds the fiber application with middleware and all routes.
func NewApp(opts AppOptions) *fiber.App {
	// Room for several files plus the multipart envelope.
	bodyLimit := int(opts.MaxFileSize) * 10
	if bodyLimit <= 0 {
		bodyLimit = fiber.DefaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		AppName:      "CV Profile Generator API",
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 15 * time.Minute,
		BodyLimit:    bodyLimit,
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
			TimeFormat: "2006-01-02 15:04:05",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders: "Content-Disposition, " + HeaderBatchID + ", " + HeaderBatchSucceeded + ", " + HeaderBatchFailed + ", " + HeaderBatchReport,
	}))

	api := app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		status := fiber.Map{
			"status":   "healthy",
			"time":     time.Now(),
			"ai_ready": true,
		}
		if err := opts.Orchestrator.Ready(); err != nil {
			status["ai_ready"] = false
			status["error"] = err.Error()
		}
		return c.JSON(status)
	})

	uploadHandler := NewUploadHandler(opts.Orchestrator, opts.MaxFileSize)
	sessionHandler := NewSessionHandler(opts.Orchestrator, opts.MaxFileSize)

	api.Post("/profiles", uploadHandler.HandleProfiles)

	api.Post("/sessions", sessionHandler.HandleCreate)
	api.Get("/sessions/:id", sessionHandler.HandleGet)
	api.Get("/sessions/:id/profiles/:filename", sessionHandler.HandleGetProfile)
	api.Put("/sessions/:id/profiles/:filename", sessionHandler.HandleEdit)
	api.Post("/sessions/:id/render", sessionHandler.HandleRender)
	api.Delete("/sessions/:id", sessionHandler.HandleDelete)

	endpoints := []string{
		"POST /api/v1/profiles",
		"POST /api/v1/sessions",
		"GET /api/v1/sessions/:id",
		"PUT /api/v1/sessions/:id/profiles/:filename",
		"POST /api/v1/sessions/:id/render",
		"DELETE /api/v1/sessions/:id",
	}

	if opts.RunRepo != nil {
		resultHandler := NewResultHandler(opts.RunRepo)
		api.Get("/runs", resultHandler.HandleListRuns)
		api.Get("/runs/:id", resultHandler.HandleGetRun)
		endpoints = append(endpoints, "GET /api/v1/runs", "GET /api/v1/runs/:id")
	}

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":   "CV Profile Generator API",
			"version":   "1.0.0",
			"endpoints": endpoints,
		})
	})

	return app
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	} else if kind := apperrors.KindOf(err); kind != apperrors.KindUnknown {
		code = StatusForKind(kind)
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
