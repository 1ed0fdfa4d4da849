package app

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"docx2pdf/internal/handlers"
	"docx2pdf/internal/store"
	u "docx2pdf/internal/utils"
)

// Deps are the collaborators the HTTP app is assembled from.
type Deps struct {
	Service *handlers.ConvertService
	Tokens  *store.Tokens
	// LimitStorage backs the rate limiters. Nil selects Redis with an
	// in-memory fallback.
	LimitStorage fiber.Storage
}

// SetupApp creates and configures a new Fiber app instance
func SetupApp(cfg u.Config, deps Deps) *fiber.App {
	bodyLimit := cfg.Server.BodyLimitMB * 1024 * 1024
	if bodyLimit <= 0 {
		bodyLimit = fiber.DefaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			}

			u.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

			return c.Status(code).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    code,
					"message": msg,
				},
			})
		},
	})

	tokens := deps.Tokens
	if tokens == nil {
		tokens = store.NewTokens()
		tokens.Replace(nil)
	}

	RegisterMiddleware(app, cfg, tokens, deps.LimitStorage)
	RegisterRoutes(app, deps.Service)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// RegisterRoutes mounts all route handlers to the app
func RegisterRoutes(app *fiber.App, svc *handlers.ConvertService) {
	app.Get("/", handlers.HandleForm)

	v1 := app.Group("/v1")
	v1.Post("/convert", svc.HandleConvert)
	v1.Get("/converter/status", svc.HandleStatus)
	v1.Get("/history", svc.HandleHistory)
	v1.Get("/monitor", monitor.New())
}
