package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dmorenog/user-management-api/internal/api/http/handlers"
	"github.com/dmorenog/user-management-api/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Auth   *handlers.AuthHandler
	Users  *handlers.UsersHandler
	Gate   *auth.Gate
	Policy *auth.Policy
}

// RegisterRoutes wires HTTP routes. The gate runs on every request and
// only ever attaches an identity; the policy decides who gets through.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(cfg.Gate.Handle)
	app.Use(cfg.Policy.Enforce())

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)

	api := app.Group("/api")
	api.Get("/users/me", cfg.Users.Me)
	api.Get("/users", cfg.Users.List)
	api.Get("/users/:id", cfg.Users.GetByID)
	api.Put("/users/:id", cfg.Users.Update)
	api.Delete("/users/:id", cfg.Users.Delete)
}
