package routes

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/projectgrid/internal/auth"
	"github.com/BradenHooton/projectgrid/internal/handlers"
	"github.com/BradenHooton/projectgrid/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth       *handlers.AuthHandler
	Users      *handlers.UserHandler
	Workspaces *handlers.WorkspaceHandler
	Projects   *handlers.ProjectHandler
	Tasks      *handlers.TaskHandler
	Health     *handlers.HealthHandler
}

// Options configures the middleware applied to route groups
type Options struct {
	AuthRateLimit  func(http.Handler) http.Handler
	BotProtection  bool
	TokenVerifier  auth.TokenVerifier
	UserRepository auth.UserRepository
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, opts Options) {
	router.Get("/health", h.Health.Health)
	if opts.MetricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	// Public account routes
	router.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if opts.AuthRateLimit != nil {
				r.Use(opts.AuthRateLimit)
			}
			r.Use(middleware.BotGuard(opts.BotProtection, opts.Logger))

			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
			r.Post("/verify-email", h.Auth.VerifyEmail)
			r.Post("/reset-password-request", h.Auth.RequestPasswordReset)
			r.Post("/reset-password", h.Auth.ConfirmPasswordReset)
		})

		r.With(auth.AuthMiddleware(opts.TokenVerifier, opts.UserRepository, opts.Logger)).Get("/me", h.Auth.Me)
	})

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(opts.TokenVerifier, opts.UserRepository, opts.Logger))

		r.Get("/users/me", h.Users.GetMe)
		r.Put("/users/me", h.Users.UpdateMe)

		r.Route("/workspaces", func(r chi.Router) {
			r.Post("/", h.Workspaces.Create)
			r.Get("/", h.Workspaces.List)
			r.Get("/{id}", h.Workspaces.Get)
			r.Put("/{id}", h.Workspaces.Update)
			r.Delete("/{id}", h.Workspaces.Delete)
			r.Post("/{id}/members", h.Workspaces.AddMember)
			r.Get("/{id}/members", h.Workspaces.ListMembers)
			r.Post("/{id}/projects", h.Projects.Create)
			r.Get("/{id}/projects", h.Projects.List)
		})

		r.Route("/projects/{id}", func(r chi.Router) {
			r.Get("/", h.Projects.Get)
			r.Put("/", h.Projects.Update)
			r.Post("/tasks", h.Tasks.Create)
			r.Get("/tasks", h.Tasks.List)
		})

		r.Route("/tasks/{id}", func(r chi.Router) {
			r.Get("/", h.Tasks.Get)
			r.Put("/", h.Tasks.Update)
			r.Patch("/status", h.Tasks.UpdateStatus)
			r.Post("/archive", h.Tasks.Archive)
			r.Post("/subtasks", h.Tasks.AddSubtask)
			r.Patch("/subtasks/{subtaskID}", h.Tasks.UpdateSubtask)
			r.Post("/comments", h.Tasks.AddComment)
			r.Get("/comments", h.Tasks.ListComments)
			r.Get("/activity", h.Tasks.ListActivity)
		})
	})
}
