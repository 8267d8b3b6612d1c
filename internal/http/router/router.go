package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/health"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/http/handler"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/http/middleware"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/http/response"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/security"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/service"
)

const maxBodyBytes = 1 << 20

type Dependencies struct {
	AuthHandler    *handler.AuthHandler
	UserHandler    *handler.UserHandler
	AdminHandler   *handler.AdminHandler
	Sessions       *security.SessionManager
	Users          service.UserServiceInterface
	RateLimiter    *middleware.RateLimiter
	CORSOrigins    []string
	Readiness      *health.ProbeRunner
	EnableOTelHTTP bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api", func(r chi.Router) {
		if dep.RateLimiter != nil {
			r.Use(dep.RateLimiter.Middleware())
		}
		session := middleware.SessionAuth(dep.Sessions)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", dep.AuthHandler.Register)
			r.Post("/login", dep.AuthHandler.Login)
			r.Get("/verify", dep.AuthHandler.Verify)
			r.Post("/logout", dep.AuthHandler.Logout)
			r.With(session).Get("/session", dep.UserHandler.Me)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(session)
			r.Use(middleware.RequireAdmin(dep.Users))
			r.Get("/users", dep.AdminHandler.ListUsers)
			r.Get("/audit-logs", dep.AdminHandler.ListAuditLogs)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
