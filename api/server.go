/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RealIP:        Client address behind proxies
  3. RequestLogger: One zap line per request
  4. Recoverer:     Panic recovery (500 instead of crash)
  5. Timeout:       Per-request deadline on the context
  6. CORS:          Cross-origin requests for the dashboard
  7. RequireOwner:  X-Owner-ID on every /api route

ROUTE GROUPS:
  /api/students/*     Students, balances, series, notes and homework per student
  /api/notes/*        Edit and delete student notes
  /api/homework/*     Edit and delete homework
  /api/calendar-notes Non-lesson calendar entries
  /api/dashboard/*    Week and month payment summary
  /api/lessons/*      Lessons and scoped edits
  /api/recurrences/*  Weekly series creation and stop
  /api/reports/*      Monthly summary
  /api/settings/*     Owner settings and demo seed
  /healthz            Store ping, no owner required

SECURITY NOTE:
  The owner header is trusted. Put the server behind an authenticating proxy.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	Logger         *zap.Logger
	AllowedOrigins []string
	RequestTimeout time.Duration
	// Pinger backs /healthz. Nil reports healthy without checking.
	Pinger Pinger
}

// Pinger is implemented by the stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", OwnerHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Pinger != nil {
			if err := opts.Pinger.Ping(r.Context()); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireOwner)

		r.Route("/students", func(r chi.Router) {
			r.Get("/", h.ListStudents)
			r.Post("/", h.CreateStudent)
			r.Get("/{id}", h.GetStudent)
			r.Get("/{id}/recurrences", h.ListStudentSeries)
			r.Get("/{id}/notes", h.ListNotes)
			r.Post("/{id}/notes", h.CreateNote)
			r.Get("/{id}/homework", h.ListHomework)
			r.Post("/{id}/homework", h.CreateHomework)
		})

		r.Route("/lessons", func(r chi.Router) {
			r.Get("/", h.ListLessons)
			r.Post("/", h.CreateLesson)
			r.Patch("/{id}", h.UpdateLesson)
			r.Delete("/{id}", h.DeleteLesson)
			r.Post("/{id}/apply-scope", h.ApplyScope)
		})

		r.Route("/recurrences", func(r chi.Router) {
			r.Post("/weekly", h.CreateWeekly)
			r.Post("/stop", h.StopRecurrence)
		})

		r.Route("/notes", func(r chi.Router) {
			r.Patch("/{id}", h.UpdateNote)
			r.Delete("/{id}", h.DeleteNote)
		})

		r.Route("/homework", func(r chi.Router) {
			r.Patch("/{id}", h.UpdateHomework)
			r.Delete("/{id}", h.DeleteHomework)
		})

		r.Route("/calendar-notes", func(r chi.Router) {
			r.Get("/", h.ListCalendarNotes)
			r.Post("/", h.CreateCalendarNote)
			r.Delete("/{id}", h.DeleteCalendarNote)
		})

		r.Get("/reports/monthly", h.MonthlyReport)
		r.Get("/dashboard/summary", h.DashboardSummary)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.GetSettings)
			r.Put("/", h.UpdateSettings)
			r.Post("/demo-seed", h.SeedDemo)
		})
	})

	return r
}
