package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/duetapp/duet/internal/couple"
	"github.com/duetapp/duet/internal/cycle"
	"github.com/duetapp/duet/internal/entity"
	"github.com/duetapp/duet/internal/localcache"
	"github.com/duetapp/duet/internal/metrics"
	"github.com/duetapp/duet/internal/notify"
	"github.com/duetapp/duet/internal/points"
	"github.com/duetapp/duet/internal/ratelimit"
	"github.com/duetapp/duet/internal/session"
	"github.com/duetapp/duet/internal/user"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Users          *user.Store
	Couples        *couple.Store
	Sessions       *session.Service
	Engine         *entity.Engine
	Notifications  *notify.Store
	Hub            *notify.Hub
	Points         *points.Store
	Cycle          *cycle.Store
	Effects        entity.Dispatcher
	Cache          *localcache.Cache
	LoginLimiter   *ratelimit.Limiter
	Metrics        *metrics.Metrics
	AllowedOrigins []string
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	r.Use(corsMiddleware(deps.AllowedOrigins))
	r.Use(slogRequestLogger)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// Handlers.
	auth := newAuthHandler(deps.Users, deps.Couples, deps.Sessions, deps.Cache, deps.Metrics)
	couples := newCoupleHandler(deps.Couples, deps.Sessions)
	events := newEventsHandler(deps.Engine)
	tasks := newTasksHandler(deps.Engine)
	shopping := newShoppingHandler(deps.Engine)
	habits := newHabitsHandler(deps.Engine)
	requests := newRequestsHandler(deps.Engine)
	notifications := newNotificationsHandler(deps.Notifications, deps.Hub, deps.Metrics)
	gamification := newPointsHandler(deps.Points)
	cycles := newCycleHandler(deps.Cycle, deps.Effects)

	// Health check.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.Handler())
	}

	r.Route("/api/v1", func(ar chi.Router) {
		ar.Use(session.Middleware(deps.Sessions))

		// Credential endpoints share a per-IP limiter.
		ar.Group(func(g chi.Router) {
			if deps.LoginLimiter != nil {
				var onReject []func()
				if deps.Metrics != nil {
					onReject = append(onReject, func() { deps.Metrics.IncRateLimitRejection("credentials") })
				}
				g.Use(ratelimit.Middleware(deps.LoginLimiter, onReject...))
			}
			g.Post("/auth/register", auth.Register)
			g.Post("/auth/login", auth.Login)
			g.Post("/couple/redeem", couples.Redeem)
		})

		ar.Post("/auth/logout", auth.Logout)
		ar.Get("/auth/me", auth.Me)
		ar.Put("/auth/me", auth.UpdateMe)

		ar.Get("/couple", couples.Get)
		ar.Put("/couple", couples.Update)

		ar.Route("/events", func(er chi.Router) {
			er.Get("/", events.List)
			er.Post("/", events.Create)
			er.Put("/{id}", events.Update)
			er.Delete("/{id}", events.Delete)
		})

		ar.Route("/tasks", func(tr chi.Router) {
			tr.Get("/", tasks.List)
			tr.Post("/", tasks.Create)
			tr.Put("/{id}", tasks.Update)
			tr.Delete("/{id}", tasks.Delete)
			tr.Post("/{id}/toggle", tasks.Toggle)
		})

		ar.Route("/shopping", func(sr chi.Router) {
			sr.Get("/", shopping.List)
			sr.Post("/", shopping.Create)
			sr.Put("/{id}", shopping.Update)
			sr.Delete("/{id}", shopping.Delete)
			sr.Post("/{id}/toggle", shopping.Toggle)
		})

		ar.Route("/habits", func(hr chi.Router) {
			hr.Get("/", habits.List)
			hr.Post("/", habits.Create)
			hr.Put("/{id}", habits.Update)
			hr.Delete("/{id}", habits.Delete)
			hr.Post("/{id}/progress", habits.Progress)
		})

		ar.Route("/requests", func(rr chi.Router) {
			rr.Get("/", requests.List)
			rr.Post("/", requests.Create)
			rr.Put("/{id}", requests.Update)
			rr.Delete("/{id}", requests.Delete)
			rr.Post("/{id}/approve", requests.Approve)
			rr.Post("/{id}/reject", requests.Reject)
		})

		ar.Route("/notifications", func(nr chi.Router) {
			nr.Get("/", notifications.List)
			nr.Get("/stream", notifications.Stream)
			nr.Post("/read-all", notifications.MarkAllRead)
			nr.Post("/{id}/read", notifications.MarkRead)
			nr.Delete("/{id}", notifications.Delete)
		})

		ar.Get("/points", gamification.Get)
		ar.Get("/achievements", gamification.Achievements)

		ar.Get("/cycle", cycles.Get)
		ar.Put("/cycle", cycles.Update)
		ar.Delete("/cycle", cycles.Delete)
	})

	return r
}

// slogRequestLogger is a simple structured logging middleware using slog.
func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", ww.BytesWritten(),
		)
	})
}

// metricsMiddleware records request counts, durations and sizes against the
// matched route pattern.
func metricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" {
				pattern = "unmatched"
			}
			m.ObserveHTTPRequest(r.Method, pattern, ww.Status(), time.Since(start).Seconds())
			if r.ContentLength > 0 {
				m.HTTPRequestSize.WithLabelValues(r.Method, pattern).Observe(float64(r.ContentLength))
			}
			m.HTTPResponseSize.WithLabelValues(r.Method, pattern).Observe(float64(ww.BytesWritten()))
		})
	}
}
