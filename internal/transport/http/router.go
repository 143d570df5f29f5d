package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/signcast/notify/internal/application/delivery"
	"github.com/signcast/notify/internal/application/publisher"
	"github.com/signcast/notify/internal/application/scheduler"
	"github.com/signcast/notify/internal/application/screen"
	"github.com/signcast/notify/internal/config"
	"github.com/signcast/notify/internal/domain"
	"github.com/signcast/notify/internal/transport/http/handler"
	appmiddleware "github.com/signcast/notify/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", appmiddleware.ScreenHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 10 requests/second, burst of 20 — the mutation hook fires on every
	// dashboard edit, so it gets more headroom than a login-style limit.
	hookRL := appmiddleware.NewRateLimiter(rate.Limit(10), 20)

	screenSvc := screen.NewService(deps.ScreenRepo, deps.NotificationRepo)
	publisherSvc := publisher.NewService(deps.ScheduleRepo, deps.PlaylistRepo, deps.ScreenRepo, deps.OutboxSvc)
	schedulerSvc := scheduler.NewService(deps.PollingConfigRepo, deps.Alerter, scheduler.Options{
		DefaultInterval:   cfg.DefaultPollInterval,
		EmergencyInterval: cfg.EmergencyPollInterval,
		DefaultHours:      cfg.OverrideDefaultHours,
	})
	deliverySvc := delivery.NewService(deps.OutboxSvc, deps.Hub, cfg.StreamBufferSize)

	deviceAuth := appmiddleware.DeviceAuth(screenSvc)

	healthH := handler.NewHealthHandler(deliverySvc)
	streamH := handler.NewStreamHandler(deliverySvc, cfg.HeartbeatInterval)
	pollingH := handler.NewPollingHandler(schedulerSvc)
	hookH := handler.NewHookHandler(publisherSvc)
	notifH := handler.NewNotificationHandler(deps.OutboxSvc)
	screenH := handler.NewScreenHandler(screenSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health", healthH.Health)

		// ── Device routes (device token + X-Screen-ID) ───────────────────────
		r.Group(func(r chi.Router) {
			r.Use(deviceAuth)

			r.Get("/stream", streamH.Stream)
			r.Get("/polling-config", pollingH.Resolve)
			r.Post("/notifications/ack", notifH.Acknowledge)
		})

		// ── Service/admin routes (JWT) ───────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.With(hookRL.Limit, appmiddleware.RequireRole(domain.RoleAdmin, domain.RoleService)).
				Post("/hooks/entity-changed", hookH.EntityChanged)

			r.Get("/screens", screenH.List)
			r.Get("/screens/{id}", screenH.Get)
			r.Get("/notifications/screen/{screenID}", notifH.ListUndelivered)
			r.Get("/polling-config/{orgID}", pollingH.GetConfig)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Post("/screens", screenH.Register)
				r.Delete("/screens/{id}", screenH.Delete)
				r.Post("/notifications/broadcast", hookH.Broadcast)
				r.Put("/polling-config/{orgID}", pollingH.PutConfig)
				r.Post("/polling-config/{orgID}/override", pollingH.ActivateOverride)
				r.Delete("/polling-config/{orgID}/override", pollingH.DeactivateOverride)
			})
		})
	})

	return r
}
