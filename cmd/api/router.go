package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-jasa/internal/advertising"
	"github.com/noah-isme/backend-jasa/internal/analytics"
	"github.com/noah-isme/backend-jasa/internal/audit"
	"github.com/noah-isme/backend-jasa/internal/auth"
	"github.com/noah-isme/backend-jasa/internal/common"
	"github.com/noah-isme/backend-jasa/internal/credit"
	"github.com/noah-isme/backend-jasa/internal/health"
	"github.com/noah-isme/backend-jasa/internal/notify"
	"github.com/noah-isme/backend-jasa/internal/obs"
	"github.com/noah-isme/backend-jasa/internal/ratelimit"
	"github.com/noah-isme/backend-jasa/internal/security"
)

// routerConfig carries everything the HTTP surface needs.
type routerConfig struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
	BodyLimit      int64
	Tracing        bool
	Metrics        *obs.HTTPMetrics
	Security       security.Headers

	Ads           *advertising.Service
	Credits       credit.API
	Analytics     *analytics.Service
	Notifications notify.Store
	AuditStore    audit.Store
	Audit         audit.HTTPRecorder
	Auth          auth.Middleware
	Health        health.Handler
	Idem          common.Idem

	ClickLimiter ratelimit.Limiter
	ClickMax     int
	ClickWindow  time.Duration
}

func newRouter(rc routerConfig) http.Handler {
	adsHandler := advertising.Handler{Svc: rc.Ads}
	adsAdmin := advertising.AdminHandler{Svc: rc.Ads}
	creditHandler := credit.Handler{Svc: rc.Credits}
	analyticsHandler := &analytics.Handler{Svc: rc.Analytics}
	notifyHandler := notify.Handler{Store: rc.Notifications}
	auditHandler := audit.Handler{Store: rc.AuditStore}
	clickLimit := ratelimit.Handler{
		Limiter: rc.ClickLimiter,
		Config: ratelimit.Config{
			Scope:  "ad-click",
			Key:    ratelimit.ByClientIP("ad-click"),
			Window: rc.ClickWindow,
			Max:    rc.ClickMax,
		},
		OnError: func(err error) { rc.Logger.Warn().Err(err).Msg("click rate limiter unavailable") },
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if rc.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if rc.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: rc.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: rc.Logger}.Middleware)
	r.Use(rc.Security.Middleware)
	r.Use(security.BodyLimit{Max: rc.BodyLimit}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rc.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if rc.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Get("/health/live", rc.Health.Live)
	r.Get("/health/ready", rc.Health.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/advertising/quotes", adsHandler.Quotes)
		v.Get("/advertising/quote", adsHandler.Quote)
		v.Get("/categories/{categoryId}/services", adsHandler.CategoryServices)
		v.With(clickLimit.Middleware).Post("/advertising/impressions/{impressionId}/click", adsHandler.Click)

		v.Group(func(authR chi.Router) {
			authR.Use(rc.Auth.RequireAuth)
			authR.Get("/me", rc.Auth.Me)
			authR.Get("/notifications", notifyHandler.List)
			authR.Post("/notifications/{id}/read", notifyHandler.MarkRead)

			authR.Route("/seller/advertising", func(s chi.Router) {
				s.Get("/subscriptions", adsHandler.ListSubscriptions)
				s.With(rc.Idem.Middleware).Post("/subscriptions", adsHandler.Start)
				s.Post("/subscriptions/{id}/cancel", adsHandler.Cancel)
				s.Get("/payments/{id}", adsHandler.GetPayment)
				s.Post("/payments/{id}/deposit", adsHandler.SubmitDeposit)
				s.Get("/credits", creditHandler.Mine)
			})
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(rc.Auth.RequireAuth)
			admin.Use(rc.Auth.RequireAdmin)
			admin.Get("/advertising/payments", adsAdmin.ListPayments)
			admin.With(rc.Audit.Middleware(audit.HTTPConfig{
				Action:          "advertising.payment.confirm",
				ResourceType:    "advertising_payment",
				ResourceIDParam: "id",
			})).Post("/advertising/payments/{id}/confirm", adsAdmin.Confirm)
			admin.With(rc.Audit.Middleware(audit.HTTPConfig{
				Action:       "advertising.credit.launch_promo",
				ResourceType: "advertising_credit",
			})).Post("/advertising/credits/launch-promo", creditHandler.GrantLaunchPromotion)
			admin.Get("/advertising/statistics", analyticsHandler.Statistics)
			admin.Get("/advertising/statistics/daily", analyticsHandler.Daily)
			admin.Get("/audit-logs", auditHandler.List)
		})
	})
	return r
}
