package handlers

import (
	"net/http"

	"coupon-service/internal/logger"
	"coupon-service/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterDeps содержит зависимости HTTP-слоя
type RouterDeps struct {
	Coupons   *CouponHandler
	Health    *HealthHandler
	RateLimit *RateLimitHandler
	Limiter   MiddlewareLimiter
	Log       *logger.Logger
}

// NewRouter собирает маршруты сервиса
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(RequestLogger(deps.Log))
	r.Use(CORS)

	if deps.Health != nil {
		r.Get("/health", deps.Health.Health)
		r.Get("/health/readiness", deps.Health.Readiness)
		r.Get("/health/liveness", deps.Health.Liveness)
	}
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimitMiddleware(deps.Limiter, deps.Log))
		if deps.RateLimit != nil {
			r.Get("/rate-limit/status", deps.RateLimit.Status)
		}
		if deps.Coupons != nil {
			r.Mount("/coupons", deps.Coupons.Routes())
		}
	})

	return r
}
