package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"coupon-service/internal/config"
	"coupon-service/internal/logger"
	"coupon-service/internal/metrics"
	"coupon-service/internal/services"

	"github.com/go-chi/chi/v5/middleware"
)

// RateLimitHandler отдает статус лимита для клиента
type RateLimitHandler struct {
	limiter RateLimitStatusProvider
	log     *logger.Logger
	cfg     *config.RateLimitConfig
}

// NewRateLimitHandler создает новый RateLimitHandler
func NewRateLimitHandler(limiter RateLimitStatusProvider, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimitHandler {
	return &RateLimitHandler{
		limiter: limiter,
		log:     log,
		cfg:     cfg,
	}
}

// Status возвращает текущие значения лимита для клиента
func (h *RateLimitHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if h.limiter == nil || h.cfg == nil || !h.cfg.Enabled || !h.limiter.Enabled() {
		writeJSONResponse(w, http.StatusOK, map[string]interface{}{
			"enabled": false,
		})
		return
	}

	client := services.ExtractClientIP(r)
	used, remaining, resetAt, err := h.limiter.Usage(r.Context(), client)
	if err != nil {
		h.log.WithError(err).WithField("client", client).Error("Failed to fetch rate limit usage")
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to fetch rate limit usage")
		return
	}

	resp := RateLimitStatus{
		Enabled:       true,
		Limit:         h.limiter.Limit(),
		WindowSeconds: h.cfg.WindowSeconds,
		Used:          used,
		Remaining:     remaining,
		Key:           client,
	}
	if resetAt != nil {
		reset := resetAt.UTC().Format(time.RFC3339)
		resp.ResetAt = &reset
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

// RateLimitStatus описывает остаток лимита клиента в текущем окне
type RateLimitStatus struct {
	Enabled       bool    `json:"enabled"`
	Limit         int64   `json:"limit"`
	WindowSeconds int     `json:"window_seconds"`
	Used          int64   `json:"used"`
	Remaining     int64   `json:"remaining"`
	Key           string  `json:"key"`
	ResetAt       *string `json:"reset_at,omitempty"`
}

// MiddlewareLimiter описывает контракт для rate limiter
type MiddlewareLimiter interface {
	Allow(ctx context.Context, key string) (bool, int64, time.Time, error)
	Enabled() bool
	Limit() int64
}

// RateLimitStatusProvider расширяет интерфейс для эндпоинта статуса
type RateLimitStatusProvider interface {
	MiddlewareLimiter
	Usage(ctx context.Context, key string) (int64, int64, *time.Time, error)
}

// RateLimitMiddleware ограничивает частоту запросов по IP клиента.
// Каждое решение учитывается в метрике rate_limit_decisions_total.
func RateLimitMiddleware(limiter MiddlewareLimiter, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || !limiter.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			client := services.ExtractClientIP(r)
			allowed, remaining, resetAt, err := limiter.Allow(r.Context(), client)
			if err != nil {
				metrics.ObserveRateLimit(metrics.RateLimitError)
				log.WithError(err).WithFields(map[string]interface{}{
					"client":     client,
					"request_id": middleware.GetReqID(r.Context()),
				}).Error("Rate limiter failed")
				writeErrorResponse(w, http.StatusInternalServerError, "Rate limiter error")
				return
			}

			setRateLimitHeaders(w.Header(), limiter.Limit(), remaining, resetAt)

			if !allowed {
				metrics.ObserveRateLimit(metrics.RateLimitLimited)
				log.WithFields(map[string]interface{}{
					"client": client,
					"path":   r.URL.Path,
				}).Info("Coupon API rate limit exceeded")
				writeErrorResponse(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			metrics.ObserveRateLimit(metrics.RateLimitAllowed)
			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(h http.Header, limit, remaining int64, resetAt time.Time) {
	h.Set("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	if !resetAt.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	}
}
