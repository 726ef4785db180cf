// Package metrics публикует метрики сервиса в формате Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"coupon-service/internal/apperror"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coupon_service"

var (
	// CouponOperations считает операции над купонами по результату
	CouponOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "coupon_operations_total",
		Help:      "Coupon operations by operation and result.",
	}, []string{"operation", "result"})

	// HTTPRequestDuration измеряет длительность HTTP-запросов
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// RateLimitDecisions считает решения rate limiter
	RateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_decisions_total",
		Help:      "Rate limiter decisions by result.",
	}, []string{"result"})
)

// Результаты операций
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Решения rate limiter
const (
	RateLimitAllowed = "allowed"
	RateLimitLimited = "limited"
	RateLimitError   = "error"
)

// ObserveRateLimit учитывает решение rate limiter
func ObserveRateLimit(result string) {
	RateLimitDecisions.WithLabelValues(result).Inc()
}

// ObserveOperation учитывает результат операции. Типизированные ошибки
// попадают в метку result по своей категории.
func ObserveOperation(operation string, err error) {
	CouponOperations.WithLabelValues(operation, resultOf(err)).Inc()
}

func resultOf(err error) string {
	if err == nil {
		return ResultSuccess
	}
	if kind := apperror.KindOf(err); kind != "" {
		return string(kind)
	}
	return ResultError
}

// Middleware измеряет длительность запросов. Маршрут берется из chi,
// чтобы идентификаторы в пути не раздували кардинальность.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

// Handler отдает метрики для Prometheus
func Handler() http.Handler {
	return promhttp.Handler()
}
