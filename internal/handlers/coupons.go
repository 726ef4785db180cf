package handlers

import (
	"net/http"

	"coupon-service/internal/logger"
	"coupon-service/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CouponHandler обрабатывает HTTP-запросы к купонам
type CouponHandler struct {
	service  CouponService
	producer EventProducer
	log      *logger.Logger
}

// NewCouponHandler создает обработчик купонов. producer может быть nil,
// тогда события не публикуются.
func NewCouponHandler(service CouponService, producer EventProducer, log *logger.Logger) *CouponHandler {
	return &CouponHandler{
		service:  service,
		producer: producer,
		log:      log,
	}
}

// Routes возвращает маршруты купонов для монтирования в /api/v1/coupons
func (h *CouponHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.CreateCoupon)
	r.Get("/", h.ListCoupons)
	r.Route("/{couponID}", func(r chi.Router) {
		r.Get("/", h.GetCoupon)
		r.Put("/", h.UpdateCoupon)
		r.Delete("/", h.DeleteCoupon)
	})
	return r
}

// CreateCoupon создает купон
func (h *CouponHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCouponRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	coupon, err := h.service.CreateCoupon(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create coupon")
		return
	}

	snap := coupon.Snapshot()
	h.publish(snap.ID, models.EventTypeCouponCreated, func(p EventProducer) error { return p.PublishCouponCreated(snap) })

	writeJSONResponse(w, http.StatusCreated, snap)
}

// ListCoupons возвращает активные купоны
func (h *CouponHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.service.ListCoupons(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list coupons")
		return
	}

	out := make([]models.CouponSnapshot, 0, len(coupons))
	for _, c := range coupons {
		out = append(out, c.Snapshot())
	}
	writeJSONResponse(w, http.StatusOK, out)
}

// GetCoupon возвращает активный купон по ID
func (h *CouponHandler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "couponID")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid coupon ID")
		return
	}

	coupon, err := h.service.GetCoupon(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, coupon.Snapshot())
}

// UpdateCoupon обновляет изменяемые поля купона
func (h *CouponHandler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "couponID")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid coupon ID")
		return
	}

	var req models.UpdateCouponRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	coupon, err := h.service.UpdateCoupon(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update coupon")
		return
	}

	snap := coupon.Snapshot()
	h.publish(snap.ID, models.EventTypeCouponUpdated, func(p EventProducer) error { return p.PublishCouponUpdated(snap) })

	writeJSONResponse(w, http.StatusOK, snap)
}

// DeleteCoupon выполняет мягкое удаление купона
func (h *CouponHandler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "couponID")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid coupon ID")
		return
	}

	if err := h.service.DeleteCoupon(r.Context(), id); err != nil {
		writeServiceError(w, h.log, err, "Failed to delete coupon")
		return
	}

	h.publish(id, models.EventTypeCouponDeleted, func(p EventProducer) error { return p.PublishCouponDeleted(id) })

	w.WriteHeader(http.StatusNoContent)
}

// publish отправляет событие. Ошибка Kafka не влияет на ответ клиенту.
func (h *CouponHandler) publish(couponID uuid.UUID, eventType models.EventType, send func(EventProducer) error) {
	if h.producer == nil {
		return
	}
	if err := send(h.producer); err != nil {
		h.log.WithError(err).WithFields(map[string]interface{}{
			"coupon_id":  couponID,
			"event_type": eventType,
		}).Error("Failed to publish coupon event")
	}
}
