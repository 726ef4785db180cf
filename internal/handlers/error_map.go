package handlers

import (
	"net/http"

	"coupon-service/internal/apperror"
	"coupon-service/internal/logger"
)

// statusForError сопоставляет категорию ошибки с HTTP-статусом
func statusForError(err error) int {
	switch apperror.KindOf(err) {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error, internalMessage string) {
	status := statusForError(err)
	if status != http.StatusInternalServerError {
		writeErrorResponse(w, status, err.Error())
		return
	}

	if log != nil {
		log.WithError(err).Error(internalMessage)
	}
	writeErrorResponse(w, http.StatusInternalServerError, internalMessage)
}
