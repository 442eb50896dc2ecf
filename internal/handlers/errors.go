package handlers

import (
	"net/http"

	"changeTracker/internal/logger"
	"changeTracker/internal/service"

	"go.uber.org/zap"
)

func handleBusinessError(w http.ResponseWriter, err error, defaultMessage string) bool {
	if businessErr, ok := err.(*service.BusinessError); ok {
		statusCode := mapBusinessErrorToHTTP(businessErr.Code)

		logger.Warn("HTTP: Бизнес-ошибка",
			zap.String("error_code", businessErr.Code),
			zap.Int("http_status", statusCode))

		responseWithJSON(w, statusCode,
			toPayload("error", businessErr.Code),
			toPayload("message", businessErr.Message),
			toPayload("details", businessErr.Details),
		)
		return true
	}
	return false
}

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case "NOT_FOUND":
		return http.StatusNotFound
	case "VALIDATION_ERROR", "IMPORT_ERROR":
		return http.StatusBadRequest
	case "INVALID_TRANSITION", "ROLLBACK_REASON_REQUIRED", "STATUS_DATE_REQUIRED",
		"ESTIMATE_REQUIRED", "DELIVERY_DATE_REQUIRED", "INVALID_HOURS":
		return http.StatusUnprocessableEntity
	case "VERSION_CONFLICT":
		return http.StatusConflict
	case "ACCESS_DENIED", "REGISTRATION_PENDING", "REGISTRATION_REJECTED":
		return http.StatusForbidden
	case "INVALID_CREDENTIALS":
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}
