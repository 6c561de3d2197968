package transport

import (
	"errors"
	"net/http"

	"parts-depot/internal/middleware"
	"parts-depot/internal/repository"
	"parts-depot/internal/service"

	"go.uber.org/zap"
)

// respondWithServiceError maps service and repository errors onto the HTTP
// error envelope. Unknown errors are logged and reported as "failed to <action>".
func respondWithServiceError(w http.ResponseWriter, logger *zap.Logger, err error, action string) {
	switch {
	case errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrPriceRuleNotFound),
		errors.Is(err, repository.ErrCustomerGradeNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, service.ErrInsufficientStock):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())

	case errors.Is(err, service.ErrInvalidQuote),
		errors.Is(err, service.ErrInvalidPriceRule),
		errors.Is(err, service.ErrInvalidProduct),
		errors.Is(err, service.ErrInvalidStockChange),
		errors.Is(err, service.ErrInvalidCustomerGrade):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, service.ErrCatalogUnavailable):
		logger.Error("Catalog unavailable", zap.String("action", action), zap.Error(err))
		middleware.RespondWithError(w, http.StatusServiceUnavailable, service.ErrCatalogUnavailable.Error())

	default:
		logger.Error("Request failed", zap.String("action", action), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

// decodeRequest decodes and validates the body into v, answering the request
// itself and returning false when that fails.
func decodeRequest(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v interface{}) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return false
	}
	return true
}

// actor names the authenticated caller for audit columns.
func actor(r *http.Request) string {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		return "system"
	}
	return userID
}
