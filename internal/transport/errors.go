package transport

import (
	"errors"
	"net/http"
	"sort"

	"storefront/internal/domain"
	"storefront/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// respondError maps a service error onto the error envelope. Errors outside
// the domain taxonomy are logged and reported as a generic 500.
func respondError(w http.ResponseWriter, logger *zap.Logger, err error, msg string) {
	var fieldErrs domain.FieldErrors
	if errors.As(err, &fieldErrs) {
		middleware.RespondWithValidationErrors(w, fieldValidationErrors(fieldErrs))
		return
	}

	status, kind := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err))
		middleware.RespondWithError(w, status, kind, "internal server error")
		return
	}

	logger.Debug(msg, zap.Error(err))
	middleware.RespondWithError(w, status, kind, err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, middleware.KindUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, middleware.KindForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, middleware.KindNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusBadRequest, middleware.KindInvalidTransition
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, middleware.KindInvalidInput
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict, middleware.KindInsufficientStock
	default:
		return http.StatusInternalServerError, middleware.KindInternal
	}
}

func fieldValidationErrors(fieldErrs domain.FieldErrors) []middleware.ValidationError {
	fields := make([]string, 0, len(fieldErrs))
	for field := range fieldErrs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	out := make([]middleware.ValidationError, 0, len(fields))
	for _, field := range fields {
		out = append(out, middleware.ValidationError{Field: field, Message: fieldErrs[field]})
	}
	return out
}

// decodeBody decodes and validates a JSON body, writing the 400 response itself
// when the body is unusable.
func decodeBody(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v interface{}) bool {
	err := middleware.DecodeAndValidate(r, v)
	if err == nil {
		return true
	}

	logger.Debug("Request body rejected", zap.Error(err))
	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return false
	}
	middleware.RespondWithError(w, http.StatusBadRequest, middleware.KindInvalidInput, "invalid request body")
	return false
}

// pathID parses the {id} URL parameter, writing a 400 when it is not a UUID
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, middleware.KindInvalidInput, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// requestIdentity returns the caller resolved by the auth middleware
func requestIdentity(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (domain.Identity, bool) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		logger.Error("Identity not found in context")
		middleware.RespondWithError(w, http.StatusUnauthorized, middleware.KindUnauthorized, "unauthorized")
		return domain.Identity{}, false
	}
	return identity, true
}
