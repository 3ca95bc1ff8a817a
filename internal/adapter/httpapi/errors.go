package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cropsignal/yield-feature-service/internal/adapter/client"
	"github.com/cropsignal/yield-feature-service/internal/features"
	"github.com/cropsignal/yield-feature-service/internal/store"
)

// Kinder lets service-specific error types carry their own kind and status
// without this package knowing about them.
type Kinder interface {
	error
	Kind() string
	HTTPStatus() int
}

// Classify maps an error to its HTTP status and wire kind. The kind string
// travels in the response's status field so downstream hops and the
// presentation layer can distinguish failure modes without parsing messages.
func Classify(err error) (status int, kind string) {
	var (
		unknownParam *features.UnknownParameterError
		outOfRange   *features.OutOfRangeError
		shape        *features.ShapeMismatchError
		emptySeries  *features.EmptySeriesError
		invalidCoef  *features.InvalidCoefficientError
		coefMismatch *features.CoefficientMismatchError
		notFound     *store.NotFoundError
		depTimeout   *client.DependencyTimeoutError
		depDown      *client.DependencyUnavailableError
		upstream     *client.UpstreamError
		kinder       Kinder
	)

	switch {
	case errors.As(err, &kinder):
		return kinder.HTTPStatus(), kinder.Kind()
	case errors.As(err, &unknownParam):
		return http.StatusBadRequest, "unknown_parameter"
	case errors.As(err, &notFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &outOfRange):
		return http.StatusInternalServerError, "out_of_range"
	case errors.As(err, &shape):
		return http.StatusInternalServerError, "shape_mismatch"
	case errors.As(err, &emptySeries):
		return http.StatusInternalServerError, "empty_series"
	case errors.As(err, &invalidCoef):
		return http.StatusInternalServerError, "invalid_coefficient"
	case errors.As(err, &coefMismatch):
		return http.StatusInternalServerError, "coefficient_mismatch"
	case errors.As(err, &depTimeout):
		return http.StatusBadGateway, "dependency_timeout"
	case errors.As(err, &depDown):
		return http.StatusBadGateway, "dependency_unavailable"
	case errors.As(err, &upstream):
		// Preserve the kind the upstream hop reported.
		return upstream.StatusCode, upstream.Kind
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// WriteError renders err as the chain's JSON error envelope and logs
// server-side kinds at error level, client-side at warn.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, kind := Classify(err)

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "kind", kind, "error", err)
	} else {
		logger.Warn("request rejected", "kind", kind, "error", err)
	}

	WriteJSON(w, status, map[string]string{
		"status":  kind,
		"message": err.Error(),
	})
}
