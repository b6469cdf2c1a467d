package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/couchcryptid/satellite-change-service/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// statusClientClosedRequest is logged when the client goes away mid-request.
const statusClientClosedRequest = 499

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// statusFor maps a service error to an HTTP status. Errors without a domain
// sentinel come from an upstream provider or model service.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, domain.ErrInvalidLocation), errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDataUnavailable), errors.Is(err, domain.ErrImageNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrModelInference), errors.Is(err, domain.ErrDimensionMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSourceUnavailable):
		return http.StatusConflict
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := s.logger.With("method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed")
	} else {
		logger.Warn("request rejected")
	}
	sharedobs.WriteJSON(w, status, errorResponse{Status: "error", Error: err.Error()})
}
