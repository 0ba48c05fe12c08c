package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"showroom/backend/internal/domain"
)

const genericFailure = "Something went wrong. Please try again."

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

// statusFor maps domain errors to an HTTP status, a stable code and the
// message safe to show to the caller.
func statusFor(err error) (int, string, string) {
	var (
		vErr    *domain.ValidationError
		rErr    *domain.InvalidRangeError
		pErr    *domain.PastDateError
		oErr    *domain.OutsideOpeningHoursError
		sErr    *domain.SlotUnavailableError
		nfErr   *domain.NotFoundError
		authErr *domain.AuthorizationError
		suErr   *domain.StorageUnavailableError
		exErr   *domain.ExportError
	)
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, "validation_error", vErr.Error()
	case errors.As(err, &rErr):
		return http.StatusBadRequest, "invalid_range", rErr.Error()
	case errors.As(err, &pErr):
		return http.StatusUnprocessableEntity, "past_date", pErr.Error()
	case errors.As(err, &oErr):
		return http.StatusUnprocessableEntity, "outside_opening_hours", oErr.Error()
	case errors.As(err, &sErr):
		return http.StatusConflict, "slot_unavailable", domain.SlotUnavailableMessage
	case errors.As(err, &nfErr):
		return http.StatusNotFound, "not_found", nfErr.Error()
	case errors.As(err, &authErr):
		if authErr.Forbidden {
			return http.StatusForbidden, "forbidden", "forbidden"
		}
		return http.StatusUnauthorized, "unauthorized", "unauthorized"
	case errors.As(err, &suErr):
		return http.StatusServiceUnavailable, "storage_unavailable", genericFailure
	case errors.As(err, &exErr):
		return http.StatusInternalServerError, "export_failed", genericFailure
	default:
		return http.StatusInternalServerError, "internal", genericFailure
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	status, code, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			slog.Any("err", err),
			slog.String("route", c.FullPath()),
			slog.String("request_id", requestIDFrom(c)),
		)
	}
	c.AbortWithStatusJSON(status, errorBody{Error: msg, Code: code, RequestID: requestIDFrom(c)})
}
