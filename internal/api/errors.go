package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/supplierportal/services/deliverynote/internal/ledger"
	"example.com/supplierportal/services/deliverynote/internal/metrics"
	"example.com/supplierportal/services/deliverynote/internal/repository"
	"example.com/supplierportal/services/deliverynote/internal/service"
)

// ErrorResponse is the JSON error body returned by every endpoint.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Max     int64  `json:"max,omitempty"`
}

// writeError maps domain errors to HTTP status codes and a uniform body.
func writeError(c *gin.Context, err error) {
	collector := metrics.GetCollector()

	var verr *ledger.ValidationError
	if errors.As(err, &verr) {
		collector.RecordError(metrics.ErrorTypeValidation)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: verr.Error(),
			Field:   verr.Field,
			Reason:  string(verr.Reason),
			Max:     verr.Max,
		})
		return
	}

	var conflict *service.VersionConflictError
	if errors.As(err, &conflict) {
		collector.RecordError(metrics.ErrorTypeConflict)
		c.JSON(http.StatusConflict, ErrorResponse{
			Code:    "CONFLICT",
			Message: conflict.Error(),
		})
		return
	}

	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "NOT_FOUND",
			Message: "delivery note not found",
		})
	case errors.Is(err, service.ErrNoteClosed):
		c.JSON(http.StatusConflict, ErrorResponse{
			Code:    "NOTE_CLOSED",
			Message: err.Error(),
		})
	case errors.Is(err, service.ErrDriverInfoLocked):
		c.JSON(http.StatusConflict, ErrorResponse{
			Code:    "DRIVER_INFO_LOCKED",
			Message: err.Error(),
		})
	default:
		collector.RecordError(metrics.ErrorTypeInternal)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "internal server error",
		})
	}
}
