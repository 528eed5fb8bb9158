package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coach/internal/domain"
)

// ErrorBody is the tagged error surfaced to callers. Errors are never bare
// strings: the kind tells the UI whether to re-edit, retry or give up.
type ErrorBody struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// OKResponse is the success envelope.
type OKResponse struct {
	OK any `json:"ok"`
}

// respondError sends a tagged error with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	c.JSON(mapKindToHTTPStatus(kind), ErrorResponse{Error: ErrorBody{
		Kind:    kind,
		Message: err.Error(),
	}})
}

// respondOK sends a success envelope with the given status code.
func respondOK(c *gin.Context, code int, data any) {
	c.JSON(code, OKResponse{OK: data})
}

// mapKindToHTTPStatus maps error kinds to HTTP status codes.
func mapKindToHTTPStatus(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindPrecondition:
		return http.StatusPreconditionFailed
	case domain.KindRetryable:
		return http.StatusServiceUnavailable
	case domain.KindFailed:
		return http.StatusBadGateway
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
