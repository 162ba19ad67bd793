package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/dental-verify/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// StatusCode maps an application error onto an HTTP status.
func StatusCode(err error) int {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch errors.CodeOf(err) {
	case errors.ErrNotFound:
		return http.StatusNotFound
	case errors.ErrBadRequest:
		return http.StatusBadRequest
	case errors.ErrUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrForbidden:
		return http.StatusForbidden
	case errors.ErrConflict:
		return http.StatusConflict
	case errors.ErrUnavailable:
		return http.StatusServiceUnavailable
	case errors.ErrConfiguration:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// FromStatus is the client side inverse of StatusCode.
func FromStatus(status int, message string) error {
	switch {
	case status == http.StatusNotFound:
		return &errors.AppError{Code: errors.ErrNotFound, Message: message}
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return errors.NewBadRequest(message, nil)
	case status == http.StatusUnauthorized:
		return &errors.AppError{Code: errors.ErrUnauthorized, Message: message}
	case status == http.StatusForbidden:
		return &errors.AppError{Code: errors.ErrForbidden, Message: message}
	case status == http.StatusConflict:
		return errors.NewConflict(message, nil)
	case status == http.StatusServiceUnavailable, status == http.StatusBadGateway,
		status == http.StatusGatewayTimeout, status == http.StatusTooManyRequests:
		return errors.NewUnavailable(message, nil)
	default:
		return &errors.AppError{Code: errors.ErrInternal, Message: message}
	}
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Status: "success",
		Data:   data,
	})
}

// RespondWithError sends an error response. Internal errors are not echoed
// to the client.
func RespondWithError(c *gin.Context, err error) {
	status := StatusCode(err)
	message := err.Error()
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
	}
	if status == http.StatusInternalServerError && errors.CodeOf(err) != errors.ErrConfiguration {
		message = "internal server error"
	}
	if status == http.StatusRequestEntityTooLarge {
		message = "request body too large"
	}
	_ = c.Error(err)
	c.JSON(status, Response{
		Status:  "error",
		Message: message,
	})
}
