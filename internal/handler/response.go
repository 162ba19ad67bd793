package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
	"github.com/jwalitptl/dental-verify/pkg/httputil"
	"github.com/jwalitptl/dental-verify/pkg/validator"
)

type Response = httputil.Response

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// OK writes data in the success envelope with status 200.
func OK(c *gin.Context, data interface{}) {
	httputil.RespondWithSuccess(c, http.StatusOK, data)
}

func Created(c *gin.Context, data interface{}) {
	httputil.RespondWithSuccess(c, http.StatusCreated, data)
}

// Fail writes err with the status its application error code maps to.
func Fail(c *gin.Context, err error) {
	httputil.RespondWithError(c, err)
}

// BindJSON binds the body into v. On failure it writes a 400 listing the
// offending fields and returns false.
func BindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		failBinding(c, err)
		return false
	}
	return true
}

// BindQuery is BindJSON for query strings.
func BindQuery(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindQuery(v); err != nil {
		failBinding(c, err)
		return false
	}
	return true
}

func failBinding(c *gin.Context, err error) {
	if fields := validator.Fields(err); len(fields) > 0 {
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "validation failed",
			"errors":  fields,
		})
		return
	}
	httputil.RespondWithError(c, apperrors.NewBadRequest("invalid request body", err))
}
