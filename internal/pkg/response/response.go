// Package response defines the JSON envelope written by every handler.
package response

import (
	"net/http"

	infraerrors "github.com/devtrack-app/devtrack/internal/pkg/errors"
	"github.com/gin-gonic/gin"
)

// Response is the uniform JSON body for both success and error replies.
// Code is 0 on success and the HTTP status on failure.
type Response struct {
	Code     int               `json:"code"`
	Message  string            `json:"message"`
	Reason   string            `json:"reason,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Data     any               `json:"data,omitempty"`
}

// Success writes a 200 response with the given payload.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

// Created writes a 201 response with the given payload.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: "success", Data: data})
}

// Error writes an error response with the given status and message.
func Error(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{Code: statusCode, Message: message})
}

// ErrorWithDetails writes an error response including reason and metadata.
func ErrorWithDetails(c *gin.Context, statusCode int, message, reason string, metadata map[string]string) {
	c.JSON(statusCode, Response{
		Code:     statusCode,
		Message:  message,
		Reason:   reason,
		Metadata: metadata,
	})
}

// ErrorFrom maps an application error onto the response envelope. It reports
// whether a response was written; nil errors write nothing.
func ErrorFrom(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	appErr := infraerrors.FromError(err)
	ErrorWithDetails(c, appErr.Code, appErr.Message, appErr.Reason, appErr.Metadata)
	return true
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}
