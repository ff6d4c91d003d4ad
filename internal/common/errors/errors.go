// Package errors holds the JSON error body every API route answers with.
package errors

import (
	"net/http"

	"github.com/emicklei/go-restful/v3"
)

// Error is the {code, message} body of a failed request
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// New creates an error body for status
func New(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Write sends status with an error body carrying message
func Write(resp *restful.Response, status int, message string) {
	resp.WriteHeaderAndJson(status, New(status, message), restful.MIME_JSON)
}

// Messages shared by several routes
var (
	ErrInternalError = New(http.StatusInternalServerError, "Internal server error")
	ErrNotFound      = New(http.StatusNotFound, "File not found")
)
