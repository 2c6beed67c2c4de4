// Package handlers implements the HTTP request handlers for the engine's
// API surface.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/sentra-sec/sentra/pkg/errors"
)

// SendError writes the error response envelope with the error's HTTP status.
func SendError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(errors.HTTPStatusOf(err), errors.ToErrorResponse(err))
}

// SendSuccess writes a successful JSON response.
func SendSuccess(c *gin.Context, status int, body interface{}) {
	c.JSON(status, body)
}
