// internal/api/response.go
package api

import (
	"net/http"

	"loyalty-notify/internal/common/errors"

	"github.com/gin-gonic/gin"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

func respondSuccess(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// respondError writes err with the status of its code. Error metadata such as
// validation fields or the quota snapshot is returned as data.
func respondError(c *gin.Context, err error) {
	stdErr := errors.Normalize(err)
	status := errors.HTTPStatus(stdErr.Code)

	env := Envelope{
		Success: false,
		Message: stdErr.Message,
		Error:   stdErr.Details,
		Code:    string(stdErr.Code),
	}
	if status == http.StatusInternalServerError && stdErr.Code == errors.ErrCodeInternal {
		env.Error = ""
	}
	if len(stdErr.Metadata) > 0 {
		env.Data = stdErr.Metadata
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, env)
}

func respondBadBody(c *gin.Context, err error) {
	respondError(c, errors.NewValidationError(map[string]string{"body": "invalid JSON: " + err.Error()}))
}
