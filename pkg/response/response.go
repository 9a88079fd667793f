// Package response writes JSON bodies in the API envelope.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docaccess-api/internal/models"
	appErrors "github.com/noah-isme/docaccess-api/pkg/errors"
)

// Envelope is the body of every enveloped response.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// Responses carry requester PII and signed links; nothing may be cached.
func noStore(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Cache-Control", "no-store")
	h.Set("Pragma", "no-cache")
}

// JSON wraps data in the envelope. meta is optional.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	body := Envelope{Data: data, Pagination: pagination}
	for _, m := range meta {
		if m != nil {
			body.Meta = m
		}
	}
	noStore(c)
	c.JSON(status, body)
}

// Plain writes body without the envelope, for endpoints with a fixed public contract.
func Plain(c *gin.Context, status int, body interface{}) {
	noStore(c)
	c.JSON(status, body)
}

// Error renders err as an enveloped error. Server side failures are attached to the gin
// context so the access log carries the cause.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	noStore(c)
	c.AbortWithStatusJSON(appErr.Status, Envelope{Error: appErr})
}
