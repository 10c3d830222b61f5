package apperror

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
)

// Envelope is the response shape shared by every endpoint.
type Envelope struct {
	Status  int    `json:"status"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// RawEnvelope is the client-side view of Envelope with data left undecoded.
type RawEnvelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Respond writes a successful envelope.
func Respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{
		Status:  status,
		Success: status < 400,
		Message: message,
		Data:    data,
	})
}

// Abort writes err as an envelope with data set to null and stops the chain.
func Abort(c *gin.Context, err error) {
	status := KindOf(err).Status()
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, Envelope{
		Status:  status,
		Success: false,
		Message: PublicMessage(err),
		Data:    nil,
	})
}
