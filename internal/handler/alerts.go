package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// handleAlertStream streams RED alerts as server-sent events. Reconnecting
// clients send Last-Event-ID to receive what they missed.
func (h *Handlers) handleAlertStream(c *gin.Context) {
	clientID := c.Query("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}
	h.hub.Serve(c, clientID)
}
