package handlers

import (
	"net/http"

	"PostOpTriage/internal/dispatch"
	"PostOpTriage/pkg/response"

	"github.com/gin-gonic/gin"
)

type sendEmailRequest struct {
	Email   string `json:"email" binding:"required"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type sendSMSRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Message string `json:"message" binding:"required"`
}

func (h *Handlers) handleSendEmail(c *gin.Context) {
	var req sendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err, "email is required")
		return
	}
	h.writeDelivery(c, h.dispatcher.SendEmail(c.Request.Context(), req.Email, req.Subject, req.HTML))
}

func (h *Handlers) handleSendSMS(c *gin.Context) {
	var req sendSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err, "phone and message are required")
		return
	}
	h.writeDelivery(c, h.dispatcher.SendSMS(c.Request.Context(), req.Phone, req.Message))
}

func (h *Handlers) writeDelivery(c *gin.Context, res dispatch.ChannelResult) {
	switch {
	case res.Succeeded:
		response.Success(c, "", nil)
	case !res.Attempted:
		response.FailWithStatus(c, http.StatusServiceUnavailable, string(res.Channel)+" channel not configured", nil)
	default:
		response.FailWithStatus(c, http.StatusBadGateway, res.Error, nil)
	}
}
