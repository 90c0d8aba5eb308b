package handlers

import (
	"strconv"

	"PostOpTriage/internal/appointment"
	"PostOpTriage/pkg/response"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) handleCreateAppointment(c *gin.Context) {
	var req appointment.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err, "body must be a JSON object")
		return
	}
	appt, err := h.appointments.Create(c.Request.Context(), req)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "", gin.H{"appointment": appt})
}

func (h *Handlers) handleListAppointments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	appts, err := h.repo.ListAppointments(c.Request.Context(), limit)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "", gin.H{"appointments": appts})
}
