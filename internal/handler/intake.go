package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"PostOpTriage/internal/models"
	"PostOpTriage/pkg/errors"
	"PostOpTriage/pkg/middleware"
	"PostOpTriage/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// bindRecord reads a JSON object body. An empty body is an empty record.
func bindRecord(c *gin.Context) (models.IntakeRecord, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return nil, middleware.ReadBodyError(err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return models.IntakeRecord{}, nil
	}
	var record models.IntakeRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, "body must be a JSON object")
	}
	if record == nil {
		// literal null
		return models.IntakeRecord{}, nil
	}
	return record, nil
}

// failBind reports an oversized body as 413 and any other bind error as msg.
func failBind(c *gin.Context, err error, msg string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.AbortWithError(c, middleware.ReadBodyError(err))
		return
	}
	response.Fail(c, msg, nil)
}

func (h *Handlers) handleFormSubmit(c *gin.Context) {
	record, err := bindRecord(c)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}

	res := h.intake.OnSubmission(c.Request.Context(), record)
	response.Success(c, "", gin.H{
		"classification": res.Classification,
		"submission_id":  res.SubmissionID,
		"outcome":        res.Outcome,
	})
}

func (h *Handlers) handleSaveResponse(c *gin.Context) {
	record, err := bindRecord(c)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	sub, err := h.intake.SaveResponse(c.Request.Context(), record)
	if err != nil {
		h.logger.Error("save response failed", zap.Error(err))
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "", gin.H{"submission_id": sub.ID})
}

func (h *Handlers) handleNotifyClinician(c *gin.Context) {
	record, err := bindRecord(c)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	out := h.intake.NotifyClinician(c.Request.Context(), record)
	response.Success(c, "", gin.H{"outcome": out})
}

func (h *Handlers) handleListSubmissions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	subs, err := h.repo.ListSubmissions(c.Request.Context(), limit)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "", gin.H{"submissions": subs})
}

func (h *Handlers) handleGetSubmission(c *gin.Context) {
	sub, err := h.repo.GetSubmission(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	logs, err := h.repo.TriageLogs(c.Request.Context(), sub.ID)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "", gin.H{"submission": sub, "triage_logs": logs})
}
