package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vinkalabs/membot/internal/common"
	"github.com/vinkalabs/membot/internal/jobs"
)

func (h *Handler) Ping(c *gin.Context) {
	common.Ok(c, gin.H{"status": "alive"})
}

type sendMessageReq struct {
	UserID  string `json:"user_id" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// SendMessage runs one turn synchronously and returns the reply.
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	reply, err := h.Assembler.Handle(c.Request.Context(), req.UserID, req.Message)
	if err != nil {
		h.Logger.Error("handle failed", zap.String("user_id", req.UserID), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to process message")
		return
	}

	common.Ok(c, gin.H{
		"user_id": req.UserID,
		"reply":   reply,
	})
}

type sendMessageAsyncReq struct {
	UserID         string `json:"user_id" binding:"required"`
	Message        string `json:"message" binding:"required"`
	IdempotencyKey string `json:"idempotency_key"`
}

// SendMessageAsync persists a turn job and publishes it for a worker.
// Re-submitting with the same idempotency key returns the existing job.
func (h *Handler) SendMessageAsync(c *gin.Context) {
	if h.Publisher == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "queue not configured")
		return
	}

	var req sendMessageAsyncReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	job := &jobs.Job{
		ID:     jobs.NewJobID(),
		UserID: req.UserID,
		Text:   req.Message,
		Status: jobs.StatusQueued,
	}
	if req.IdempotencyKey != "" {
		job.IdempotencyKey = &req.IdempotencyKey
	}

	job, created, err := h.Jobs.CreateOrGetExisting(c.Request.Context(), job)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to create job")
		return
	}

	if created {
		if err := h.Publisher.PublishJob(c.Request.Context(), job.ID); err != nil {
			h.Logger.Error("publish job failed", zap.String("job_id", job.ID), zap.Error(err))
			common.Fail(c, http.StatusInternalServerError, 50003, "failed to enqueue job")
			return
		}
	}

	common.Ok(c, gin.H{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.Jobs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40004, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to load job")
		return
	}
	common.Ok(c, job)
}
