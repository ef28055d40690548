package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vinkalabs/membot/internal/auth"
	"github.com/vinkalabs/membot/internal/common"
	"github.com/vinkalabs/membot/internal/tenant"
)

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if h.Cfg.AdminPasswordHash == "" ||
		req.Username != h.Cfg.AdminUser ||
		!auth.CheckPassword(h.Cfg.AdminPasswordHash, req.Password) {
		common.Fail(c, http.StatusUnauthorized, 40103, "invalid credentials")
		return
	}

	token, err := auth.MintToken(h.Cfg.JWTSecret, req.Username, 12*time.Hour)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50005, "failed to mint token")
		return
	}
	common.Ok(c, gin.H{"token": token})
}

type upsertTenantReq struct {
	ClientCode   string `json:"client_code" binding:"required"`
	Name         string `json:"name" binding:"required"`
	SystemPrompt string `json:"system_prompt" binding:"required"`
	PlanName     string `json:"plan_name"`
}

func (h *Handler) UpsertTenant(c *gin.Context) {
	var req upsertTenantReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	err := h.Tenants.UpsertTenant(c.Request.Context(), tenant.Tenant{
		ClientCode:   req.ClientCode,
		Name:         req.Name,
		SystemPrompt: req.SystemPrompt,
		PlanName:     req.PlanName,
	})
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50006, "failed to upsert tenant")
		return
	}
	common.Ok(c, gin.H{"client_code": req.ClientCode})
}

type bindReq struct {
	UserID     string `json:"user_id" binding:"required"`
	ClientCode string `json:"client_code" binding:"required"`
}

func (h *Handler) BindUser(c *gin.Context) {
	var req bindReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if err := h.Tenants.Bind(c.Request.Context(), req.UserID, req.ClientCode); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50007, "failed to bind user")
		return
	}
	common.Ok(c, gin.H{"user_id": req.UserID, "client_code": req.ClientCode})
}

type setProReq struct {
	SubjectID string `json:"subject_id" binding:"required"`
	Pro       *bool  `json:"pro" binding:"required"`
}

func (h *Handler) SetPro(c *gin.Context) {
	var req setProReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if err := h.Enforcer.SetPro(c.Request.Context(), req.SubjectID, *req.Pro); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50008, "failed to set pro")
		return
	}
	common.Ok(c, gin.H{"subject_id": req.SubjectID, "pro": *req.Pro})
}

func (h *Handler) ResetMemory(c *gin.Context) {
	userID := c.Param("user_id")
	if err := h.Assembler.Reset(c.Request.Context(), userID); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50009, "failed to reset memory")
		return
	}
	common.Ok(c, gin.H{"user_id": userID})
}
