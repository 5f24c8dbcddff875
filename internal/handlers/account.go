package handlers

import (
	"context"
	"net/http"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/middleware"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/services"

	"github.com/gin-gonic/gin"
)

// AccountOperations is the account registry as seen by its owner
type AccountOperations interface {
	List(ctx context.Context, userID string) ([]models.Account, error)
	Get(ctx context.Context, userID, accountID string) (*services.AccountDetail, error)
	Primary(ctx context.Context, userID string) (*models.Account, error)
	SetSyncEnabled(ctx context.Context, userID, accountID string, enabled bool) (*models.Account, error)
	SetActive(ctx context.Context, userID, accountID string, active bool) (*models.Account, error)
	Rename(ctx context.Context, userID, accountID, displayName string) (*models.Account, error)
	Delete(ctx context.Context, userID, accountID string) error
	Reconcile(ctx context.Context, userID string) (*models.Account, bool, error)
}

// AccountHandler serves /api/accounts. Every route runs behind
// RequireSession and only sees the caller's own accounts.
type AccountHandler struct {
	accounts AccountOperations
}

func NewAccountHandler(accounts AccountOperations) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

func (h *AccountHandler) List(c *gin.Context) {
	user := middleware.CurrentUser(c)
	accounts, err := h.accounts.List(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accounts": accounts,
		"total":    len(accounts),
	})
}

func (h *AccountHandler) Get(c *gin.Context) {
	user := middleware.CurrentUser(c)
	account, err := h.accounts.Get(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *AccountHandler) Primary(c *gin.Context) {
	user := middleware.CurrentUser(c)
	account, err := h.accounts.Primary(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

type syncRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetSync turns mailbox sync on or off
func (h *AccountHandler) SetSync(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "enabled is required")
		return
	}
	user := middleware.CurrentUser(c)
	account, err := h.accounts.SetSyncEnabled(c.Request.Context(), user.ID, c.Param("id"), *req.Enabled)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *AccountHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

func (h *AccountHandler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h *AccountHandler) setActive(c *gin.Context, active bool) {
	user := middleware.CurrentUser(c)
	account, err := h.accounts.SetActive(c.Request.Context(), user.ID, c.Param("id"), active)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

type renameRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}

func (h *AccountHandler) Rename(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "display_name is required")
		return
	}
	user := middleware.CurrentUser(c)
	account, err := h.accounts.Rename(c.Request.Context(), user.ID, c.Param("id"), req.DisplayName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *AccountHandler) Delete(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if err := h.accounts.Delete(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Reconcile re-runs the idempotent primary account step for the caller
func (h *AccountHandler) Reconcile(c *gin.Context) {
	user := middleware.CurrentUser(c)
	account, created, err := h.accounts.Reconcile(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account": account,
		"created": created,
	})
}
