package handlers

import (
	"net/http"
	"strconv"

	"github.com/CoderParva/Onebox/internal/classify"
	"github.com/CoderParva/Onebox/internal/database/models"
	"github.com/CoderParva/Onebox/internal/ingest"
	"github.com/CoderParva/Onebox/internal/mailbox"
	"github.com/CoderParva/Onebox/internal/services"
	"github.com/gin-gonic/gin"
)

// EmailHandler serves the thin read/trigger endpoints around the pipeline.
type EmailHandler struct {
	gateway        *ingest.Gateway
	registry       *mailbox.Registry
	oracle         *classify.Oracle
	logService     *services.LogService
	defaultAccount string
	syncDays       int
}

// NewEmailHandler creates a new EmailHandler instance
func NewEmailHandler(gateway *ingest.Gateway, registry *mailbox.Registry, oracle *classify.Oracle, logService *services.LogService, defaultAccount string, syncDays int) *EmailHandler {
	return &EmailHandler{
		gateway:        gateway,
		registry:       registry,
		oracle:         oracle,
		logService:     logService,
		defaultAccount: defaultAccount,
		syncDays:       syncDays,
	}
}

// ListEmails handles GET /api/emails?accountId=&folder=&search=&limit=
func (h *EmailHandler) ListEmails(c *gin.Context) {
	accountID := c.Query("accountId")
	if accountID == "" {
		accountID = h.defaultAccount
	}
	folder := c.DefaultQuery("folder", models.FolderInbox)
	search := c.Query("search")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	emails, err := h.gateway.Search(accountID, folder, search, limit)
	if err != nil {
		h.logService.LogError(models.LogModuleAPI, "list_emails", "Search failed", map[string]interface{}{
			"account_id": accountID,
			"folder":     folder,
			"error":      err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch emails"})
		return
	}

	c.JSON(http.StatusOK, emails)
}

// ListFolders handles GET /api/folders
func (h *EmailHandler) ListFolders(c *gin.Context) {
	c.JSON(http.StatusOK, []gin.H{
		{"id": models.FolderInbox, "name": "Inbox"},
		{"id": models.FolderSent, "name": "Sent"},
		{"id": models.FolderSpam, "name": "Spam"},
	})
}

type syncRequest struct {
	AccountID string `json:"accountId"`
}

// TriggerSync handles POST /api/sync: re-runs the sync window for one
// connected account.
func (h *EmailHandler) TriggerSync(c *gin.Context) {
	var req syncRequest
	_ = c.ShouldBindJSON(&req)
	if req.AccountID == "" {
		req.AccountID = h.defaultAccount
	}

	session := h.registry.Get(req.AccountID)
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Account not found or not connected"})
		return
	}

	h.logService.LogInfo(models.LogModuleAPI, "sync", "Manual sync triggered", map[string]interface{}{
		"account_id": req.AccountID,
	})

	session.RequestSync(h.syncDays)

	c.JSON(http.StatusOK, gin.H{"message": "Sync triggered."})
}

type suggestReplyRequest struct {
	EmailBody string `json:"emailBody"`
}

// SuggestReply handles POST /api/suggest-reply
func (h *EmailHandler) SuggestReply(c *gin.Context) {
	var req suggestReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.EmailBody == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "emailBody is required"})
		return
	}

	reply, err := h.oracle.SuggestReply(req.EmailBody)
	if err != nil {
		h.logService.LogError(models.LogModuleAPI, "suggest_reply", "Reply generation failed", map[string]interface{}{
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate reply"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// ListLogs handles GET /api/logs?limit=&level=
func (h *EmailHandler) ListLogs(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	logs, err := h.logService.Recent(limit, c.Query("level"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch logs"})
		return
	}

	c.JSON(http.StatusOK, logs)
}
