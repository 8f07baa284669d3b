package api

import (
	"net/http"
	"strconv"

	"jamu-quote-bot/backend/migration"
	"jamu-quote-bot/backend/pkg/config"
	apperrors "jamu-quote-bot/backend/pkg/errors"
	"jamu-quote-bot/backend/pkg/logger"
	"jamu-quote-bot/backend/quotes/models"
	"jamu-quote-bot/backend/quotes/service"

	"github.com/gin-gonic/gin"
)

// QuoteHandler is the thin HTTP adapter over the quote service. The chat
// command layer and operator tooling talk to the core through it; no business
// logic lives here.
type QuoteHandler struct {
	service *service.QuoteService
	log     *logger.Logger
}

func NewQuoteHandler(service *service.QuoteService, log *logger.Logger) *QuoteHandler {
	return &QuoteHandler{service: service, log: log}
}

func (h *QuoteHandler) CreateQuote(c *gin.Context) {
	var req models.CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quote, err := h.service.AddQuote(&req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, quote)
}

func (h *QuoteHandler) GetQuote(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	guildID, ok := h.queryGuildID(c)
	if !ok {
		return
	}

	quote, err := h.service.GetQuote(id, guildID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	guildID, ok := h.queryGuildID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	quotes, err := h.service.ListQuotes(guildID, c.Query("author"), page, pageSize)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotes)
}

func (h *QuoteHandler) SearchQuotes(c *gin.Context) {
	guildID, ok := h.queryGuildID(c)
	if !ok {
		return
	}
	term := c.Query("q")
	if term == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing search term 'q'"})
		return
	}

	quotes, err := h.service.SearchQuotes(guildID, term)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotes)
}

func (h *QuoteHandler) RandomQuote(c *gin.Context) {
	guildID, ok := h.queryGuildID(c)
	if !ok {
		return
	}

	quote, err := h.service.RandomQuote(guildID, c.Query("author"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *QuoteHandler) DeleteQuote(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	guildID, ok := h.queryGuildID(c)
	if !ok {
		return
	}

	deleted, err := h.service.DeleteQuote(id, guildID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "quote not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *QuoteHandler) ExportQuotes(c *gin.Context) {
	guildID, ok := h.queryGuildID(c)
	if !ok {
		return
	}

	rows, err := h.service.ExportQuotes(guildID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *QuoteHandler) CountQuotes(c *gin.Context) {
	guildID, _ := strconv.ParseInt(c.Query("guild_id"), 10, 64)

	count, err := h.service.CountQuotes(guildID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// RunMigrationRequest is the operator-facing migration trigger payload.
type RunMigrationRequest struct {
	Source    string `json:"source" binding:"required"`
	Target    string `json:"target"`
	Mode      string `json:"mode"`
	BatchSize int    `json:"batch_size"`
}

// RunMigration invokes the migration engine and renders its report. The
// target defaults to this service's own database descriptor.
func (h *QuoteHandler) RunMigration(c *gin.Context) {
	var req RunMigrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := migration.ModeDryRun
	if req.Mode == string(migration.ModeCommit) {
		mode = migration.ModeCommit
	}

	cfg := config.Get()
	opts := migration.OptionsFromConfig(cfg, mode)
	if req.BatchSize > 0 {
		opts.BatchSize = req.BatchSize
	}

	target := req.Target
	if target == "" {
		target = cfg.DatabaseDescriptor()
	}

	engine := migration.New(opts, h.log)
	report, err := engine.Run(c.Request.Context(), req.Source, target)
	if err != nil {
		// The report still carries committed-batch state; return it with
		// the failure status.
		appErr := apperrors.AsAppError(err)
		c.JSON(appErr.StatusCode, gin.H{"error": appErr.Message, "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *QuoteHandler) renderError(c *gin.Context, err error) {
	appErr := apperrors.AsAppError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		h.log.LogError(err, "request failed", "path", c.FullPath())
	}
	c.JSON(appErr.StatusCode, gin.H{"error": appErr.Message, "code": appErr.Code})
}

func (h *QuoteHandler) paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quote id"})
		return 0, false
	}
	return uint(id), true
}

func (h *QuoteHandler) queryGuildID(c *gin.Context) (int64, bool) {
	guildID, err := strconv.ParseInt(c.Query("guild_id"), 10, 64)
	if err != nil || guildID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid guild_id"})
		return 0, false
	}
	return guildID, true
}
