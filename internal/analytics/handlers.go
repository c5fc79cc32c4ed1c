package analytics

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/halldis/tokensight/internal/pagination"
)

// Handler provides HTTP endpoints for analytics operations
type Handler struct {
	engine *Engine
	logger *slog.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(engine *Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// RegisterRoutes sets up public read routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/accounts/:address/profile", h.GetProfile)
	r.GET("/accounts/:address/flags", h.GetFlags)
	r.GET("/accounts/:address/transfers", h.ListTransfers)
	r.GET("/accounts/:address/transfers/:id", h.GetTransfer)
	r.GET("/accounts/:address/activity/:day", h.GetDailyActivity)
	r.GET("/analytics/global", h.GetGlobalAnalytics)
}

// RegisterOperatorRoutes sets up write routes; the caller wraps the group
// with operator authentication.
func (h *Handler) RegisterOperatorRoutes(r *gin.RouterGroup) {
	r.POST("/accounts/:address/register", h.RegisterAccount)
	r.POST("/accounts/:address/transfers", h.RecordTransfer)
}

// RegisterAccount handles POST /accounts/:address/register
func (h *Handler) RegisterAccount(c *gin.Context) {
	address := c.Param("address")

	if err := h.engine.Register(c.Request.Context(), address); err != nil {
		if errors.Is(err, ErrAccountExists) {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "account_exists",
				"message": "Account is already registered",
			})
			return
		}
		h.logger.Error("register failed", "account", address, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "register_error",
			"message": "Failed to register account",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"account": address, "registered": true})
}

// RecordTransferRequest is the body for POST /accounts/:address/transfers
type RecordTransferRequest struct {
	Recipient    string `json:"recipient" binding:"required"`
	Amount       uint64 `json:"amount"`
	TransferType string `json:"transferType"`
}

// RecordTransfer handles POST /accounts/:address/transfers
func (h *Handler) RecordTransfer(c *gin.Context) {
	address := c.Param("address")

	var req RecordTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	id, err := h.engine.RecordTransfer(c.Request.Context(), address, req.Recipient, req.Amount, req.TransferType)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_amount",
				"message": "Transfer amount must be greater than zero",
			})
		case errors.Is(err, ErrAccountNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "account_not_found",
				"message": "Account is not registered",
			})
		default:
			h.logger.Error("record transfer failed", "account", address, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "transfer_error",
				"message": "Failed to record transfer",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transferId": id})
}

// GetProfile handles GET /accounts/:address/profile
func (h *Handler) GetProfile(c *gin.Context) {
	address := c.Param("address")

	profile, err := h.engine.Profile(c.Request.Context(), address)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "account_not_found",
				"message": "Account is not registered",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "profile_error",
			"message": "Failed to retrieve profile",
		})
		return
	}

	c.JSON(http.StatusOK, profile)
}

// GetFlags handles GET /accounts/:address/flags
func (h *Handler) GetFlags(c *gin.Context) {
	address := c.Param("address")

	flags, err := h.engine.Flags(c.Request.Context(), address)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "account_not_found",
				"message": "Account is not registered",
			})
		case errors.Is(err, ErrNoActivity):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "no_activity",
				"message": "Account has no recorded transfers",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "flags_error",
				"message": "Failed to retrieve flags",
			})
		}
		return
	}

	c.JSON(http.StatusOK, flags)
}

// ListTransfers handles GET /accounts/:address/transfers
func (h *Handler) ListTransfers(c *gin.Context) {
	address := c.Param("address")

	limit := 50
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_limit",
				"message": "limit must be between 1 and 500",
			})
			return
		}
		limit = n
	}

	before := NoBefore
	cur, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "Cursor is malformed",
		})
		return
	}
	if cur != nil {
		before = cur.LastID
	}

	// Fetch one extra row to learn whether another page exists.
	transfers, err := h.engine.Transfers(c.Request.Context(), address, before, limit+1)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "transfers_error",
			"message": "Failed to retrieve transfers",
		})
		return
	}

	transfers, next, hasMore := pagination.ComputePage(transfers, limit, func(t *TransferRecord) uint64 {
		return t.ID
	})

	c.JSON(http.StatusOK, gin.H{
		"transfers":  transfers,
		"count":      len(transfers),
		"nextCursor": next,
		"hasMore":    hasMore,
	})
}

// GetTransfer handles GET /accounts/:address/transfers/:id
func (h *Handler) GetTransfer(c *gin.Context) {
	address := c.Param("address")

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_transfer_id",
			"message": "Transfer ID must be a non-negative integer",
		})
		return
	}

	transfer, err := h.engine.Transfer(c.Request.Context(), address, id)
	if err != nil {
		if errors.Is(err, ErrTransferMissing) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "transfer_not_found",
				"message": "No such transfer for this account",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "transfer_error",
			"message": "Failed to retrieve transfer",
		})
		return
	}

	c.JSON(http.StatusOK, transfer)
}

// GetDailyActivity handles GET /accounts/:address/activity/:day
func (h *Handler) GetDailyActivity(c *gin.Context) {
	address := c.Param("address")

	day, err := strconv.ParseUint(c.Param("day"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_day",
			"message": "Day must be a non-negative integer",
		})
		return
	}

	agg, err := h.engine.DailyActivity(c.Request.Context(), address, day)
	if err != nil {
		if errors.Is(err, ErrNoActivity) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "no_activity",
				"message": "No activity recorded for this day",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "activity_error",
			"message": "Failed to retrieve daily activity",
		})
		return
	}

	c.JSON(http.StatusOK, agg)
}

// GetGlobalAnalytics handles GET /analytics/global
func (h *Handler) GetGlobalAnalytics(c *gin.Context) {
	counters, err := h.engine.GlobalAnalytics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "analytics_error",
			"message": "Failed to retrieve global analytics",
		})
		return
	}

	c.JSON(http.StatusOK, counters)
}
