package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ailubes/veterans-orden-sub005/models"
	"github.com/ailubes/veterans-orden-sub005/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GetBalance returns the member's ledger-derived balance
func GetBalance(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	balance, err := services.Points.GetBalance(userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		log.Printf("GetBalance: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute balance"})
		return
	}

	c.JSON(http.StatusOK, balance)
}

// GetPointsHistory returns the member's transactions, newest first
func GetPointsHistory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit := 20
	offset := 0
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	if o, err := strconv.Atoi(c.Query("offset")); err == nil && o >= 0 {
		offset = o
	}

	history, err := services.Points.GetHistory(userID, limit, offset, c.Query("type"))
	if err != nil {
		log.Printf("GetPointsHistory: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": history,
		"limit":        limit,
		"offset":       offset,
	})
}

// SpendPoints debits the member's balance, e.g. at marketplace checkout.
// Unlike awards, a failure here must block the triggering action, so the
// error is returned to the caller rather than swallowed.
func SpendPoints(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		Amount        int64  `json:"amount" binding:"required,gt=0"`
		ReferenceType string `json:"reference_type" binding:"required"`
		ReferenceID   string `json:"reference_id" binding:"required"`
		Description   string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	txn, err := services.Points.SpendPoints(userID, req.Amount, models.TxnSpendMarketplace,
		req.ReferenceType, req.ReferenceID, req.Description)
	if err != nil {
		if errors.Is(err, services.ErrInsufficientBalance) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient points balance"})
			return
		}
		log.Printf("SpendPoints: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to spend points"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

// AdminAwardPoints is the back-office manual adjustment. It goes through
// the same idempotent ledger path as every other award.
func AdminAwardPoints(c *gin.Context) {
	var req struct {
		UserID        string     `json:"user_id" binding:"required"`
		Amount        int64      `json:"amount" binding:"required,gt=0"`
		Type          string     `json:"type"`
		ReferenceType string     `json:"reference_type" binding:"required"`
		ReferenceID   string     `json:"reference_id" binding:"required"`
		Description   string     `json:"description"`
		ExpiresAt     *time.Time `json:"expires_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}
	if req.Type == "" {
		req.Type = models.TxnManualAdjustment
	}

	result, err := services.Points.AwardPoints(userID, req.Amount, req.Type,
		req.ReferenceType, req.ReferenceID, req.Description, req.ExpiresAt)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		log.Printf("AdminAwardPoints: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to award points"})
		return
	}

	// An award may push the member over a threshold.
	if _, err := services.Advancement.CheckAndAdvanceRole(userID); err != nil {
		log.Printf("AdminAwardPoints: advancement check for %s failed: %v", userID, err)
	}

	c.JSON(http.StatusOK, result)
}
