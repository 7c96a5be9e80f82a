package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/ailubes/veterans-orden-sub005/models"
	"github.com/ailubes/veterans-orden-sub005/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Points paid per event type. Tuning these means touching one table.
const (
	taskCompletionPoints = 25
	voteCastPoints       = 5
)

type pointEventRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	ReferenceID string `json:"reference_id" binding:"required"`
	Description string `json:"description"`
}

// TaskCompletedEvent ingests a task-completion callback. Awarding is
// idempotent on the task id, and a failure never bounces the callback:
// the task stays completed, the miss is logged.
func TaskCompletedEvent(c *gin.Context) {
	handlePointEvent(c, models.TxnEarnTask, "task", taskCompletionPoints)
}

// VoteCastEvent ingests a vote-cast callback, idempotent on the vote id.
func VoteCastEvent(c *gin.Context) {
	handlePointEvent(c, models.TxnEarnVote, "vote", voteCastPoints)
}

func handlePointEvent(c *gin.Context, txnType, referenceType string, amount int64) {
	var req pointEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	result, err := services.Points.AwardPoints(userID, amount, txnType, referenceType, req.ReferenceID, req.Description, nil)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		// The triggering action already happened; report accepted and log.
		log.Printf("handlePointEvent: award %s/%s for %s failed: %v", referenceType, req.ReferenceID, userID, err)
		c.JSON(http.StatusAccepted, gin.H{"awarded": false})
		return
	}

	advancement, err := services.Advancement.CheckAndAdvanceRole(userID)
	if err != nil {
		log.Printf("handlePointEvent: advancement check for %s failed: %v", userID, err)
	}

	response := gin.H{"awarded": !result.Duplicate, "transaction": result.Transaction}
	if advancement != nil {
		response["advancement"] = advancement
	}
	c.JSON(http.StatusOK, response)
}
