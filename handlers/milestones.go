package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/ailubes/veterans-orden-sub005/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GetMilestones lists the member's milestones, newest first.
// ?uncelebrated=true narrows to those still awaiting acknowledgement.
func GetMilestones(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit := 50
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	uncelebratedOnly := c.Query("uncelebrated") == "true"

	milestones, err := services.Milestones.List(userID, uncelebratedOnly, limit)
	if err != nil {
		log.Printf("GetMilestones: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch milestones"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"milestones": milestones})
}

// CelebrateMilestone acknowledges a milestone. Celebrating twice is a no-op.
func CelebrateMilestone(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	milestoneID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid milestone id"})
		return
	}

	if err := services.Milestones.Celebrate(milestoneID, userID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Milestone not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"celebrated": true})
}
