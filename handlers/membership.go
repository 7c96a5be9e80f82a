package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ailubes/veterans-orden-sub005/database"
	"github.com/ailubes/veterans-orden-sub005/models"
	"github.com/ailubes/veterans-orden-sub005/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CheckAdvancement is the member-facing "check my progress" action: it
// re-evaluates eligibility and advances (or queues a request) when the
// requirements are met.
func CheckAdvancement(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	result, err := services.Advancement.CheckAndAdvanceRole(userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		log.Printf("CheckAdvancement: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check advancement"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetMembershipProgress shows the member's current role and how far along
// they are toward the next one, without triggering any advancement.
func GetMembershipProgress(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var roleStr string
	var createdAt time.Time
	err := database.Database.QueryRow(`SELECT membership_role, created_at FROM users WHERE id = $1`, userID).
		Scan(&roleStr, &createdAt)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	currentRole := models.MembershipRole(roleStr)
	response := gin.H{
		"current_role": currentRole,
		"level":        services.Catalog.LevelOf(currentRole),
	}

	nextRole, ok := services.Catalog.NextRole(currentRole)
	if !ok {
		response["at_top"] = true
		c.JSON(http.StatusOK, response)
		return
	}

	requirement, _ := services.Catalog.RequirementsFor(nextRole)
	balance, err := services.Points.GetBalance(userID)
	if err != nil {
		log.Printf("GetMembershipProgress: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute balance"})
		return
	}
	streak, err := services.Streaks.GetStreak(userID)
	if err != nil {
		log.Printf("GetMembershipProgress: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load streak"})
		return
	}

	var referrals, tasks int
	if err := database.Database.QueryRow(`SELECT COUNT(*) FROM users WHERE referred_by_id = $1 AND is_active = TRUE`, userID).Scan(&referrals); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if err := database.Database.QueryRow(`SELECT COUNT(*) FROM points_transactions WHERE user_id = $1 AND type = $2`, userID, models.TxnEarnTask).Scan(&tasks); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	stats := services.UserStats{
		Points:         balance.Total,
		Referrals:      referrals,
		TasksCompleted: tasks,
		TenureDays:     int(time.Since(createdAt).Hours() / 24),
		CurrentStreak:  streak.CurrentStreak,
	}
	eval := services.Evaluate(stats, requirement)

	response["next_role"] = nextRole
	response["is_eligible"] = eval.IsEligible
	response["progress"] = eval.Progress
	response["stats"] = stats
	c.JSON(http.StatusOK, response)
}

// AdminManualAdvance sets a member's role directly, bypassing eligibility.
// Demotion requires the explicit flag.
func AdminManualAdvance(c *gin.Context) {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member id"})
		return
	}
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		Role          string `json:"role" binding:"required"`
		Reason        string `json:"reason"`
		AllowDemotion bool   `json:"allow_demotion"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	toRole, err := models.ParseMembershipRole(req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown membership role"})
		return
	}

	result, err := services.Advancement.ManuallyAdvanceRole(memberID, toRole, adminID, req.Reason, req.AllowDemotion)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		case errors.Is(err, services.ErrInvalidRoleTransition):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role transition"})
		default:
			log.Printf("AdminManualAdvance: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change role"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// AdminListAdvancementRequests returns the pending review queue
func AdminListAdvancementRequests(c *gin.Context) {
	pending, err := services.Advancement.PendingAdvancementRequests()
	if err != nil {
		log.Printf("AdminListAdvancementRequests: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch requests"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": pending})
}

// AdminProcessAdvancementRequest approves or rejects a pending request.
// One-shot: reprocessing returns 409.
func AdminProcessAdvancementRequest(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request id"})
		return
	}
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		Approved        *bool  `json:"approved" binding:"required"`
		RejectionReason string `json:"rejection_reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	processed, err := services.Advancement.ProcessAdvancementRequest(requestID, adminID, *req.Approved, req.RejectionReason)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRequestNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Advancement request not found"})
		case errors.Is(err, services.ErrRequestAlreadyProcessed):
			c.JSON(http.StatusConflict, gin.H{"error": "Advancement request already processed"})
		default:
			log.Printf("AdminProcessAdvancementRequest: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process request"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"request": processed})
}

// AdminRecentAdvancements returns the most recently advanced members
func AdminRecentAdvancements(c *gin.Context) {
	n := 20
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 100 {
		n = v
	}
	recent, err := services.Advancement.RecentAdvancements(n)
	if err != nil {
		log.Printf("AdminRecentAdvancements: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch advancements"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"advancements": recent})
}

// AdminGetAdvancementMode reads the organization-wide mode
func AdminGetAdvancementMode(c *gin.Context) {
	mode, err := services.Settings.AdvancementMode()
	if err != nil {
		log.Printf("AdminGetAdvancementMode: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read advancement mode"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"advancement_mode": mode})
}

// AdminSetAdvancementMode switches between automatic and approval_required.
// The change applies to the very next evaluation.
func AdminSetAdvancementMode(c *gin.Context) {
	var req struct {
		Mode string `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if err := services.Settings.SetAdvancementMode(req.Mode); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid advancement mode"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"advancement_mode": req.Mode})
}
