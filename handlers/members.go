package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/ailubes/veterans-orden-sub005/database"
	"github.com/ailubes/veterans-orden-sub005/models"
	"github.com/ailubes/veterans-orden-sub005/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GetProfile returns the member's own record
func GetProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var user models.User
	err := database.Database.QueryRow(`
		SELECT id, email, full_name, avatar, membership_role, points, referral_count, referral_code,
		       role_advanced_at, is_active, created_at
		FROM users WHERE id = $1`, userID,
	).Scan(&user.ID, &user.Email, &user.FullName, &user.Avatar, &user.MembershipRole, &user.Points,
		&user.ReferralCount, &user.ReferralCode, &user.RoleAdvancedAt, &user.IsActive, &user.CreatedAt)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// UploadAvatar replaces the member's avatar with an uploaded image
func UploadAvatar(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if services.Cloudinary == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Image uploads are not configured"})
		return
	}

	file, _, err := c.Request.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Avatar file is required"})
		return
	}
	defer file.Close()

	url, err := services.Cloudinary.UploadAvatar(file, userID.String())
	if err != nil {
		log.Printf("UploadAvatar: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload avatar"})
		return
	}

	if _, err := database.Database.Exec(`UPDATE users SET avatar = $1 WHERE id = $2`, url, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save avatar"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"avatar": url})
}

// AdminActivateMember marks a member active. Activation is the moment the
// referral tree pays out: the referrer, if any, is credited once, no matter
// how many times the member is re-activated.
func AdminActivateMember(c *gin.Context) {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member id"})
		return
	}

	result, err := database.Database.Exec(`UPDATE users SET is_active = TRUE WHERE id = $1`, memberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to activate member"})
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if err := services.Referrals.OnMemberActivated(memberID); err != nil && !errors.Is(err, services.ErrUserNotFound) {
		// Referral credit must not block the activation itself.
		log.Printf("AdminActivateMember: referral attribution for %s failed: %v", memberID, err)
	}

	// The new referral may push the referrer over a threshold.
	var referrerID *uuid.UUID
	if err := database.Database.QueryRow(`SELECT referred_by_id FROM users WHERE id = $1`, memberID).Scan(&referrerID); err == nil && referrerID != nil {
		if _, err := services.Advancement.CheckAndAdvanceRole(*referrerID); err != nil {
			log.Printf("AdminActivateMember: advancement check for referrer %s failed: %v", *referrerID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"activated": true})
}
