package handlers

import (
	"database/sql"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ailubes/veterans-orden-sub005/database"
	"github.com/ailubes/veterans-orden-sub005/models"
	"github.com/ailubes/veterans-orden-sub005/services"
	"github.com/ailubes/veterans-orden-sub005/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Register creates a member account. An optional referral code links the
// new member into the referral tree; the referrer is only credited later,
// when the member becomes active.
func Register(c *gin.Context) {
	var req struct {
		Email        string `json:"email" binding:"required,email"`
		Password     string `json:"password" binding:"required,min=8"`
		FullName     string `json:"full_name" binding:"required"`
		ReferralCode string `json:"referral_code"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var exists bool
	if err := database.Database.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, req.Email).Scan(&exists); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if exists {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	var referredByID *uuid.UUID
	if req.ReferralCode != "" {
		referrerID, err := services.Referrals.ResolveReferralCode(req.ReferralCode)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown referral code"})
			return
		}
		referredByID = &referrerID
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	userID := uuid.New()
	avatar := utils.MemberAvatarURL(req.FullName)
	referralCode := generateReferralCode()

	_, err = database.Database.Exec(`
		INSERT INTO users (id, email, password_hash, full_name, avatar, membership_role, referral_code, referred_by_id, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, now())`,
		userID, req.Email, string(hash), req.FullName, avatar, models.RoleSupporter, referralCode, referredByID)
	if err != nil {
		// A concurrent registration may have won the race between the
		// existence check above and this insert.
		if isUniqueViolation(err, "users_email_key") {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		log.Printf("Register: insert failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	token, err := generateJWT(userID.String(), req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token": token,
		"user": gin.H{
			"id":              userID,
			"email":           req.Email,
			"full_name":       req.FullName,
			"avatar":          avatar,
			"membership_role": models.RoleSupporter,
			"referral_code":   referralCode,
		},
	})
}

// Login authenticates a member. A successful login counts as activity for
// the day: the streak is updated and a progression check runs, both
// best-effort so a points hiccup never blocks the login itself.
func Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	err := database.Database.QueryRow(`
		SELECT id, email, password_hash, full_name, membership_role, is_active, created_at
		FROM users WHERE email = $1`, req.Email,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FullName, &user.MembershipRole, &user.IsActive, &user.CreatedAt)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if user.PasswordHash == nil || bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Account is not active"})
		return
	}

	// Activity tracking must never block the login.
	if _, err := services.Streaks.RecordActivity(user.ID, time.Now()); err != nil {
		log.Printf("Login: streak update for %s failed: %v", user.ID, err)
	}
	if _, err := services.Advancement.CheckAndAdvanceRole(user.ID); err != nil {
		log.Printf("Login: advancement check for %s failed: %v", user.ID, err)
	}

	email := ""
	if user.Email != nil {
		email = *user.Email
	}
	token, err := generateJWT(user.ID.String(), email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":              user.ID,
			"email":           user.Email,
			"full_name":       user.FullName,
			"membership_role": user.MembershipRole,
		},
	})
}

// VerifyToken checks a bearer token and returns its claims
func VerifyToken(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) < 8 || !strings.HasPrefix(authHeader, "Bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
		return
	}

	claims, err := parseJWT(authHeader[7:])
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":   true,
		"user_id": claims.UserID,
		"email":   claims.Email,
	})
}

// AuthMiddleware validates JWT tokens
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
			c.Abort()
			return
		}

		claims, err := parseJWT(authHeader[7:])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Next()
	}
}

// currentUserID reads the authenticated user's id from the gin context.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetString("user_id")
	if raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user id in token"})
		return uuid.Nil, false
	}
	return id, true
}
