package main

import (
	"log"
	"net/http"

	"github.com/ailubes/veterans-orden-sub005/config"
	"github.com/ailubes/veterans-orden-sub005/database"
	"github.com/ailubes/veterans-orden-sub005/handlers"
	"github.com/ailubes/veterans-orden-sub005/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

func main() {
	// Load configuration
	if err := config.Load(); err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Connect to database
	db, err := database.Connect(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	// Initialize tables
	if err := db.InitializeTables(); err != nil {
		log.Fatal("Failed to initialize tables:", err)
	}

	// Initialize Cloudinary for avatar uploads (optional)
	if config.AppConfig.CloudinaryURL != "" {
		if err := services.InitializeCloudinary(config.AppConfig.CloudinaryURL); err != nil {
			log.Printf("WARNING: Failed to initialize Cloudinary: %v", err)
		}
	}

	// Wire the progression engine
	notifier := services.NewNotificationService()
	if err := services.Initialize(db, notifier); err != nil {
		log.Fatal("Failed to initialize services:", err)
	}

	// Set Gin mode
	if config.AppConfig.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.Default()

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure this properly for production
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Veterans Orden portal is running",
		})
	})

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register)
			auth.POST("/login", handlers.Login)
			auth.GET("/verify", handlers.VerifyToken)
		}

		members := api.Group("/members")
		members.Use(handlers.AuthMiddleware())
		{
			members.GET("/me", handlers.GetProfile)
			members.POST("/avatar", handlers.UploadAvatar)
		}

		points := api.Group("/points")
		points.Use(handlers.AuthMiddleware())
		{
			points.GET("/balance", handlers.GetBalance)
			points.GET("/history", handlers.GetPointsHistory)
			points.POST("/spend", handlers.SpendPoints)
		}

		membership := api.Group("/membership")
		membership.Use(handlers.AuthMiddleware())
		{
			membership.POST("/check", handlers.CheckAdvancement)
			membership.GET("/progress", handlers.GetMembershipProgress)
		}

		milestones := api.Group("/milestones")
		milestones.Use(handlers.AuthMiddleware())
		{
			milestones.GET("", handlers.GetMilestones)
			milestones.POST("/:id/celebrate", handlers.CelebrateMilestone)
		}

		admin := api.Group("/admin")
		admin.Use(handlers.AuthMiddleware(), handlers.AdminMiddleware())
		{
			admin.POST("/points/award", handlers.AdminAwardPoints)
			admin.POST("/members/:id/activate", handlers.AdminActivateMember)
			admin.POST("/members/:id/advance", handlers.AdminManualAdvance)
			admin.GET("/advancement-requests", handlers.AdminListAdvancementRequests)
			admin.POST("/advancement-requests/:id/process", handlers.AdminProcessAdvancementRequest)
			admin.GET("/advancements/recent", handlers.AdminRecentAdvancements)
			admin.GET("/settings/advancement-mode", handlers.AdminGetAdvancementMode)
			admin.PUT("/settings/advancement-mode", handlers.AdminSetAdvancementMode)

			// Event ingestion from the rest of the portal (tasks, votes)
			admin.POST("/events/task-completed", handlers.TaskCompletedEvent)
			admin.POST("/events/vote-cast", handlers.VoteCastEvent)
		}
	}

	// Start server
	port := config.AppConfig.ServerPort
	log.Printf("Server starting on port %s", port)
	log.Fatal(http.ListenAndServe("0.0.0.0:"+port, corsHandler.Handler(router)))
}
