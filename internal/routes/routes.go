package routes

import (
	"go.uber.org/zap"

	"organ-donation-server/internal/appointments"
	"organ-donation-server/internal/config"
	"organ-donation-server/internal/handlers"
	"organ-donation-server/internal/middleware"
	"organ-donation-server/internal/models"
	"organ-donation-server/internal/notifications"
	"organ-donation-server/internal/workflow"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, log *zap.Logger) {
	// Wire the core: dispatcher feeds the engine, the engine feeds the
	// appointment lifecycle.
	dispatcher := notifications.NewDispatcher(db, log)
	engine := workflow.NewEngine(db, dispatcher, log, cfg.ReapplicationCooldownDays)
	appointmentService := appointments.NewService(db, engine, dispatcher, log)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, cfg)
	userHandler := handlers.NewUserHandler(db)
	applicationHandler := handlers.NewApplicationHandler(db, engine)
	appointmentHandler := handlers.NewAppointmentHandler(appointmentService, engine)
	notificationHandler := handlers.NewNotificationHandler(dispatcher)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg)) // Apply JWT authentication middleware
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
		}

		// User management routes
		userRoutes := private.Group("/users")
		{
			// Accessible by all authenticated users
			userRoutes.GET("/doctors", userHandler.GetDoctors)

			// Staff-only listings for scheduling
			staffRoutes := userRoutes.Group("")
			staffRoutes.Use(middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin))
			{
				staffRoutes.GET("/donors", userHandler.GetDonors)
				staffRoutes.GET("/recipient-profiles", userHandler.GetRecipientProfiles)
			}

			// Admin-only routes
			adminRoutes := userRoutes.Group("")
			adminRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin)) // Only Admins
			{
				adminRoutes.POST("", userHandler.CreateUser)
				adminRoutes.GET("", userHandler.GetUsers)
				adminRoutes.GET("/:id", userHandler.GetUserByID)
				adminRoutes.PUT("/:id", userHandler.UpdateUser)
				adminRoutes.DELETE("/:id", userHandler.DeleteUser)
			}
		}

		// Donation application routes
		applicationRoutes := private.Group("/applications")
		{
			// Donors submit and track their own applications
			applicationRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleDonor), applicationHandler.SubmitApplication)
			applicationRoutes.GET("/mine", middleware.RoleAuthMiddleware(models.RoleDonor), applicationHandler.GetMyApplications)

			// Staff listings and detail (donor access checked in handler)
			applicationRoutes.GET("", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), applicationHandler.ListApplications)
			applicationRoutes.GET("/:id", applicationHandler.GetApplicationByID)

			// Workflow actions; the transition table enforces which statuses
			// each action is legal from
			applicationRoutes.POST("/:id/review", middleware.RoleAuthMiddleware(models.RoleDoctor), applicationHandler.DoctorReview)
			applicationRoutes.POST("/:id/admin-review", middleware.RoleAuthMiddleware(models.RoleAdmin), applicationHandler.AdminReview)
			applicationRoutes.POST("/:id/final-recommendation", middleware.RoleAuthMiddleware(models.RoleDoctor), applicationHandler.SubmitFinalRecommendation)
			applicationRoutes.POST("/:id/final-review", middleware.RoleAuthMiddleware(models.RoleAdmin), applicationHandler.FinalReview)
			applicationRoutes.POST("/:id/waiting-list", middleware.RoleAuthMiddleware(models.RoleAdmin), applicationHandler.AddToWaitingList)
			applicationRoutes.POST("/:id/match-found", middleware.RoleAuthMiddleware(models.RoleAdmin), applicationHandler.MarkMatchFound)
		}

		// Appointment routes
		appointmentRoutes := private.Group("/appointments")
		{
			// Appointments are created by staff, never by the subject
			appointmentRoutes.POST("/donor", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), appointmentHandler.CreateDonorAppointment)
			appointmentRoutes.POST("/recipient", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), appointmentHandler.CreateRecipientAppointment)

			// All authenticated users can read their own appointments
			appointmentRoutes.GET("", appointmentHandler.GetAppointmentsForUser)
			appointmentRoutes.GET("/eligibility", appointmentHandler.GetSchedulingEligibility)
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID) // Authorization inside handler

			// Completion and cancellation are doctor/admin-only
			appointmentRoutes.PATCH("/:id/complete", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), appointmentHandler.CompleteAppointment)
			appointmentRoutes.PATCH("/:id/cancel", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), appointmentHandler.CancelAppointment)
			appointmentRoutes.PATCH("/:id/reschedule", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), appointmentHandler.RescheduleAppointment)
		}

		// Notification routes
		notificationRoutes := private.Group("/notifications")
		{
			notificationRoutes.GET("", notificationHandler.GetMyNotifications)
			notificationRoutes.PATCH("/:id/read", notificationHandler.MarkNotificationRead)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
