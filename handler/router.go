package handler

import (
	"taskquest/middleware"
	"taskquest/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router builds the engine with every route mounted.
func (h *Handler) Router(corsOrigins []string) *gin.Engine {
	utils.InitValidator()

	router := gin.New()
	router.Use(
		middleware.Recovery(h.logger),
		middleware.RequestTracing(h.logger),
		middleware.Metrics(),
		middleware.CORS(corsOrigins),
	)

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	// Public routes
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/password-reset", h.RequestPasswordReset)
		auth.POST("/password-reset/confirm", h.ConfirmPasswordReset)
	}

	// Protected routes
	protected := api.Group("")
	protected.Use(middleware.Auth(h.repos.Auth), middleware.CacheControl("no-store"))

	session := protected.Group("/auth")
	{
		session.POST("/logout", h.Logout)
		session.GET("/sessions", h.ListSessions)
		session.DELETE("/sessions/:id", h.EndSession)
		session.POST("/2fa/setup", h.SetupTwoFactor)
		session.POST("/2fa/enable", h.EnableTwoFactor)
		session.POST("/2fa/disable", h.DisableTwoFactor)
	}

	upload := middleware.RequestSizeLimiter(h.opts.MaxUploadSize)

	user := protected.Group("/user")
	{
		user.GET("/profile", h.GetProfile)
		user.PUT("/profile", h.UpdateProfile)
		user.POST("/change-password", h.ChangePassword)
		user.POST("/change-email", h.ChangeEmail)
		user.POST("/reauthenticate", h.Reauthenticate)
		user.DELETE("", h.DeleteAccount)
		user.PUT("/avatar", upload, h.UploadAvatar)
		user.GET("/avatar", h.DownloadAvatar)
		user.POST("/streak/increment", h.IncrementStreak)
		user.POST("/streak/reset", h.ResetStreak)
		user.POST("/points", h.AddPoints)
		user.GET("/stats", h.GetStats)
		user.POST("/stats/recalculate", h.RecalculateStats)
		user.GET("/achievements", h.GetAchievements)
		user.POST("/achievements/check", h.CheckAchievements)
	}

	tasks := protected.Group("/tasks")
	{
		tasks.GET("", h.ListTasks)
		tasks.POST("", h.CreateTask)
		tasks.GET("/search", h.SearchTasks)
		tasks.GET("/tags", h.ListTags)
		tasks.GET("/upcoming", h.UpcomingTasks)
		tasks.GET("/overdue", h.OverdueTasks)
		tasks.POST("/overdue/mark", h.MarkOverdue)
		tasks.GET("/summary", h.TaskSummary)
		tasks.GET("/:id", h.GetTask)
		tasks.PUT("/:id", h.UpdateTask)
		tasks.DELETE("/:id", h.DeleteTask)
		tasks.POST("/:id/complete", h.CompleteTask)
		tasks.PUT("/:id/status", h.UpdateStatus)
		tasks.GET("/:id/attachments", h.ListAttachments)
		tasks.POST("/:id/attachments", upload, h.AddAttachment)
	}

	attachments := protected.Group("/attachments")
	{
		attachments.GET("/pending", h.PendingUploads)
		attachments.POST("/upload", h.UploadPending)
		attachments.GET("/:id", h.DownloadAttachment)
		attachments.DELETE("/:id", h.DeleteAttachment)
	}

	leaderboard := protected.Group("/leaderboard")
	{
		leaderboard.GET("", h.Leaderboard)
		leaderboard.GET("/weekly", h.WeeklyLeaderboard)
		leaderboard.GET("/me", h.MyRank)
		leaderboard.GET("/remote", h.RemoteLeaderboard)
		leaderboard.POST("/refresh", h.RefreshLeaderboard)
	}

	sync := protected.Group("/sync")
	{
		sync.POST("", h.Sync)
		sync.POST("/push", h.PushTasks)
		sync.POST("/pull", h.PullTasks)
	}

	screens := protected.Group("/screens")
	{
		screens.GET("/home", h.StreamHome)
		screens.GET("/tasks/:id", h.StreamTask)
		screens.GET("/leaderboard", h.StreamLeaderboard)
		screens.POST("/:sid/intents", h.ScreenIntent)
		screens.POST("/:sid/attachments", upload, h.ScreenAttachment)
	}

	return router
}
