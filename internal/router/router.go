package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/teamflow-dev/teamflow/internal/auth"
	"github.com/teamflow-dev/teamflow/internal/authz"
	"github.com/teamflow-dev/teamflow/internal/handlers"
	"github.com/teamflow-dev/teamflow/internal/middleware"
	"github.com/teamflow-dev/teamflow/internal/realtime"
	"github.com/teamflow-dev/teamflow/internal/services"
	"gorm.io/gorm"
)

// New wires the components around an injected storage handle and token
// manager and returns the configured engine.
func New(conn *gorm.DB, tokens *auth.TokenManager, hub *realtime.Hub) *gin.Engine {
	r := gin.Default()

	// CORS applies to the API namespace only; OPTIONS preflights are
	// answered with 200 and cached for a day.
	corsHandler := cors.New(cors.Config{
		AllowAllOrigins:           true,
		AllowMethods:              []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:              []string{"Content-Type", "Authorization"},
		MaxAge:                    24 * time.Hour,
		OptionsResponseStatusCode: http.StatusOK,
	})

	r.Use(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api") {
			corsHandler(ctx)
		}
	})

	r.Use(middleware.RouteGuard(tokens))

	creds := auth.NewCredentialStore(conn)
	az := authz.NewAuthorizer(conn)
	notifier := services.NewNotifier(conn)

	authHandler := handlers.NewAuthHandler(creds, tokens)
	workspaceHandler := handlers.NewWorkspaceHandler(conn, az, notifier)
	projectHandler := handlers.NewProjectHandler(conn, az)
	taskHandler := handlers.NewTaskHandler(conn, az, notifier, hub)
	eventHandler := handlers.NewEventHandler(conn, az, notifier)
	notificationHandler := handlers.NewNotificationHandler(conn)
	wsHandler := handlers.NewWSHandler(az, hub)

	api := r.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck)
		api.GET("/ws/:project_id", wsHandler.Serve)

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.GET("/me", authHandler.Me)
			authGroup.POST("/logout", authHandler.Logout)
		}

		workspaces := api.Group("/workspaces")
		{
			workspaces.POST("", workspaceHandler.Create)
			workspaces.GET("", workspaceHandler.List)
			workspaces.GET("/:workspace_id", workspaceHandler.Get)
			workspaces.PUT("/:workspace_id", workspaceHandler.Update)
			workspaces.DELETE("/:workspace_id", workspaceHandler.Delete)

			workspaces.GET("/:workspace_id/members", workspaceHandler.ListMembers)
			workspaces.POST("/:workspace_id/members", workspaceHandler.AddMember)
			workspaces.PUT("/:workspace_id/members/:user_id", workspaceHandler.UpdateMemberRole)
			workspaces.DELETE("/:workspace_id/members/:user_id", workspaceHandler.RemoveMember)
			workspaces.POST("/:workspace_id/transfer-ownership", workspaceHandler.TransferOwnership)

			workspaces.POST("/:workspace_id/projects", projectHandler.Create)
			workspaces.GET("/:workspace_id/projects", projectHandler.List)

			workspaces.POST("/:workspace_id/events", eventHandler.Create)
			workspaces.GET("/:workspace_id/events", eventHandler.List)
		}

		projects := api.Group("/projects")
		{
			projects.GET("/:project_id", projectHandler.Get)
			projects.PUT("/:project_id", projectHandler.Update)
			projects.DELETE("/:project_id", projectHandler.Delete)

			projects.POST("/:project_id/tasks", taskHandler.Create)
			projects.GET("/:project_id/tasks", taskHandler.List)
		}

		tasks := api.Group("/tasks")
		{
			tasks.GET("/:task_id", taskHandler.Get)
			tasks.PUT("/:task_id", taskHandler.Update)
			tasks.DELETE("/:task_id", taskHandler.Delete)
			tasks.PATCH("/:task_id/status", taskHandler.UpdateStatus)
			tasks.POST("/:task_id/reopen", taskHandler.Reopen)
			tasks.PUT("/:task_id/position", taskHandler.Move)

			tasks.POST("/:task_id/comments", taskHandler.CreateComment)
			tasks.GET("/:task_id/comments", taskHandler.ListComments)
			tasks.DELETE("/:task_id/comments/:comment_id", taskHandler.DeleteComment)

			tasks.POST("/:task_id/attachments", taskHandler.CreateAttachment)
			tasks.GET("/:task_id/attachments", taskHandler.ListAttachments)
			tasks.DELETE("/:task_id/attachments/:attachment_id", taskHandler.DeleteAttachment)
		}

		events := api.Group("/events")
		{
			events.PUT("/:event_id", eventHandler.Update)
			events.DELETE("/:event_id", eventHandler.Delete)
			events.POST("/:event_id/respond", eventHandler.Respond)
		}

		notifications := api.Group("/notifications")
		{
			notifications.GET("", notificationHandler.List)
			notifications.PATCH("/:notification_id/read", notificationHandler.MarkRead)
			notifications.POST("/read-all", notificationHandler.MarkAllRead)
		}
	}

	return r
}
