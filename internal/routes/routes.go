package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"homebase/internal/handlers"
	"homebase/internal/middleware"
	"homebase/internal/repositories"
)

func SetupRoutes(
	r *gin.Engine,
	jwtSecret []byte,
	parties repositories.PartyRepository,
	partyHandler *handlers.PartyHandler,
	documentHandler *handlers.DocumentHandler,
	taskHandler *handlers.TaskHandler,
	projectHandler *handlers.ProjectHandler,
	assistantHandler *handlers.AssistantHandler,
	reportHandler *handlers.ReportHandler,
) *gin.Engine {

	// ---- public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ---- protected
	r.Use(middleware.AuthMiddleware(jwtSecret))

	// everything below is scoped to one party; the guard re-checks membership
	party := r.Group("/parties/:party_id", middleware.PartyGuard(parties))
	{
		party.GET("", partyHandler.GetByID)
		party.GET("/members", partyHandler.ListMembers)
		party.GET("/context", partyHandler.Context)
		party.GET("/labels", taskHandler.ListLabels)

		docs := party.Group("/documents")
		{
			docs.POST("", documentHandler.Upload)
			docs.POST("/text", documentHandler.UploadText)
			docs.GET("", documentHandler.List)
			docs.GET("/search", documentHandler.Search)
			docs.GET("/:id", documentHandler.GetByID)
			docs.GET("/:id/file", documentHandler.Download)
			docs.DELETE("/:id", documentHandler.Delete)
		}

		tasks := party.Group("/tasks")
		{
			tasks.POST("", taskHandler.Create)
			tasks.GET("", taskHandler.List)
			tasks.GET("/:id", taskHandler.GetByID)
			tasks.PATCH("/:id", taskHandler.Update)
			tasks.POST("/:id/status", taskHandler.ChangeStatus)
			tasks.DELETE("/:id", taskHandler.Delete)
			tasks.POST("/:id/comments", taskHandler.AddComment)
			tasks.GET("/:id/comments", taskHandler.ListComments)
			tasks.POST("/:id/labels", taskHandler.AttachLabel)
			tasks.GET("/:id/activity", taskHandler.ListActivity)
		}

		projects := party.Group("/projects")
		{
			projects.POST("", projectHandler.Create)
			projects.GET("", projectHandler.List)
			projects.GET("/:id", projectHandler.GetByID)
			projects.PATCH("/:id", projectHandler.Update)
			projects.DELETE("/:id", projectHandler.Delete)
		}

		chat := party.Group("/assistant")
		{
			chat.POST("/chat", assistantHandler.Chat)
			chat.POST("/chat/stream", assistantHandler.ChatStream)
		}

		party.GET("/reports/tasks.pdf", reportHandler.TaskReport)
	}

	return r
}
