package app

import (
	"time"

	"knowledge_graph_backend/internal/config"
	"knowledge_graph_backend/internal/middleware"
	"knowledge_graph_backend/internal/model"
	"knowledge_graph_backend/pkg/monitoring"
	"knowledge_graph_backend/pkg/security"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	router.GET("/api/health", c.health.HealthCheck)

	// 2. 需要登录的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerLearnerRoutes(authGroup, c)

		// 老师与管理员维护图谱
		curation := authGroup.Group("")
		curation.Use(middleware.CurationMiddleware())
		a.registerCurationRoutes(curation, c, cfg)

		// 3. 管理员相关接口
		admin := authGroup.Group("/admin")
		admin.Use(middleware.RoleMiddleware(model.Admin))
		{
			admin.GET("/mastery/config", c.mastery.GetConfig)
			admin.PUT("/mastery/config", c.mastery.UpdateConfig)
		}
	}
}

func (a *App) registerLearnerRoutes(r *gin.RouterGroup, c *controllers) {
	concepts := r.Group("/concepts")
	{
		concepts.GET("", c.concept.List)
		concepts.GET("/slug/:slug", c.concept.GetBySlug)
		concepts.GET("/:id", c.concept.Get)
		concepts.GET("/:id/relationships", c.concept.Relationships)
		concepts.GET("/:id/prerequisites", c.concept.Prerequisites)
		concepts.GET("/:id/prerequisites/check", c.concept.CheckPrerequisites)
		concepts.GET("/:id/dependents", c.concept.Dependents)
		concepts.GET("/:id/chain", c.concept.Chain)
		concepts.GET("/:id/courses", c.concept.Courses)
	}

	r.GET("/relationships/cycle-check", c.graph.CycleCheck)
	r.GET("/graph/validate", c.graph.Validate)
	r.GET("/graph/path", c.graph.Path)

	courses := r.Group("/courses")
	{
		courses.GET("/:id/concepts", c.courseConcept.List)
		courses.GET("/:id/prerequisites/check", c.courseConcept.Check)
		courses.GET("/:id/prerequisites/tree", c.courseConcept.Tree)
		courses.POST("/prerequisites/check", c.courseConcept.BulkCheck)
	}

	mastery := r.Group("/mastery")
	{
		mastery.GET("", c.mastery.List)
		mastery.GET("/summary", c.mastery.Summary)
		mastery.POST("/assessments", c.mastery.RecordAssessment)
		mastery.POST("/practice", c.mastery.RecordPractice)
		mastery.POST("/time-spent", c.mastery.RecordTimeSpent)
		mastery.POST("/course-completions", c.mastery.RecordCourseCompletion)
		mastery.GET("/:conceptId", c.mastery.Get)
		mastery.POST("/:conceptId/evidence", c.mastery.AddEvidence)
	}

	recommendations := r.Group("/recommendations")
	{
		recommendations.GET("", c.recommendation.List)
		recommendations.GET("/next-steps/:conceptId", c.recommendation.NextSteps)
		recommendations.GET("/fill-gaps", c.recommendation.FillGaps)
		recommendations.GET("/courses", c.recommendation.Courses)
	}
}

func (a *App) registerCurationRoutes(r *gin.RouterGroup, c *controllers, cfg *config.Config) {
	r.POST("/concepts", c.concept.Create)
	r.PUT("/concepts/:id", c.concept.Update)
	r.DELETE("/concepts/:id", c.concept.Delete)

	r.POST("/relationships", c.graph.CreateRelationship)
	r.PUT("/relationships/:id", c.graph.UpdateRelationship)
	r.DELETE("/relationships/:id", c.graph.DeleteRelationship)
	r.POST("/graph/export", c.graph.ExportGraph)

	r.POST("/courses/:id/concepts", c.courseConcept.Link)
	r.DELETE("/courses/:id/concepts/:conceptId", c.courseConcept.Unlink)

	// 生成接口调用模型，按用户限流
	generate := security.RateLimiter(cfg.RateLimit.SuggestionRequests,
		time.Duration(cfg.RateLimit.SuggestionWindowMinutes)*time.Minute, security.UserOrIP)

	suggestions := r.Group("/suggestions")
	{
		suggestions.POST("/course/:courseId", generate, c.suggestion.SuggestFromCourse)
		suggestions.POST("/concept", generate, c.suggestion.SuggestRelated)
		suggestions.GET("/:batchId", c.suggestion.GetBatch)
		suggestions.PATCH("/:batchId/items", c.suggestion.SetItemStatus)
		suggestions.POST("/:batchId/approve", c.suggestion.ApproveBatch)
		suggestions.POST("/:batchId/reject", c.suggestion.RejectBatch)
	}
}
