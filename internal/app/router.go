package app

import (
	"edu_progress_backend/docs"
	"edu_progress_backend/internal/config"
	"edu_progress_backend/internal/middleware"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/pkg/monitoring"
	"edu_progress_backend/pkg/security"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	router.GET("/api/health", c.health.HealthCheck)

	// 2. 需要授权的路由
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	authGroup := router.Group("/api")
	authGroup.Use(
		middleware.AuthMiddleware(cfg.JWT.Secret),
		security.RateLimiter(cfg.RateLimit.MaxRequests, window, rateLimitKey),
	)
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(group *gin.RouterGroup, c *controllers) {
	lesson := group.Group("/course/:courseId/lessons/:lessonId")
	{
		lesson.GET("", c.progress.GetLesson)
		lesson.GET("/progress", c.progress.GetProgress)
		lesson.POST("/progress", c.progress.UpdateProgress)
		lesson.POST("/answer", c.progress.SubmitAnswer)
		lesson.GET("/:variant", c.progress.GetLessonVariant)
	}

	group.GET("/course/:courseId/progress", c.courseProgress.GetCourseProgress)

	group.GET("/student-progress", c.progress.GetStudentProgress)
	group.POST("/student-progress", c.progress.MarkLessonCompleted)

	group.GET("/notifications", c.notification.ListNotifications)
}

func (a *App) registerTeacherRoutes(group *gin.RouterGroup, c *controllers) {
	teacher := group.Group("/teacher/courses/:courseId")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.GET("/progress", c.courseProgress.GetCourseDashboard)
		teacher.POST("/lessons", c.content.PublishLesson)
		teacher.POST("/quizzes", c.content.PublishQuiz)
		teacher.POST("/assignments", c.content.PublishAssignment)
	}
}
