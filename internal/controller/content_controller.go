package controller

import (
	"edu_progress_backend/internal/service"
	"edu_progress_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ContentController struct {
	ContentService *service.ContentService
}

func NewContentController(contentService *service.ContentService) *ContentController {
	return &ContentController{ContentService: contentService}
}

// @Summary 发布课时
// @Description 创建课时并通知所有选课学生，部分通知失败时仍返回 201
// @Tags 内容发布
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "课程ID"
// @Param body body service.LessonInput true "课时"
// @Success 201 {object} util.Response{data=service.PublishResult}
// @Router /api/teacher/courses/{courseId}/lessons [post]
func (c *ContentController) PublishLesson(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}

	var req service.LessonInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ContentService.PublishLesson(ctx.Request.Context(), user, courseID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, result)
}

// @Summary 发布测验
// @Tags 内容发布
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "课程ID"
// @Param body body service.QuizInput true "测验"
// @Success 201 {object} util.Response{data=service.PublishResult}
// @Router /api/teacher/courses/{courseId}/quizzes [post]
func (c *ContentController) PublishQuiz(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}

	var req service.QuizInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ContentService.PublishQuiz(ctx.Request.Context(), user, courseID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, result)
}

// @Summary 发布作业
// @Tags 内容发布
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "课程ID"
// @Param body body service.AssignmentInput true "作业"
// @Success 201 {object} util.Response{data=service.PublishResult}
// @Router /api/teacher/courses/{courseId}/assignments [post]
func (c *ContentController) PublishAssignment(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}

	var req service.AssignmentInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ContentService.PublishAssignment(ctx.Request.Context(), user, courseID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, result)
}
