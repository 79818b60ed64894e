package controller

import (
	"edu_progress_backend/internal/service"
	"edu_progress_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseProgressController struct {
	CourseProgressService *service.CourseProgressService
}

func NewCourseProgressController(courseProgressService *service.CourseProgressService) *CourseProgressController {
	return &CourseProgressController{CourseProgressService: courseProgressService}
}

// @Summary 获取课程进度
// @Description 课时、测验、作业三个维度的加权进度，没有内容的维度不参与计算
// @Tags 课程进度
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=service.CourseProgress}
// @Router /api/course/{courseId}/progress [get]
func (c *CourseProgressController) GetCourseProgress(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}

	progress, err := c.CourseProgressService.GetCourseProgress(ctx.Request.Context(), user.UserID, courseID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary 教师查看班级进度
// @Tags 课程进度
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=service.CourseDashboard}
// @Router /api/teacher/courses/{courseId}/progress [get]
func (c *CourseProgressController) GetCourseDashboard(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}

	dashboard, err := c.CourseProgressService.GetCourseDashboard(ctx.Request.Context(), user, courseID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, dashboard)
}
