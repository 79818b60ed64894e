package controller

import (
	"edu_progress_backend/internal/model"
	"edu_progress_backend/internal/service"
	"edu_progress_backend/internal/util"
	"edu_progress_backend/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProgressController struct {
	ProgressService       *service.ProgressService
	CourseProgressService *service.CourseProgressService
	Storage               service.StorageProvider
}

func NewProgressController(progressService *service.ProgressService, courseProgressService *service.CourseProgressService, storage service.StorageProvider) *ProgressController {
	return &ProgressController{
		ProgressService:       progressService,
		CourseProgressService: courseProgressService,
		Storage:               storage,
	}
}

// LessonView 课时页面所需的全部数据。正文未解锁时不返回。
type LessonView struct {
	Lesson       *model.Lesson         `json:"lesson"`
	Variant      service.LessonVariant `json:"variant"`
	Route        string                `json:"route"`
	PlaybackURL  string                `json:"playback_url,omitempty"`
	Progress     *service.ProgressView `json:"progress"`
	NextQuestion *service.QuestionView `json:"next_question"`
}

// ProgressRequest 三种请求体只能出现一种
type ProgressRequest struct {
	VideoWatched        *bool    `json:"video_watched"`
	CompletedExerciseID *uint    `json:"completed_exercise_id"`
	QuestionID          *uint    `json:"question_id"`
	SelectedIndex       *int     `json:"selected_index"`
	IsCorrect           *bool    `json:"is_correct"`
	CurrentTime         *float64 `json:"current_time"`
	Duration            *float64 `json:"duration"`
}

type AnswerRequest struct {
	QuestionID    *uint `json:"question_id" binding:"required"`
	SelectedIndex *int  `json:"selected_index" binding:"required"`
}

type LessonCompletionRequest struct {
	CourseID  uint  `json:"course_id" binding:"required"`
	LessonID  uint  `json:"lesson_id" binding:"required"`
	Completed *bool `json:"completed" binding:"required"`
}

func lessonIDs(ctx *gin.Context) (courseID, lessonID uint, ok bool) {
	if courseID, ok = pathID(ctx, "courseId"); !ok {
		return
	}
	lessonID, ok = pathID(ctx, "lessonId")
	return
}

func (c *ProgressController) lessonView(ctx *gin.Context, userID, courseID, lessonID uint) (*LessonView, error) {
	lesson, p, err := c.ProgressService.GetLessonProgress(ctx.Request.Context(), userID, courseID, lessonID)
	if err != nil {
		return nil, err
	}

	view := &LessonView{
		Lesson:       lesson,
		Variant:      service.Classify(lesson),
		Route:        service.RouteFor(lesson),
		Progress:     c.ProgressService.View(p, lesson),
		NextQuestion: service.NextQuestion(p, lesson),
	}
	if !view.Progress.ContentUnlocked {
		lesson.Content = ""
	}
	if view.Variant == service.VariantVideo && c.Storage != nil {
		url, err := c.Storage.PlaybackURL(ctx.Request.Context(), lesson.VideoURL)
		if err != nil {
			logger.Log.Warn("failed to sign playback url",
				zap.Uint("lessonId", lesson.ID),
				zap.Error(err))
		}
		view.PlaybackURL = url
	}
	return view, nil
}

// @Summary 获取课时
// @Description 返回课时内容、展示形态、门控状态和下一道题目
// @Tags 学习进度
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "课程ID"
// @Param lessonId path int true "课时ID"
// @Success 200 {object} util.Response{data=LessonView}
// @Router /api/course/{courseId}/lessons/{lessonId} [get]
func (c *ProgressController) GetLesson(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, lessonID, ok := lessonIDs(ctx)
	if !ok {
		return
	}

	view, err := c.lessonView(ctx, user.UserID, courseID, lessonID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 按展示形态获取课时
// @Description 请求的形态与课时实际形态不一致时返回 307 和正确的路由
// @Tags 学习进度
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "课程ID"
// @Param lessonId path int true "课时ID"
// @Param variant path string true "video | practice | text"
// @Success 200 {object} util.Response{data=LessonView}
// @Success 307 {object} util.Response
// @Router /api/course/{courseId}/lessons/{lessonId}/{variant} [get]
func (c *ProgressController) GetLessonVariant(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, lessonID, ok := lessonIDs(ctx)
	if !ok {
		return
	}
	requested := service.LessonVariant(ctx.Param("variant"))
	if !requested.Valid() {
		util.NotFound(ctx)
		return
	}

	view, err := c.lessonView(ctx, user.UserID, courseID, lessonID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	if route, redirect := service.ResolveRoute(view.Lesson, requested); redirect {
		ctx.Header("Location", route)
		ctx.JSON(http.StatusTemporaryRedirect, util.Response{
			Code:    http.StatusTemporaryRedirect,
			Message: "lesson is served as " + string(view.Variant),
			Data:    gin.H{"route": route, "variant": view.Variant},
		})
		return
	}
	util.Success(ctx, view)
}

// @Summary 获取课时进度
// @Tags 学习进度
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "课程ID"
// @Param lessonId path int true "课时ID"
// @Success 200 {object} util.Response{data=service.ProgressView}
// @Router /api/course/{courseId}/lessons/{lessonId}/progress [get]
func (c *ProgressController) GetProgress(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, lessonID, ok := lessonIDs(ctx)
	if !ok {
		return
	}

	progress, err := c.ProgressService.GetProgress(ctx.Request.Context(), user.UserID, courseID, lessonID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary 更新课时进度
// @Description 请求体三选一：{video_watched} | {completed_exercise_id, question_id?, selected_index?, is_correct?} | {current_time, duration?}
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "课程ID"
// @Param lessonId path int true "课时ID"
// @Param body body ProgressRequest true "进度更新"
// @Success 200 {object} util.Response{data=service.ProgressView}
// @Router /api/course/{courseId}/lessons/{lessonId}/progress [post]
func (c *ProgressController) UpdateProgress(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, lessonID, ok := lessonIDs(ctx)
	if !ok {
		return
	}

	var req ProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	forms := 0
	for _, present := range []bool{req.VideoWatched != nil, req.CompletedExerciseID != nil, req.CurrentTime != nil} {
		if present {
			forms++
		}
	}
	if forms != 1 {
		util.BadRequest(ctx, "exactly one of video_watched, completed_exercise_id or current_time is required")
		return
	}

	rctx := ctx.Request.Context()
	var (
		progress *service.ProgressView
		err      error
	)
	switch {
	case req.VideoWatched != nil:
		progress, err = c.ProgressService.MarkVideoWatched(rctx, user.UserID, courseID, lessonID, *req.VideoWatched)
	case req.CompletedExerciseID != nil:
		progress, err = c.ProgressService.MarkItemCompleted(rctx, user.UserID, courseID, lessonID, service.ItemUpdate{
			ExerciseID:    *req.CompletedExerciseID,
			QuestionID:    req.QuestionID,
			SelectedIndex: req.SelectedIndex,
			IsCorrect:     req.IsCorrect,
		})
	default:
		var duration float64
		if req.Duration != nil {
			duration = *req.Duration
		}
		progress, err = c.ProgressService.RecordPlayback(rctx, user.UserID, courseID, lessonID, *req.CurrentTime, duration)
	}
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary 提交答案
// @Description 作答即记为完成，答对与否只作为反馈返回
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "课程ID"
// @Param lessonId path int true "课时ID"
// @Param body body AnswerRequest true "答案"
// @Success 200 {object} util.Response{data=service.AnswerResult}
// @Router /api/course/{courseId}/lessons/{lessonId}/answer [post]
func (c *ProgressController) SubmitAnswer(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, lessonID, ok := lessonIDs(ctx)
	if !ok {
		return
	}

	var req AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ProgressService.SubmitAnswer(ctx.Request.Context(), user.UserID, courseID, lessonID, *req.QuestionID, *req.SelectedIndex)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 获取学生总体进度
// @Tags 学习进度
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.StudentProgress}
// @Router /api/student-progress [get]
func (c *ProgressController) GetStudentProgress(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	progress, err := c.CourseProgressService.GetStudentProgress(ctx.Request.Context(), user.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary 标记课时完成
// @Description 没有练习的图文课时只能通过该接口完成；有门控的课时需先满足条件
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body LessonCompletionRequest true "完成标记"
// @Success 200 {object} util.Response{data=service.ProgressView}
// @Failure 409 {object} util.Response
// @Router /api/student-progress [post]
func (c *ProgressController) MarkLessonCompleted(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req LessonCompletionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	progress, err := c.ProgressService.MarkLessonCompleted(ctx.Request.Context(), user.UserID, req.CourseID, req.LessonID, *req.Completed)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}
