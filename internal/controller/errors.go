package controller

import (
	"context"
	"edu_progress_backend/internal/util"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// respondError 业务错误到 HTTP 状态码的映射
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrInvalidReference),
		errors.Is(err, util.ErrInvalidProgressUpdate),
		errors.Is(err, util.ErrInvalidContent):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrLessonNotFound),
		errors.Is(err, util.ErrCourseNotFound),
		errors.Is(err, util.ErrUserNotFound):
		util.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrCompletionGated):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrTransientStore),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		util.ServiceUnavailable(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}

// pathID 解析正整数路径参数，失败时直接返回 400
func pathID(ctx *gin.Context, name string) (uint, bool) {
	id, ok := util.ParseUintParam(ctx.Param(name))
	if !ok {
		util.BadRequest(ctx, "Invalid "+name)
	}
	return id, ok
}

func currentUser(ctx *gin.Context) (*util.Claims, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return nil, false
	}
	return user, true
}
