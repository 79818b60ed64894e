package util

import "errors"

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrUserNotFound     = errors.New("user not found")
	ErrCourseNotFound   = errors.New("course not found")
	ErrLessonNotFound   = errors.New("lesson not found")

	// 进度更新引用了课时中不存在的练习/题目，状态不变
	ErrInvalidReference = errors.New("invalid exercise or question reference")
	// 请求体不是合法的进度更新
	ErrInvalidProgressUpdate = errors.New("invalid progress update")
	// 课时的完成条件尚未满足
	ErrCompletionGated = errors.New("lesson completion requirements not met")
	// 存储不可用，整个请求未生效，可安全重试
	ErrTransientStore = errors.New("progress store unavailable")
	// 部分学生通知派发失败
	ErrPartialFanout = errors.New("notification fan-out partially failed")
)

// ErrInvalidContent 发布的课时/测验/作业数据不合法
var ErrInvalidContent = errors.New("invalid content")
