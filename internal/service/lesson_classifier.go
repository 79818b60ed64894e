package service

import (
	"edu_progress_backend/internal/model"
	"fmt"
	"strings"
)

// LessonVariant 课时的展示形态，由 Classify 一次性决定
type LessonVariant string

const (
	VariantVideo    LessonVariant = "video"
	VariantPractice LessonVariant = "practice"
	VariantText     LessonVariant = "text"
)

func (v LessonVariant) Valid() bool {
	switch v {
	case VariantVideo, VariantPractice, VariantText:
		return true
	}
	return false
}

// Classify 视频地址优先，其次是 practice 标记或带题目的练习，其余都是图文课时
func Classify(lesson *model.Lesson) LessonVariant {
	if strings.TrimSpace(lesson.VideoURL) != "" {
		return VariantVideo
	}
	if lesson.LessonType == model.LessonTypePractice || lesson.HasQuestions() {
		return VariantPractice
	}
	return VariantText
}

// RouteFor 课时对应的前端路由
func RouteFor(lesson *model.Lesson) string {
	return routeOf(lesson.CourseID, lesson.ID, Classify(lesson))
}

func routeOf(courseID, lessonID uint, variant LessonVariant) string {
	return fmt.Sprintf("/courses/%d/lessons/%d/%s", courseID, lessonID, variant)
}

// ResolveRoute 请求的形态与实际不符时返回正确路由并要求重定向
func ResolveRoute(lesson *model.Lesson, requested LessonVariant) (route string, redirect bool) {
	actual := Classify(lesson)
	return routeOf(lesson.CourseID, lesson.ID, actual), requested != actual
}
