package controller_test

import (
	"edu_progress_backend/internal/model"
	"edu_progress_backend/internal/service"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishLessonNotifiesStudents(t *testing.T) {
	s := newTestServer(t)
	path := fmt.Sprintf("/api/teacher/courses/%d/lessons", s.course.ID)

	rec, env := s.do(t, s.teacher, http.MethodPost, path, gin.H{
		"title":   "Channels",
		"content": "unbuffered vs buffered",
		"exercises": []gin.H{{
			"title":     "quiz",
			"questions": []gin.H{{"prompt": "cap(make(chan int))?", "options": []string{"0", "1"}, "correct_index": 0}},
		}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var result struct {
		Item          model.Lesson          `json:"item"`
		Notifications *service.FanoutReport `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.NotZero(t, result.Item.ID)
	require.NotNil(t, result.Notifications)
	assert.Equal(t, 1, result.Notifications.Total)
	assert.Equal(t, 1, result.Notifications.Succeeded)

	rec, env = s.do(t, s.student, http.MethodGet, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.Notification
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, model.NotifyNewLesson, list[0].Type)
	assert.Equal(t, model.NotificationSent, list[0].Status)

	rec, env = s.do(t, s.student, http.MethodGet, fmt.Sprintf("/api/course/%d/lessons/%d/practice", s.course.ID, result.Item.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPublishRequiresTeacher(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, s.student, http.MethodPost, fmt.Sprintf("/api/teacher/courses/%d/quizzes", s.course.ID), gin.H{"title": "Quiz 1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(t, s.student, http.MethodGet, fmt.Sprintf("/api/teacher/courses/%d/progress", s.course.ID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	other := s.store.AddUser(model.User{Name: "Other", Email: "other@example.com", Role: model.Teacher})
	rec, _ = s.do(t, other, http.MethodPost, fmt.Sprintf("/api/teacher/courses/%d/quizzes", s.course.ID), gin.H{"title": "Quiz 1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := s.store.AddUser(model.User{Name: "Admin", Role: model.Admin})
	rec, _ = s.do(t, admin, http.MethodPost, fmt.Sprintf("/api/teacher/courses/%d/quizzes", s.course.ID), gin.H{"title": "Quiz 1"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestPublishValidation(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, s.teacher, http.MethodPost, fmt.Sprintf("/api/teacher/courses/%d/assignments", s.course.ID), gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, s.teacher, http.MethodPost, "/api/teacher/courses/9999/quizzes", gin.H{"title": "Quiz"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCourseDashboard(t *testing.T) {
	s := newTestServer(t)
	lesson := s.store.AddLesson(model.Lesson{CourseID: s.course.ID, Title: "reading", Content: "text"})

	rec, _ := s.do(t, s.student, http.MethodPost, "/api/student-progress", gin.H{
		"course_id": s.course.ID,
		"lesson_id": lesson.ID,
		"completed": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := s.do(t, s.teacher, http.MethodGet, fmt.Sprintf("/api/teacher/courses/%d/progress", s.course.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dashboard service.CourseDashboard
	require.NoError(t, json.Unmarshal(env.Data, &dashboard))
	require.Len(t, dashboard.Students, 1)
	assert.Equal(t, s.student.ID, dashboard.Students[0].StudentID)
	assert.Equal(t, 100, dashboard.Students[0].Progress.OverallProgress)

	rec, env = s.do(t, s.student, http.MethodGet, fmt.Sprintf("/api/course/%d/progress", s.course.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cp service.CourseProgress
	require.NoError(t, json.Unmarshal(env.Data, &cp))
	assert.Equal(t, 100, cp.OverallProgress)
}
