package service_test

import (
	"context"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/internal/service"
	"edu_progress_backend/internal/util"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []service.NotificationRequest
	fail map[string]error
	// 指定邮箱时 panic
	panicOn string
	// 指定邮箱时阻塞到 ctx 结束
	blockOn string
}

func (s *recordingSender) Send(ctx context.Context, req service.NotificationRequest) error {
	if req.StudentEmail == s.panicOn {
		panic("boom")
	}
	if req.StudentEmail == s.blockOn {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := s.fail[req.StudentEmail]; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)
	return nil
}

func (f *fixture) enrollStudents(n int, noEmail ...int) []*model.User {
	skip := make(map[int]bool)
	for _, i := range noEmail {
		skip[i] = true
	}
	students := make([]*model.User, 0, n)
	for i := 1; i <= n; i++ {
		email := fmt.Sprintf("s%d@example.com", i)
		if skip[i] {
			email = ""
		}
		u := f.store.AddUser(model.User{Name: fmt.Sprintf("S%d", i), Email: email})
		f.store.Enroll(u.ID, f.course.ID)
		students = append(students, u)
	}
	return students
}

func TestDispatchPartialFailure(t *testing.T) {
	f := newFixture(t)
	course := f.store.AddCourse(model.Course{Title: "Algorithms", TeacherID: f.teacher.ID})
	f.course = course
	students := f.enrollStudents(5, 3)

	sender := &recordingSender{}
	svc := service.NewNotificationService(f.store, f.store, sender, 2, time.Second)

	report, err := svc.Dispatch(context.Background(), service.ContentPublishedEvent{
		CourseID: course.ID,
		Type:     model.NotifyNewLesson,
		Title:    "Sorting",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 4, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.NotEmpty(t, report.RequestID)

	failed := report.Results[2]
	assert.Equal(t, students[2].ID, failed.StudentID)
	assert.False(t, failed.Success)
	assert.Equal(t, "No email address", failed.Reason)

	assert.ErrorIs(t, report.Err(), util.ErrPartialFanout)
	assert.Len(t, sender.sent, 4)
	for _, req := range sender.sent {
		assert.Equal(t, "Algorithms", req.CourseTitle)
		assert.Equal(t, "teacher@example.com", req.TeacherEmail)
		assert.Contains(t, req.Message, "Sorting")
	}

	// 每个学生都留下一条站内通知，包括失败的
	list, err := svc.ListNotifications(context.Background(), students[2].ID, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.NotificationFailed, list[0].Status)
	assert.Equal(t, report.RequestID, list[0].RequestID)

	list, err = svc.ListNotifications(context.Background(), students[0].ID, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.NotificationSent, list[0].Status)
}

func TestDispatchIsolatesSenderFailures(t *testing.T) {
	f := newFixture(t)
	course := f.store.AddCourse(model.Course{Title: "Networks", TeacherID: f.teacher.ID})
	f.course = course
	f.enrollStudents(4)

	sender := &recordingSender{
		fail:    map[string]error{"s1@example.com": errors.New("mailbox full")},
		panicOn: "s2@example.com",
		blockOn: "s3@example.com",
	}
	svc := service.NewNotificationService(f.store, f.store, sender, 4, 50*time.Millisecond)

	deadline := time.Now().Add(48 * time.Hour)
	report, err := svc.Dispatch(context.Background(), service.ContentPublishedEvent{
		CourseID: course.ID,
		Type:     model.NotifyNewAssignment,
		Title:    "Lab 1",
		Deadline: &deadline,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 3, report.Failed)
	assert.Equal(t, "mailbox full", report.Results[0].Reason)
	assert.Contains(t, report.Results[1].Reason, "panic")
	assert.Equal(t, context.DeadlineExceeded.Error(), report.Results[2].Reason)
	assert.True(t, report.Results[3].Success)

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Message, "due")
	assert.Equal(t, &deadline, sender.sent[0].Deadline)
}

func TestDispatchEmptyRoster(t *testing.T) {
	f := newFixture(t)
	course := f.store.AddCourse(model.Course{Title: "Empty", TeacherID: f.teacher.ID})
	svc := service.NewNotificationService(f.store, f.store, &recordingSender{}, 0, 0)

	report, err := svc.Dispatch(context.Background(), service.ContentPublishedEvent{CourseID: course.ID, Type: model.NotifyNewQuiz, Title: "Q"})
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.NoError(t, report.Err())
	assert.Empty(t, report.Results)
}

func TestDispatchCannotStart(t *testing.T) {
	f := newFixture(t)
	svc := service.NewNotificationService(f.store, f.store, &recordingSender{}, 1, time.Second)

	_, err := svc.Dispatch(context.Background(), service.ContentPublishedEvent{CourseID: 9999, Type: model.NotifyNewQuiz})
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	f.store.SetFailure(errors.New("db down"))
	_, err = svc.Dispatch(context.Background(), service.ContentPublishedEvent{CourseID: f.course.ID, Type: model.NotifyNewQuiz})
	assert.ErrorIs(t, err, util.ErrTransientStore)
}

func TestListNotificationsNewestFirst(t *testing.T) {
	f := newFixture(t)
	svc := service.NewNotificationService(f.store, f.store, service.LogSender{}, 1, time.Second)
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		_, err := svc.Dispatch(ctx, service.ContentPublishedEvent{CourseID: f.course.ID, Type: model.NotifyNewLesson, Title: title})
		require.NoError(t, err)
	}

	list, err := svc.ListNotifications(ctx, f.student.ID, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Contains(t, list[0].Message, "third")
	assert.Contains(t, list[1].Message, "second")
}
