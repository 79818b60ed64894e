package service_test

import (
	"context"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/internal/service"
	"edu_progress_backend/internal/util"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) courseProgress(cache service.ProgressCache) *service.CourseProgressService {
	return service.NewCourseProgressService(f.store, f.store, f.store, f.store, cache, f.settings)
}

func TestCourseProgressQuizzesOnly(t *testing.T) {
	f := newFixture(t)
	q1 := f.store.AddQuiz(model.Quiz{CourseID: f.course.ID, Title: "quiz 1"})
	f.store.AddQuiz(model.Quiz{CourseID: f.course.ID, Title: "quiz 2"})
	f.store.CompleteQuiz(f.student.ID, q1.ID)

	cp, err := f.courseProgress(nil).GetCourseProgress(context.Background(), f.student.ID, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, cp.OverallProgress)
	assert.Equal(t, []uint{q1.ID}, cp.CompletedQuizzes)
	assert.Equal(t, 0, cp.LessonsTotal)
	assert.Empty(t, cp.CompletedLessons)
}

func TestCourseProgressAllDimensions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	done := f.textLesson()
	f.textLesson()
	quiz := f.store.AddQuiz(model.Quiz{CourseID: f.course.ID, Title: "quiz"})
	a1 := f.store.AddAssignment(model.Assignment{CourseID: f.course.ID, Title: "hw1"})
	f.store.AddAssignment(model.Assignment{CourseID: f.course.ID, Title: "hw2"})
	f.store.CompleteQuiz(f.student.ID, quiz.ID)
	f.store.SubmitAssignment(f.student.ID, a1.ID)

	// 其他课程的测验完成记录不计入
	otherCourse := f.store.AddCourse(model.Course{Title: "other", TeacherID: f.teacher.ID})
	otherQuiz := f.store.AddQuiz(model.Quiz{CourseID: otherCourse.ID, Title: "other quiz"})
	f.store.CompleteQuiz(f.student.ID, otherQuiz.ID)

	_, err := f.progress.MarkLessonCompleted(ctx, f.student.ID, f.course.ID, done.ID, true)
	require.NoError(t, err)

	cp, err := f.courseProgress(nil).GetCourseProgress(ctx, f.student.ID, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{done.ID}, cp.CompletedLessons)
	assert.Equal(t, 1, cp.QuizzesCompleted)
	assert.Equal(t, 1, cp.AssignmentsSubmitted)
	// (50 + 100 + 50) / 3
	assert.Equal(t, 67, cp.OverallProgress)
}

func TestCourseProgressSkipsOrphanedRows(t *testing.T) {
	f := newFixture(t)
	lesson := f.textLesson()
	removed := f.textLesson()
	f.store.PutProgress(model.LessonProgress{UserID: f.student.ID, CourseID: f.course.ID, LessonID: removed.ID, Completed: true, Status: model.StatusCompleted})
	f.store.PutProgress(model.LessonProgress{UserID: f.student.ID, CourseID: f.course.ID, LessonID: lesson.ID, Completed: true, Status: model.StatusCompleted})
	f.store.RemoveLesson(removed.ID)

	cp, err := f.courseProgress(nil).GetCourseProgress(context.Background(), f.student.ID, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cp.LessonsTotal)
	assert.Equal(t, []uint{lesson.ID}, cp.CompletedLessons)
	assert.Equal(t, 100, cp.OverallProgress)
}

func TestCourseProgressUnknownCourse(t *testing.T) {
	f := newFixture(t)
	_, err := f.courseProgress(nil).GetCourseProgress(context.Background(), f.student.ID, 9999)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestCourseProgressCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cache := newCountingCache()
	courses := f.courseProgress(cache)
	progress := service.NewProgressService(f.store, f.store, cache, f.settings)
	lesson := f.textLesson()

	cp, err := courses.GetCourseProgress(ctx, f.student.ID, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, cp.OverallProgress)

	// 命中缓存时不访问存储
	f.store.SetFailure(errors.New("db down"))
	cached, err := courses.GetCourseProgress(ctx, f.student.ID, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, cp, cached)
	f.store.SetFailure(nil)

	_, err = progress.MarkLessonCompleted(ctx, f.student.ID, f.course.ID, lesson.ID, true)
	require.NoError(t, err)

	cp, err = courses.GetCourseProgress(ctx, f.student.ID, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, cp.OverallProgress)
}

func TestStudentProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lesson := f.textLesson()
	f.textLesson()

	second := f.store.AddCourse(model.Course{Title: "second", TeacherID: f.teacher.ID})
	f.store.Enroll(f.student.ID, second.ID)
	quiz := f.store.AddQuiz(model.Quiz{CourseID: second.ID, Title: "quiz"})
	f.store.CompleteQuiz(f.student.ID, quiz.ID)

	// 选课记录指向不存在的课程时跳过
	f.store.Enroll(f.student.ID, 9999)

	_, err := f.progress.MarkLessonCompleted(ctx, f.student.ID, f.course.ID, lesson.ID, true)
	require.NoError(t, err)

	sp, err := f.courseProgress(nil).GetStudentProgress(ctx, f.student.ID)
	require.NoError(t, err)
	require.Len(t, sp.Courses, 2)
	assert.Equal(t, f.course.ID, sp.Courses[0].CourseID)
	assert.Equal(t, 50, sp.Courses[0].OverallProgress)
	assert.Equal(t, 100, sp.Courses[1].OverallProgress)
	assert.Equal(t, 75, sp.OverallProgress)
}

func TestStudentProgressWithoutCourses(t *testing.T) {
	f := newFixture(t)
	loner := f.store.AddUser(model.User{Name: "loner", Email: "loner@example.com"})

	sp, err := f.courseProgress(nil).GetStudentProgress(context.Background(), loner.ID)
	require.NoError(t, err)
	assert.Empty(t, sp.Courses)
	assert.Zero(t, sp.OverallProgress)
}

func TestCourseDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lesson := f.textLesson()
	f.textLesson()
	second := f.store.AddUser(model.User{Name: "Second", Email: "second@example.com"})
	f.store.Enroll(second.ID, f.course.ID)
	disabled := f.store.AddUser(model.User{Name: "Gone", Email: "gone@example.com", Disabled: true})
	f.store.Enroll(disabled.ID, f.course.ID)

	_, err := f.progress.MarkLessonCompleted(ctx, f.student.ID, f.course.ID, lesson.ID, true)
	require.NoError(t, err)

	svc := f.courseProgress(nil)
	owner := &util.Claims{UserID: f.teacher.ID, Role: model.Teacher}
	d, err := svc.GetCourseDashboard(ctx, owner, f.course.ID)
	require.NoError(t, err)
	require.Len(t, d.Students, 2)
	assert.Equal(t, f.student.ID, d.Students[0].StudentID)
	assert.Equal(t, 50, d.Students[0].Progress.OverallProgress)
	assert.Equal(t, 0, d.Students[1].Progress.OverallProgress)
	assert.Equal(t, 25, d.AverageProgress)

	stranger := &util.Claims{UserID: 4242, Role: model.Teacher}
	_, err = svc.GetCourseDashboard(ctx, stranger, f.course.ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	admin := &util.Claims{UserID: 4242, Role: model.Admin}
	_, err = svc.GetCourseDashboard(ctx, admin, f.course.ID)
	assert.NoError(t, err)
}
