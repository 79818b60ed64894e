package service

import (
	"context"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/internal/util"
	"edu_progress_backend/pkg/logger"
	"edu_progress_backend/pkg/monitoring"
	"edu_progress_backend/pkg/tracing"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 并发拉取课程进度的上限
const aggregateConcurrency = 8

// CourseProgress 课程维度的进度汇总，只作为视图返回，不落库
type CourseProgress struct {
	CourseID             uint    `json:"courseId"`
	CompletedLessons     []uint  `json:"completedLessons"`
	CompletedQuizzes     []uint  `json:"completedQuizzes"`
	LessonsCompleted     int     `json:"lessonsCompleted"`
	LessonsTotal         int     `json:"lessonsTotal"`
	QuizzesCompleted     int     `json:"quizzesCompleted"`
	QuizzesTotal         int     `json:"quizzesTotal"`
	AssignmentsSubmitted int     `json:"assignmentsSubmitted"`
	AssignmentsTotal     int     `json:"assignmentsTotal"`
	OverallProgress      int     `json:"overallProgress"`
	RawProgress          float64 `json:"rawProgress"`
}

type StudentProgress struct {
	UserID          uint             `json:"userId"`
	Courses         []CourseProgress `json:"courses"`
	OverallProgress int              `json:"overallProgress"`
}

type DashboardRow struct {
	StudentID   uint           `json:"studentId"`
	StudentName string         `json:"studentName"`
	Progress    CourseProgress `json:"progress"`
}

// CourseDashboard 教师查看的全班进度
type CourseDashboard struct {
	CourseID        uint           `json:"courseId"`
	CourseTitle     string         `json:"courseTitle"`
	Students        []DashboardRow `json:"students"`
	AverageProgress int            `json:"averageProgress"`
}

// ProgressCache 按 (课程, 学生) 缓存汇总结果；实现需容忍后端不可用
type ProgressCache interface {
	GetCourseProgress(ctx context.Context, userID, courseID uint) (*CourseProgress, bool)
	SetCourseProgress(ctx context.Context, userID, courseID uint, cp *CourseProgress)
	InvalidateCourseProgress(ctx context.Context, userID, courseID uint)
}

type CourseProgressService struct {
	Courses  CourseStore
	Lessons  LessonStore
	Progress ProgressStore
	Roster   RosterStore
	Cache    ProgressCache
	Settings *ProgressSettings
}

func NewCourseProgressService(courses CourseStore, lessons LessonStore, progress ProgressStore, roster RosterStore, cache ProgressCache, settings *ProgressSettings) *CourseProgressService {
	return &CourseProgressService{
		Courses:  courses,
		Lessons:  lessons,
		Progress: progress,
		Roster:   roster,
		Cache:    cache,
		Settings: settings,
	}
}

func (s *CourseProgressService) GetCourseProgress(ctx context.Context, userID, courseID uint) (cp *CourseProgress, err error) {
	ctx, span := tracing.Start(ctx, "CourseProgressService.GetCourseProgress", map[string]uint{"user.id": userID, "course.id": courseID})
	defer func() { tracing.End(span, err) }()

	if s.Cache != nil {
		if cached, ok := s.Cache.GetCourseProgress(ctx, userID, courseID); ok {
			return cached, nil
		}
	}

	began := time.Now()
	defer func() { monitoring.CourseProgressDuration.Observe(time.Since(began).Seconds()) }()

	if _, err = s.Courses.FindCourse(ctx, courseID); err != nil {
		return nil, storeErr(err)
	}
	lessons, err := s.Lessons.ListLessons(ctx, courseID)
	if err != nil {
		return nil, storeErr(err)
	}
	rows, err := s.Progress.ListCourseProgress(ctx, userID, courseID)
	if err != nil {
		return nil, storeErr(err)
	}
	quizIDs, err := s.Courses.ListQuizIDs(ctx, courseID)
	if err != nil {
		return nil, storeErr(err)
	}
	doneQuizIDs, err := s.Courses.ListCompletedQuizIDs(ctx, userID, courseID)
	if err != nil {
		return nil, storeErr(err)
	}
	assignmentIDs, err := s.Courses.ListAssignmentIDs(ctx, courseID)
	if err != nil {
		return nil, storeErr(err)
	}
	submittedIDs, err := s.Courses.ListSubmittedAssignmentIDs(ctx, userID, courseID)
	if err != nil {
		return nil, storeErr(err)
	}

	cp = aggregate(userID, courseID, lessons, rows, quizIDs, doneQuizIDs, assignmentIDs, submittedIDs, s.Settings.Weights())

	if s.Cache != nil {
		s.Cache.SetCourseProgress(ctx, userID, courseID, cp)
	}
	return cp, nil
}

// aggregate 纯计算部分。不属于本课程的进度记录跳过并告警。
func aggregate(userID, courseID uint, lessons []model.Lesson, rows []model.LessonProgress,
	quizIDs, doneQuizIDs, assignmentIDs, submittedIDs []uint, w Weights) *CourseProgress {
	inCourse := make(map[uint]bool, len(lessons))
	for _, l := range lessons {
		inCourse[l.ID] = true
	}

	cp := &CourseProgress{
		CourseID:         courseID,
		CompletedLessons: []uint{},
		CompletedQuizzes: []uint{},
		LessonsTotal:     len(lessons),
		QuizzesTotal:     len(quizIDs),
		AssignmentsTotal: len(assignmentIDs),
	}

	seen := make(map[uint]bool, len(rows))
	for _, row := range rows {
		if !inCourse[row.LessonID] {
			logger.Log.Warn("inconsistent aggregate input: progress for lesson outside course",
				zap.Uint("userId", userID),
				zap.Uint("courseId", courseID),
				zap.Uint("lessonId", row.LessonID))
			continue
		}
		if row.Completed && !seen[row.LessonID] {
			seen[row.LessonID] = true
			cp.CompletedLessons = append(cp.CompletedLessons, row.LessonID)
		}
	}
	cp.LessonsCompleted = len(cp.CompletedLessons)

	cp.CompletedQuizzes = intersect(quizIDs, doneQuizIDs)
	cp.QuizzesCompleted = len(cp.CompletedQuizzes)
	cp.AssignmentsSubmitted = len(intersect(assignmentIDs, submittedIDs))

	cp.RawProgress = CoursePercentage(CourseCounts{
		LessonsCompleted:     cp.LessonsCompleted,
		LessonsTotal:         cp.LessonsTotal,
		QuizzesCompleted:     cp.QuizzesCompleted,
		QuizzesTotal:         cp.QuizzesTotal,
		AssignmentsSubmitted: cp.AssignmentsSubmitted,
		AssignmentsTotal:     cp.AssignmentsTotal,
	}, w)
	cp.OverallProgress = RoundPercent(cp.RawProgress)
	return cp
}

// intersect 保持 all 的顺序并去重
func intersect(all, done []uint) []uint {
	doneSet := make(map[uint]bool, len(done))
	for _, id := range done {
		doneSet[id] = true
	}
	out := []uint{}
	for _, id := range all {
		if doneSet[id] {
			out = append(out, id)
			delete(doneSet, id)
		}
	}
	return out
}

// GetStudentProgress 所有已选课程的平均进度，课程并发计算
func (s *CourseProgressService) GetStudentProgress(ctx context.Context, userID uint) (sp *StudentProgress, err error) {
	ctx, span := tracing.Start(ctx, "CourseProgressService.GetStudentProgress", map[string]uint{"user.id": userID})
	defer func() { tracing.End(span, err) }()

	courseIDs, err := s.Courses.ListEnrolledCourseIDs(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}

	slots := make([]*CourseProgress, len(courseIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(aggregateConcurrency)
	for i, courseID := range courseIDs {
		i, courseID := i, courseID
		g.Go(func() error {
			cp, err := s.GetCourseProgress(gctx, userID, courseID)
			if errors.Is(err, util.ErrCourseNotFound) {
				logger.Log.Warn("inconsistent aggregate input: enrollment for missing course",
					zap.Uint("userId", userID),
					zap.Uint("courseId", courseID))
				return nil
			}
			if err != nil {
				return err
			}
			slots[i] = cp
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	sp = &StudentProgress{UserID: userID, Courses: []CourseProgress{}}
	raw := make([]float64, 0, len(slots))
	for _, cp := range slots {
		if cp == nil {
			continue
		}
		sp.Courses = append(sp.Courses, *cp)
		raw = append(raw, cp.RawProgress)
	}
	sp.OverallProgress = RoundPercent(StudentOverall(raw))
	return sp, nil
}

// GetCourseDashboard 只有课程的授课教师或管理员可以查看
func (s *CourseProgressService) GetCourseDashboard(ctx context.Context, viewer *util.Claims, courseID uint) (d *CourseDashboard, err error) {
	ctx, span := tracing.Start(ctx, "CourseProgressService.GetCourseDashboard", map[string]uint{"course.id": courseID})
	defer func() { tracing.End(span, err) }()

	course, err := s.Courses.FindCourse(ctx, courseID)
	if err != nil {
		return nil, storeErr(err)
	}
	if viewer == nil || (viewer.Role != model.Admin && course.TeacherID != viewer.UserID) {
		return nil, util.ErrPermissionDenied
	}

	students, err := s.Roster.ListEnrolledStudents(ctx, courseID)
	if err != nil {
		return nil, storeErr(err)
	}

	rows := make([]DashboardRow, len(students))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(aggregateConcurrency)
	for i, st := range students {
		i, st := i, st
		g.Go(func() error {
			cp, err := s.GetCourseProgress(gctx, st.ID, courseID)
			if err != nil {
				return err
			}
			rows[i] = DashboardRow{StudentID: st.ID, StudentName: st.Name, Progress: *cp}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	raw := make([]float64, 0, len(rows))
	for _, r := range rows {
		raw = append(raw, r.Progress.RawProgress)
	}
	return &CourseDashboard{
		CourseID:        course.ID,
		CourseTitle:     course.Title,
		Students:        rows,
		AverageProgress: RoundPercent(StudentOverall(raw)),
	}, nil
}
