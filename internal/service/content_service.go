package service

import (
	"context"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/internal/util"
	"edu_progress_backend/pkg/logger"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

type QuestionInput struct {
	Prompt       string   `json:"prompt" binding:"required"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
}

type ExerciseInput struct {
	Title     string          `json:"title" binding:"required"`
	Content   string          `json:"content"`
	Questions []QuestionInput `json:"questions"`
}

type LessonInput struct {
	Title      string           `json:"title" binding:"required"`
	LessonType model.LessonType `json:"lesson_type"`
	VideoURL   string           `json:"video_url"`
	Duration   float64          `json:"duration"`
	Content    string           `json:"content"`
	Order      int              `json:"order"`
	Exercises  []ExerciseInput  `json:"exercises"`
}

type QuizInput struct {
	Title string `json:"title" binding:"required"`
}

type AssignmentInput struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Deadline    *time.Time `json:"deadline"`
}

// PublishResult 新建的内容以及通知派发结果；派发无法开始时 Notifications 为空
type PublishResult struct {
	Item          interface{}   `json:"item"`
	Notifications *FanoutReport `json:"notifications"`
}

// ContentService 课时/测验/作业的发布入口，发布成功后通知选课学生
type ContentService struct {
	Content  ContentStore
	Roster   RosterStore
	Storage  StorageProvider
	Notifier *NotificationService
	Cache    ProgressCache
	probe    func(source string) (float64, error)
}

func NewContentService(content ContentStore, roster RosterStore, storage StorageProvider, notifier *NotificationService, cache ProgressCache) *ContentService {
	return &ContentService{
		Content:  content,
		Roster:   roster,
		Storage:  storage,
		Notifier: notifier,
		Cache:    cache,
		probe:    util.ProbeDuration,
	}
}

func (s *ContentService) authorize(ctx context.Context, viewer *util.Claims, courseID uint) error {
	course, err := s.Roster.FindCourse(ctx, courseID)
	if err != nil {
		return storeErr(err)
	}
	if viewer == nil || (viewer.Role != model.Admin && course.TeacherID != viewer.UserID) {
		return util.ErrPermissionDenied
	}
	return nil
}

func buildLesson(courseID uint, in LessonInput) (*model.Lesson, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", util.ErrInvalidContent)
	}
	switch in.LessonType {
	case "", model.LessonTypeVideo, model.LessonTypePractice, model.LessonTypeText:
	default:
		return nil, fmt.Errorf("%w: unknown lesson type %q", util.ErrInvalidContent, in.LessonType)
	}
	if in.Duration < 0 {
		return nil, fmt.Errorf("%w: negative duration", util.ErrInvalidContent)
	}

	lesson := &model.Lesson{
		CourseID:   courseID,
		Title:      in.Title,
		LessonType: in.LessonType,
		VideoURL:   strings.TrimSpace(in.VideoURL),
		Duration:   in.Duration,
		Content:    in.Content,
		Order:      in.Order,
	}
	for i, ex := range in.Exercises {
		exercise := model.Exercise{Title: ex.Title, Content: ex.Content, Order: i}
		for j, q := range ex.Questions {
			if len(q.Options) > 0 && (q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options)) {
				return nil, fmt.Errorf("%w: exercise %d question %d correct index out of range", util.ErrInvalidContent, i+1, j+1)
			}
			opts, err := json.Marshal(q.Options)
			if err != nil {
				return nil, err
			}
			exercise.Questions = append(exercise.Questions, model.Question{
				Prompt:       q.Prompt,
				Options:      string(opts),
				CorrectIndex: q.CorrectIndex,
				Order:        j,
			})
		}
		lesson.Exercises = append(lesson.Exercises, exercise)
	}
	if lesson.LessonType == "" {
		lesson.LessonType = model.LessonType(Classify(lesson))
	}
	return lesson, nil
}

// probeDuration 视频课时没有填写时长时用 ffprobe 补齐，失败只告警
func (s *ContentService) probeDuration(ctx context.Context, lesson *model.Lesson) {
	if lesson.VideoURL == "" || lesson.Duration > 0 || s.probe == nil || s.Storage == nil {
		return
	}
	source, err := s.Storage.ProbeSource(ctx, lesson.VideoURL)
	if err == nil {
		lesson.Duration, err = s.probe(source)
	}
	if err != nil {
		lesson.Duration = 0
		logger.Log.Warn("failed to probe video duration",
			zap.String("videoUrl", lesson.VideoURL),
			zap.Error(err))
	}
}

// invalidateCourse 新内容改变了课程的分母，清掉所有选课学生的汇总缓存
func (s *ContentService) invalidateCourse(ctx context.Context, courseID uint) {
	if s.Cache == nil {
		return
	}
	students, err := s.Roster.ListEnrolledStudents(ctx, courseID)
	if err != nil {
		logger.Log.Warn("failed to list students for cache invalidation",
			zap.Uint("courseId", courseID),
			zap.Error(err))
		return
	}
	for _, st := range students {
		s.Cache.InvalidateCourseProgress(ctx, st.ID, courseID)
	}
}

func (s *ContentService) notify(ctx context.Context, ev ContentPublishedEvent) *FanoutReport {
	s.invalidateCourse(ctx, ev.CourseID)
	if s.Notifier == nil {
		return nil
	}
	report, err := s.Notifier.Dispatch(ctx, ev)
	if err != nil {
		logger.Log.Error("notification dispatch could not start",
			zap.Uint("courseId", ev.CourseID),
			zap.String("type", string(ev.Type)),
			zap.Error(err))
		return nil
	}
	return report
}

func (s *ContentService) PublishLesson(ctx context.Context, viewer *util.Claims, courseID uint, in LessonInput) (*PublishResult, error) {
	if err := s.authorize(ctx, viewer, courseID); err != nil {
		return nil, err
	}
	lesson, err := buildLesson(courseID, in)
	if err != nil {
		return nil, err
	}
	s.probeDuration(ctx, lesson)

	if err := s.Content.CreateLesson(ctx, lesson); err != nil {
		return nil, storeErr(err)
	}
	return &PublishResult{
		Item:          lesson,
		Notifications: s.notify(ctx, ContentPublishedEvent{CourseID: courseID, Type: model.NotifyNewLesson, Title: lesson.Title}),
	}, nil
}

func (s *ContentService) PublishQuiz(ctx context.Context, viewer *util.Claims, courseID uint, in QuizInput) (*PublishResult, error) {
	if err := s.authorize(ctx, viewer, courseID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", util.ErrInvalidContent)
	}
	quiz := &model.Quiz{CourseID: courseID, Title: in.Title}
	if err := s.Content.CreateQuiz(ctx, quiz); err != nil {
		return nil, storeErr(err)
	}
	return &PublishResult{
		Item:          quiz,
		Notifications: s.notify(ctx, ContentPublishedEvent{CourseID: courseID, Type: model.NotifyNewQuiz, Title: quiz.Title}),
	}, nil
}

func (s *ContentService) PublishAssignment(ctx context.Context, viewer *util.Claims, courseID uint, in AssignmentInput) (*PublishResult, error) {
	if err := s.authorize(ctx, viewer, courseID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", util.ErrInvalidContent)
	}
	assignment := &model.Assignment{
		CourseID:    courseID,
		Title:       in.Title,
		Description: in.Description,
		Deadline:    in.Deadline,
	}
	if err := s.Content.CreateAssignment(ctx, assignment); err != nil {
		return nil, storeErr(err)
	}
	return &PublishResult{
		Item: assignment,
		Notifications: s.notify(ctx, ContentPublishedEvent{
			CourseID: courseID,
			Type:     model.NotifyNewAssignment,
			Title:    assignment.Title,
			Deadline: assignment.Deadline,
		}),
	}, nil
}
