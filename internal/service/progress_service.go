package service

import (
	"context"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/internal/util"
	"edu_progress_backend/pkg/logger"
	"edu_progress_backend/pkg/monitoring"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// ProgressService 维护每个 (学生, 课时) 的进度状态机：
// not_started -> in_progress -> completed（终态）。
// 每次修改都在存储层的单个事务里完成，要么全部生效要么完全不生效。
type ProgressService struct {
	Lessons  LessonStore
	Progress ProgressStore
	Cache    ProgressCache
	Settings *ProgressSettings
	now      func() time.Time
}

func NewProgressService(lessons LessonStore, progress ProgressStore, cache ProgressCache, settings *ProgressSettings) *ProgressService {
	return &ProgressService{
		Lessons:  lessons,
		Progress: progress,
		Cache:    cache,
		Settings: settings,
		now:      time.Now,
	}
}

// ProgressView 对外的进度记录
type ProgressView struct {
	CourseID             uint                 `json:"course_id"`
	LessonID             uint                 `json:"lesson_id"`
	Variant              LessonVariant        `json:"variant"`
	Status               model.ProgressStatus `json:"status"`
	VideoWatched         bool                 `json:"video_watched"`
	WatchedFraction      float64              `json:"watched_fraction"`
	CompletedExercises   []string             `json:"completed_exercises"`
	CompletionPercentage int                  `json:"completion_percentage"`
	Completed            bool                 `json:"completed"`
	GateState
}

// ItemUpdate 标记练习/题目完成。QuestionID 为空时标记整个练习。
type ItemUpdate struct {
	ExerciseID    uint
	QuestionID    *uint
	SelectedIndex *int
	IsCorrect     *bool
}

// QuestionView 下一道待答题目，不包含正确答案
type QuestionView struct {
	ExerciseID    uint     `json:"exercise_id"`
	ExerciseTitle string   `json:"exercise_title"`
	QuestionID    uint     `json:"question_id"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	Position      int      `json:"position"`
	Total         int      `json:"total"`
}

type AnswerResult struct {
	IsCorrect       bool          `json:"is_correct"`
	CorrectIndex    int           `json:"correct_index"`
	ExerciseDone    bool          `json:"exercise_done"`
	ContentUnlocked bool          `json:"content_unlocked"`
	NextQuestion    *QuestionView `json:"next_question"`
	Progress        *ProgressView `json:"progress"`
}

// storeErr 业务错误原样返回，其余存储错误归为可重试的暂时性故障
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, util.ErrLessonNotFound),
		errors.Is(err, util.ErrCourseNotFound),
		errors.Is(err, util.ErrUserNotFound),
		errors.Is(err, util.ErrInvalidReference),
		errors.Is(err, util.ErrInvalidProgressUpdate),
		errors.Is(err, util.ErrCompletionGated),
		errors.Is(err, util.ErrPermissionDenied),
		errors.Is(err, util.ErrInvalidContent),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %w", util.ErrTransientStore, err)
}

func (s *ProgressService) loadLesson(ctx context.Context, courseID, lessonID uint) (*model.Lesson, error) {
	lesson, err := s.Lessons.FindLesson(ctx, courseID, lessonID)
	if err != nil {
		return nil, storeErr(err)
	}
	return lesson, nil
}

func (s *ProgressService) View(p *model.LessonProgress, lesson *model.Lesson) *ProgressView {
	v := &ProgressView{
		CourseID:           lesson.CourseID,
		LessonID:           lesson.ID,
		Variant:            Classify(lesson),
		Status:             model.StatusNotStarted,
		CompletedExercises: p.CompletedItemIDs(),
		GateState:          EvaluateGate(p, lesson),
	}
	if p != nil {
		v.Status = p.Status
		v.VideoWatched = p.VideoWatched
		v.WatchedFraction = p.WatchedFraction
		v.CompletionPercentage = p.CompletionPercentage
		v.Completed = p.Completed
	}
	return v
}

func (s *ProgressService) GetProgress(ctx context.Context, userID, courseID, lessonID uint) (*ProgressView, error) {
	lesson, err := s.loadLesson(ctx, courseID, lessonID)
	if err != nil {
		return nil, err
	}
	p, err := s.Progress.FindProgress(ctx, userID, lessonID)
	if err != nil {
		return nil, storeErr(err)
	}
	return s.View(p, lesson), nil
}

// GetLessonProgress 同时返回课时和原始进度（进度可能为 nil）
func (s *ProgressService) GetLessonProgress(ctx context.Context, userID, courseID, lessonID uint) (*model.Lesson, *model.LessonProgress, error) {
	lesson, err := s.loadLesson(ctx, courseID, lessonID)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.Progress.FindProgress(ctx, userID, lessonID)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	return lesson, p, nil
}

func start(p *model.LessonProgress, now time.Time) {
	if p.Status == "" || p.Status == model.StatusNotStarted {
		p.Status = model.StatusInProgress
	}
	if p.StartedAt == nil {
		p.StartedAt = &now
	}
}

func markCompleted(p *model.LessonProgress, now time.Time) {
	if p.Completed {
		return
	}
	start(p, now)
	p.Completed = true
	p.Status = model.StatusCompleted
	p.CompletedAt = &now
	p.CompletionPercentage = 100
}

// settle 推导完成状态并单调更新完成度
func settle(p *model.LessonProgress, lesson *model.Lesson, now time.Time) {
	if p.Status == "" {
		p.Status = model.StatusNotStarted
	}
	if !p.Completed && intrinsicCompletion(p, lesson) {
		markCompleted(p, now)
	}
	if pct := LessonPercent(p, lesson); pct > p.CompletionPercentage {
		p.CompletionPercentage = pct
	}
	if p.Completed {
		p.CompletionPercentage = 100
	}
}

func (s *ProgressService) mutate(ctx context.Context, kind string, userID, courseID uint, lesson *model.Lesson, fn ProgressMutation) (*model.LessonProgress, error) {
	now := s.now()
	p, err := s.Progress.UpdateProgress(ctx, userID, courseID, lesson.ID, func(p *model.LessonProgress) error {
		if err := fn(p); err != nil {
			return err
		}
		settle(p, lesson, now)
		return nil
	})
	if err != nil {
		monitoring.ProgressUpdates.WithLabelValues(kind, "rejected").Inc()
		err = storeErr(err)
		if errors.Is(err, util.ErrTransientStore) {
			logger.Log.Error("progress update failed",
				zap.String("kind", kind),
				zap.Uint("userId", userID),
				zap.Uint("lessonId", lesson.ID),
				zap.Error(err))
		}
		return nil, err
	}
	monitoring.ProgressUpdates.WithLabelValues(kind, "applied").Inc()

	if s.Cache != nil {
		s.Cache.InvalidateCourseProgress(ctx, userID, courseID)
	}
	return p, nil
}

// RecordPlayback 播放器上报的进度。duration 缺省时使用课时时长。
func (s *ProgressService) RecordPlayback(ctx context.Context, userID, courseID, lessonID uint, currentTime, duration float64) (*ProgressView, error) {
	lesson, err := s.loadLesson(ctx, courseID, lessonID)
	if err != nil {
		return nil, err
	}
	if Classify(lesson) != VariantVideo {
		return nil, fmt.Errorf("%w: lesson %d has no video", util.ErrInvalidProgressUpdate, lessonID)
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) {
		return nil, fmt.Errorf("%w: invalid duration", util.ErrInvalidProgressUpdate)
	}
	if duration <= 0 {
		duration = lesson.Duration
	}
	if duration <= 0 || currentTime < 0 || math.IsNaN(currentTime) || math.IsInf(currentTime, 0) {
		return nil, fmt.Errorf("%w: invalid playback position", util.ErrInvalidProgressUpdate)
	}
	fraction := math.Min(currentTime/duration, 1)
	threshold := s.Settings.VideoThreshold()

	p, err := s.mutate(ctx, "playback", userID, courseID, lesson, func(p *model.LessonProgress) error {
		start(p, s.now())
		if fraction > p.WatchedFraction {
			p.WatchedFraction = fraction
		}
		if !p.VideoWatched && fraction >= threshold {
			p.VideoWatched = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.View(p, lesson), nil
}

// MarkVideoWatched 对应 {video_watched: bool}；false 不会撤销已观看
func (s *ProgressService) MarkVideoWatched(ctx context.Context, userID, courseID, lessonID uint, watched bool) (*ProgressView, error) {
	lesson, err := s.loadLesson(ctx, courseID, lessonID)
	if err != nil {
		return nil, err
	}
	if Classify(lesson) != VariantVideo {
		return nil, fmt.Errorf("%w: lesson %d has no video", util.ErrInvalidProgressUpdate, lessonID)
	}
	if !watched {
		return s.GetProgress(ctx, userID, courseID, lessonID)
	}
	threshold := s.Settings.VideoThreshold()

	p, err := s.mutate(ctx, "video_watched", userID, courseID, lesson, func(p *model.LessonProgress) error {
		start(p, s.now())
		p.VideoWatched = true
		if p.WatchedFraction < threshold {
			p.WatchedFraction = threshold
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.View(p, lesson), nil
}

type resolvedItem struct {
	id        model.ItemID
	isCorrect *bool
}

// resolveItems 校验引用；任何一项不属于课时都拒绝整个请求
func resolveItems(lesson *model.Lesson, upd ItemUpdate) ([]resolvedItem, error) {
	ex, ok := lesson.FindExercise(upd.ExerciseID)
	if !ok {
		return nil, fmt.Errorf("%w: exercise %d", util.ErrInvalidReference, upd.ExerciseID)
	}

	if upd.QuestionID == nil || *upd.QuestionID == 0 {
		items := ex.ExerciseItems()
		out := make([]resolvedItem, 0, len(items))
		for _, id := range items {
			out = append(out, resolvedItem{id: id, isCorrect: upd.IsCorrect})
		}
		return out, nil
	}

	for i := range ex.Questions {
		q := &ex.Questions[i]
		if q.ID != *upd.QuestionID {
			continue
		}
		isCorrect := upd.IsCorrect
		if upd.SelectedIndex != nil {
			sel := *upd.SelectedIndex
			if n := len(q.OptionList()); sel < 0 || (n > 0 && sel >= n) {
				return nil, fmt.Errorf("%w: option %d out of range", util.ErrInvalidProgressUpdate, sel)
			}
			correct := sel == q.CorrectIndex
			isCorrect = &correct
		}
		return []resolvedItem{{id: model.ItemID{ExerciseID: ex.ID, QuestionID: q.ID}, isCorrect: isCorrect}}, nil
	}
	return nil, fmt.Errorf("%w: question %d in exercise %d", util.ErrInvalidReference, *upd.QuestionID, upd.ExerciseID)
}

func (s *ProgressService) markItems(ctx context.Context, userID, courseID uint, lesson *model.Lesson, items []resolvedItem) (*model.LessonProgress, error) {
	return s.mutate(ctx, "item", userID, courseID, lesson, func(p *model.LessonProgress) error {
		now := s.now()
		start(p, now)
		for _, it := range items {
			// 重复提交不报错也不重复计数
			if p.HasItem(it.id) {
				continue
			}
			p.Items = append(p.Items, model.LessonProgressItem{
				ProgressID: p.ID,
				ExerciseID: it.id.ExerciseID,
				QuestionID: it.id.QuestionID,
				IsCorrect:  it.isCorrect,
				CreatedAt:  now,
			})
		}
		return nil
	})
}

// MarkItemCompleted 对应 {completed_exercise_id, question_id?, is_correct?}
func (s *ProgressService) MarkItemCompleted(ctx context.Context, userID, courseID, lessonID uint, upd ItemUpdate) (*ProgressView, error) {
	lesson, err := s.loadLesson(ctx, courseID, lessonID)
	if err != nil {
		return nil, err
	}
	items, err := resolveItems(lesson, upd)
	if err != nil {
		monitoring.ProgressUpdates.WithLabelValues("item", "rejected").Inc()
		return nil, err
	}
	p, err := s.markItems(ctx, userID, courseID, lesson, items)
	if err != nil {
		return nil, err
	}
	return s.View(p, lesson), nil
}

// SubmitAnswer 逐题作答。答对与否只作为反馈，作答本身就会记为完成。
func (s *ProgressService) SubmitAnswer(ctx context.Context, userID, courseID, lessonID, questionID uint, selected int) (*AnswerResult, error) {
	lesson, err := s.loadLesson(ctx, courseID, lessonID)
	if err != nil {
		return nil, err
	}
	ex, q, ok := lesson.FindQuestion(questionID)
	if !ok {
		monitoring.ProgressUpdates.WithLabelValues("item", "rejected").Inc()
		return nil, fmt.Errorf("%w: question %d", util.ErrInvalidReference, questionID)
	}
	items, err := resolveItems(lesson, ItemUpdate{ExerciseID: ex.ID, QuestionID: &q.ID, SelectedIndex: &selected})
	if err != nil {
		return nil, err
	}
	p, err := s.markItems(ctx, userID, courseID, lesson, items)
	if err != nil {
		return nil, err
	}

	return &AnswerResult{
		IsCorrect:       items[0].isCorrect != nil && *items[0].isCorrect,
		CorrectIndex:    q.CorrectIndex,
		ExerciseDone:    ExerciseDone(p, ex),
		ContentUnlocked: ContentUnlocked(p, lesson),
		NextQuestion:    NextQuestion(p, lesson),
		Progress:        s.View(p, lesson),
	}, nil
}

// MarkLessonCompleted 显式完成信号，是没有练习的图文课时唯一的完成途径。
// 有门控的课时必须先满足条件；completed=false 不会撤销完成。
func (s *ProgressService) MarkLessonCompleted(ctx context.Context, userID, courseID, lessonID uint, completed bool) (*ProgressView, error) {
	lesson, err := s.loadLesson(ctx, courseID, lessonID)
	if err != nil {
		return nil, err
	}
	if !completed {
		return s.GetProgress(ctx, userID, courseID, lessonID)
	}

	p, err := s.mutate(ctx, "complete", userID, courseID, lesson, func(p *model.LessonProgress) error {
		if p.Completed {
			return nil
		}
		if !CompletionAllowed(p, lesson) {
			return util.ErrCompletionGated
		}
		markCompleted(p, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.View(p, lesson), nil
}

// NextQuestion 展开后的题目序列中第一道未完成的题目，全部完成时返回 nil
func NextQuestion(p *model.LessonProgress, lesson *model.Lesson) *QuestionView {
	set := p.CompletedSet()
	items := lesson.Items()
	for i, id := range items {
		if set[id] {
			continue
		}
		ex, _ := lesson.FindExercise(id.ExerciseID)
		view := &QuestionView{
			ExerciseID:    ex.ID,
			ExerciseTitle: ex.Title,
			QuestionID:    id.QuestionID,
			Prompt:        ex.Content,
			Position:      i + 1,
			Total:         len(items),
		}
		if id.QuestionID != 0 {
			_, q, _ := lesson.FindQuestion(id.QuestionID)
			view.Prompt = q.Prompt
			view.Options = q.OptionList()
		}
		return view
	}
	return nil
}
