package service

import (
	"edu_progress_backend/internal/model"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func progressWith(items ...model.ItemID) *model.LessonProgress {
	p := &model.LessonProgress{Status: model.StatusInProgress}
	for _, id := range items {
		p.Items = append(p.Items, model.LessonProgressItem{ExerciseID: id.ExerciseID, QuestionID: id.QuestionID})
	}
	return p
}

func TestRoundPercent(t *testing.T) {
	assert.Equal(t, 0, RoundPercent(-5))
	assert.Equal(t, 0, RoundPercent(math.NaN()))
	assert.Equal(t, 33, RoundPercent(100.0/3))
	assert.Equal(t, 67, RoundPercent(66.5))
	assert.Equal(t, 100, RoundPercent(99.6))
	assert.Equal(t, 100, RoundPercent(250))
}

func TestLessonPercentage(t *testing.T) {
	practice := &model.Lesson{Exercises: []model.Exercise{
		exerciseWithQuestions(1, 11, 12),
		exerciseWithQuestions(2, 21, 22),
	}}
	video := &model.Lesson{VideoURL: "/uploads/v.mp4", Exercises: []model.Exercise{exerciseWithQuestions(1, 11, 12)}}
	videoOnly := &model.Lesson{VideoURL: "/uploads/v.mp4"}

	t.Run("no record", func(t *testing.T) {
		assert.Zero(t, LessonPercentage(nil, practice))
	})

	t.Run("practice counts items", func(t *testing.T) {
		p := progressWith(model.ItemID{ExerciseID: 1, QuestionID: 11})
		assert.InDelta(t, 25, LessonPercentage(p, practice), 1e-9)
	})

	t.Run("video averages watch and exercises", func(t *testing.T) {
		p := progressWith(model.ItemID{ExerciseID: 1, QuestionID: 11})
		p.WatchedFraction = 0.5
		assert.InDelta(t, 50, LessonPercentage(p, video), 1e-9)
	})

	t.Run("video only is all or nothing", func(t *testing.T) {
		p := progressWith()
		p.WatchedFraction = 0.6
		assert.Zero(t, LessonPercentage(p, videoOnly))
		p.VideoWatched = true
		assert.Equal(t, 100.0, LessonPercentage(p, videoOnly))
	})

	t.Run("stale items are ignored", func(t *testing.T) {
		p := progressWith(model.ItemID{ExerciseID: 99, QuestionID: 1})
		assert.Zero(t, LessonPercentage(p, practice))
	})
}

func TestCoursePercentage(t *testing.T) {
	t.Run("quizzes only course", func(t *testing.T) {
		got := CoursePercentage(CourseCounts{QuizzesCompleted: 1, QuizzesTotal: 2}, DefaultWeights())
		assert.Equal(t, 50, RoundPercent(got))
	})

	t.Run("empty course", func(t *testing.T) {
		assert.Zero(t, CoursePercentage(CourseCounts{}, DefaultWeights()))
	})

	t.Run("weights are normalised over present dimensions", func(t *testing.T) {
		c := CourseCounts{LessonsCompleted: 2, LessonsTotal: 2, QuizzesCompleted: 0, QuizzesTotal: 1}
		got := CoursePercentage(c, Weights{Lessons: 2, Quizzes: 1, Assignments: 5})
		assert.InDelta(t, 200.0/3, got, 1e-9)
	})

	t.Run("rounding happens once", func(t *testing.T) {
		c := CourseCounts{
			LessonsCompleted: 1, LessonsTotal: 3,
			QuizzesCompleted: 1, QuizzesTotal: 3,
			AssignmentsSubmitted: 1, AssignmentsTotal: 3,
		}
		assert.Equal(t, 33, RoundPercent(CoursePercentage(c, DefaultWeights())))
	})
}

func TestStudentOverall(t *testing.T) {
	assert.Zero(t, StudentOverall(nil))
	assert.InDelta(t, 50, StudentOverall([]float64{100, 0, 50}), 1e-9)
}

func TestSettleIsMonotonic(t *testing.T) {
	lesson := &model.Lesson{VideoURL: "/uploads/v.mp4", Exercises: []model.Exercise{exerciseWithQuestions(1, 11)}}
	now := time.Now()

	p := progressWith()
	p.WatchedFraction = 0.9
	settle(p, lesson, now)
	assert.Equal(t, 45, p.CompletionPercentage)

	// 进度回退不会降低已记录的完成度
	p.WatchedFraction = 0.1
	settle(p, lesson, now)
	assert.Equal(t, 45, p.CompletionPercentage)
	assert.False(t, p.Completed)

	p.VideoWatched = true
	p.Items = append(p.Items, model.LessonProgressItem{ExerciseID: 1, QuestionID: 11})
	settle(p, lesson, now)
	require.True(t, p.Completed)
	assert.Equal(t, model.StatusCompleted, p.Status)
	assert.Equal(t, 100, p.CompletionPercentage)
	assert.NotNil(t, p.CompletedAt)
}

func TestLessonPercentNeverRoundsUpToComplete(t *testing.T) {
	qids := make([]uint, 200)
	for i := range qids {
		qids[i] = uint(1000 + i)
	}
	lesson := &model.Lesson{Exercises: []model.Exercise{exerciseWithQuestions(1, qids...)}}

	var items []model.ItemID
	for _, q := range qids[:199] {
		items = append(items, model.ItemID{ExerciseID: 1, QuestionID: q})
	}
	p := progressWith(items...)
	assert.InDelta(t, 99.5, LessonPercentage(p, lesson), 1e-9)
	assert.Equal(t, 99, LessonPercent(p, lesson))

	p = progressWith(append(items, model.ItemID{ExerciseID: 1, QuestionID: qids[199]})...)
	assert.Equal(t, 99, LessonPercent(p, lesson), "100 only once the record is completed")
	p.Completed = true
	assert.Equal(t, 100, LessonPercent(p, lesson))

	assert.Zero(t, LessonPercent(nil, lesson))
	assert.Equal(t, 100, LessonPercent(&model.LessonProgress{Completed: true}, lesson))
}
