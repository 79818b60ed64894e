package service

import (
	"edu_progress_backend/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTextLessonGateNeverRelocks(t *testing.T) {
	lesson := &model.Lesson{Exercises: []model.Exercise{exerciseWithQuestions(1), exerciseWithQuestions(2)}}
	p := progressWith()

	assert.False(t, ContentUnlocked(p, lesson))

	p.Items = append(p.Items, model.LessonProgressItem{ExerciseID: 2})
	settle(p, lesson, time.Now())
	assert.False(t, ContentUnlocked(p, lesson))

	p.Items = append(p.Items, model.LessonProgressItem{ExerciseID: 1})
	settle(p, lesson, time.Now())
	assert.True(t, ContentUnlocked(p, lesson))
	assert.True(t, p.Completed)

	// 课程管理端追加练习后，已完成的课时保持解锁
	lesson.Exercises = append(lesson.Exercises, exerciseWithQuestions(3))
	assert.True(t, ContentUnlocked(p, lesson))
	assert.True(t, CompletionAllowed(p, lesson))
}

func TestGateForTextLessonWithoutExercises(t *testing.T) {
	lesson := &model.Lesson{Content: "# notes"}

	gate := EvaluateGate(nil, lesson)
	assert.True(t, gate.ContentUnlocked)
	assert.True(t, gate.CompletionAllowed)
	assert.False(t, gate.VideoPlayable)

	p := progressWith()
	settle(p, lesson, time.Now())
	assert.False(t, p.Completed, "text lessons complete only on explicit signal")
}

func TestGateForVideoLesson(t *testing.T) {
	lesson := &model.Lesson{VideoURL: "/uploads/v.mp4", Exercises: []model.Exercise{exerciseWithQuestions(1, 11)}}
	p := progressWith(model.ItemID{ExerciseID: 1, QuestionID: 11})

	gate := EvaluateGate(p, lesson)
	assert.True(t, gate.VideoPlayable)
	assert.True(t, gate.ContentUnlocked)
	assert.False(t, gate.CompletionAllowed, "video must be watched first")

	p.VideoWatched = true
	assert.True(t, CompletionAllowed(p, lesson))
}

func TestExerciseDone(t *testing.T) {
	ex := exerciseWithQuestions(1, 11, 12)
	p := progressWith(model.ItemID{ExerciseID: 1, QuestionID: 12})
	assert.False(t, ExerciseDone(p, &ex))

	p.Items = append(p.Items, model.LessonProgressItem{ExerciseID: 1, QuestionID: 11})
	assert.True(t, ExerciseDone(p, &ex))
}
