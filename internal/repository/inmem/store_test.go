package inmem

import (
	"context"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/internal/util"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddLessonAssignsIDs(t *testing.T) {
	s := NewStore()
	lesson := s.AddLesson(model.Lesson{
		CourseID: 1,
		Exercises: []model.Exercise{
			{Title: "a", Questions: []model.Question{{Prompt: "q1"}, {Prompt: "q2"}}},
			{Title: "b"},
		},
	})

	require.NotZero(t, lesson.ID)
	ex := lesson.Exercises[0]
	assert.Equal(t, lesson.ID, ex.LessonID)
	assert.Equal(t, ex.ID, ex.Questions[1].ExerciseID)
	assert.NotEqual(t, ex.Questions[0].ID, ex.Questions[1].ID)

	// 返回的是副本
	lesson.Exercises[0].Title = "changed"
	stored, err := s.FindLesson(context.Background(), 1, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", stored.Exercises[0].Title)

	_, err = s.FindLesson(context.Background(), 2, lesson.ID)
	assert.ErrorIs(t, err, util.ErrLessonNotFound)
}

func TestUpdateProgressRollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.UpdateProgress(ctx, 1, 1, 10, func(p *model.LessonProgress) error {
		p.Items = append(p.Items, model.LessonProgressItem{ExerciseID: 1})
		return errors.New("rejected")
	})
	require.Error(t, err)

	p, err := s.FindProgress(ctx, 1, 10)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestUpdateProgressDedupesItems(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	add := func(p *model.LessonProgress) error {
		p.Items = append(p.Items,
			model.LessonProgressItem{ExerciseID: 1, QuestionID: 2},
			model.LessonProgressItem{ExerciseID: 1, QuestionID: 2},
		)
		return nil
	}

	first, err := s.UpdateProgress(ctx, 1, 1, 10, add)
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	assert.Equal(t, first.ID, first.Items[0].ProgressID)

	second, err := s.UpdateProgress(ctx, 1, 1, 10, add)
	require.NoError(t, err)
	assert.Len(t, second.Items, 1)
	assert.Equal(t, first.ID, second.ID)
}

func TestCourseQueriesFilterByCourse(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	q1 := s.AddQuiz(model.Quiz{CourseID: 1})
	q2 := s.AddQuiz(model.Quiz{CourseID: 2})
	s.CompleteQuiz(7, q1.ID)
	s.CompleteQuiz(7, q2.ID)

	ids, err := s.ListCompletedQuizIDs(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{q1.ID}, ids)

	a := s.AddAssignment(model.Assignment{CourseID: 2})
	s.SubmitAssignment(7, a.ID)
	ids, err = s.ListSubmittedAssignmentIDs(ctx, 7, 1)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFailureInjection(t *testing.T) {
	s := NewStore()
	boom := errors.New("boom")
	s.SetFailure(boom)

	_, err := s.ListLessons(context.Background(), 1)
	assert.ErrorIs(t, err, boom)

	s.SetFailure(nil)
	_, err = s.ListLessons(context.Background(), 1)
	assert.NoError(t, err)
}
