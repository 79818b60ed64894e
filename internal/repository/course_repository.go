package repository

import (
	"context"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/internal/util"
	"errors"

	"gorm.io/gorm"
)

// CourseRepository 课程、选课、测验、作业以及内容发布写入
type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) FindCourse(ctx context.Context, courseID uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.WithContext(ctx).First(&course, courseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *CourseRepository) FindUser(ctx context.Context, userID uint) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *CourseRepository) ListQuizIDs(ctx context.Context, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Quiz{}).
		Where("course_id = ?", courseID).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *CourseRepository) ListCompletedQuizIDs(ctx context.Context, userID, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.QuizCompletion{}).
		Joins("JOIN quizzes ON quizzes.id = quiz_completions.quiz_id AND quizzes.deleted_at IS NULL").
		Where("quiz_completions.user_id = ? AND quizzes.course_id = ?", userID, courseID).
		Pluck("quiz_completions.quiz_id", &ids).Error
	return ids, err
}

func (r *CourseRepository) ListAssignmentIDs(ctx context.Context, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Assignment{}).
		Where("course_id = ?", courseID).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *CourseRepository) ListSubmittedAssignmentIDs(ctx context.Context, userID, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.AssignmentSubmission{}).
		Joins("JOIN assignments ON assignments.id = assignment_submissions.assignment_id AND assignments.deleted_at IS NULL").
		Where("assignment_submissions.user_id = ? AND assignments.course_id = ?", userID, courseID).
		Pluck("assignment_submissions.assignment_id", &ids).Error
	return ids, err
}

func (r *CourseRepository) ListEnrolledCourseIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("user_id = ?", userID).
		Order("course_id ASC").
		Pluck("course_id", &ids).Error
	return ids, err
}

// ListEnrolledStudents 选课的有效学生账号
func (r *CourseRepository) ListEnrolledStudents(ctx context.Context, courseID uint) ([]model.User, error) {
	var users []model.User
	err := r.DB.WithContext(ctx).
		Joins("JOIN enrollments ON enrollments.user_id = users.id AND enrollments.deleted_at IS NULL").
		Where("enrollments.course_id = ? AND users.role = ? AND users.disabled = ?", courseID, model.Student, false).
		Order("users.id ASC").
		Find(&users).Error
	return users, err
}

// CreateLesson 练习和题目随课时一起写入
func (r *CourseRepository) CreateLesson(ctx context.Context, lesson *model.Lesson) error {
	return r.DB.WithContext(ctx).Create(lesson).Error
}

func (r *CourseRepository) CreateQuiz(ctx context.Context, quiz *model.Quiz) error {
	return r.DB.WithContext(ctx).Create(quiz).Error
}

func (r *CourseRepository) CreateAssignment(ctx context.Context, assignment *model.Assignment) error {
	return r.DB.WithContext(ctx).Create(assignment).Error
}
