package repository

import (
	"context"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/internal/util"
	"errors"

	"gorm.io/gorm"
)

// LessonRepository 课时、练习、题目的只读视图
type LessonRepository struct {
	DB *gorm.DB
}

func NewLessonRepository(db *gorm.DB) *LessonRepository {
	return &LessonRepository{DB: db}
}

func byOrder(db *gorm.DB) *gorm.DB {
	return db.Order("`order` ASC, id ASC")
}

// FindLesson 练习和题目按 order 预加载，课时不属于该课程时视为不存在
func (r *LessonRepository) FindLesson(ctx context.Context, courseID, lessonID uint) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.WithContext(ctx).
		Preload("Exercises", byOrder).
		Preload("Exercises.Questions", byOrder).
		Where("id = ? AND course_id = ?", lessonID, courseID).
		First(&lesson).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrLessonNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

// ListLessons 课程下的全部课时，不加载练习
func (r *LessonRepository) ListLessons(ctx context.Context, courseID uint) ([]model.Lesson, error) {
	var lessons []model.Lesson
	err := byOrder(r.DB.WithContext(ctx)).
		Where("course_id = ?", courseID).
		Find(&lessons).Error
	return lessons, err
}
