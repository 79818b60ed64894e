package repository

import (
	"context"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/internal/service"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

var _ service.ProgressStore = (*ProgressRepository)(nil)

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func itemsByID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

func (r *ProgressRepository) FindProgress(ctx context.Context, userID, lessonID uint) (*model.LessonProgress, error) {
	var p model.LessonProgress
	err := r.DB.WithContext(ctx).
		Preload("Items", itemsByID).
		Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListCourseProgress 汇总只看完成标记，不加载完成项
func (r *ProgressRepository) ListCourseProgress(ctx context.Context, userID, courseID uint) ([]model.LessonProgress, error) {
	var list []model.LessonProgress
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("lesson_id ASC").
		Find(&list).Error
	return list, err
}

// UpdateProgress 整个修改在一个事务里：
// 先插入空记录（已存在则忽略），再 SELECT ... FOR UPDATE 锁住该行，
// 同一 (学生, 课时) 的并发修改因此串行执行。
func (r *ProgressRepository) UpdateProgress(ctx context.Context, userID, courseID, lessonID uint, fn service.ProgressMutation) (*model.LessonProgress, error) {
	var out *model.LessonProgress
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := model.LessonProgress{
			UserID:   userID,
			CourseID: courseID,
			LessonID: lessonID,
			Status:   model.StatusNotStarted,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}

		var p model.LessonProgress
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND lesson_id = ?", userID, lessonID).
			First(&p).Error; err != nil {
			return err
		}
		if err := itemsByID(tx).Where("progress_id = ?", p.ID).Find(&p.Items).Error; err != nil {
			return err
		}

		known := len(p.Items)
		if err := fn(&p); err != nil {
			return err
		}

		if added := p.Items[known:]; len(added) > 0 {
			for i := range added {
				added[i].ProgressID = p.ID
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&added).Error; err != nil {
				return err
			}
		}

		err := tx.Model(&model.LessonProgress{}).
			Where("id = ?", p.ID).
			Updates(map[string]interface{}{
				"status":                p.Status,
				"video_watched":         p.VideoWatched,
				"watched_fraction":      p.WatchedFraction,
				"completion_percentage": p.CompletionPercentage,
				"completed":             p.Completed,
				"started_at":            p.StartedAt,
				"completed_at":          p.CompletedAt,
			}).Error
		if err != nil {
			return err
		}

		out = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
