package model

import "time"

type ProgressStatus string

const (
	StatusNotStarted ProgressStatus = "not_started"
	StatusInProgress ProgressStatus = "in_progress"
	StatusCompleted  ProgressStatus = "completed"
)

// LessonProgress 每个 (学生, 课时) 一行，只增不删
// swagger:model LessonProgress
type LessonProgress struct {
	ID                   uint                 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID               uint                 `gorm:"uniqueIndex:idx_progress_user_lesson;not null" json:"userId"`
	CourseID             uint                 `gorm:"index;not null" json:"courseId"`
	LessonID             uint                 `gorm:"uniqueIndex:idx_progress_user_lesson;not null" json:"lessonId"`
	Status               ProgressStatus       `gorm:"size:20;default:'not_started'" json:"status"`
	VideoWatched         bool                 `gorm:"default:false" json:"videoWatched"`
	WatchedFraction      float64              `gorm:"default:0" json:"watchedFraction"`
	CompletionPercentage int                  `gorm:"default:0" json:"completionPercentage"`
	Completed            bool                 `gorm:"default:false" json:"completed"`
	StartedAt            *time.Time           `json:"startedAt,omitempty"`
	CompletedAt          *time.Time           `json:"completedAt,omitempty"`
	Items                []LessonProgressItem `gorm:"foreignKey:ProgressID" json:"items"`
	CreatedAt            time.Time            `json:"createdAt"`
	UpdatedAt            time.Time            `json:"updatedAt"`
}

func (LessonProgress) TableName() string {
	return "lesson_progress"
}

// LessonProgressItem 一条已完成的题目（或无题练习）
type LessonProgressItem struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProgressID uint      `gorm:"uniqueIndex:idx_progress_item;not null" json:"progressId"`
	ExerciseID uint      `gorm:"uniqueIndex:idx_progress_item;not null" json:"exerciseId"`
	QuestionID uint      `gorm:"uniqueIndex:idx_progress_item;not null" json:"questionId"`
	IsCorrect  *bool     `json:"isCorrect,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (LessonProgressItem) TableName() string {
	return "lesson_progress_items"
}

func (i LessonProgressItem) ItemID() ItemID {
	return ItemID{ExerciseID: i.ExerciseID, QuestionID: i.QuestionID}
}

// CompletedSet nil 记录视为空集合
func (p *LessonProgress) CompletedSet() map[ItemID]bool {
	set := make(map[ItemID]bool)
	if p == nil {
		return set
	}
	for _, item := range p.Items {
		set[item.ItemID()] = true
	}
	return set
}

func (p *LessonProgress) HasItem(id ItemID) bool {
	if p == nil {
		return false
	}
	for _, item := range p.Items {
		if item.ItemID() == id {
			return true
		}
	}
	return false
}

// CompletedItemIDs 对外输出的完成项标识，保持写入顺序
func (p *LessonProgress) CompletedItemIDs() []string {
	ids := make([]string, 0)
	if p == nil {
		return ids
	}
	for _, item := range p.Items {
		ids = append(ids, item.ItemID().String())
	}
	return ids
}
