package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// LessonType 是课程管理端存储的原始类型标记，实际展示形态以分类结果为准
type LessonType string

const (
	LessonTypeVideo    LessonType = "video"
	LessonTypePractice LessonType = "practice"
	LessonTypeText     LessonType = "text"
)

// swagger:model Lesson
type Lesson struct {
	BaseModel
	CourseID   uint       `gorm:"index;not null" json:"courseId"`
	Title      string     `gorm:"size:255;not null" json:"title"`
	LessonType LessonType `gorm:"size:20" json:"lessonType"`
	VideoURL   string     `gorm:"size:500" json:"videoUrl"`
	Duration   float64    `gorm:"default:0" json:"duration"` // 秒
	Content    string     `gorm:"type:longtext" json:"content"`
	Order      int        `gorm:"default:0" json:"order"`
	Exercises  []Exercise `gorm:"foreignKey:LessonID" json:"exercises"`
}

func (Lesson) TableName() string {
	return "lessons"
}

type Exercise struct {
	BaseModel
	LessonID  uint       `gorm:"index;not null" json:"lessonId"`
	Title     string     `gorm:"size:255;not null" json:"title"`
	Content   string     `gorm:"type:text" json:"content"`
	Order     int        `gorm:"default:0" json:"order"`
	Questions []Question `gorm:"foreignKey:ExerciseID" json:"questions"`
}

func (Exercise) TableName() string {
	return "exercises"
}

type Question struct {
	BaseModel
	ExerciseID   uint   `gorm:"index;not null" json:"exerciseId"`
	Prompt       string `gorm:"type:text;not null" json:"prompt"`
	Options      string `gorm:"type:json" json:"options"` // string array JSON: ["A", "B"]
	CorrectIndex int    `gorm:"default:0" json:"-"`
	Order        int    `gorm:"default:0" json:"order"`
}

func (Question) TableName() string {
	return "questions"
}

// OptionList 解析失败时返回空列表
func (q *Question) OptionList() []string {
	var opts []string
	if q.Options == "" {
		return opts
	}
	if err := json.Unmarshal([]byte(q.Options), &opts); err != nil {
		return nil
	}
	return opts
}

// ItemID 是进度记录中一条完成项的复合标识。
// 没有题目的练习以 QuestionID == 0 作为整体完成项。
type ItemID struct {
	ExerciseID uint `json:"exerciseId"`
	QuestionID uint `json:"questionId"`
}

func (id ItemID) String() string {
	return fmt.Sprintf("%d:%d", id.ExerciseID, id.QuestionID)
}

// ParseItemID 解析 "exerciseId:questionId" 形式的标识
func ParseItemID(s string) (ItemID, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return ItemID{}, fmt.Errorf("invalid item id %q", s)
	}
	ex, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return ItemID{}, fmt.Errorf("invalid item id %q: %w", s, err)
	}
	q, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return ItemID{}, fmt.Errorf("invalid item id %q: %w", s, err)
	}
	return ItemID{ExerciseID: uint(ex), QuestionID: uint(q)}, nil
}

func (l *Lesson) HasExercises() bool {
	return len(l.Exercises) > 0
}

// HasQuestions 至少一个练习包含题目
func (l *Lesson) HasQuestions() bool {
	for _, ex := range l.Exercises {
		if len(ex.Questions) > 0 {
			return true
		}
	}
	return false
}

// ExerciseItems 返回单个练习的完成项，按题目顺序
func (e *Exercise) ExerciseItems() []ItemID {
	if len(e.Questions) == 0 {
		return []ItemID{{ExerciseID: e.ID}}
	}
	items := make([]ItemID, 0, len(e.Questions))
	for _, q := range e.Questions {
		items = append(items, ItemID{ExerciseID: e.ID, QuestionID: q.ID})
	}
	return items
}

// Items 将所有练习展开为一个有序的完成项序列
func (l *Lesson) Items() []ItemID {
	var items []ItemID
	for i := range l.Exercises {
		items = append(items, l.Exercises[i].ExerciseItems()...)
	}
	return items
}

func (l *Lesson) FindExercise(exerciseID uint) (*Exercise, bool) {
	for i := range l.Exercises {
		if l.Exercises[i].ID == exerciseID {
			return &l.Exercises[i], true
		}
	}
	return nil, false
}

// FindQuestion 按题目 ID 查找，同时返回所属练习
func (l *Lesson) FindQuestion(questionID uint) (*Exercise, *Question, bool) {
	for i := range l.Exercises {
		ex := &l.Exercises[i]
		for j := range ex.Questions {
			if ex.Questions[j].ID == questionID {
				return ex, &ex.Questions[j], true
			}
		}
	}
	return nil, nil, false
}
