package model

import "time"

// swagger:model Course
type Course struct {
	BaseModel
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	TeacherID   uint   `gorm:"index" json:"teacherId"`
}

func (Course) TableName() string {
	return "courses"
}

// Enrollment 学生选课记录
type Enrollment struct {
	BaseModel
	UserID   uint `gorm:"uniqueIndex:idx_enrollment_user_course" json:"userId"`
	CourseID uint `gorm:"uniqueIndex:idx_enrollment_user_course" json:"courseId"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

type Quiz struct {
	BaseModel
	CourseID uint   `gorm:"index;not null" json:"courseId"`
	Title    string `gorm:"size:255;not null" json:"title"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

type QuizCompletion struct {
	BaseModel
	UserID      uint      `gorm:"uniqueIndex:idx_quiz_completion" json:"userId"`
	QuizID      uint      `gorm:"uniqueIndex:idx_quiz_completion" json:"quizId"`
	CompletedAt time.Time `json:"completedAt"`
}

func (QuizCompletion) TableName() string {
	return "quiz_completions"
}

type Assignment struct {
	BaseModel
	CourseID    uint       `gorm:"index;not null" json:"courseId"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

func (Assignment) TableName() string {
	return "assignments"
}

type AssignmentSubmission struct {
	BaseModel
	UserID       uint      `gorm:"index:idx_assignment_submission" json:"userId"`
	AssignmentID uint      `gorm:"index:idx_assignment_submission" json:"assignmentId"`
	SubmittedAt  time.Time `json:"submittedAt"`
}

func (AssignmentSubmission) TableName() string {
	return "assignment_submissions"
}
