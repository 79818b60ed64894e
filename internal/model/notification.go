package model

import "time"

type NotificationType string

const (
	NotifyNewLesson     NotificationType = "new_lesson"
	NotifyNewQuiz       NotificationType = "new_quiz"
	NotifyNewAssignment NotificationType = "new_assignment"
)

type NotificationStatus string

const (
	NotificationSent   NotificationStatus = "sent"
	NotificationFailed NotificationStatus = "failed"
)

// Notification 站内通知，每次派发无论成功与否都会留一条记录
// swagger:model Notification
type Notification struct {
	BaseModel
	UserID    uint               `gorm:"index;not null" json:"userId"`
	CourseID  uint               `gorm:"index;not null" json:"courseId"`
	Type      NotificationType   `gorm:"size:30;not null" json:"type"`
	Message   string             `gorm:"type:text" json:"message"`
	Deadline  *time.Time         `json:"deadline,omitempty"`
	Status    NotificationStatus `gorm:"size:20" json:"status"`
	Reason    string             `gorm:"size:255" json:"reason,omitempty"`
	RequestID string             `gorm:"size:36;index" json:"requestId"`
	ReadAt    *time.Time         `json:"readAt,omitempty"`
}

func (Notification) TableName() string {
	return "notifications"
}
