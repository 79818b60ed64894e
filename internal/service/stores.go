package service

import (
	"context"
	"edu_progress_backend/internal/model"
)

// LessonStore 课时/练习/题目的只读视图，返回的课时已按顺序预加载练习和题目
type LessonStore interface {
	FindLesson(ctx context.Context, courseID, lessonID uint) (*model.Lesson, error)
	ListLessons(ctx context.Context, courseID uint) ([]model.Lesson, error)
}

// ProgressMutation 在持有行锁的事务内修改进度；返回 error 时整个事务回滚
type ProgressMutation func(p *model.LessonProgress) error

type ProgressStore interface {
	// FindProgress 没有记录时返回 (nil, nil)
	FindProgress(ctx context.Context, userID, lessonID uint) (*model.LessonProgress, error)
	ListCourseProgress(ctx context.Context, userID, courseID uint) ([]model.LessonProgress, error)
	// UpdateProgress 不存在时先创建记录；新追加到 Items 的完成项按唯一键合并写入
	UpdateProgress(ctx context.Context, userID, courseID, lessonID uint, fn ProgressMutation) (*model.LessonProgress, error)
}

// CourseStore 课程聚合所需的测验/作业数据，归属课程管理端
type CourseStore interface {
	FindCourse(ctx context.Context, courseID uint) (*model.Course, error)
	ListQuizIDs(ctx context.Context, courseID uint) ([]uint, error)
	ListCompletedQuizIDs(ctx context.Context, userID, courseID uint) ([]uint, error)
	ListAssignmentIDs(ctx context.Context, courseID uint) ([]uint, error)
	ListSubmittedAssignmentIDs(ctx context.Context, userID, courseID uint) ([]uint, error)
	ListEnrolledCourseIDs(ctx context.Context, userID uint) ([]uint, error)
}

// RosterStore 通知派发读取选课名单
type RosterStore interface {
	FindCourse(ctx context.Context, courseID uint) (*model.Course, error)
	FindUser(ctx context.Context, userID uint) (*model.User, error)
	ListEnrolledStudents(ctx context.Context, courseID uint) ([]model.User, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID uint, limit int) ([]model.Notification, error)
}

// ContentStore 内容发布协作方的写入接口
type ContentStore interface {
	CreateLesson(ctx context.Context, lesson *model.Lesson) error
	CreateQuiz(ctx context.Context, quiz *model.Quiz) error
	CreateAssignment(ctx context.Context, assignment *model.Assignment) error
}
