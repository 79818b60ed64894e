package service

import (
	"context"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/internal/util"
	"edu_progress_backend/pkg/logger"
	"edu_progress_backend/pkg/monitoring"
	"edu_progress_backend/pkg/tracing"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultNotifyConcurrency = 10
	defaultNotifyTimeout     = 10 * time.Second

	reasonNoEmail = "No email address"
)

// NotificationRequest 发给单个学生的通知载荷
type NotificationRequest struct {
	StudentID    uint                   `json:"student_id"`
	StudentName  string                 `json:"student_name,omitempty"`
	StudentEmail string                 `json:"student_email"`
	CourseID     uint                   `json:"course_id"`
	CourseTitle  string                 `json:"course_title"`
	TeacherName  string                 `json:"teacher_name"`
	TeacherEmail string                 `json:"teacher_email"`
	Type         model.NotificationType `json:"type"`
	Message      string                 `json:"message"`
	Deadline     *time.Time             `json:"deadline,omitempty"`
}

type NotificationResult struct {
	StudentID uint   `json:"student_id"`
	Success   bool   `json:"success"`
	Reason    string `json:"reason,omitempty"`
}

// FanoutReport 一次派发的汇总；单个学生失败不影响其他学生
type FanoutReport struct {
	RequestID string               `json:"request_id"`
	Total     int                  `json:"total"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Results   []NotificationResult `json:"results"`
}

// Err 有失败时返回包装了 ErrPartialFanout 的错误
func (r *FanoutReport) Err() error {
	if r == nil || r.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d failed", util.ErrPartialFanout, r.Failed, r.Total)
}

// NotificationSender 投递单条通知。实现必须可并发调用。
type NotificationSender interface {
	Send(ctx context.Context, req NotificationRequest) error
}

// ContentPublishedEvent 课时/测验/作业发布事件
type ContentPublishedEvent struct {
	CourseID uint
	Type     model.NotificationType
	Title    string
	Deadline *time.Time
}

type NotificationService struct {
	Roster        RosterStore
	Notifications NotificationStore
	Sender        NotificationSender
	Concurrency   int
	Timeout       time.Duration
}

func NewNotificationService(roster RosterStore, notifications NotificationStore, sender NotificationSender, concurrency int, timeout time.Duration) *NotificationService {
	if concurrency <= 0 {
		concurrency = defaultNotifyConcurrency
	}
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &NotificationService{
		Roster:        roster,
		Notifications: notifications,
		Sender:        sender,
		Concurrency:   concurrency,
		Timeout:       timeout,
	}
}

func buildMessage(ev ContentPublishedEvent, course *model.Course) string {
	switch ev.Type {
	case model.NotifyNewLesson:
		return fmt.Sprintf("New lesson \"%s\" is available in %s", ev.Title, course.Title)
	case model.NotifyNewQuiz:
		return fmt.Sprintf("New quiz \"%s\" is available in %s", ev.Title, course.Title)
	case model.NotifyNewAssignment:
		if ev.Deadline != nil {
			return fmt.Sprintf("New assignment \"%s\" in %s, due %s", ev.Title, course.Title, ev.Deadline.Format(util.TimeFormat))
		}
		return fmt.Sprintf("New assignment \"%s\" in %s", ev.Title, course.Title)
	}
	return fmt.Sprintf("New content \"%s\" in %s", ev.Title, course.Title)
}

// Dispatch 向课程所有学生并发派发通知。返回的 error 只表示无法开始派发
// （课程或名单读取失败），单个学生的失败记录在 FanoutReport 中。
func (s *NotificationService) Dispatch(ctx context.Context, ev ContentPublishedEvent) (report *FanoutReport, err error) {
	ctx, span := tracing.Start(ctx, "NotificationService.Dispatch", map[string]uint{"course.id": ev.CourseID})
	defer func() { tracing.End(span, err) }()

	course, err := s.Roster.FindCourse(ctx, ev.CourseID)
	if err != nil {
		return nil, storeErr(err)
	}
	var teacher model.User
	if t, err := s.Roster.FindUser(ctx, course.TeacherID); err == nil {
		teacher = *t
	} else if !errors.Is(err, util.ErrUserNotFound) {
		return nil, storeErr(err)
	}
	students, err := s.Roster.ListEnrolledStudents(ctx, ev.CourseID)
	if err != nil {
		return nil, storeErr(err)
	}

	report = &FanoutReport{
		RequestID: uuid.NewString(),
		Total:     len(students),
		Results:   make([]NotificationResult, len(students)),
	}
	message := buildMessage(ev, course)

	var g errgroup.Group
	g.SetLimit(s.Concurrency)
	for i, st := range students {
		req := NotificationRequest{
			StudentID:    st.ID,
			StudentName:  st.Name,
			StudentEmail: st.Email,
			CourseID:     course.ID,
			CourseTitle:  course.Title,
			TeacherName:  teacher.Name,
			TeacherEmail: teacher.Email,
			Type:         ev.Type,
			Message:      message,
			Deadline:     ev.Deadline,
		}
		i := i
		g.Go(func() error {
			report.Results[i] = s.dispatchOne(ctx, req, report.RequestID)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range report.Results {
		if r.Success {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	if err := report.Err(); err != nil {
		logger.Log.Warn("notification fan-out finished with failures",
			zap.String("requestId", report.RequestID),
			zap.Uint("courseId", ev.CourseID),
			zap.Int("total", report.Total),
			zap.Int("failed", report.Failed))
	} else {
		logger.Log.Info("notification fan-out finished",
			zap.String("requestId", report.RequestID),
			zap.Uint("courseId", ev.CourseID),
			zap.Int("total", report.Total))
	}
	return report, nil
}

func (s *NotificationService) dispatchOne(ctx context.Context, req NotificationRequest, requestID string) (res NotificationResult) {
	res.StudentID = req.StudentID
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Reason = fmt.Sprintf("sender panic: %v", r)
			logger.Log.Error("notification sender panic",
				zap.Uint("studentId", req.StudentID),
				zap.Any("panic", r))
		}
		outcome := "sent"
		if !res.Success {
			outcome = "failed"
		}
		monitoring.NotificationsDispatched.WithLabelValues(string(req.Type), outcome).Inc()
		s.persist(ctx, req, res, requestID)
	}()

	if req.StudentEmail == "" {
		res.Reason = reasonNoEmail
		return res
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	if err := s.Sender.Send(sendCtx, req); err != nil {
		res.Reason = err.Error()
		return res
	}
	res.Success = true
	return res
}

// persist 站内通知写入失败只记录日志，不改变派发结果
func (s *NotificationService) persist(ctx context.Context, req NotificationRequest, res NotificationResult, requestID string) {
	if s.Notifications == nil {
		return
	}
	n := &model.Notification{
		UserID:    req.StudentID,
		CourseID:  req.CourseID,
		Type:      req.Type,
		Message:   req.Message,
		Deadline:  req.Deadline,
		Status:    model.NotificationSent,
		Reason:    res.Reason,
		RequestID: requestID,
	}
	if !res.Success {
		n.Status = model.NotificationFailed
	}
	if err := s.Notifications.CreateNotification(context.WithoutCancel(ctx), n); err != nil {
		logger.Log.Error("failed to persist notification",
			zap.Uint("studentId", req.StudentID),
			zap.String("requestId", requestID),
			zap.Error(err))
	}
}

// ListNotifications 当前用户的站内通知，最新的在前
func (s *NotificationService) ListNotifications(ctx context.Context, userID uint, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	list, err := s.Notifications.ListNotifications(ctx, userID, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return list, nil
}
