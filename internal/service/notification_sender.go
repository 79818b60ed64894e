package service

import (
	"context"
	"edu_progress_backend/pkg/logger"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridSender 通过 SendGrid 发送邮件通知
type SendgridSender struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
}

var _ NotificationSender = (*SendgridSender)(nil)

func NewSendgridSender(key, appName, fromEmail string) *SendgridSender {
	return &SendgridSender{
		key:        key,
		from:       sgmail.NewEmail(appName, fromEmail),
		subjPrefix: "[" + appName + "] ",
	}
}

func (s *SendgridSender) prepare(req NotificationRequest) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + req.CourseTitle
	p.AddTos(sgmail.NewEmail(req.StudentName, req.StudentEmail))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	if req.TeacherEmail != "" {
		m.SetReplyTo(sgmail.NewEmail(req.TeacherName, req.TeacherEmail))
	}
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", req.Message))
	return m
}

func (s *SendgridSender) Send(ctx context.Context, req NotificationRequest) error {
	r := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	r.Method = http.MethodPost
	r.Body = sgmail.GetRequestBody(s.prepare(req))

	res, err := sendgrid.MakeRequestWithContext(ctx, r)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sending email: status %d", res.StatusCode)
	}
	return nil
}

// LogSender 未配置 SendGrid 时只写日志，站内通知照常落库
type LogSender struct{}

func (LogSender) Send(ctx context.Context, req NotificationRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Log.Info("notification",
		zap.Uint("studentId", req.StudentID),
		zap.String("email", req.StudentEmail),
		zap.String("type", string(req.Type)),
		zap.String("message", req.Message))
	return nil
}
