package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-attendance-api/internal/models"
	appErrors "github.com/noah-isme/lms-attendance-api/pkg/errors"
	"github.com/noah-isme/lms-attendance-api/pkg/jobs"
	"github.com/noah-isme/lms-attendance-api/pkg/notify"
)

const (
	jobSessionIssued  = "session_issued"
	jobCheckinReceipt = "checkin_receipt"
)

type recipientDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListRecipients(ctx context.Context, courseID string) ([]models.CourseRecipient, error)
	FindStudent(ctx context.Context, studentID string) (*models.CourseRecipient, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type sessionIssuedPayload struct {
	Session    models.Session
	CourseName string
}

type checkinReceiptPayload struct {
	Record   models.CheckinRecord
	CourseID string
}

// NotificationService queues attendance emails and delivers them from the
// worker pool. Queueing failures surface as ErrNotification so callers can
// downgrade them to warnings.
type NotificationService struct {
	directory recipientDirectory
	sender    notify.Sender
	queue     jobEnqueuer
	metrics   *MetricsService
	logger    *zap.Logger
	appName   string
}

// NewNotificationService constructs the service. AttachQueue must be called
// before notifications can be queued.
func NewNotificationService(directory recipientDirectory, sender notify.Sender, metrics *MetricsService, logger *zap.Logger, appName string) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if appName == "" {
		appName = "LMS Attendance"
	}
	return &NotificationService{directory: directory, sender: sender, metrics: metrics, logger: logger, appName: appName}
}

// AttachQueue wires the queue whose handler is s.Handle.
func (s *NotificationService) AttachQueue(q jobEnqueuer) {
	s.queue = q
}

// SessionIssued queues the "attendance is open" email to enrolled students.
func (s *NotificationService) SessionIssued(ctx context.Context, session *models.Session, courseName string) error {
	return s.enqueue(jobSessionIssued, sessionIssuedPayload{Session: *session, CourseName: courseName})
}

// CheckinRecorded queues a receipt to the student who checked in.
func (s *NotificationService) CheckinRecorded(ctx context.Context, record *models.CheckinRecord, courseID string) error {
	return s.enqueue(jobCheckinReceipt, checkinReceiptPayload{Record: *record, CourseID: courseID})
}

func (s *NotificationService) enqueue(kind string, payload interface{}) error {
	if s.queue == nil {
		return appErrors.Clone(appErrors.ErrNotification, "notifications are not configured")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: kind, Payload: payload}); err != nil {
		s.metrics.RecordNotification(kind, err)
		s.logger.Warn("notification not queued", zap.String("kind", kind), zap.Error(err))
		return appErrors.WrapAs(err, appErrors.ErrNotification, "notification could not be queued")
	}
	return nil
}

// Handle is the jobs.Handler delivering queued notifications.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	var err error
	switch payload := job.Payload.(type) {
	case sessionIssuedPayload:
		err = s.deliverSessionIssued(ctx, payload)
	case checkinReceiptPayload:
		err = s.deliverReceipt(ctx, payload)
	default:
		s.logger.Error("unknown notification payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	s.metrics.RecordNotification(job.Type, err)
	return err
}

func (s *NotificationService) deliverSessionIssued(ctx context.Context, p sessionIssuedPayload) error {
	recipients, err := s.directory.ListRecipients(ctx, p.Session.CourseID)
	if err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}
	subject := fmt.Sprintf("[%s] Attendance is open for %s", s.appName, p.CourseName)
	body := fmt.Sprintf("Attendance for %s is open until %s (UTC). Scan the code shown in class to check in.",
		p.CourseName, p.Session.ExpiresAt.UTC().Format("15:04 on Mon 2 Jan"))

	// One message per student so addresses are not disclosed to classmates.
	var errs []error
	for _, r := range recipients {
		msg := notify.Message{
			To:          []mail.Address{{Name: r.FullName, Address: r.Email}},
			Subject:     subject,
			TextContent: fmt.Sprintf("Hi %s,\n\n%s", firstName(r.FullName), body),
		}
		if err := s.sender.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", r.StudentID, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	// Only a total failure is retried; a retry resends to every recipient.
	if len(errs) == len(recipients) {
		return errors.Join(errs...)
	}
	s.logger.Warn("session notification partially failed", zap.String("session_id", p.Session.ID),
		zap.Int("failed", len(errs)), zap.Int("recipients", len(recipients)), zap.Error(errors.Join(errs...)))
	return nil
}

func (s *NotificationService) deliverReceipt(ctx context.Context, p checkinReceiptPayload) error {
	student, err := s.directory.FindStudent(ctx, p.Record.StudentID)
	if err != nil {
		return fmt.Errorf("load student: %w", err)
	}
	if student.Email == "" {
		return nil
	}
	courseName := p.CourseID
	if course, err := s.directory.FindByID(ctx, p.CourseID); err == nil {
		courseName = course.Name
	}
	msg := notify.Message{
		To:      []mail.Address{{Name: student.FullName, Address: student.Email}},
		Subject: fmt.Sprintf("[%s] Attendance recorded for %s", s.appName, courseName),
		TextContent: fmt.Sprintf("Hi %s,\n\nYou were marked %s for %s at %s (UTC).",
			firstName(student.FullName), p.Record.Status, courseName, p.Record.SubmittedAt.UTC().Format(time.RFC1123)),
	}
	return s.sender.Send(ctx, msg)
}

func firstName(full string) string {
	if fields := strings.Fields(full); len(fields) > 0 {
		return fields[0]
	}
	return "there"
}

// notificationWarning renders a queueing failure for meta.warnings.
func notificationWarning(err error) string {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return appErrors.ErrNotification.Message
}
