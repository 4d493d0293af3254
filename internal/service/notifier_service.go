package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/confero-api/internal/models"
	appErrors "github.com/noah-isme/confero-api/pkg/errors"
	"github.com/noah-isme/confero-api/pkg/jobs"
	"github.com/noah-isme/confero-api/pkg/mailer"
)

type notifierUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// DecisionNotice is the queued payload for one decision email.
type DecisionNotice struct {
	To       string
	Subject  string
	Body     string
	Decision models.Decision
}

// NotifierService renders decision notices and hands them to the mail
// collaborator on a background queue. Delivery is best-effort: the decision
// is authoritative once persisted, and a failed notice never rolls it back.
type NotifierService struct {
	users   notifierUserReader
	mail    mailer.Mailer
	queue   *jobs.Queue[DecisionNotice]
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotifierService constructs the notifier and its delivery queue.
func NewNotifierService(users notifierUserReader, mail mailer.Mailer, queueCfg jobs.QueueConfig, metrics *MetricsService, logger *zap.Logger) *NotifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotifierService{users: users, mail: mail, metrics: metrics, logger: logger}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue[DecisionNotice]("decision-notices", s.deliver, queueCfg)
	return s
}

// Start launches the delivery workers.
func (s *NotifierService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotifierService) Stop() {
	s.queue.Stop()
}

// NotifyDecision renders the notice for a terminal decision and enqueues it.
// An enqueue failure surfaces as NOTIFICATION_FAILED; the caller's status
// transition is already committed and must not be undone.
func (s *NotifierService) NotifyDecision(ctx context.Context, submission *models.Submission, decision models.Decision, comments string) error {
	owner, err := s.users.FindByID(ctx, submission.OwnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotificationFailed, "submission owner no longer exists")
		}
		return appErrors.Wrap(err, appErrors.ErrNotificationFailed.Code, appErrors.ErrNotificationFailed.Status, "failed to resolve recipient")
	}

	notice := buildDecisionNotice(owner.Email, submission, decision, comments)
	job := jobs.Job[DecisionNotice]{ID: uuid.NewString(), Type: "decision_notice", Payload: notice}
	if err := s.queue.Enqueue(job); err != nil {
		s.metrics.ObserveNotification(false)
		return appErrors.Wrap(err, appErrors.ErrNotificationFailed.Code, appErrors.ErrNotificationFailed.Status, "failed to queue decision notice")
	}
	return nil
}

func (s *NotifierService) deliver(ctx context.Context, job jobs.Job[DecisionNotice]) error {
	notice := job.Payload
	err := s.mail.Send(mailer.Message{To: notice.To, Subject: notice.Subject, Body: notice.Body})
	if err != nil {
		s.metrics.ObserveNotification(false)
		return fmt.Errorf("deliver decision notice: %w", err)
	}
	s.metrics.ObserveNotification(true)
	s.logger.Info("decision notice delivered",
		zap.String("to", notice.To),
		zap.String("decision", string(notice.Decision)),
	)
	return nil
}

func buildDecisionNotice(to string, submission *models.Submission, decision models.Decision, comments string) DecisionNotice {
	subject := fmt.Sprintf("Decision on your submission %q", submission.Title)

	var body strings.Builder
	body.WriteString(fmt.Sprintf("Dear %s,\n\n", submission.CorrespondingAuthor))
	switch decision {
	case models.DecisionAccept:
		body.WriteString(fmt.Sprintf("We are pleased to inform you that your submission %q has been accepted.\n", submission.Title))
	default:
		body.WriteString(fmt.Sprintf("We regret to inform you that your submission %q has not been accepted.\n", submission.Title))
	}
	if comments != "" {
		body.WriteString("\nCommittee comments:\n")
		body.WriteString(comments)
		body.WriteString("\n")
	}
	body.WriteString("\nBest regards,\nThe programme committee\n")

	return DecisionNotice{To: to, Subject: subject, Body: body.String(), Decision: decision}
}
