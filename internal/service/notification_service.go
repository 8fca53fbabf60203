package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/profepulse/profepulse-api/pkg/jobs"
	"github.com/profepulse/profepulse-api/pkg/mailer"
)

// JobKindMail identifies outgoing e-mail jobs.
const JobKindMail = "mail"

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type mailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// NotificationService hands e-mails to the background mail queue so request
// handlers never wait on SMTP.
type NotificationService struct {
	queue  jobEnqueuer
	logger *zap.Logger
}

// NewNotificationService constructs a NotificationService. A nil queue drops mails after logging them.
func NewNotificationService(queue jobEnqueuer, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{queue: queue, logger: logger}
}

// Notify enqueues msg. Delivery failures are handled by the queue.
func (n *NotificationService) Notify(ctx context.Context, msg mailer.Message) {
	if n == nil {
		return
	}
	if n.queue == nil {
		n.logger.Info("mail delivery disabled", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
		return
	}
	if err := n.queue.Enqueue(jobs.Job{Kind: JobKindMail, Payload: msg}); err != nil {
		n.logger.Error("failed to enqueue mail", zap.Strings("to", msg.To), zap.String("subject", msg.Subject), zap.Error(err))
	}
}

// MailJobHandler delivers queued mail jobs through sender.
func MailJobHandler(sender mailSender) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(mailer.Message)
		if !ok {
			return fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
		}
		return sender.Send(ctx, msg)
	}
}

// LogMailSender writes mails to the log instead of sending them. It is used
// when SMTP is not configured so confirmation codes stay reachable in development.
type LogMailSender struct {
	Logger *zap.Logger
}

// Send logs msg.
func (l LogMailSender) Send(ctx context.Context, msg mailer.Message) error {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("mail (not sent)", zap.Strings("to", msg.To), zap.String("subject", msg.Subject), zap.String("html", msg.HTML))
	return nil
}
