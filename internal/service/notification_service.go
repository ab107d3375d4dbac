package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/notiz/notiz/internal/config"
	"github.com/notiz/notiz/internal/email"
	"github.com/notiz/notiz/internal/logger"
	"github.com/notiz/notiz/internal/model"
	"github.com/notiz/notiz/internal/schedule"
	"github.com/notiz/notiz/internal/sheet"
)

// Ledger records notifications already sent so reruns do not repeat them.
type Ledger interface {
	WasSent(ctx context.Context, kind model.NotificationKind, ev model.Event, today time.Time) (bool, error)
	Record(ctx context.Context, kind model.NotificationKind, ev model.Event, today time.Time) error
}

// Auditor persists one record per notification attempt.
type Auditor interface {
	Create(ctx context.Context, log *model.AuditLog) error
}

// Report summarizes a notification run
type Report struct {
	RunID         string
	RowsRead      int
	RowsSkipped   int
	DueSent       int
	RemindersSent int
	Duplicates    int
	SendFailures  int
	// DueMatched and ReminderMatched are the run-level flags: at least one row
	// matched the category this run.
	DueMatched      bool
	ReminderMatched bool
}

// NotificationService evaluates every event row and emails the recipients
// about events due today and events reaching their reminder threshold.
type NotificationService struct {
	sender  email.Sender
	eval    *schedule.Evaluator
	cfg     *config.Config
	log     *logger.Logger
	ledger  Ledger
	auditor Auditor
	dryRun  bool
}

// Option configures optional collaborators of the NotificationService.
type Option func(*NotificationService)

// WithLedger enables duplicate suppression through l.
func WithLedger(l Ledger) Option {
	return func(s *NotificationService) { s.ledger = l }
}

// WithAuditor enables the notification audit trail.
func WithAuditor(a Auditor) Option {
	return func(s *NotificationService) { s.auditor = a }
}

// WithDryRun marks sends as rehearsals: the ledger is left untouched and
// audit records carry the dry_run outcome.
func WithDryRun(dryRun bool) Option {
	return func(s *NotificationService) { s.dryRun = dryRun }
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(
	sender email.Sender,
	eval *schedule.Evaluator,
	cfg *config.Config,
	log *logger.Logger,
	opts ...Option,
) *NotificationService {
	s := &NotificationService{
		sender: sender,
		eval:   eval,
		cfg:    cfg,
		log:    log.WithComponent("notification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plan returns the notifications the rows in reader would trigger today,
// without sending anything. Unreadable rows are returned as errors next to
// the plan.
func (s *NotificationService) Plan(ctx context.Context, reader sheet.Reader) ([]model.Notification, []error, error) {
	var (
		planned []model.Notification
		rowErrs []error
	)
	today := s.eval.Today()
	for {
		if err := ctx.Err(); err != nil {
			return planned, rowErrs, err
		}
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return planned, rowErrs, nil
		}
		if err != nil {
			if errors.Is(err, sheet.ErrInputFormat) {
				rowErrs = append(rowErrs, err)
				continue
			}
			return planned, rowErrs, err
		}
		planned = append(planned, s.evaluate(ev, today)...)
	}
}

// evaluate returns the notifications one event triggers on the given day. Both
// checks run independently; with reminder.exclusive set, a due notification
// suppresses the reminder for the same row.
func (s *NotificationService) evaluate(ev model.Event, today time.Time) []model.Notification {
	if !ev.HasDueDate() {
		return nil
	}

	var out []model.Notification
	lead := s.eval.LeadDays()

	due := schedule.IsDueToday(ev.DueDate, today)
	if due {
		out = append(out, model.Notification{
			Kind:     model.NotificationDue,
			Event:    ev,
			Subject:  email.DueSubject(ev.Label),
			HTMLBody: email.BuildMessage(ev.Label, true, lead),
			TextBody: email.BuildText(ev.Label, true, lead),
		})
	}

	if schedule.IsReminderDue(ev.DueDate, today, lead) && !(due && s.cfg.Reminder.Exclusive) {
		out = append(out, model.Notification{
			Kind:     model.NotificationReminder,
			Event:    ev,
			Subject:  email.ReminderSubject(ev.Label, lead),
			HTMLBody: email.BuildMessage(ev.Label, false, lead),
			TextBody: email.BuildText(ev.Label, false, lead),
		})
	}

	return out
}

// Run performs one read-evaluate-notify cycle over reader. Rows are handled
// strictly one after another; each send finishes before the next row is read.
func (s *NotificationService) Run(ctx context.Context, reader sheet.Reader) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	log := s.log.WithRunID(report.RunID)
	today := s.eval.Today()

	log.Info().
		Int("lead_days", s.eval.LeadDays()).
		Str("today", today.Format("2006-01-02")).
		Bool("dry_run", s.dryRun).
		Msg("notification run started")

	for {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("notification run cancelled: %w", err)
		}

		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, sheet.ErrInputFormat) && s.cfg.Run.OnRowError == config.PolicySkip {
				report.RowsSkipped++
				log.Warn().Err(err).Msg("skipping unreadable row")
				continue
			}
			return report, fmt.Errorf("failed to read events: %w", err)
		}
		report.RowsRead++

		for _, c := range ev.Unparsed {
			log.Warn().
				Int("row", ev.Row).
				Str("cell", c.Cell).
				Str("value", c.Value).
				Msgf("%s is not a date, ignoring it", c.Column)
		}
		if !ev.HasDueDate() {
			log.Debug().Int("row", ev.Row).Str("label", ev.Label).Msg("row has no due date")
		}

		for _, n := range s.evaluate(ev, today) {
			if n.Kind == model.NotificationDue {
				report.DueMatched = true
			} else {
				report.ReminderMatched = true
			}

			if err := s.notify(ctx, log, report, n, today); err != nil {
				if errors.Is(err, email.ErrTransport) && s.cfg.Run.OnSendError == config.PolicyContinue {
					report.SendFailures++
					continue
				}
				return report, err
			}
		}
	}

	if !report.DueMatched {
		log.Info().Msg("There are no events due today. No notifications sent out")
	}
	if !report.ReminderMatched {
		log.Info().Msgf("No reminder emails sent out today. There are no events due in the next %d days", s.eval.LeadDays())
	}

	log.Info().
		Int("rows", report.RowsRead).
		Int("skipped", report.RowsSkipped).
		Int("due_sent", report.DueSent).
		Int("reminders_sent", report.RemindersSent).
		Int("duplicates", report.Duplicates).
		Int("failures", report.SendFailures).
		Msg("notification run finished")

	return report, nil
}

// notify sends one notification, consulting the ledger first and recording
// the outcome in the ledger and the audit trail.
func (s *NotificationService) notify(ctx context.Context, log *logger.Logger, report *Report, n model.Notification, today time.Time) error {
	label := "Due"
	if n.Kind == model.NotificationReminder {
		label = "Reminder"
	}

	if s.ledger != nil && !s.dryRun {
		sent, err := s.ledger.WasSent(ctx, n.Kind, n.Event, today)
		if err != nil {
			log.Warn().Err(err).Str("subject", n.Subject).Msg("sent ledger unavailable, sending anyway")
		} else if sent {
			report.Duplicates++
			log.Info().Msgf("[%s] %s email notification already sent today, skipping", n.Subject, label)
			s.audit(ctx, log, report.RunID, n, model.AuditOutcomeDuplicate, nil)
			return nil
		}
	}

	log.Info().Int("row", n.Event.Row).Msgf("[%s] Sending event %s email notification", n.Subject, n.Kind)

	err := s.sender.Send(ctx, email.Message{
		To:       s.cfg.Email.Recipients,
		Subject:  n.Subject,
		HTMLBody: n.HTMLBody,
		TextBody: n.TextBody,
	})
	if err != nil {
		log.Error().Err(err).Int("row", n.Event.Row).Msgf("[%s] %s email notification failed", n.Subject, label)
		s.audit(ctx, log, report.RunID, n, model.AuditOutcomeFailed, err)
		return fmt.Errorf("failed to send %s notification for %q (row %d): %w", n.Kind, n.Event.Label, n.Event.Row, err)
	}

	if n.Kind == model.NotificationDue {
		report.DueSent++
	} else {
		report.RemindersSent++
	}
	log.Info().Msgf("[%s] %s email notification successfully sent", n.Subject, label)

	outcome := model.AuditOutcomeSent
	if s.dryRun {
		outcome = model.AuditOutcomeDryRun
	} else if s.ledger != nil {
		if err := s.ledger.Record(ctx, n.Kind, n.Event, today); err != nil {
			log.Warn().Err(err).Str("subject", n.Subject).Msg("failed to record sent notification")
		}
	}
	s.audit(ctx, log, report.RunID, n, outcome, nil)
	return nil
}

func (s *NotificationService) audit(ctx context.Context, log *logger.Logger, runID string, n model.Notification, outcome string, sendErr error) {
	if s.auditor == nil {
		return
	}

	entry := &model.AuditLog{
		ID:         uuid.NewString(),
		RunID:      runID,
		Kind:       n.Kind,
		EventLabel: n.Event.Label,
		DueDate:    n.Event.DueDate,
		SheetRow:   n.Event.Row,
		Outcome:    outcome,
		Recipients: s.cfg.Email.Recipients,
		Metadata:   map[string]interface{}{"subject": n.Subject},
		CreatedAt:  time.Now().UTC(),
	}
	if sendErr != nil {
		msg := sendErr.Error()
		entry.Error = &msg
	}

	if err := s.auditor.Create(ctx, entry); err != nil {
		log.Warn().Err(err).Str("outcome", outcome).Msg("failed to write notification audit")
	}
}
