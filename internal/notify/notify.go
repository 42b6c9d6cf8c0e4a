// Package notify sends mail when a case analysis run finishes, so an
// operator hears about completed and failed pipelines without watching
// the logs.
package notify

import (
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	"audio-forensics-api/internal/model"
)

// Mailer delivers pipeline notifications over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	to     string
	log    *slog.Logger
}

// New builds a Mailer. It returns nil when host is empty, which disables
// notifications; the pipeline treats a nil Notifier as "don't notify".
func New(host string, port int, user, password, from, to string, log *slog.Logger) *Mailer {
	if host == "" || to == "" {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}
	return &Mailer{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
		to:     to,
		log:    log,
	}
}

// PipelineFinished mails a short status summary for the finished run.
// Delivery failures are logged, never propagated: notification is best
// effort and must not fail the analysis itself.
func (m *Mailer) PipelineFinished(c *model.Case, runErr error) {
	subject := fmt.Sprintf("[audio-forensics] Analysis completed: %s", c.CaseName)
	body := fmt.Sprintf("Case %s (%s) finished all analysis stages.", c.CaseName, c.ID)
	if runErr != nil {
		subject = fmt.Sprintf("[audio-forensics] Analysis failed: %s", c.CaseName)
		body = fmt.Sprintf("Case %s (%s) aborted: %v", c.CaseName, c.ID, runErr)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.log.Error("send notification", "case", c.ID, "error", err)
	}
}
