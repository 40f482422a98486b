package mail

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/skyhub/auth-service/internal/config"
	"github.com/skyhub/auth-service/internal/model"
)

// Sender delivers one email job. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, job model.EmailJob) error
}

// SMTPSender renders a job and sends it through an SMTP relay. Each Send
// opens its own connection.
type SMTPSender struct {
	cfg      config.MailConfig
	renderer *Renderer
	dial     func() (gomail.SendCloser, error)
	log      logrus.FieldLogger
}

func NewSMTPSender(cfg config.MailConfig, renderer *Renderer, log logrus.FieldLogger) *SMTPSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	d.SSL = cfg.SSL
	return &SMTPSender{cfg: cfg, renderer: renderer, dial: d.Dial, log: log}
}

// Send returns when the session finishes or ctx is done, whichever comes
// first. gomail has no context support, so a session abandoned on ctx runs
// on until the relay answers or drops it.
func (s *SMTPSender) Send(ctx context.Context, job model.EmailJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := s.buildMessage(job)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- s.deliver(m) }()
	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		s.log.WithField("job_id", job.ID).Warn("smtp session abandoned")
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
	s.log.WithFields(logrus.Fields{"job_id": job.ID, "template": job.Template}).Debug("smtp message sent")
	return nil
}

func (s *SMTPSender) deliver(m *gomail.Message) error {
	sc, err := s.dial()
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	if err := gomail.Send(sc, m); err != nil {
		_ = sc.Close()
		return err
	}
	return sc.Close()
}

func (s *SMTPSender) buildMessage(job model.EmailJob) (*gomail.Message, error) {
	body, err := s.renderer.Render(job.Template, job.Context)
	if err != nil {
		return nil, err
	}
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.cfg.User, s.cfg.Alias)
	m.SetHeader("To", job.To...)
	if len(job.Cc) > 0 {
		m.SetHeader("Cc", job.Cc...)
	}
	if len(job.Bcc) > 0 {
		m.SetHeader("Bcc", job.Bcc...)
	}
	m.SetHeader("Subject", job.Subject)
	m.SetBody("text/html", body)
	for _, a := range job.Attachments {
		content := a.Content
		m.Attach(a.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(content)
			return err
		}))
	}
	return m, nil
}
