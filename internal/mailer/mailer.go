package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/gomail.v2"

	"github.com/ARPaule28/omnichannel/internal/config"
)

var ErrSendFailed = errors.New("mailer: send failed")

// OutboundMail is one email to dispatch. AttachmentPath, when set, points at
// a file readable by this process; AttachmentName overrides the filename
// shown to the recipient.
type OutboundMail struct {
	From           string
	To             string
	Subject        string
	Body           string
	HTML           bool
	AttachmentPath string
	AttachmentName string
}

// Sender dispatches email. Satisfied by the SMTP sender below; tests use an
// in-process fake.
type Sender interface {
	Send(ctx context.Context, m OutboundMail) error
}

// SMTPSender delivers mail through one configured SMTP account.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.Username,
	}
}

func (s *SMTPSender) Send(ctx context.Context, m OutboundMail) error {
	if m.To == "" {
		return fmt.Errorf("%w: recipient is required", ErrSendFailed)
	}

	msg := gomail.NewMessage()
	from := m.From
	if from == "" {
		from = s.from
	}
	msg.SetHeader("From", from)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	if m.HTML {
		msg.SetBody("text/html", m.Body)
	} else {
		msg.SetBody("text/plain", m.Body)
	}
	if m.AttachmentPath != "" {
		name := m.AttachmentName
		if name == "" {
			msg.Attach(m.AttachmentPath)
		} else {
			msg.Attach(name, gomail.SetCopyFunc(func(w io.Writer) error {
				f, err := os.Open(m.AttachmentPath)
				if err != nil {
					return err
				}
				defer f.Close()
				_, err = io.Copy(w, f)
				return err
			}))
		}
	}

	// gomail has no context hook; honor cancellation before the dial.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}
