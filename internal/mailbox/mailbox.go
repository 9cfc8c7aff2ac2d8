package mailbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"github.com/ARPaule28/omnichannel/internal/config"
)

var ErrFetchFailed = errors.New("mailbox: fetch failed")

// InboundMail is one message pulled from the monitored mailbox.
type InboundMail struct {
	From        string
	FromName    string
	Subject     string
	Body        string
	HTML        bool
	Attachments []string
	ReceivedAt  time.Time
}

// Fetcher pulls recent mail from the account inbox. Satisfied by the IMAP
// fetcher below; tests use an in-process fake.
type Fetcher interface {
	FetchRecent(ctx context.Context, limit int) ([]InboundMail, error)
}

// IMAPFetcher reads the configured mailbox over IMAP with TLS. Each
// FetchRecent call opens a fresh session; the dashboard polls rarely enough
// that connection reuse is not worth the reconnect handling.
type IMAPFetcher struct {
	cfg config.IMAPConfig
}

func NewIMAPFetcher(cfg config.IMAPConfig) *IMAPFetcher {
	return &IMAPFetcher{cfg: cfg}
}

func (f *IMAPFetcher) FetchRecent(ctx context.Context, limit int) ([]InboundMail, error) {
	if limit <= 0 {
		limit = 20
	}

	addr := fmt.Sprintf("%s:%d", f.cfg.Host, f.cfg.Port)
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrFetchFailed, addr, err)
	}
	defer c.Logout()

	if err := c.Login(f.cfg.Username, f.cfg.Password); err != nil {
		return nil, fmt.Errorf("%w: login: %v", ErrFetchFailed, err)
	}

	mbox, err := c.Select(f.cfg.Mailbox, true)
	if err != nil {
		return nil, fmt.Errorf("%w: select %s: %v", ErrFetchFailed, f.cfg.Mailbox, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	from := uint32(1)
	if mbox.Messages > uint32(limit) {
		from = mbox.Messages - uint32(limit) + 1
	}
	seq := new(imap.SeqSet)
	seq.AddRange(from, mbox.Messages)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, section.FetchItem()}

	msgs := make(chan *imap.Message, limit)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seq, items, msgs)
	}()

	var out []InboundMail
	for msg := range msgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := decodeMessage(msg, section)
		if err != nil {
			// One undecodable message should not hide the rest.
			continue
		}
		out = append(out, m)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("%w: fetch: %v", ErrFetchFailed, err)
	}

	// IMAP returns oldest first; the dashboard wants newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func decodeMessage(msg *imap.Message, section *imap.BodySectionName) (InboundMail, error) {
	m := InboundMail{ReceivedAt: msg.InternalDate}
	if env := msg.Envelope; env != nil {
		m.Subject = env.Subject
		if len(env.From) > 0 {
			m.From = env.From[0].Address()
			m.FromName = env.From[0].PersonalName
		}
	}

	body := msg.GetBody(section)
	if body == nil {
		return m, nil
	}
	mr, err := mail.CreateReader(body)
	if err != nil {
		return InboundMail{}, err
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return InboundMail{}, err
		}
		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			b, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch {
			case ct == "text/plain":
				// Plain text wins when both parts are present.
				if m.Body == "" || m.HTML {
					m.Body = strings.TrimSpace(string(b))
					m.HTML = false
				}
			case ct == "text/html" && m.Body == "":
				m.Body = strings.TrimSpace(string(b))
				m.HTML = true
			}
		case *mail.AttachmentHeader:
			if name, err := h.Filename(); err == nil && name != "" {
				m.Attachments = append(m.Attachments, name)
			}
		}
	}
	return m, nil
}
