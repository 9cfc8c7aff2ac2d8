package telephony

import (
	"net/http"
	"strings"

	"github.com/ARPaule28/omnichannel/internal/calls"
)

// Twilio pushes events as application/x-www-form-urlencoded.
// Keep these parsers minimal and provider-adapter-only; business logic
// (log writes, state transitions) is not made here.

// InboundSMSForm captures the subset of SMS webhook fields we care about.
type InboundSMSForm struct {
	MessageSid string
	From       string
	To         string
	Body       string
}

func ParseInboundSMS(r *http.Request) (InboundSMSForm, error) {
	if err := r.ParseForm(); err != nil {
		return InboundSMSForm{}, err
	}
	f := InboundSMSForm{
		MessageSid: r.PostFormValue("MessageSid"),
		From:       normalizePhone(r.PostFormValue("From")),
		To:         normalizePhone(r.PostFormValue("To")),
		Body:       r.PostFormValue("Body"),
	}
	if f.MessageSid == "" {
		// Older API versions use SmsSid.
		f.MessageSid = r.PostFormValue("SmsSid")
	}
	return f, nil
}

// InboundCallForm captures the subset of voice ring webhook fields we care about.
type InboundCallForm struct {
	CallSid string
	From    string
	To      string
}

func ParseInboundCall(r *http.Request) (InboundCallForm, error) {
	if err := r.ParseForm(); err != nil {
		return InboundCallForm{}, err
	}
	return InboundCallForm{
		CallSid: r.PostFormValue("CallSid"),
		From:    normalizePhone(r.PostFormValue("From")),
		To:      normalizePhone(r.PostFormValue("To")),
	}, nil
}

// CallStatusForm captures a voice status callback.
type CallStatusForm struct {
	CallSid    string
	CallStatus string
}

func ParseCallStatus(r *http.Request) (CallStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return CallStatusForm{}, err
	}
	return CallStatusForm{
		CallSid:    r.PostFormValue("CallSid"),
		CallStatus: strings.ToLower(strings.TrimSpace(r.PostFormValue("CallStatus"))),
	}, nil
}

// Outcome maps the provider's terminal call status onto the two-outcome call
// model: connected calls complete, everything else is missed. Non-terminal
// statuses return false.
func (f CallStatusForm) Outcome() (calls.Status, bool) {
	switch f.CallStatus {
	case "completed":
		return calls.StatusCompleted, true
	case "busy", "no-answer", "failed", "canceled":
		return calls.StatusMissed, true
	default:
		return "", false
	}
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	// Providers sometimes send "anonymous" or empty; keep as-is.
	return s
}
