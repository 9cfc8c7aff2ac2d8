package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// Minimal Twilio Markup Language response builder.
// Only the verbs this product needs at the adapter boundary.

// InboundDecision describes what should happen next at the provider boundary
// after an inbound ring was recorded.
type InboundDecision struct {
	Action    InboundAction
	ConnectTo string
}

type InboundAction string

const (
	ActionReject  InboundAction = "reject"
	ActionConnect InboundAction = "connect"
	ActionHangup  InboundAction = "hangup"
)

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlReject struct {
	XMLName xml.Name `xml:"Reject"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlDial struct {
	XMLName xml.Name `xml:"Dial"`
	Number  string   `xml:"Number,omitempty"`
}

// RenderTwiML maps an InboundDecision to TwiML.
func RenderTwiML(d InboundDecision) (string, error) {
	var r twimlResponse

	switch d.Action {
	case ActionReject:
		r.Verbs = append(r.Verbs, twimlReject{Reason: "busy"})
	case ActionHangup:
		r.Verbs = append(r.Verbs, twimlHangup{})
	case ActionConnect:
		if strings.TrimSpace(d.ConnectTo) == "" {
			return "", errors.New("telephony: connect_to required for connect action")
		}
		r.Verbs = append(r.Verbs, twimlDial{Number: d.ConnectTo})
	default:
		return "", errors.New("telephony: unknown inbound action")
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
