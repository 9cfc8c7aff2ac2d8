package telephony

import (
	"strings"
	"testing"
)

func TestRenderTwiMLReject(t *testing.T) {
	out, err := RenderTwiML(InboundDecision{Action: ActionReject})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, `<Reject reason="busy">`) && !strings.Contains(out, `<Reject reason="busy"/>`) {
		t.Fatalf("expected reject verb, got %q", out)
	}
}

func TestRenderTwiMLConnect(t *testing.T) {
	out, err := RenderTwiML(InboundDecision{Action: ActionConnect, ConnectTo: "+15551230000"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "<Dial>") || !strings.Contains(out, "<Number>+15551230000</Number>") {
		t.Fatalf("expected dial verb with number, got %q", out)
	}
}

func TestRenderTwiMLConnectRequiresNumber(t *testing.T) {
	if _, err := RenderTwiML(InboundDecision{Action: ActionConnect}); err == nil {
		t.Fatal("expected error for connect without number")
	}
}

func TestRenderTwiMLHangup(t *testing.T) {
	out, err := RenderTwiML(InboundDecision{Action: ActionHangup})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "Hangup") {
		t.Fatalf("expected hangup verb, got %q", out)
	}
}
