package timeline

import (
	"context"
	"testing"
	"time"

	"github.com/ARPaule28/omnichannel/internal/calls"
	"github.com/ARPaule28/omnichannel/internal/commlog"
	"github.com/ARPaule28/omnichannel/internal/directory"
)

type fixture struct {
	dir      *directory.Service
	messages *commlog.Service
	calls    *calls.Service
	timeline *Service
}

type noopDialer struct{}

func (noopDialer) PlaceCall(ctx context.Context, from, to string) (string, error) {
	return "CA1", nil
}
func (noopDialer) EndCall(ctx context.Context, providerCallID string) error { return nil }

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	dir := directory.NewService(directory.NewMemoryRepo())
	if _, err := dir.Create(ctx, "user1", "user1@example.com", "+1111", "password1"); err != nil {
		t.Fatalf("seed user1: %v", err)
	}
	if _, err := dir.Create(ctx, "user2", "user2@example.com", "+1987654321", "password2"); err != nil {
		t.Fatalf("seed user2: %v", err)
	}
	msgs := commlog.NewService(commlog.NewMemoryRepo(), dir)
	callSvc := calls.NewService(calls.NewMemoryRepo(), dir, noopDialer{})
	return fixture{
		dir:      dir,
		messages: msgs,
		calls:    callSvc,
		timeline: NewService(msgs, callSvc, dir),
	}
}

func TestBuild_MergesAllKinds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := f.messages.Record(ctx, commlog.RecordRequest{
			SenderID: 1, To: "+1987654321", Channel: commlog.ChannelSMS, Body: "sms body",
		}); err != nil {
			t.Fatalf("record sms: %v", err)
		}
	}
	if _, err := f.messages.Record(ctx, commlog.RecordRequest{
		SenderID: 1, To: "stranger@elsewhere.com", Channel: commlog.ChannelEmail,
		Subject: "subject line", Body: "email body",
	}); err != nil {
		t.Fatalf("record email: %v", err)
	}
	c, err := f.calls.Originate(ctx, 1, "+2222")
	if err != nil {
		t.Fatalf("originate: %v", err)
	}
	if _, err := f.calls.Terminate(ctx, c.ID, calls.StatusCompleted); err != nil {
		t.Fatalf("terminate: %v", err)
	}

	entries, err := f.timeline.Build(ctx, 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// K messages + M calls = exactly K+M entries.
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	kinds := map[Kind]int{}
	for _, e := range entries {
		kinds[e.Kind]++
	}
	if kinds[KindSMS] != 2 || kinds[KindEmail] != 1 || kinds[KindCall] != 1 {
		t.Fatalf("unexpected kind distribution: %v", kinds)
	}
}

func TestBuild_SortedNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.messages.Record(ctx, commlog.RecordRequest{
			SenderID: 1, To: "+1987654321", Channel: commlog.ChannelChat, Body: "hello",
		}); err != nil {
			t.Fatalf("record chat: %v", err)
		}
	}
	if _, err := f.calls.Originate(ctx, 1, "+1987654321"); err != nil {
		t.Fatalf("originate: %v", err)
	}

	entries, err := f.timeline.Build(ctx, 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.After(entries[i-1].Timestamp) {
			t.Fatalf("entry %d newer than entry %d", i, i-1)
		}
	}
}

func TestBuild_CounterpartyResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.messages.Record(ctx, commlog.RecordRequest{
		SenderID: 1, To: "+1987654321", Channel: commlog.ChannelSMS, Body: "to a member",
	}); err != nil {
		t.Fatalf("record member sms: %v", err)
	}
	if _, err := f.messages.RecordInbound(ctx, commlog.InboundRequest{
		From: "+2222", To: "+1111", Channel: commlog.ChannelSMS, Body: "from outside",
	}); err != nil {
		t.Fatalf("record inbound sms: %v", err)
	}

	entries, err := f.timeline.Build(ctx, 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	seen := map[string]bool{}
	for _, e := range entries {
		seen[e.Counterparty] = true
	}
	if !seen["user2"] {
		t.Fatalf("expected member counterparty resolved to username, got %v", seen)
	}
	if !seen["+2222"] {
		t.Fatalf("expected external counterparty kept as raw address, got %v", seen)
	}
}

func TestBuild_CallEntryOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.calls.Originate(ctx, 1, "+2222")
	if err != nil {
		t.Fatalf("originate: %v", err)
	}
	if _, err := f.calls.Terminate(ctx, c.ID, calls.StatusCompleted); err != nil {
		t.Fatalf("terminate: %v", err)
	}

	entries, err := f.timeline.Build(ctx, 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Kind != KindCall {
		t.Fatalf("expected call kind, got %s", e.Kind)
	}
	if e.Outcome != string(calls.StatusCompleted) {
		t.Fatalf("expected completed outcome, got %q", e.Outcome)
	}
	if e.Counterparty != "+2222" {
		t.Fatalf("expected external counterparty, got %q", e.Counterparty)
	}
}

func TestBuild_TruncatesLongBodies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	long := make([]rune, 200)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := f.messages.Record(ctx, commlog.RecordRequest{
		SenderID: 1, To: "+1987654321", Channel: commlog.ChannelSMS, Body: string(long),
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	entries, err := f.timeline.Build(ctx, 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := len([]rune(entries[0].Summary)); got > summaryLimit {
		t.Fatalf("summary not truncated: %d runes", got)
	}
}

func TestBuild_TieBreakByRecordID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := commlog.NewMemoryRepo()
	msgs := commlog.NewService(repo, f.dir)
	tl := NewService(msgs, f.calls, f.dir)

	two := int64(2)
	one := int64(1)
	for i := 0; i < 3; i++ {
		if _, err := repo.Insert(ctx, commlog.Message{
			SenderID: &one, ReceiverID: &two,
			Channel: commlog.ChannelChat, Body: "same instant",
			Status: commlog.StatusSent, CreatedAt: fixed,
		}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	entries, err := tl.Build(ctx, 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].RecordID > entries[i-1].RecordID {
			t.Fatalf("expected id tie-break descending, got %d before %d",
				entries[i-1].RecordID, entries[i].RecordID)
		}
	}
}

func TestBuild_RejectsInvalidUser(t *testing.T) {
	f := newFixture(t)
	if _, err := f.timeline.Build(context.Background(), 0); err == nil {
		t.Fatalf("expected error for invalid user id")
	}
}
