package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ARPaule28/omnichannel/internal/calls"
	"github.com/ARPaule28/omnichannel/internal/commlog"
	"github.com/ARPaule28/omnichannel/internal/directory"
	"github.com/ARPaule28/omnichannel/internal/providerevents"
	"github.com/ARPaule28/omnichannel/pkg/logger"
)

const defaultClaimTTL = 24 * time.Hour

// WebhookHandlers receives provider callbacks. Each handler claims the
// provider's event id before writing, so duplicate deliveries are answered
// 200 without a second write. A claim is released when the write behind it
// fails, letting the provider retry through.
type WebhookHandlers struct {
	messages *commlog.Service
	calls    *calls.Service
	events   *providerevents.Service
	dir      WebhookDirectory
	dedupe   Deduper
	claimTTL time.Duration
}

// WebhookDirectory resolves a recorded callee to a member for call routing.
type WebhookDirectory interface {
	ByID(ctx context.Context, id int64) (directory.User, error)
}

func NewWebhookHandlers(messages *commlog.Service, callSvc *calls.Service, events *providerevents.Service, dir WebhookDirectory, dedupe Deduper) *WebhookHandlers {
	return &WebhookHandlers{
		messages: messages,
		calls:    callSvc,
		events:   events,
		dir:      dir,
		dedupe:   dedupe,
		claimTTL: defaultClaimTTL,
	}
}

// Register mounts the webhook routes. They are unauthenticated; providers
// cannot carry our bearer tokens.
func (h *WebhookHandlers) Register(r gin.IRoutes) {
	r.POST("/webhooks/sms", h.HandleInboundSMS)
	r.POST("/webhooks/voice", h.HandleInboundCall)
	r.POST("/webhooks/voice/status", h.HandleCallStatus)
}

// HandleInboundSMS appends an inbound SMS to the communication log.
func (h *WebhookHandlers) HandleInboundSMS(c *gin.Context) {
	form, err := ParseInboundSMS(c.Request)
	if err != nil || form.MessageSid == "" || form.From == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed sms webhook"})
		return
	}
	ctx := c.Request.Context()

	claimed, err := h.dedupe.Claim(ctx, "webhook:sms:"+form.MessageSid, h.claimTTL)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "idempotency store unavailable"})
		return
	}
	if !claimed {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	_, err = h.messages.RecordInbound(ctx, commlog.InboundRequest{
		From:    form.From,
		To:      form.To,
		Channel: commlog.ChannelSMS,
		Body:    form.Body,
	})
	if err != nil {
		h.release(ctx, "webhook:sms:"+form.MessageSid)
		if errors.Is(err, commlog.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.From(ctx).Error("inbound sms write failed", "sid", form.MessageSid, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "write failed"})
		return
	}

	h.journal(ctx, providerevents.Event{
		EventID:  form.MessageSid,
		Kind:     providerevents.EventKindSMSReceived,
		FromAddr: form.From,
		ToAddr:   form.To,
		Payload:  encodeForm(c.Request),
	})
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// HandleInboundCall records a ringing inbound call and answers with call
// routing markup: connect to the member's phone when the callee is a member,
// reject otherwise.
func (h *WebhookHandlers) HandleInboundCall(c *gin.Context) {
	form, err := ParseInboundCall(c.Request)
	if err != nil || form.CallSid == "" || form.From == "" || form.To == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed voice webhook"})
		return
	}
	ctx := c.Request.Context()

	claimed, err := h.dedupe.Claim(ctx, "webhook:voice:"+form.CallSid, h.claimTTL)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "idempotency store unavailable"})
		return
	}
	if !claimed {
		// The first delivery already decided the routing; repeat the same
		// markup without a second record.
		var receiverID *int64
		if prior, err := h.calls.ByProviderID(ctx, form.CallSid); err == nil {
			receiverID = prior.ReceiverID
		}
		h.respondTwiML(c, h.decideRouting(ctx, receiverID))
		return
	}

	call, err := h.calls.NotifyInbound(ctx, form.From, form.To, form.CallSid)
	if err != nil {
		h.release(ctx, "webhook:voice:"+form.CallSid)
		logger.From(ctx).Error("inbound call write failed", "sid", form.CallSid, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "write failed"})
		return
	}

	h.journal(ctx, providerevents.Event{
		EventID:  form.CallSid,
		Kind:     providerevents.EventKindCallRing,
		FromAddr: form.From,
		ToAddr:   form.To,
		Payload:  encodeForm(c.Request),
	})
	h.respondTwiML(c, h.decideRouting(ctx, call.ReceiverID))
}

// HandleCallStatus applies a terminal provider status to the matching call.
// Non-terminal statuses (ringing, in-progress) acknowledge without writing.
func (h *WebhookHandlers) HandleCallStatus(c *gin.Context) {
	form, err := ParseCallStatus(c.Request)
	if err != nil || form.CallSid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed status webhook"})
		return
	}
	ctx := c.Request.Context()

	outcome, terminal := form.Outcome()
	if !terminal {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	key := "webhook:voice-status:" + form.CallSid + ":" + form.CallStatus
	claimed, err := h.dedupe.Claim(ctx, key, h.claimTTL)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "idempotency store unavailable"})
		return
	}
	if !claimed {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	_, err = h.calls.TerminateByProviderID(ctx, form.CallSid, outcome)
	switch {
	case err == nil:
	case errors.Is(err, calls.ErrInvalidTransition):
		// Already terminal; the first outcome won. Acknowledge so the
		// provider stops retrying.
	case errors.Is(err, calls.ErrNotFound):
		h.release(ctx, key)
		c.JSON(http.StatusOK, gin.H{"status": "unknown call"})
		return
	default:
		h.release(ctx, key)
		logger.From(ctx).Error("call status write failed", "sid", form.CallSid, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "write failed"})
		return
	}

	h.journal(ctx, providerevents.Event{
		EventID: form.CallSid + ":" + form.CallStatus,
		Kind:    providerevents.EventKindCallStatus,
		Payload: encodeForm(c.Request),
	})
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func (h *WebhookHandlers) decideRouting(ctx context.Context, receiverID *int64) InboundDecision {
	if receiverID == nil {
		return InboundDecision{Action: ActionReject}
	}
	u, err := h.dir.ByID(ctx, *receiverID)
	if err != nil || u.Phone == "" {
		return InboundDecision{Action: ActionReject}
	}
	return InboundDecision{Action: ActionConnect, ConnectTo: u.Phone}
}

func (h *WebhookHandlers) respondTwiML(c *gin.Context, d InboundDecision) {
	body, err := RenderTwiML(d)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "markup render failed"})
		return
	}
	c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(body))
}

// journal is best-effort; the webhook flow never fails on journal errors.
func (h *WebhookHandlers) journal(ctx context.Context, e providerevents.Event) {
	if h.events == nil {
		return
	}
	if err := h.events.Append(ctx, e); err != nil {
		logger.From(ctx).Warn("provider event journal append failed", "event_id", e.EventID, "err", err)
	}
}

func (h *WebhookHandlers) release(ctx context.Context, key string) {
	if err := h.dedupe.Release(ctx, key); err != nil {
		logger.From(ctx).Warn("idempotency claim release failed", "key", key, "err", err)
	}
}

func encodeForm(r *http.Request) string {
	if r.PostForm == nil {
		return ""
	}
	flat := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			flat[k] = v[0]
		}
	}
	b, err := json.Marshal(flat)
	if err != nil {
		return ""
	}
	return string(b)
}
