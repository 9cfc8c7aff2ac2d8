package httpapi

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ARPaule28/omnichannel/internal/attachments"
	"github.com/ARPaule28/omnichannel/internal/auth"
	"github.com/ARPaule28/omnichannel/internal/calls"
	"github.com/ARPaule28/omnichannel/internal/commlog"
	"github.com/ARPaule28/omnichannel/internal/directory"
	"github.com/ARPaule28/omnichannel/internal/mailbox"
	"github.com/ARPaule28/omnichannel/internal/mailer"
	"github.com/ARPaule28/omnichannel/internal/timeline"
	"github.com/ARPaule28/omnichannel/pkg/logger"
)

// SMSSender is the slice of the telephony provider used for outbound texts.
type SMSSender interface {
	SendSMS(ctx context.Context, from, to, body string) error
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth     *auth.Manager
	Users    *directory.Service
	Messages *commlog.Service
	Calls    *calls.Service
	Timeline *timeline.Service
	Mail     mailer.Sender
	Inbox    mailbox.Fetcher
	Attach   *attachments.Store
	SMS      SMSSender
}

const maxAttachmentBytes = 25 << 20

// --- Auth ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login validates credentials against the directory and issues a token pair.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Username == "" || req.Password == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	u, err := h.Users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, directory.ErrInvalidCredentials) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	pair, err := h.Auth.IssuePair(time.Now(), u.ID, u.Username)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"user":          u,
	})
}

func (h Handlers) Me(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	u, err := h.Users.ByID(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h Handlers) ListUsers(c *gin.Context) {
	list, err := h.Users.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": list})
}

// --- Messages ---

// saveUpload stores an optional multipart "attachment" file and returns its
// generated key and display name. On error it writes the response itself and
// returns ok=false.
func (h Handlers) saveUpload(c *gin.Context) (key, name string, ok bool) {
	file, err := c.FormFile("attachment")
	if err != nil || file == nil {
		return "", "", true
	}
	if file.Size > maxAttachmentBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "attachment too large"})
		return "", "", false
	}
	src, err := file.Open()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable attachment"})
		return "", "", false
	}
	defer src.Close()
	key, err = h.Attach.Save(c.Request.Context(), src, file.Filename)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "attachment store failed"})
		return "", "", false
	}
	return key, filepath.Base(file.Filename), true
}

// discardUpload removes a stored upload whose message was never logged.
func (h Handlers) discardUpload(c *gin.Context, key string) {
	if key == "" {
		return
	}
	if err := h.Attach.Remove(c.Request.Context(), key); err != nil {
		logger.FromGin(c).Warn("orphaned attachment cleanup failed", "key", key, "err", err)
	}
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// SendEmail accepts a multipart form (to, subject, body, optional
// attachment file), dispatches over SMTP and appends the outcome to the
// communication log. A failed dispatch is still logged, as failed, and
// reported 502. A request that cannot be logged is never dispatched.
func (h Handlers) SendEmail(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	ctx := c.Request.Context()

	to := strings.TrimSpace(c.PostForm("to"))
	subject := strings.TrimSpace(c.PostForm("subject"))
	body := c.PostForm("body")

	attachmentKey, attachmentName, ok := h.saveUpload(c)
	if !ok {
		return
	}

	rec := commlog.RecordRequest{
		SenderID:      uid,
		To:            to,
		Channel:       commlog.ChannelEmail,
		Subject:       subject,
		Body:          body,
		AttachmentKey: attachmentKey,
	}
	if err := h.Messages.ValidateOutbound(ctx, rec); err != nil {
		h.discardUpload(c, attachmentKey)
		h.fail(c, err)
		return
	}

	sender, err := h.Users.ByID(ctx, uid)
	if err != nil {
		h.discardUpload(c, attachmentKey)
		h.fail(c, err)
		return
	}

	mailReq := mailer.OutboundMail{
		From:           sender.Email,
		To:             to,
		Subject:        subject,
		Body:           body,
		AttachmentName: attachmentName,
	}
	if attachmentKey != "" {
		path, err := h.Attach.Path(attachmentKey)
		if err != nil {
			h.discardUpload(c, attachmentKey)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "attachment store failed"})
			return
		}
		mailReq.AttachmentPath = path
	}

	sendErr := h.Mail.Send(ctx, mailReq)
	rec.Status = commlog.StatusSent
	if sendErr != nil {
		rec.Status = commlog.StatusFailed
	}

	m, err := h.Messages.Record(ctx, rec)
	if err != nil {
		h.discardUpload(c, attachmentKey)
		h.fail(c, err)
		return
	}

	if sendErr != nil {
		logger.From(ctx).Warn("email dispatch failed", "message_id", m.ID, "err", sendErr)
		c.JSON(http.StatusBadGateway, gin.H{"error": "email dispatch failed", "message": m})
		return
	}
	c.JSON(http.StatusCreated, m)
}

type sendSMSRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// SendSMS dispatches a text through the telephony provider and appends the
// outcome to the communication log. Accepts JSON or, for sends carrying an
// attachment, a multipart form (to, body, attachment). The attachment is
// stored and logged with the message; the provider leg carries the text.
func (h Handlers) SendSMS(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	ctx := c.Request.Context()

	var to, body, attachmentKey string
	if isMultipart(c) {
		to = strings.TrimSpace(c.PostForm("to"))
		body = c.PostForm("body")
		var ok bool
		attachmentKey, _, ok = h.saveUpload(c)
		if !ok {
			return
		}
	} else {
		var req sendSMSRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		to, body = req.To, req.Body
	}

	rec := commlog.RecordRequest{
		SenderID:      uid,
		To:            to,
		Channel:       commlog.ChannelSMS,
		Body:          body,
		AttachmentKey: attachmentKey,
	}
	if err := h.Messages.ValidateOutbound(ctx, rec); err != nil {
		h.discardUpload(c, attachmentKey)
		h.fail(c, err)
		return
	}

	sender, err := h.Users.ByID(ctx, uid)
	if err != nil {
		h.discardUpload(c, attachmentKey)
		h.fail(c, err)
		return
	}

	sendErr := h.SMS.SendSMS(ctx, sender.Phone, to, body)
	rec.Status = commlog.StatusSent
	if sendErr != nil {
		rec.Status = commlog.StatusFailed
	}

	m, err := h.Messages.Record(ctx, rec)
	if err != nil {
		h.discardUpload(c, attachmentKey)
		h.fail(c, err)
		return
	}

	if sendErr != nil {
		logger.From(ctx).Warn("sms dispatch failed", "message_id", m.ID, "err", sendErr)
		c.JSON(http.StatusBadGateway, gin.H{"error": "sms dispatch failed", "message": m})
		return
	}
	c.JSON(http.StatusCreated, m)
}

type sendChatRequest struct {
	ToUsername string `json:"to_username"`
	Body       string `json:"body"`
}

// SendChat appends an internal chat message. Chat has no external network:
// the recipient must be a member and the message records as sent directly.
// Accepts JSON or, for sends carrying an attachment, a multipart form
// (to_username, body, attachment).
func (h Handlers) SendChat(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	ctx := c.Request.Context()

	var toUsername, body, attachmentKey string
	if isMultipart(c) {
		toUsername = strings.TrimSpace(c.PostForm("to_username"))
		body = c.PostForm("body")
		var ok bool
		attachmentKey, _, ok = h.saveUpload(c)
		if !ok {
			return
		}
	} else {
		var req sendChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		toUsername, body = req.ToUsername, req.Body
	}

	target, err := h.Users.ByUsername(ctx, toUsername)
	if err != nil {
		h.discardUpload(c, attachmentKey)
		if errors.Is(err, directory.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "recipient not found"})
			return
		}
		h.fail(c, err)
		return
	}

	m, err := h.Messages.Record(ctx, commlog.RecordRequest{
		SenderID:      uid,
		To:            target.Phone,
		Channel:       commlog.ChannelChat,
		Body:          body,
		AttachmentKey: attachmentKey,
		Status:        commlog.StatusSent,
	})
	if err != nil {
		h.discardUpload(c, attachmentKey)
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

type advanceStatusRequest struct {
	Status string `json:"status"`
}

// AdvanceMessageStatus moves a message along sent -> delivered -> read.
// Only a party to the message may advance it; anything else reads as not
// found.
func (h Handlers) AdvanceMessageStatus(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	var req advanceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	m, err := h.Messages.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !m.Involves(uid) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}

	m, err = h.Messages.AdvanceStatus(c.Request.Context(), id, commlog.Status(req.Status))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// ListMessages returns the caller's messages, newest first, optionally
// filtered by channel.
func (h Handlers) ListMessages(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	list, err := h.Messages.List(c.Request.Context(), uid, commlog.Channel(c.Query("channel")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": list})
}

// --- Calls ---

type startCallRequest struct {
	To string `json:"to"`
}

// StartCall originates an outbound call for the authenticated member.
func (h Handlers) StartCall(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	call, err := h.Calls.Originate(c.Request.Context(), uid, req.To)
	if err != nil {
		if errors.Is(err, calls.ErrDialFailed) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "dial failed", "call": call})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, call)
}

func (h Handlers) HangUpCall(c *gin.Context) {
	h.terminateCall(c, func(ctx context.Context, id int64) (calls.Call, error) {
		return h.Calls.HangUp(ctx, id)
	})
}

func (h Handlers) DeclineCall(c *gin.Context) {
	h.terminateCall(c, func(ctx context.Context, id int64) (calls.Call, error) {
		return h.Calls.Decline(ctx, id)
	})
}

func (h Handlers) terminateCall(c *gin.Context, terminate func(ctx context.Context, id int64) (calls.Call, error)) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid call id"})
		return
	}
	call, err := terminate(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, call)
}

// ListCalls returns the caller's call history, optionally filtered by
// direction.
func (h Handlers) ListCalls(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	list, err := h.Calls.ListForUser(c.Request.Context(), uid, calls.Direction(c.Query("direction")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": list})
}

// --- Timeline ---

// GetTimeline returns the caller's merged activity feed, newest first.
func (h Handlers) GetTimeline(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	entries, err := h.Timeline.Build(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timeline": entries})
}

// --- Mail inbox ---

// GetInbox pulls recent mail from the monitored mailbox.
func (h Handlers) GetInbox(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be 1-100"})
			return
		}
		limit = n
	}
	mailItems, err := h.Inbox.FetchRecent(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"inbox": mailItems})
}

// --- Attachments ---

// DownloadAttachment streams a stored attachment back to the client.
func (h Handlers) DownloadAttachment(c *gin.Context) {
	key := c.Param("key")
	rc, err := h.Attach.Open(c.Request.Context(), key)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer rc.Close()

	ct := mime.TypeByExtension(filepath.Ext(key))
	if ct == "" {
		ct = "application/octet-stream"
	}
	c.Header("Content-Disposition", `attachment; filename="`+key+`"`)
	c.Header("Content-Type", ct)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		logger.FromGin(c).Warn("attachment stream interrupted", "key", key, "err", err)
	}
}

// fail maps service sentinels onto HTTP statuses.
func (h Handlers) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, commlog.ErrNotFound),
		errors.Is(err, calls.ErrNotFound),
		errors.Is(err, directory.ErrNotFound),
		errors.Is(err, attachments.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, commlog.ErrValidation),
		errors.Is(err, calls.ErrValidation),
		errors.Is(err, directory.ErrInvalidArgument),
		errors.Is(err, timeline.ErrInvalidRequest),
		errors.Is(err, attachments.ErrInvalidKey):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, commlog.ErrInvalidTransition),
		errors.Is(err, calls.ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, mailbox.ErrFetchFailed),
		errors.Is(err, mailer.ErrSendFailed):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		logger.FromGin(c).Error("request failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
