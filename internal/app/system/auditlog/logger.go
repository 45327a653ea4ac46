// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/studyhub/internal/app/store/audit"
	"github.com/dalemusser/studyhub/internal/app/system/ratelimit"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.uber.org/zap"
)

// Destinations for a category.
const (
	ModeAll = "all" // MongoDB + zap
	ModeDB  = "db"
	ModeLog = "log"
	ModeOff = "off"
)

// Config picks a destination per event category.
type Config struct {
	Auth      string
	Community string
}

// Logger records audit events to MongoDB (audit.Store) and zap.
// A nil *Logger is a no-op so handlers in tests can skip it.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{store: store, zapLog: zapLog, config: config}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records event according to the category's mode. Unknown categories log everywhere.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	mode := ModeAll
	switch event.Category {
	case audit.CategoryAuth:
		mode = l.config.Auth
	case audit.CategoryCommunity:
		mode = l.config.Community
	}
	if mode == "" {
		mode = ModeAll
	}
	if mode == ModeOff {
		return
	}

	if mode == ModeAll || mode == ModeLog {
		l.logToZap(event)
	}
	if (mode == ModeAll || mode == ModeDB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType))
		}
	}
}

func (l *Logger) fromRequest(r *http.Request, category, eventType, userID string, success bool) audit.Event {
	e := audit.Event{
		Category:  category,
		EventType: eventType,
		UserID:    userID,
		Success:   success,
	}
	if r != nil {
		e.IP = ratelimit.ClientIP(r)
		e.UserAgent = r.UserAgent()
	}
	return e
}

// --- Auth ---

// Signup logs a new registered account. upgraded is true when an anonymous
// account was converted in place.
func (l *Logger) Signup(ctx context.Context, r *http.Request, userID, authMethod string, upgraded bool) {
	if l == nil {
		return
	}
	e := l.fromRequest(r, audit.CategoryAuth, audit.EventSignup, userID, true)
	e.Details = map[string]string{"auth_method": authMethod, "upgraded_anonymous": strconv.FormatBool(upgraded)}
	l.Log(ctx, e)
}

// AnonymousStarted logs a new anonymous session.
func (l *Logger) AnonymousStarted(ctx context.Context, r *http.Request, userID string) {
	if l == nil {
		return
	}
	l.Log(ctx, l.fromRequest(r, audit.CategoryAuth, audit.EventAnonymousStarted, userID, true))
}

// LoginSuccess logs a successful sign-in.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID, authMethod string) {
	if l == nil {
		return
	}
	e := l.fromRequest(r, audit.CategoryAuth, audit.EventLoginSuccess, userID, true)
	e.Details = map[string]string{"auth_method": authMethod}
	l.Log(ctx, e)
}

// LoginFailed logs a rejected sign-in. userID is empty when no account matched.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, userID, attemptedEmail, reason string) {
	if l == nil {
		return
	}
	e := l.fromRequest(r, audit.CategoryAuth, audit.EventLoginFailed, userID, false)
	e.FailureReason = reason
	e.Details = map[string]string{"attempted_email": attemptedEmail}
	l.Log(ctx, e)
}

// LoginRateLimited logs a sign-in refused by the rate limiter.
func (l *Logger) LoginRateLimited(ctx context.Context, r *http.Request, attemptedEmail string) {
	if l == nil {
		return
	}
	e := l.fromRequest(r, audit.CategoryAuth, audit.EventLoginRateLimited, "", false)
	e.FailureReason = "rate_limited"
	e.Details = map[string]string{"attempted_email": attemptedEmail}
	l.Log(ctx, e)
}

// Logout logs a sign-out.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID string) {
	if l == nil {
		return
	}
	l.Log(ctx, l.fromRequest(r, audit.CategoryAuth, audit.EventLogout, userID, true))
}

// PasswordChanged logs a password change; viaReset marks the reset flow.
func (l *Logger) PasswordChanged(ctx context.Context, r *http.Request, userID string, viaReset bool) {
	if l == nil {
		return
	}
	eventType := audit.EventPasswordChanged
	if viaReset {
		eventType = audit.EventPasswordResetCompleted
	}
	l.Log(ctx, l.fromRequest(r, audit.CategoryAuth, eventType, userID, true))
}

// EmailChanged logs an email change.
func (l *Logger) EmailChanged(ctx context.Context, r *http.Request, userID string) {
	if l == nil {
		return
	}
	l.Log(ctx, l.fromRequest(r, audit.CategoryAuth, audit.EventEmailChanged, userID, true))
}

// PasswordResetRequested logs a reset request. userID is empty when the email
// matched no account (the caller still answers success).
func (l *Logger) PasswordResetRequested(ctx context.Context, r *http.Request, userID, email string) {
	if l == nil {
		return
	}
	e := l.fromRequest(r, audit.CategoryAuth, audit.EventPasswordResetRequested, userID, userID != "")
	e.Details = map[string]string{"email": email}
	l.Log(ctx, e)
}

// --- Community ---

// GroupCreated logs a new study group or cohort.
func (l *Logger) GroupCreated(ctx context.Context, r *http.Request, userID string, kind models.Kind, groupID, name string) {
	if l == nil {
		return
	}
	e := l.fromRequest(r, audit.CategoryCommunity, audit.EventGroupCreated, userID, true)
	e.Details = map[string]string{"kind": string(kind), "group_id": groupID, "name": name}
	l.Log(ctx, e)
}

// GroupJoined logs a join, and a group_full event when the join filled the group.
func (l *Logger) GroupJoined(ctx context.Context, r *http.Request, userID string, kind models.Kind, groupID string, becameFull bool) {
	if l == nil {
		return
	}
	details := map[string]string{"kind": string(kind), "group_id": groupID}
	e := l.fromRequest(r, audit.CategoryCommunity, audit.EventGroupJoined, userID, true)
	e.Details = details
	l.Log(ctx, e)

	if becameFull {
		full := l.fromRequest(r, audit.CategoryCommunity, audit.EventGroupFull, userID, true)
		full.Details = details
		l.Log(ctx, full)
	}
}

// FollowToggled logs a follow or unfollow of target by userID.
func (l *Logger) FollowToggled(ctx context.Context, r *http.Request, userID, targetID string, following bool) {
	if l == nil {
		return
	}
	e := l.fromRequest(r, audit.CategoryCommunity, audit.EventFollowToggled, userID, true)
	e.Details = map[string]string{"target_id": targetID, "following": strconv.FormatBool(following)}
	l.Log(ctx, e)
}

// ProfileUpdated logs a profile edit.
func (l *Logger) ProfileUpdated(ctx context.Context, r *http.Request, userID string) {
	if l == nil {
		return
	}
	l.Log(ctx, l.fromRequest(r, audit.CategoryCommunity, audit.EventProfileUpdated, userID, true))
}

// FeedbackSubmitted logs a feedback message. The text itself is not copied.
func (l *Logger) FeedbackSubmitted(ctx context.Context, r *http.Request, userID, feedbackID string) {
	if l == nil {
		return
	}
	e := l.fromRequest(r, audit.CategoryCommunity, audit.EventFeedbackSent, userID, true)
	e.Details = map[string]string{"feedback_id": feedbackID}
	l.Log(ctx, e)
}
