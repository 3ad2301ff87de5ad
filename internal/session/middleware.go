package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/paypal-checkout/internal/telemetry"
)

const (
	CookieName = "checkout_session"
	contextKey = "session_id"

	cookieMaxAge = 24 * time.Hour
	flashTTL     = 10 * time.Minute
)

// Middleware ensures every request carries a session id, issuing a new cookie when needed.
func Middleware(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(CookieName)
		if err != nil || !validID(sid) {
			sid = uuid.NewString()
		}
		// Refresh on every request so the cookie lives as long as the session is active.
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(CookieName, sid, int(cookieMaxAge.Seconds()), "/", "", secure, true)
		c.Set(contextKey, sid)
		c.Next()
	}
}

func validID(sid string) bool {
	_, err := uuid.Parse(sid)
	return err == nil
}

// ID returns the session id assigned by Middleware.
func ID(c *gin.Context) string {
	return c.GetString(contextKey)
}

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func SetFlash(ctx context.Context, store Store, sessionID, level, message string) {
	if err := store.Put(ctx, sessionID, FlashLevelKey, level, flashTTL); err != nil {
		telemetry.Logger.Warn("Failed to store flash message", zap.Error(err))
		return
	}
	if err := store.Put(ctx, sessionID, FlashMessageKey, message, flashTTL); err != nil {
		telemetry.Logger.Warn("Failed to store flash message", zap.Error(err))
	}
}

// PopFlash returns and clears the pending flash, or nil when there is none.
func PopFlash(ctx context.Context, store Store, sessionID string) *Flash {
	message, err := store.Take(ctx, sessionID, FlashMessageKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			telemetry.Logger.Warn("Failed to read flash message", zap.Error(err))
		}
		return nil
	}
	level, err := store.Take(ctx, sessionID, FlashLevelKey)
	if err != nil {
		level = "info"
	}
	return &Flash{Level: level, Message: message}
}
