package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"nfc.app/facilitator/common/logger"
	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/service"
)

type contextKey string

const (
	SessionCookieName            = "arena_session"
	SessionIDHeader              = "X-Session-ID"
	sessionContextKey contextKey = "session"
)

var errNoSession = errors.New("no session")

// RequireSession resolves the session behind the request and rejects
// anonymous callers. The header wins over the cookie.
func RequireSession(sessions service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		sessionID, err := getSessionID(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		session, err := sessions.ValidateSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, service.ErrSessionExpired) {
				clearSessionCookie(c)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
				return
			}
			slog.ErrorContext(ctx, "failed to validate session", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to validate session"})
			return
		}

		ctx = context.WithValue(ctx, sessionContextKey, session)
		ctx = logger.WithLogFields(ctx, logger.LogFields{UserID: logger.Ptr(session.UserID)})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func GetSession(ctx context.Context) *model.Session {
	session, _ := ctx.Value(sessionContextKey).(*model.Session)
	return session
}

// GetUserID returns the authenticated user, or "" outside RequireSession.
func GetUserID(ctx context.Context) string {
	if session := GetSession(ctx); session != nil {
		return session.UserID
	}
	return ""
}

func getSessionID(c *gin.Context) (int64, error) {
	raw := c.GetHeader(SessionIDHeader)
	if raw == "" {
		cookie, err := c.Cookie(SessionCookieName)
		if err != nil {
			return 0, errNoSession
		}
		raw = cookie
	}
	return strconv.ParseInt(raw, 10, 64)
}

func clearSessionCookie(c *gin.Context) {
	c.SetCookie(
		SessionCookieName,
		"",
		-1,
		"/",
		"",
		false,
		true,
	)
}
