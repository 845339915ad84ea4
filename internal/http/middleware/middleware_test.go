package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"nfc.app/facilitator/common/logger"
	"nfc.app/facilitator/internal/http/middleware"
	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/service"
)

type mockSessionService struct {
	validateFn func(ctx context.Context, id int64) (*model.Session, error)
}

func (m *mockSessionService) ValidateSession(ctx context.Context, id int64) (*model.Session, error) {
	return m.validateFn(ctx, id)
}

var _ = Describe("RequireSession", func() {
	var (
		router   *gin.Engine
		sessions *mockSessionService
		seenUser string
		seenLog  logger.LogFields
	)

	BeforeEach(func() {
		seenUser = ""
		seenLog = logger.LogFields{}
		sessions = &mockSessionService{
			validateFn: func(_ context.Context, id int64) (*model.Session, error) {
				return &model.Session{ID: id, UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}, nil
			},
		}
		router = gin.New()
		router.GET("/me", middleware.RequireSession(sessions), func(c *gin.Context) {
			seenUser = middleware.GetUserID(c.Request.Context())
			seenLog = logger.GetLogFields(c.Request.Context())
			c.Status(http.StatusNoContent)
		})
	})

	request := func(mutate func(*http.Request)) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if mutate != nil {
			mutate(req)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("accepts the session header", func() {
		w := request(func(r *http.Request) { r.Header.Set(middleware.SessionIDHeader, "42") })

		Expect(w.Code).To(Equal(http.StatusNoContent))
		Expect(seenUser).To(Equal("u1"))
		Expect(seenLog.UserID).NotTo(BeNil())
		Expect(*seenLog.UserID).To(Equal("u1"))
	})

	It("falls back to the session cookie", func() {
		w := request(func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "42"})
		})

		Expect(w.Code).To(Equal(http.StatusNoContent))
		Expect(seenUser).To(Equal("u1"))
	})

	DescribeTable("rejects anonymous requests",
		func(header string) {
			w := request(func(r *http.Request) {
				if header != "" {
					r.Header.Set(middleware.SessionIDHeader, header)
				}
			})
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			Expect(seenUser).To(BeEmpty())
		},
		Entry("no session", ""),
		Entry("malformed session id", "abc"),
	)

	It("returns 401 and clears the cookie for expired sessions", func() {
		sessions.validateFn = func(context.Context, int64) (*model.Session, error) {
			return nil, service.ErrSessionExpired
		}

		w := request(func(r *http.Request) { r.Header.Set(middleware.SessionIDHeader, "42") })

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(w.Header().Get("Set-Cookie")).To(ContainSubstring(middleware.SessionCookieName + "="))
	})

	It("returns 500 when sessions cannot be checked", func() {
		sessions.validateFn = func(context.Context, int64) (*model.Session, error) {
			return nil, errors.New("boom")
		}

		w := request(func(r *http.Request) { r.Header.Set(middleware.SessionIDHeader, "42") })

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})
})

var _ = Describe("Recovery", func() {
	It("turns panics into 500 responses", func() {
		router := gin.New()
		router.Use(middleware.Recovery(), middleware.Logger())
		router.GET("/panic", func(*gin.Context) { panic("kaboom") })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(w.Body.String()).To(ContainSubstring("internal server error"))
	})
})
