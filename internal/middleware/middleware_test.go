package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/docaccess-api/internal/models"
	appErrors "github.com/noah-isme/docaccess-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
	err    error
	token  string
}

func (v *validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	v.token = token
	return v.claims, v.err
}

type admitterStub struct {
	decision   models.RateLimitDecision
	identities []string
}

func (a *admitterStub) Admit(ctx context.Context, identity string) models.RateLimitDecision {
	a.identities = append(a.identities, identity)
	return a.decision
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestJWTRejectsMissingAndMalformedHeaders(t *testing.T) {
	router := gin.New()
	router.Use(JWT(&validatorStub{}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, header := range []string{"", "Token abc", "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
	}
}

func TestJWTAndRolesGateReviewerRoutes(t *testing.T) {
	stub := &validatorStub{claims: &models.JWTClaims{UserID: "u-1", Role: models.RoleDean}}
	router := gin.New()
	router.GET("/dean", JWT(stub), RequireRoles(models.RoleDean, models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/dean", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "good", stub.token)

	stub.claims = &models.JWTClaims{UserID: "u-2", Role: "student"}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)

	stub.claims, stub.err = nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	router := gin.New()
	router.GET("/", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitKeysByEmailAndRestoresBody(t *testing.T) {
	reset := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	limiter := &admitterStub{decision: models.RateLimitDecision{Allowed: true, Limit: 10, Remaining: 9, ResetAt: reset}}
	body := []byte(`{"requester":{"email":"Reader@Example.com"},"purpose":"x"}`)

	var seen []byte
	router := gin.New()
	router.POST("/requests", RateLimit(limiter, nil), func(c *gin.Context) {
		seen, _ = io.ReadAll(c.Request.Body)
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader(body)))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, body, seen)
	assert.Equal(t, []string{"email:reader@example.com"}, limiter.identities)
	assert.Equal(t, "10", w.Header().Get(HeaderRateLimitLimit))
	assert.Equal(t, "9", w.Header().Get(HeaderRateLimitRemaining))
	assert.Equal(t, strconv.FormatInt(reset.Unix(), 10), w.Header().Get(HeaderRateLimitReset))
}

func TestRateLimitFallsBackToClientIP(t *testing.T) {
	limiter := &admitterStub{decision: models.RateLimitDecision{Allowed: true, Limit: 10}}
	router := gin.New()
	router.POST("/requests", RateLimit(limiter, nil), func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader([]byte(`not json`)))
	req.RemoteAddr = "203.0.113.7:5555"
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, []string{"ip:203.0.113.7"}, limiter.identities)
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	limiter := &admitterStub{decision: models.RateLimitDecision{Allowed: false, Limit: 10, Count: 11}}
	reached := false
	router := gin.New()
	router.POST("/requests", RateLimit(limiter, nil), func(c *gin.Context) { reached = true })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader([]byte(`{}`))))

	require.False(t, reached)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"ok":false,"message":"Rate limit exceeded. Allowed 10 requests per 24 hours."}`, w.Body.String())
	assert.Equal(t, "0", w.Header().Get(HeaderRateLimitRemaining))
}

func TestAuditLogsSuccessfulActionsOnly(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	router := gin.New()
	router.POST("/requests/:id/respond", func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "dean-1", Role: models.RoleDean})
		c.Next()
	}, Audit(zap.New(core), "request.respond"), func(c *gin.Context) {
		if c.Param("id") == "bad" {
			c.Status(http.StatusConflict)
			return
		}
		c.Status(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/requests/req-1/respond", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/requests/bad/respond", nil))

	entries := logs.FilterMessage("audit").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "request.respond", fields["action"])
	assert.Equal(t, "req-1", fields["resource_id"])
	assert.Equal(t, "dean-1", fields["user_id"])
}

