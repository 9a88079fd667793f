package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/docaccess-api/internal/dto"
	"github.com/noah-isme/docaccess-api/internal/models"
	"github.com/noah-isme/docaccess-api/internal/service"
)

// Header names advertising the caller's daily allowance.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

const maxInspectedBody = 1 << 20

// Admitter decides whether an identity may make another attempt.
type Admitter interface {
	Admit(ctx context.Context, identity string) models.RateLimitDecision
}

// replayBody hands the handler the inspected prefix followed by the unread remainder.
type replayBody struct {
	io.Reader
	io.Closer
}

type rateLimitProbe struct {
	Requester struct {
		Email string `json:"email"`
	} `json:"requester"`
}

// RateLimit counts every submission attempt against the requester email, or the client IP
// when the body carries none, before the payload is validated.
func RateLimit(limiter Admitter, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		identity := service.RateLimitIdentity(peekRequesterEmail(c), c.ClientIP())
		decision := limiter.Admit(c.Request.Context(), identity)

		c.Header(HeaderRateLimitLimit, strconv.Itoa(decision.Limit))
		c.Header(HeaderRateLimitRemaining, strconv.Itoa(decision.Remaining))
		c.Header(HeaderRateLimitReset, strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			logger.Info("submission rate limited", zap.String("identity", identity), zap.Int64("count", decision.Count))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.RateLimitedResponse{
				OK:      false,
				Message: fmt.Sprintf("Rate limit exceeded. Allowed %d requests per 24 hours.", decision.Limit),
			})
			return
		}
		c.Next()
	}
}

// peekRequesterEmail reads requester.email from a JSON body and restores the body for the
// handler. Anything unreadable yields "".
func peekRequesterEmail(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	original := c.Request.Body
	body, err := io.ReadAll(io.LimitReader(original, maxInspectedBody))
	c.Request.Body = replayBody{Reader: io.MultiReader(bytes.NewReader(body), original), Closer: original}
	if err != nil || len(body) == 0 {
		return ""
	}

	var probe rateLimitProbe
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.Requester.Email
}
