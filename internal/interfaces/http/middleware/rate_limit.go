package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentra-sec/sentra/internal/domain/models"
	"github.com/sentra-sec/sentra/internal/domain/service"
	"github.com/sentra-sec/sentra/pkg/constants"
	"github.com/sentra-sec/sentra/pkg/errors"
	"github.com/sentra-sec/sentra/pkg/logger"
)

// RateLimit gates requests by client IP under the given operation class and
// reports quota state through the X-RateLimit-* headers. Denied requests get
// 429 with Retry-After. A limiter infrastructure failure fails open.
func RateLimit(limiter service.RateLimitService, class constants.RateLimitClass, log logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("http")
	return func(c *gin.Context) {
		key := c.ClientIP()
		ctx := c.Request.Context()

		allowed, err := limiter.CheckClass(ctx, class, key)
		if err != nil {
			log.Error(ctx, "rate limiter failed, allowing request", err,
				logger.String("class", string(class)))
			c.Next()
			return
		}

		info, err := limiter.Info(ctx, string(class)+":"+key)
		if err == nil && info != nil {
			now := time.Now()
			c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining()))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(now.Add(info.RetryAfter(now)).Unix(), 10))

			if !allowed {
				c.Header("Retry-After", strconv.Itoa(int(info.RetryAfter(now).Seconds())+1))
			}
		}

		if !allowed {
			appErr := errors.ErrRateLimitExceeded(key, limitOf(info))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errors.ToErrorResponse(appErr))
			return
		}
		c.Next()
	}
}

func limitOf(info *models.RateLimitInfo) int {
	if info == nil {
		return 0
	}
	return info.Limit
}
