package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/devanshpatel/filevault/internal/ratelimit"
	"github.com/devanshpatel/filevault/internal/utils/response"
)

type RateLimitConfig struct {
	redisClient *redis.Client
	limiters    map[string]*ratelimit.TokenBucket
}

func NewRateLimitConfig(redisClient *redis.Client) *RateLimitConfig {
	config := &RateLimitConfig{
		redisClient: redisClient,
		limiters:    make(map[string]*ratelimit.TokenBucket),
	}

	// Configure rate limits for different actions
	// POST /upload: 30/min per owner
	config.limiters["upload"] = ratelimit.NewTokenBucket(redisClient, 30, 30)

	// POST /files/{filename}/reanalyze: 10/min per owner, AI calls are costly
	config.limiters["reanalyze"] = ratelimit.NewTokenBucket(redisClient, 10, 10)

	return config
}

func (rlc *RateLimitConfig) RateLimitMiddleware(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Get owner ID from context (assumes auth middleware ran first)
			ownerID, ok := GetOwnerIDFromContext(r.Context())
			if !ok {
				response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
					errors.New("user not authenticated")))
				return
			}

			// Get the appropriate rate limiter
			limiter, exists := rlc.limiters[action]
			if !exists {
				// If no rate limiter configured for this action, allow the request
				next.ServeHTTP(w, r)
				return
			}

			// Check if the owner is allowed to perform this action
			allowed, err := limiter.Allow(r.Context(), ownerID, action)
			if err != nil {
				response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
					fmt.Errorf("rate limit check failed: %w", err)))
				return
			}

			if !allowed {
				remaining, _ := limiter.GetRemaining(r.Context(), ownerID, action)

				w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
				w.Header().Set("X-RateLimit-Reset", "60")

				response.WriteJSON(w, http.StatusTooManyRequests, response.GeneralError(
					errors.New("rate limit exceeded, try again later")))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
