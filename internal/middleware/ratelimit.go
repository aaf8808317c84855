package middleware

import (
	"net/http"
	"sync"

	"github.com/pompom/go-box-store/pkg/apierror"
	"github.com/pompom/go-box-store/pkg/response"
	"golang.org/x/time/rate"
)

// UserRateLimiter keeps one token bucket per authenticated user. Buckets
// are created on first use and live for the life of the process.
type UserRateLimiter struct {
	perMinute int
	limiters  sync.Map
}

func NewUserRateLimiter(perMinute int) *UserRateLimiter {
	return &UserRateLimiter{perMinute: perMinute}
}

func (rl *UserRateLimiter) limiter(userID int64) *rate.Limiter {
	if l, ok := rl.limiters.Load(userID); ok {
		return l.(*rate.Limiter)
	}
	l, _ := rl.limiters.LoadOrStore(userID,
		rate.NewLimiter(rate.Limit(rl.perMinute)/60, rl.perMinute))
	return l.(*rate.Limiter)
}

// Allow reports whether the user has budget for one more request.
func (rl *UserRateLimiter) Allow(userID int64) bool {
	return rl.limiter(userID).Allow()
}

// Middleware rejects requests over the per-user budget with 429. It must
// run after Authentication.
func (rl *UserRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserID(r)
			if !ok {
				response.Error(w, apierror.Unauthorized(""))
				return
			}

			if !rl.Allow(userID) {
				response.Error(w, apierror.RateLimited(""))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
