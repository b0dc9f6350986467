package serv

import (
	"errors"
	"net"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const maxRateLimitClients = 10000

var errRateLimited = errors.New("rate limit exceeded")

// rateLimiter keeps a token bucket per client IP. The least recently seen
// clients are dropped once maxRateLimitClients is reached.
type rateLimiter struct {
	limiters *lru.Cache[string, *rate.Limiter]
	rate     rate.Limit
	burst    int
}

func newRateLimiter(c RateLimiter) (*rateLimiter, error) {
	if c.Rate <= 0 {
		return nil, nil
	}

	burst := c.Bucket
	if burst <= 0 {
		burst = 1
	}

	cache, err := lru.New[string, *rate.Limiter](maxRateLimitClients)
	if err != nil {
		return nil, err
	}
	return &rateLimiter{limiters: cache, rate: rate.Limit(c.Rate), burst: burst}, nil
}

func (rl *rateLimiter) allow(ip string) bool {
	l, ok := rl.limiters.Get(ip)
	if !ok {
		l = rate.NewLimiter(rl.rate, rl.burst)
		if prev, ok, _ := rl.limiters.PeekOrAdd(ip, l); ok {
			l = prev
		}
	}
	return l.Allow()
}

func (s *Service) rateLimit(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !s.limiter.allow(ip) {
			s.writeError(w, http.StatusTooManyRequests, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}
