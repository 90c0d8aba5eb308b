package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

const DefaultRate = "60-M"

// RateLimiterConfig uses ulule rate strings such as "60-M" or "1000-H".
//
// Identifier selects the bucket key: "ip" (default), "header" (HeaderName,
// falling back to the client IP) or "ip+route". SkipPaths are prefixes.
type RateLimiterConfig struct {
	Rate           string            `json:"rate"`
	PerRouteRates  map[string]string `json:"per_route_rates"` // route template -> rate
	Identifier     string            `json:"identifier"`
	HeaderName     string            `json:"header_name"`
	WhitelistCIDRs []string          `json:"whitelist_cidrs"`
	SkipPaths      []string          `json:"skip_paths"`
	AddHeaders     bool              `json:"add_headers"`
	DenyStatus     int               `json:"deny_status"` // 429 when zero
	DenyMessage    string            `json:"deny_message"`
}

// MetricsObserver is told about every limited request, by route template.
type MetricsObserver interface {
	OnAllow(route string)
	OnDeny(route string)
}

// policy is an immutable compiled config; UpdateConfig swaps it whole.
type policy struct {
	cfg     RateLimiterConfig
	trusted []*net.IPNet
}

func compile(cfg RateLimiterConfig) *policy {
	p := &policy{cfg: cfg}
	for _, cidr := range cfg.WhitelistCIDRs {
		if _, n, err := net.ParseCIDR(strings.TrimSpace(cidr)); err == nil {
			p.trusted = append(p.trusted, n)
		}
	}
	return p
}

func (p *policy) skips(path string) bool {
	for _, prefix := range p.cfg.SkipPaths {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (p *policy) isTrusted(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range p.trusted {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

func (p *policy) rateFor(route string) string {
	if r := p.cfg.PerRouteRates[route]; r != "" {
		return r
	}
	if p.cfg.Rate != "" {
		return p.cfg.Rate
	}
	return DefaultRate
}

func (p *policy) bucket(c *gin.Context, ip, path string) string {
	switch p.cfg.Identifier {
	case "header":
		if v := strings.TrimSpace(c.GetHeader(p.cfg.HeaderName)); v != "" {
			return "hdr:" + p.cfg.HeaderName + ":" + v
		}
	case "ip+route":
		return "iprt:" + ip + ":" + path
	}
	return "ip:" + ip
}

// RateLimiter keeps one ulule limiter per distinct rate, all sharing a store.
type RateLimiter struct {
	store    limiter.Store
	current  atomic.Pointer[policy]
	observer MetricsObserver

	mu       sync.Mutex
	limiters map[string]*limiter.Limiter
}

// NewRateLimiter uses an in-memory store when store is nil.
func NewRateLimiter(cfg RateLimiterConfig, store limiter.Store) *RateLimiter {
	if store == nil {
		store = memory.NewStore()
	}
	l := &RateLimiter{store: store, limiters: make(map[string]*limiter.Limiter)}
	l.current.Store(compile(cfg))
	return l
}

// WithObserver must be called before the middleware serves traffic.
func (l *RateLimiter) WithObserver(observer MetricsObserver) *RateLimiter {
	l.observer = observer
	return l
}

// UpdateConfig takes effect for the next request. Counters already kept for
// a rate are preserved.
func (l *RateLimiter) UpdateConfig(cfg RateLimiterConfig) {
	l.current.Store(compile(cfg))
}

func (l *RateLimiter) Config() RateLimiterConfig {
	return l.current.Load().cfg
}

func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := l.current.Load()
		route := c.FullPath()
		path := route
		if path == "" {
			path = c.Request.URL.Path
		}

		if p.skips(path) {
			c.Next()
			return
		}
		ip := strings.TrimPrefix(c.ClientIP(), "::ffff:")
		if p.isTrusted(ip) {
			c.Next()
			return
		}

		res, err := l.limiterFor(p.rateFor(route)).Get(c.Request.Context(), p.bucket(c, ip, path))
		if err != nil {
			// store trouble never blocks patients
			c.Next()
			return
		}
		if p.cfg.AddHeaders {
			writeLimitHeaders(c, res)
		}
		if res.Reached {
			l.observe(route, false)
			reject(c, p.cfg, res)
			return
		}
		l.observe(route, true)
		c.Next()
	}
}

func (l *RateLimiter) limiterFor(rate string) *limiter.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[rate]; ok {
		return lim
	}
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		r, _ = limiter.NewRateFromFormatted(DefaultRate)
	}
	lim := limiter.New(l.store, r, limiter.WithTrustForwardHeader(false))
	l.limiters[rate] = lim
	return lim
}

func (l *RateLimiter) observe(route string, allowed bool) {
	if l.observer == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	if allowed {
		l.observer.OnAllow(route)
	} else {
		l.observer.OnDeny(route)
	}
}

func secondsUntil(unix int64) string {
	sec := int(time.Until(time.Unix(unix, 0)).Seconds())
	if sec < 0 {
		sec = 0
	}
	return strconv.Itoa(sec)
}

func writeLimitHeaders(c *gin.Context, res limiter.Context) {
	c.Header("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
	c.Header("X-RateLimit-Reset", secondsUntil(res.Reset))
}

func reject(c *gin.Context, cfg RateLimiterConfig, res limiter.Context) {
	c.Header("Retry-After", secondsUntil(res.Reset))
	status := cfg.DenyStatus
	if status == 0 {
		status = http.StatusTooManyRequests
	}
	msg := cfg.DenyMessage
	if msg == "" {
		msg = "Too Many Requests"
	}
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": msg})
}
