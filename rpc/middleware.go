package rpc

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// requestIDHeader carries a correlation id across this service's logs, the
// teacher's payments-gateway convention (uuid.NewString() per request) for
// tying a JSON-RPC call to the slog lines it produces.
const requestIDHeader = "X-Request-Id"

// RequestID stamps every request with a correlation id, generating one when
// the caller doesn't supply its own, and echoes it back on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := strings.TrimSpace(req.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, req)
	})
}

// RateLimit configures a token-bucket quota for one caller bucket.
// Adapted from the teacher's gateway/middleware.RateLimit, generalized
// from per-HTTP-route buckets to a single governance RPC endpoint keyed
// by caller identity.
type RateLimit struct {
	RatePerSecond float64
	Burst         int
}

type rateEntry struct {
	limiter *rate.Limiter
}

// RateLimiter is per-caller JSON-RPC throttling, the first line of
// defense in front of RoleGate's authorization check: it protects the
// service from a noisy or misbehaving caller before a request ever reaches
// the Coordinator. Adapted from gateway/middleware.RateLimiter.
type RateLimiter struct {
	limit    RateLimit
	mu       sync.Mutex
	visitors map[string]*rateEntry
	clockNow func() time.Time
}

// NewRateLimiter constructs a limiter applying limit to every distinct
// caller bucket (see clientID).
func NewRateLimiter(limit RateLimit) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		visitors: make(map[string]*rateEntry),
		clockNow: time.Now,
	}
}

// Middleware wraps next, rejecting a request with 429 once its caller
// bucket is exhausted.
func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := clientID(req)
		limiter := r.obtainLimiter(id)
		if !limiter.AllowN(r.clockNow(), 1) {
			writeError(w, req, nil, codeRateLimited, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *RateLimiter) obtainLimiter(id string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.visitors[id]; ok {
		return entry.limiter
	}
	perSecond := r.limit.RatePerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := r.limit.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	r.visitors[id] = &rateEntry{limiter: limiter}
	return limiter
}

// clientID buckets a request by API key if present, else by client IP,
// mirroring the teacher's clientID helper.
func clientID(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get("X-API-Key")); apiKey != "" {
		return "api-key:" + apiKey
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); ip != "" {
		if comma := strings.IndexByte(ip, ','); comma > 0 {
			ip = strings.TrimSpace(ip[:comma])
		}
		if parsed := net.ParseIP(ip); parsed != nil {
			return parsed.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// JWTVerifier validates a bearer token carried in requests to this
// service's transport, an optional layer in front of RoleGate's own
// authorization (a valid token only proves the caller is a recognized
// operator of this deployment; it does not grant any governance Role by
// itself). Adapted from the teacher's rpc/http.go jwtVerifier, trimmed to
// HS256-only since this service has no multi-tenant RS256 requirement.
type JWTVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewJWTVerifier constructs a verifier. secret and issuer must be
// non-empty.
func NewJWTVerifier(secret []byte, issuer string, leeway time.Duration) *JWTVerifier {
	if leeway <= 0 {
		leeway = 30 * time.Second
	}
	return &JWTVerifier{secret: secret, issuer: issuer, leeway: leeway}
}

// Verify parses and validates token, returning its registered claims.
func (v *JWTVerifier) Verify(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(v.issuer), jwt.WithLeeway(v.leeway))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return claims, nil
}

// Middleware rejects any request without a valid "Authorization: Bearer
// <token>" header. A nil verifier disables this layer entirely, leaving
// RoleGate as the sole authorization boundary.
func (v *JWTVerifier) Middleware(next http.Handler) http.Handler {
	if v == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		header := req.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			writeError(w, req, nil, codeUnauthorized, "missing bearer token")
			return
		}
		if _, err := v.Verify(strings.TrimPrefix(header, prefix)); err != nil {
			writeError(w, req, nil, codeUnauthorized, "invalid bearer token: "+err.Error())
			return
		}
		next.ServeHTTP(w, req)
	})
}
