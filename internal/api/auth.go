package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"autoblog/internal/clock"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// TokenCookie carries the bearer token for browser requests to the admin
// pages, where no Authorization header can be set.
const TokenCookie = "autoblog_token"

var ErrNoToken = errors.New("missing bearer token")

// Auth issues and validates HS256 bearer tokens.
type Auth struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  clock.Clock
}

// NewAuth creates an Auth. A nil clock means wall-clock time.
func NewAuth(secret, issuer string, ttl time.Duration, c clock.Clock) *Auth {
	if c == nil {
		c = clock.NewReal()
	}
	return &Auth{secret: []byte(secret), issuer: issuer, ttl: ttl, clock: c}
}

// Issue signs a token for subject.
func (a *Auth) Issue(subject string) (string, error) {
	now := a.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Validate parses token and returns its subject.
func (a *Auth) Validate(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.clock.Now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...); err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	return claims.Subject, nil
}

// tokenFrom reads the token from the Authorization header, the token cookie
// or the access_token query parameter, in that order. The query parameter
// exists for websocket clients.
func tokenFrom(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			return "", errors.New("invalid authorization header format")
		}
		return strings.TrimSpace(token), nil
	}
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	if t := r.URL.Query().Get("access_token"); t != "" {
		return t, nil
	}
	return "", ErrNoToken
}

type subjectKey struct{}

// Subject returns the authenticated subject of the request, if any.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	if s.auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := tokenFrom(r)
		if err == nil {
			var subject string
			subject, err = s.auth.Validate(token)
			if err == nil {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, subject)))
				return
			}
		}
		s.logger.Debug("Rejected request",
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err))
		w.Header().Set("WWW-Authenticate", `Bearer realm="autoblog"`)
		writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}
