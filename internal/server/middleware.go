package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/sirupsen/logrus"
)

// Context key types to avoid collisions
type contextKey string

const (
	contextKeyCustomerID contextKey = "customer_id"
	contextKeyEmail      contextKey = "email"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Service) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("http request")
	})
}

// RequireAuth verifies the caller's JWT and puts the customer id and email
// on the request context. The token comes from the Authorization header or,
// failing that, the encrypted session cookie set at login.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessToken, ok := s.bearerToken(r)
		if !ok {
			s.respondJSON(w, http.StatusUnauthorized, errorBody("authentication required"))
			return
		}

		token, err := s.parseAccessToken(r.Context(), accessToken)
		if err != nil {
			s.logger.WithError(err).Debug("failed to verify access token")
			s.respondJSON(w, http.StatusUnauthorized, errorBody("invalid or expired session"))
			return
		}

		customerID, ok := token.Subject()
		if !ok || customerID == "" {
			s.logger.Error("no customer ID in JWT subject claim")
			s.respondJSON(w, http.StatusUnauthorized, errorBody("invalid or expired session"))
			return
		}

		var email string
		if err := token.Get("email", &email); err != nil {
			s.logger.WithError(err).Warn("no email claim in JWT")
			// email is optional, so we don't reject
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, contextKeyCustomerID, customerID)
		if email != "" {
			ctx = context.WithValue(ctx, contextKeyEmail, email)
		}

		s.logger.WithFields(logrus.Fields{
			"customer_id": customerID,
			"email":       email,
		}).Debug("authenticated customer")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken pulls the JWT from the Authorization header, falling back to
// the encrypted cookie set by handleLogin.
func (s *Service) bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer "), true
	}

	cookie, err := r.Cookie(accessTokenCookieName)
	if err != nil {
		return "", false
	}

	var accessToken string
	if err := s.cookie.Decode(accessTokenCookieName, cookie.Value, &accessToken); err != nil {
		s.logger.WithError(err).Debug("failed to decrypt access token cookie")
		return "", false
	}

	return accessToken, true
}

func (s *Service) parseAccessToken(ctx context.Context, accessToken string) (jwt.Token, error) {
	if s.jwksCache != nil {
		set, err := s.jwksCache.Lookup(ctx, s.jwksURL)
		if err != nil {
			return nil, err
		}
		return jwt.Parse([]byte(accessToken), jwt.WithKeySet(set), jwt.WithValidate(true))
	}

	return jwt.Parse(
		[]byte(accessToken),
		jwt.WithKey(jwa.HS256(), s.signKey),
		jwt.WithValidate(true),
	)
}

// clientAddress extracts the caller's address for the audit trail, trusting
// X-Forwarded-For when a proxy set it.
func clientAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
