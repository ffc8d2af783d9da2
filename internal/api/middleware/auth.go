package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ayo6706/ebanking-core/internal/api/problem"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	ownerContextKey contextKey = "owner_id"
	traceContextKey contextKey = "trace_id"
)

// Authenticator validates HS256 bearer tokens issued by the identity service.
type Authenticator struct {
	secret   []byte
	issuer   string
	audience string
}

func NewAuthenticator(secret, issuer, audience string) *Authenticator {
	return &Authenticator{
		secret:   []byte(secret),
		issuer:   strings.TrimSpace(issuer),
		audience: strings.TrimSpace(audience),
	}
}

// ownerClaims carries the account holder identity. The subject, when present,
// must agree with owner_id.
type ownerClaims struct {
	OwnerID string `json:"owner_id"`
	jwt.RegisteredClaims
}

// Issue signs a token for ownerID. Used by tests and local tooling.
func (a *Authenticator) Issue(ownerID uuid.UUID, claims jwt.RegisteredClaims) (string, error) {
	if claims.Issuer == "" {
		claims.Issuer = a.issuer
	}
	if len(claims.Audience) == 0 && a.audience != "" {
		claims.Audience = jwt.ClaimStrings{a.audience}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ownerClaims{OwnerID: ownerID.String(), RegisteredClaims: claims})
	return token.SignedString(a.secret)
}

// Middleware validates the JWT token and injects the owner id into the context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/authorization-header-required"), http.StatusText(http.StatusUnauthorized), "Authorization header required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-format"), http.StatusText(http.StatusUnauthorized), "Invalid token format")
			return
		}
		if len(a.secret) == 0 {
			problem.Write(w, r, http.StatusInternalServerError, problem.Type("auth/misconfigured"), http.StatusText(http.StatusInternalServerError), "auth is not configured")
			return
		}

		claims := &ownerClaims{}
		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
		if a.issuer != "" {
			opts = append(opts, jwt.WithIssuer(a.issuer))
		}
		if a.audience != "" {
			opts = append(opts, jwt.WithAudience(a.audience))
		}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
			}
			return a.secret, nil
		}, opts...)
		if err != nil || !token.Valid {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token"), http.StatusText(http.StatusUnauthorized), "Invalid token")
			return
		}

		ownerID, err := uuid.Parse(claims.OwnerID)
		if err != nil || ownerID == uuid.Nil {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-claims"), http.StatusText(http.StatusUnauthorized), "Invalid token claims")
			return
		}
		if claims.Subject != "" && claims.Subject != claims.OwnerID {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-claims"), http.StatusText(http.StatusUnauthorized), "Invalid token claims")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithOwnerID(r.Context(), ownerID)))
	})
}

func ContextWithOwnerID(ctx context.Context, ownerID uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerContextKey, ownerID)
}

// OwnerIDFromContext returns the authenticated owner id.
func OwnerIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(ownerContextKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// TraceIDFromContext returns the trace id for the request.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(traceContextKey).(string); ok {
		return v
	}
	return ""
}
