package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cipherroom/cipherroom/internal/models"
)

type contextKey string

const PrincipalContextKey contextKey = "principal"

// TokenClaims is the JWT payload minted for a chat identity.
type TokenClaims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware verifies bearer tokens on authenticated endpoints.
type AuthMiddleware struct {
	secret []byte
}

// NewAuthMiddleware creates a new auth middleware verifying with the given secret.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

// RequireAuth verifies the Authorization header and puts the resolved
// principal on the request context. Tokens may also arrive as a "token"
// query parameter for WebSocket upgrades, where custom headers are
// unavailable to browser clients.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			jsonError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		principal, err := m.Verify(raw)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		annotateRequestUser(r.Context(), principal.ID.String())

		ctx := context.WithValue(r.Context(), PrincipalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Verify parses and validates a token, returning the principal it names.
// The principal is validated here once; everything past this boundary
// trusts it.
func (m *AuthMiddleware) Verify(raw string) (models.Principal, error) {
	var claims TokenClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return models.Principal{}, models.ErrUnauthorized
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Principal{}, models.ErrUnauthorized
	}
	if claims.Name == "" {
		return models.Principal{}, models.ErrUnauthorized
	}

	role := claims.Role
	if role == "" {
		role = "member"
	}

	return models.Principal{ID: id, DisplayName: claims.Name, Role: role}, nil
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetPrincipalFromContext retrieves the authenticated principal from the
// request context. The second return is false when the request never
// passed RequireAuth.
func GetPrincipalFromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(models.Principal)
	return p, ok
}
