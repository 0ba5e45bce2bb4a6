package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/inbox-sync-go/internal/audit"
	apperrors "github.com/openclaw/inbox-sync-go/internal/errors"
	"github.com/openclaw/inbox-sync-go/internal/httputil"
	"github.com/openclaw/inbox-sync-go/internal/model"
	"github.com/openclaw/inbox-sync-go/internal/util"
)

type contextKey string

const PrincipalContextKey contextKey = "principal"

func GetPrincipal(ctx context.Context) *model.Principal {
	if p, ok := ctx.Value(PrincipalContextKey).(*model.Principal); ok {
		return p
	}
	return nil
}

func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

// Claims are the identity provider's session token claims. The session id
// claim is optional; without it the token itself identifies the session.
type Claims struct {
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

type AuthMiddleware struct {
	secret []byte
	parser *jwt.Parser
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.WriteError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		principal, err := m.Authenticate(token)
		if err != nil {
			log.Warn().Err(err).Str("token", util.MaskToken(token)).Msg("auth middleware: invalid token attempt")
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]interface{}{"reason": err.Error()},
			})
			httputil.WriteError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// Authenticate validates an HS256 session token and returns its principal.
func (m *AuthMiddleware) Authenticate(token string) (*model.Principal, error) {
	var claims Claims
	_, err := m.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.InvalidToken("Session token expired").WithCause(err)
		}
		return nil, apperrors.InvalidToken("Invalid session token").WithCause(err)
	}

	if claims.Subject == "" {
		return nil, apperrors.InvalidToken("Session token has no subject")
	}

	sessionID := claims.SessionID
	if sessionID == "" {
		sessionID = util.HashToken(token)
	}

	return &model.Principal{
		UserID:    claims.Subject,
		SessionID: sessionID,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// extractToken reads the bearer header, or the token query parameter for
// EventSource clients that cannot set headers.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return r.URL.Query().Get("token")
}
