package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nexkarthq/nexkart-backend/api/responses"
	"github.com/nexkarthq/nexkart-backend/pkg/config"
	pkgerrors "github.com/nexkarthq/nexkart-backend/pkg/errors"
	"github.com/nexkarthq/nexkart-backend/pkg/logger"
)

type ctxKey string

const ctxActor ctxKey = "actor"

// Actor returns the authenticated caller's subject, or "unknown" outside an
// authenticated request.
func Actor(ctx context.Context) string {
	if actor, ok := ctx.Value(ctxActor).(string); ok && actor != "" {
		return actor
	}
	return "unknown"
}

// Auth validates the management-API bearer token and seeds the request
// context with the caller identity.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims := jwt.RegisteredClaims{}
			parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(cfg.Secret), nil
			}, jwt.WithIssuer(cfg.Issuer), jwt.WithExpirationRequired())
			if err != nil || !parsed.Valid {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if claims.Subject == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing subject"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxActor, claims.Subject)
			if logg != nil {
				ctx = logg.WithField(ctx, "actor", claims.Subject)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WebhookToken guards the carrier callback with a static bearer token. An
// empty configured token leaves the endpoint open; a warning is logged once
// at wiring time.
func WebhookToken(token string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			supplied := raw
			if strings.HasPrefix(strings.ToLower(supplied), "bearer ") {
				supplied = strings.TrimSpace(supplied[7:])
			}
			if supplied == "" || supplied != token {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
