// Package auth extracts the signer identity from bearer tokens. Token
// issuance and session storage live in the auth collaborator; this layer
// only validates and reads the claims the workflow needs.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Signer identifies the hospital user performing sign/confirm/dispute
// actions.
type Signer struct {
	UserID       string
	HospitalID   string
	HospitalName string
}

type ctxKey int

const signerKey ctxKey = iota

func WithSigner(ctx context.Context, s Signer) context.Context {
	return context.WithValue(ctx, signerKey, s)
}

func SignerFromContext(ctx context.Context) (Signer, bool) {
	s, ok := ctx.Value(signerKey).(Signer)
	return s, ok
}

// RequireSigner rejects requests without a valid HS256 bearer token and puts
// the extracted Signer on the request context.
func RequireSigner(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")

			raw := strings.TrimPrefix(header, "Bearer ")
			if raw == "" || raw == header {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims := jwt.MapClaims{}

			_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}

				return []byte(secret), nil
			})
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			signer := Signer{
				UserID:       claimString(claims, "sub"),
				HospitalID:   claimString(claims, "hospital_id"),
				HospitalName: claimString(claims, "hospital_name"),
			}
			if signer.UserID == "" {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSigner(r.Context(), signer)))
		})
	}
}

func claimString(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}
