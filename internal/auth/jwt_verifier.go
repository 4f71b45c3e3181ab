package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"margin/internal/domain"
	"margin/internal/domain/models"
)

// allowedAlgs are the asymmetric algorithms Supabase signs with
var allowedAlgs = []string{"RS256", "ES256"}

// SupabaseJWTVerifier implements JWTVerifier against a JWKS key set.
type SupabaseJWTVerifier struct {
	keyfunc jwt.Keyfunc
	cancel  context.CancelFunc
	logger  *slog.Logger
}

// NewJWTVerifier fetches signing keys from the JWKS endpoint. keyfunc
// refreshes them in the background until Close.
func NewJWTVerifier(jwksURL string, logger *slog.Logger) (*SupabaseJWTVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}

	logger.Info("JWT verifier initialized", "jwks_url", jwksURL)
	return &SupabaseJWTVerifier{keyfunc: jwks.Keyfunc, cancel: cancel, logger: logger}, nil
}

// NewStaticVerifier verifies with a fixed key lookup, for tests and
// self-hosted setups without a JWKS endpoint.
func NewStaticVerifier(kf jwt.Keyfunc, logger *slog.Logger) *SupabaseJWTVerifier {
	return &SupabaseJWTVerifier{keyfunc: kf, cancel: func() {}, logger: logger}
}

var _ JWTVerifier = (*SupabaseJWTVerifier)(nil)

// VerifyToken checks signature, expiry, algorithm, subject and role.
func (v *SupabaseJWTVerifier) VerifyToken(tokenString string) (*models.SupabaseClaims, error) {
	claims := &models.SupabaseClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyfunc, jwt.WithValidMethods(allowedAlgs))
	if err != nil || !token.Valid {
		v.logger.Debug("token rejected", "error", err)
		return nil, domain.ErrUnauthorized
	}

	if claims.Subject == "" {
		v.logger.Debug("token missing subject claim")
		return nil, domain.ErrUnauthorized
	}
	// anon tokens carry role "anon"
	if claims.Role != "authenticated" {
		v.logger.Warn("token has invalid role", "role", claims.Role, "user_id", claims.Subject)
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

// Close stops the background key refresh
func (v *SupabaseJWTVerifier) Close() error {
	v.cancel()
	v.logger.Info("JWT verifier closed")
	return nil
}
