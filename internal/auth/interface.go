// Package auth verifies Supabase access tokens.
package auth

import "margin/internal/domain/models"

// JWTVerifier validates bearer tokens. The middleware depends only on this.
type JWTVerifier interface {
	// VerifyToken returns the token's claims, or domain.ErrUnauthorized
	VerifyToken(tokenString string) (*models.SupabaseClaims, error)

	// Close releases resources held by the verifier
	Close() error
}
