package models

import "github.com/golang-jwt/jwt/v5"

// SupabaseClaims is the subset of Supabase Auth JWT claims the service reads.
// See: https://supabase.com/docs/guides/auth/jwts
type SupabaseClaims struct {
	jwt.RegisteredClaims
	Email       string                 `json:"email"`
	Role        string                 `json:"role"` // "authenticated" or "anon"
	AppMetadata map[string]interface{} `json:"app_metadata"`
	SessionID   string                 `json:"session_id"`
	IsAnonymous bool                   `json:"is_anonymous"`
}

// GetUserID returns the user ID from the JWT subject claim.
func (c *SupabaseClaims) GetUserID() string {
	return c.Subject
}
