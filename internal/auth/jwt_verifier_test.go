package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"margin/internal/domain"
	"margin/internal/domain/models"
)

func newTestVerifier(t *testing.T) (*SupabaseJWTVerifier, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	kf := func(*jwt.Token) (interface{}, error) { return &key.PublicKey, nil }
	return NewStaticVerifier(kf, slog.New(slog.NewTextHandler(io.Discard, nil))), key
}

func sign(t *testing.T, key *ecdsa.PrivateKey, claims models.SupabaseClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func claimsFor(sub, role string, exp time.Time) models.SupabaseClaims {
	return models.SupabaseClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub, ExpiresAt: jwt.NewNumericDate(exp)},
		Email:            "writer@example.com",
		Role:             role,
	}
}

func TestVerifyToken(t *testing.T) {
	v, key := newTestVerifier(t)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name    string
		token   func() string
		wantErr bool
	}{
		{"valid", func() string { return sign(t, key, claimsFor("u1", "authenticated", future)) }, false},
		{"expired", func() string { return sign(t, key, claimsFor("u1", "authenticated", time.Now().Add(-time.Minute))) }, true},
		{"anon role", func() string { return sign(t, key, claimsFor("u1", "anon", future)) }, true},
		{"missing subject", func() string { return sign(t, key, claimsFor("", "authenticated", future)) }, true},
		{"symmetric algorithm", func() string {
			s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claimsFor("u1", "authenticated", future)).SignedString([]byte("secret"))
			return s
		}, true},
		{"garbage", func() string { return "not.a.token" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.VerifyToken(tt.token())
			if tt.wantErr {
				if !errors.Is(err, domain.ErrUnauthorized) {
					t.Fatalf("VerifyToken() error = %v, want ErrUnauthorized", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("VerifyToken() error = %v", err)
			}
			if claims.GetUserID() != "u1" || claims.Email != "writer@example.com" {
				t.Errorf("claims = %+v", claims)
			}
		})
	}
}
