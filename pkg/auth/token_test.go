package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scribeflow/scribeflow-backend/pkg/config"
)

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := config.AuthConfig{
		JWTSecret: "secret",
		JWTIssuer: "supabase",
	}
	now := time.Now().UTC()
	userID := uuid.NewString()

	token, err := MintAccessToken(cfg, now, userID, "writer@example.com", 30*time.Minute)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.Subject != userID {
		t.Fatalf("expected subject %s, got %s", userID, claims.Subject)
	}
	if claims.Email != "writer@example.com" {
		t.Fatalf("email not preserved, got %q", claims.Email)
	}
	if claims.Issuer != cfg.JWTIssuer {
		t.Fatalf("expected issuer %s, got %s", cfg.JWTIssuer, claims.Issuer)
	}

	exp := now.Add(30 * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v (diff %v)", exp.UTC(), claims.ExpiresAt.UTC(), diff)
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: "secret", JWTIssuer: "supabase"}

	token, err := MintAccessToken(cfg, time.Now(), uuid.NewString(), "a@b.com", 10*time.Minute)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err := ParseAccessToken(cfg, token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: "secret", JWTIssuer: "supabase"}

	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), uuid.NewString(), "a@b.com", 15*time.Minute)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	_, err = ParseAccessToken(cfg, token)
	if err == nil {
		t.Fatal("expected expiration error")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseAccessTokenWrongIssuer(t *testing.T) {
	mintCfg := config.AuthConfig{JWTSecret: "secret", JWTIssuer: "someone-else"}
	parseCfg := config.AuthConfig{JWTSecret: "secret", JWTIssuer: "supabase"}

	token, err := MintAccessToken(mintCfg, time.Now(), uuid.NewString(), "a@b.com", 5*time.Minute)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err := ParseAccessToken(parseCfg, token); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
}
