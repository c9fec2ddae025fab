package utils

import (
	"testing"
	"time"

	"github.com/blogium/blogium/config"
)

func TestTokenRoundTrip(t *testing.T) {
	config.SetForTesting(config.AppConfig{JWTSecret: "test-secret"})

	token, err := GenerateToken(42, "alice", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	config.SetForTesting(config.AppConfig{JWTSecret: "test-secret"})

	token, err := GenerateToken(42, "alice", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	config.SetForTesting(config.AppConfig{JWTSecret: "test-secret"})

	token, err := GenerateToken(42, "alice", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	config.SetForTesting(config.AppConfig{JWTSecret: "other-secret"})
	if _, err := ParseToken(token); err == nil {
		t.Fatal("token signed with a different secret accepted")
	}
}
