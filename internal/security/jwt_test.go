package security

import (
	"errors"
	"testing"
	"time"
)

func TestOperatorTokenRoundTrip(t *testing.T) {
	token, errGenerate := GenerateOperatorToken("secret", 42, "alice", true, time.Hour)
	if errGenerate != nil {
		t.Fatalf("generate token: %v", errGenerate)
	}

	claims, errParse := ParseOperatorToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse token: %v", errParse)
	}
	if claims.OperatorID != 42 {
		t.Fatalf("expected operator id 42, got %d", claims.OperatorID)
	}
	if claims.Username != "alice" {
		t.Fatalf("expected username alice, got %s", claims.Username)
	}
	if !claims.IsSuperAdmin {
		t.Fatalf("expected super admin claim")
	}
}

func TestParseOperatorTokenRejectsWrongSecret(t *testing.T) {
	token, errGenerate := GenerateOperatorToken("secret", 1, "alice", false, time.Hour)
	if errGenerate != nil {
		t.Fatalf("generate token: %v", errGenerate)
	}
	if _, errParse := ParseOperatorToken("other-secret", token); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
}

func TestParseOperatorTokenRejectsExpired(t *testing.T) {
	token, errGenerate := GenerateOperatorToken("secret", 1, "alice", false, -time.Minute)
	if errGenerate != nil {
		t.Fatalf("generate token: %v", errGenerate)
	}
	if _, errParse := ParseOperatorToken("secret", token); !errors.Is(errParse, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", errParse)
	}
}

func TestParseOperatorTokenRejectsGarbage(t *testing.T) {
	if _, errParse := ParseOperatorToken("secret", "not.a.jwt"); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
}

func TestPasswordHashAndCheck(t *testing.T) {
	hash, errHash := HashPassword("s3cret-pass")
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	if hash == "s3cret-pass" || hash == "" {
		t.Fatalf("expected hashed value, got %q", hash)
	}
	if !CheckPassword(hash, "s3cret-pass") {
		t.Fatalf("expected matching password to verify")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatalf("expected mismatched password to fail")
	}
}
