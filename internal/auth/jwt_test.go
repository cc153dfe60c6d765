package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-minimum-32-characters-long-for-hmac"

func TestValidateToken_RoundTrip(t *testing.T) {
	token, err := signForTests(testSecret, Claims{
		User:    "alice",
		Project: "proj-1",
		Domain:  "default",
		IsAdmin: true,
	})
	if err != nil {
		t.Fatalf("signForTests: %v", err)
	}

	claims, err := ValidateToken(testSecret, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.User != "alice" || claims.Project != "proj-1" || claims.Domain != "default" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if !claims.IsAdmin {
		t.Error("expected IsAdmin=true")
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := signForTests(testSecret, Claims{User: "bob"})
	if err != nil {
		t.Fatalf("signForTests: %v", err)
	}
	if _, err := ValidateToken("wrong-secret-key-minimum-32-characters-long", token); err == nil {
		t.Error("expected error validating with wrong secret")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	token, err := signForTests(testSecret, Claims{
		User: "carol",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(past),
		},
	})
	if err != nil {
		t.Fatalf("signForTests: %v", err)
	}
	if _, err := ValidateToken(testSecret, token); err != ErrExpiredToken {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateToken_Malformed(t *testing.T) {
	if _, err := ValidateToken(testSecret, "not.a.token"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestValidateToken_EmptySecret(t *testing.T) {
	if _, err := ValidateToken("", "anything"); err == nil {
		t.Error("expected error when secret is empty")
	}
}
