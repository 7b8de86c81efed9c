package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerify(t *testing.T) {
	v, err := NewVerifier(testSecret, "bracketworks")
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}

	token := signToken(t, testSecret, jwt.RegisteredClaims{
		Subject:   "user-42",
		Issuer:    "bracketworks",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	id, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if id.Subject != "user-42" {
		t.Errorf("Subject = %q, want user-42", id.Subject)
	}
}

func TestVerifyMissingToken(t *testing.T) {
	v, _ := NewVerifier(testSecret, "")

	if _, err := v.Verify(""); !errors.Is(err, ErrMissingToken) {
		t.Errorf("Verify(\"\") = %v, want ErrMissingToken", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	v, _ := NewVerifier(testSecret, "")

	token := signToken(t, "other-secret", jwt.RegisteredClaims{
		Subject:   "user-42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	v, _ := NewVerifier(testSecret, "")

	token := signToken(t, testSecret, jwt.RegisteredClaims{
		Subject:   "user-42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})

	if _, err := v.Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify = %v, want ErrExpiredToken", err)
	}
}

func TestVerifyIssuerMismatch(t *testing.T) {
	v, _ := NewVerifier(testSecret, "bracketworks")

	token := signToken(t, testSecret, jwt.RegisteredClaims{
		Subject:   "user-42",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyMissingSubject(t *testing.T) {
	v, _ := NewVerifier(testSecret, "")

	token := signToken(t, testSecret, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify = %v, want ErrInvalidToken", err)
	}
}
