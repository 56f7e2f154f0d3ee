package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func testModeAuth(t *testing.T, secret string) *Auth {
	t.Helper()
	t.Setenv("AUTH0_TEST_MODE", "1")
	t.Setenv("TEST_JWT_SECRET", secret)
	return NewAuth(nil, "", "")
}

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAuthValidToken(t *testing.T) {
	auth := testModeAuth(t, "shh")
	token := signedToken(t, "shh", jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	sub, err := auth.UserIDFromAuthHeader("Bearer " + token)
	if err != nil {
		t.Fatalf("UserIDFromAuthHeader: %v", err)
	}
	if sub != "user-1" {
		t.Fatalf("unexpected subject: %q", sub)
	}
}

func TestAuthRejectsBadHeaders(t *testing.T) {
	auth := testModeAuth(t, "shh")
	for _, header := range []string{
		"",
		"Bearer ",
		"Basic abc",
		"Bearer not-a-jwt",
	} {
		if _, err := auth.UserIDFromAuthHeader(header); err == nil {
			t.Errorf("header %q: expected error", header)
		}
	}
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	auth := testModeAuth(t, "shh")
	token := signedToken(t, "other-secret", jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if _, err := auth.UserIDFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	auth := testModeAuth(t, "shh")
	token := signedToken(t, "shh", jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	if _, err := auth.UserIDFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestAuthRejectsMissingSubject(t *testing.T) {
	auth := testModeAuth(t, "shh")
	token := signedToken(t, "shh", jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if _, err := auth.UserIDFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("expected missing sub error")
	}
}
