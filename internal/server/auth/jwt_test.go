package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	userID := "user-123"

	tok, err := GenerateToken(userID, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	gotUserID, err := GetUserIDFromToken(tok, secret)
	if err != nil {
		t.Fatalf("GetUserIDFromToken error: %v", err)
	}
	if gotUserID != userID {
		t.Fatalf("userID mismatch: got %q want %q", gotUserID, userID)
	}
}

func TestGetUserIDFromToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")

	tok, err := GenerateToken("u1", secret, -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = GetUserIDFromToken(tok, secret)
	if err == nil {
		t.Fatalf("expected error for expired token, got nil")
	}
}

func TestGetUserIDFromToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("u2", []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = GetUserIDFromToken(tok, []byte("wrong-secret"))
	if err == nil {
		t.Fatalf("expected error for invalid signature, got nil")
	}
}

func TestGetUserIDFromToken_MalformedString(t *testing.T) {
	t.Parallel()

	_, err := GetUserIDFromToken("not.a.jwt", []byte("k"))
	if err == nil {
		t.Fatalf("expected error for malformed token, got nil")
	}
}

func TestIdentity_CurrentUserID(t *testing.T) {
	t.Parallel()

	secret := []byte("identity-secret")
	identity := NewIdentity(secret)

	tok, err := GenerateToken("user-42", secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	r := httptest.NewRequest("GET", "/api/chats", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	if got := identity.CurrentUserID(r); got != "user-42" {
		t.Fatalf("CurrentUserID = %q, want user-42", got)
	}
}

func TestIdentity_CurrentUserID_Anonymous(t *testing.T) {
	t.Parallel()

	identity := NewIdentity([]byte("identity-secret"))

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer "},
		{"garbage token", "Bearer not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/chats", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := identity.CurrentUserID(r); got != "" {
				t.Fatalf("CurrentUserID = %q, want empty", got)
			}
		})
	}
}

func TestIdentity_RejectsForeignSignature(t *testing.T) {
	t.Parallel()

	identity := NewIdentity([]byte("ours"))

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "intruder",
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("theirs"))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	r := httptest.NewRequest("GET", "/api/chats", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	if got := identity.CurrentUserID(r); got != "" {
		t.Fatalf("CurrentUserID = %q, want empty", got)
	}
}
