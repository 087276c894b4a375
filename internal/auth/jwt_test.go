package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/teamflow-dev/teamflow/internal/models"
)

func testUser() *models.User {
	user := &models.User{
		Name:  "Ann",
		Email: "ann@x.com",
	}
	user.ID = 42
	return user
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	m, err := NewTokenManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	token, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if claims.UserID != 42 || claims.Email != "ann@x.com" || claims.Name != "Ann" {
		t.Errorf("unexpected claims: %+v", claims)
	}

	if claims.ID == "" {
		t.Error("expected a jti to be set")
	}

	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		t.Fatal("expected iat and exp to be set")
	}

	lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)

	if lifetime != time.Hour {
		t.Errorf("lifetime = %v, want %v", lifetime, time.Hour)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	m, err := NewTokenManager("test-secret", -time.Minute)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	token, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := m.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Verify returned %v, want ErrTokenExpired", err)
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	m, _ := NewTokenManager("test-secret", time.Hour)

	token, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", token)
	}

	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	if _, err := m.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify returned %v, want ErrInvalidToken", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer, _ := NewTokenManager("secret-one", time.Hour)
	verifier, _ := NewTokenManager("secret-two", time.Hour)

	token, err := issuer.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify returned %v, want ErrInvalidToken", err)
	}
}

func TestVerifyMalformedToken(t *testing.T) {
	m, _ := NewTokenManager("test-secret", time.Hour)

	if _, err := m.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify returned %v, want ErrInvalidToken", err)
	}
}

func TestEmptySecretRejected(t *testing.T) {
	if _, err := NewTokenManager("", time.Hour); err == nil {
		t.Error("expected an error for an empty secret")
	}
}
