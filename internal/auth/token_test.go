package auth

import (
	"errors"
	"testing"
	"time"

	"chepochem.org/internal/rbac"
)

func TestGenerateAndValidateToken(t *testing.T) {
	t.Setenv("CHEPOCHEM_AUTH_SECRET", "test-secret")
	ResetSecretForTests()

	token, err := GenerateToken("user-42", rbac.RoleModerator, 15*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	actor, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if actor.ID != "user-42" {
		t.Fatalf("unexpected subject: %s", actor.ID)
	}
	if actor.Role != rbac.RoleModerator {
		t.Fatalf("unexpected role: %v", actor.Role)
	}
	if !actor.Active {
		t.Fatal("expected active actor")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Setenv("CHEPOCHEM_AUTH_SECRET", "test-secret")
	ResetSecretForTests()

	if _, err := ParseAndValidate("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := ParseAndValidate(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	t.Setenv("CHEPOCHEM_AUTH_SECRET", "test-secret")
	ResetSecretForTests()

	token, err := GenerateToken("user-42", rbac.RoleUser, time.Nanosecond)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestGenerateRejectsAnonymous(t *testing.T) {
	t.Setenv("CHEPOCHEM_AUTH_SECRET", "test-secret")
	ResetSecretForTests()

	if _, err := GenerateToken("user-42", rbac.Anonymous, time.Minute); err == nil {
		t.Fatal("expected error for anonymous role")
	}
}

func TestMissingSecret(t *testing.T) {
	t.Setenv("CHEPOCHEM_AUTH_SECRET", "")
	ResetSecretForTests()
	defer ResetSecretForTests()

	if _, err := GenerateToken("user-42", rbac.RoleUser, time.Minute); err == nil {
		t.Fatal("expected missing-secret error")
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-pw")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := VerifyPassword(hash, "s3cret-pw"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch error")
	}
}
