package auth

import "testing"

func TestVerifyRoundTrip(t *testing.T) {
	tok, err := Sign("secret", Identity{UserID: "w1", Role: "worker"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	id, err := NewJWTVerifier("secret").Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.UserID != "w1" || id.Role != "worker" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	tok, err := Sign("secret", Identity{UserID: "c1", Role: "client"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewJWTVerifier("other").Verify(tok); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	tok, err := Sign("secret", Identity{UserID: "u1", Role: "buxgalter"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewJWTVerifier("secret").Verify(tok); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for non-actor role, got %v", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	if _, err := NewJWTVerifier("secret").Verify("not-a-token"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
