package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/Hamish-Leahy/NEIS/internal/model"
)

func TestDemoLogin(t *testing.T) {
	v := NewDemoVerifier()
	ctx := context.Background()

	identity, err := v.Login(ctx, "user@demo.com", "demo123")
	if err != nil {
		t.Fatalf("login error: %v", err)
	}
	if identity.Role != model.RoleUser || identity.Name != "Sarah Johnson" {
		t.Fatalf("unexpected identity %+v", identity)
	}
	if identity.Role.DashboardRoute() != "/user-dashboard" {
		t.Fatalf("unexpected dashboard route %s", identity.Role.DashboardRoute())
	}

	// Email matching is case-insensitive, password is exact.
	if _, err := v.Login(ctx, "USER@demo.com", "demo123"); err != nil {
		t.Fatalf("expected case-insensitive email match, got %v", err)
	}
	if _, err := v.Login(ctx, "user@demo.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := v.Login(ctx, "nobody@demo.com", "demo123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestDemoTableRoles(t *testing.T) {
	v := NewDemoVerifier()
	ctx := context.Background()

	cases := map[string]model.Role{
		"user@demo.com":         model.RoleUser,
		"practitioner@demo.com": model.RolePractitioner,
		"admin@demo.com":        model.RoleAdmin,
		"supervisor@demo.com":   model.RoleSupervisor,
	}
	for email, role := range cases {
		identity, err := v.Login(ctx, email, "demo123")
		if err != nil {
			t.Fatalf("login %s: %v", email, err)
		}
		if identity.Role != role {
			t.Fatalf("expected role %s for %s, got %s", role, email, identity.Role)
		}
	}
}

func TestDemoRegisterFabricatesUniqueIDs(t *testing.T) {
	v := NewDemoVerifier()
	ctx := context.Background()

	first, err := v.Register(ctx, RegisterInput{Email: "New@Example.com", Password: "secret1", Name: "New User"})
	if err != nil {
		t.Fatalf("register error: %v", err)
	}
	if first.Email != "new@example.com" || first.Role != model.RoleUser {
		t.Fatalf("unexpected identity %+v", first)
	}

	second, err := v.Register(ctx, RegisterInput{Email: "new@example.com", Password: "secret1", Name: "New User"})
	if err != nil {
		t.Fatalf("register error: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected unique ids")
	}
}
