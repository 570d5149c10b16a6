package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/Hamish-Leahy/NEIS/internal/model"
)

type demoUser struct {
	identity model.Identity
	password string
}

// DemoVerifier validates against a fixed identity table. It exists for
// demonstrations and tests only and must never be the sole verifier in a
// real deployment.
type DemoVerifier struct {
	users []demoUser
}

func NewDemoVerifier() *DemoVerifier {
	return &DemoVerifier{users: []demoUser{
		{identity: model.Identity{ID: "1", Email: "user@demo.com", Name: "Sarah Johnson", Role: model.RoleUser}, password: "demo123"},
		{identity: model.Identity{ID: "2", Email: "practitioner@demo.com", Name: "Dr. Michael Chen", Role: model.RolePractitioner}, password: "demo123"},
		{identity: model.Identity{ID: "3", Email: "admin@demo.com", Name: "Admin User", Role: model.RoleAdmin}, password: "demo123"},
		{identity: model.Identity{ID: "4", Email: "supervisor@demo.com", Name: "Dr. Emma Wilson", Role: model.RoleSupervisor}, password: "demo123"},
	}}
}

func (v *DemoVerifier) Login(_ context.Context, email, password string) (model.Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	for _, u := range v.users {
		if u.identity.Email == email && u.password == password {
			return u.identity, nil
		}
	}
	return model.Identity{}, ErrInvalidCredentials
}

// Register accepts any well-formed input and fabricates a fresh identity.
// It does not check for duplicate emails.
func (v *DemoVerifier) Register(_ context.Context, input RegisterInput) (model.Identity, error) {
	role := input.Role
	if role == "" {
		role = model.RoleUser
	}
	return model.Identity{
		ID:    uuid.NewString(),
		Email: strings.TrimSpace(strings.ToLower(input.Email)),
		Name:  input.Name,
		Role:  role,
	}, nil
}
