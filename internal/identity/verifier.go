package identity

import (
	"context"
	"errors"

	"github.com/Hamish-Leahy/NEIS/internal/consent"
	"github.com/Hamish-Leahy/NEIS/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
)

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     model.Role
	Consents consent.Record
}

// Verifier is the login/registration boundary. The demo implementation
// checks a fixed identity table; the repository implementation verifies
// hashed credentials against the durable store.
type Verifier interface {
	Login(ctx context.Context, email, password string) (model.Identity, error)
	Register(ctx context.Context, input RegisterInput) (model.Identity, error)
}
