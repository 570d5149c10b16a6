package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Hamish-Leahy/NEIS/internal/crypto"
	"github.com/Hamish-Leahy/NEIS/internal/model"
	"github.com/Hamish-Leahy/NEIS/internal/repository"
)

// RepoVerifier verifies hashed credentials against the durable store.
type RepoVerifier struct {
	store *repository.Store
}

func NewRepoVerifier(store *repository.Store) *RepoVerifier {
	return &RepoVerifier{store: store}
}

func (v *RepoVerifier) Login(ctx context.Context, email, password string) (model.Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := v.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Identity{}, ErrInvalidCredentials
		}
		return model.Identity{}, err
	}
	if err := crypto.CheckPassword(user.PasswordHash, password); err != nil {
		return model.Identity{}, ErrInvalidCredentials
	}
	return user.Identity(), nil
}

func (v *RepoVerifier) Register(ctx context.Context, input RegisterInput) (model.Identity, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	taken, err := v.store.EmailExists(ctx, email)
	if err != nil {
		return model.Identity{}, err
	}
	if taken {
		return model.Identity{}, ErrEmailTaken
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return model.Identity{}, err
	}
	role := input.Role
	if role == "" {
		role = model.RoleUser
	}
	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         input.Name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := v.store.CreateUser(ctx, user); err != nil {
		return model.Identity{}, err
	}
	if err := v.store.SaveConsent(ctx, input.Consents.Durable(user.ID, now)); err != nil {
		return model.Identity{}, err
	}
	return user.Identity(), nil
}
