package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hamish-Leahy/NEIS/internal/model"
)

var ErrNotFound = pgx.ErrNoRows

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, avatar, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Email, user.PasswordHash, user.Name, user.Role, user.Avatar, user.CreatedAt, user.UpdatedAt)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, name, role, avatar, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.Avatar,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, name, role, avatar, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.Avatar,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

func (s *Store) SaveConsent(ctx context.Context, c model.Consent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO consents (user_id, service, evaluation, survey, collaborative_care, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET service = $2, evaluation = $3, survey = $4, collaborative_care = $5, captured_at = $6
	`, c.UserID, c.Service, c.Evaluation, c.Survey, c.CollaborativeCare, c.CapturedAt)
	return err
}

func (s *Store) GetConsent(ctx context.Context, userID string) (model.Consent, error) {
	var c model.Consent
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, service, evaluation, survey, collaborative_care, captured_at
		FROM consents
		WHERE user_id = $1
	`, userID)
	err := row.Scan(&c.UserID, &c.Service, &c.Evaluation, &c.Survey, &c.CollaborativeCare, &c.CapturedAt)
	return c, err
}

func (s *Store) TouchUser(ctx context.Context, userID string, updatedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET updated_at = $1 WHERE id = $2`, updatedAt, userID)
	return err
}
