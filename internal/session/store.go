package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Hamish-Leahy/NEIS/internal/crypto"
	"github.com/Hamish-Leahy/NEIS/internal/model"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrTokenExpired = errors.New("refresh token expired")
)

// Entry is the persisted session record: the authenticated identity plus
// the hash of its refresh token. The identity never carries a password.
type Entry struct {
	Identity  model.Identity `json:"identity"`
	TokenHash string         `json:"tokenHash"`
	CreatedAt time.Time      `json:"createdAt"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

// Store holds at most one authenticated identity per owner, hydrated from
// the KV on every read so it survives process restarts.
type Store struct {
	kv        KV
	keyPrefix string
	tokenTTL  time.Duration
}

func NewStore(kv KV, keyPrefix string, tokenTTL time.Duration) *Store {
	if keyPrefix == "" {
		keyPrefix = "neis-user"
	}
	return &Store{kv: kv, keyPrefix: keyPrefix, tokenTTL: tokenTTL}
}

func (s *Store) userKey(userID string) string {
	return s.keyPrefix + ":" + userID
}

func (s *Store) tokenKey(tokenHash string) string {
	return s.keyPrefix + ":token:" + tokenHash
}

// Set replaces the owner's session with the given identity and mints the
// opaque refresh token for it. Last write wins.
func (s *Store) Set(ctx context.Context, identity model.Identity) (string, error) {
	token, err := crypto.NewRefreshToken()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	entry := Entry{
		Identity:  identity,
		TokenHash: crypto.HashToken(token),
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokenTTL),
	}

	if prev, err := s.load(ctx, s.userKey(identity.ID)); err == nil {
		_ = s.kv.Del(ctx, s.tokenKey(prev.TokenHash))
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	if err := s.kv.Set(ctx, s.userKey(identity.ID), string(data), 0); err != nil {
		return "", err
	}
	if err := s.kv.Set(ctx, s.tokenKey(entry.TokenHash), identity.ID, s.tokenTTL); err != nil {
		return "", err
	}
	return token, nil
}

// Current returns the owner's authenticated identity, or ErrNotFound when
// logged out.
func (s *Store) Current(ctx context.Context, userID string) (model.Identity, error) {
	entry, err := s.load(ctx, s.userKey(userID))
	if err != nil {
		return model.Identity{}, err
	}
	return entry.Identity, nil
}

// Lookup resolves a refresh token to its session entry.
func (s *Store) Lookup(ctx context.Context, refreshToken string) (Entry, error) {
	tokenHash := crypto.HashToken(refreshToken)
	userID, ok, err := s.kv.Get(ctx, s.tokenKey(tokenHash))
	if err != nil {
		return Entry{}, err
	}
	if !ok {
		return Entry{}, ErrNotFound
	}
	entry, err := s.load(ctx, s.userKey(userID))
	if err != nil {
		return Entry{}, err
	}
	if entry.TokenHash != tokenHash {
		return Entry{}, ErrNotFound
	}
	if time.Now().UTC().After(entry.ExpiresAt) {
		return Entry{}, ErrTokenExpired
	}
	return entry, nil
}

// Clear removes the owner's session and its persisted entry. A fresh read
// after Clear behaves like a restart with no stored session.
func (s *Store) Clear(ctx context.Context, userID string) error {
	entry, err := s.load(ctx, s.userKey(userID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.kv.Del(ctx, s.tokenKey(entry.TokenHash)); err != nil {
		return err
	}
	return s.kv.Del(ctx, s.userKey(userID))
}

func (s *Store) load(ctx context.Context, key string) (Entry, error) {
	data, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return Entry{}, err
	}
	if !ok {
		return Entry{}, ErrNotFound
	}
	var entry Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}
