package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/hookrelay/pkg/apierrors"
	"github.com/platinummonkey/hookrelay/pkg/auth"
	"github.com/platinummonkey/hookrelay/pkg/storage"
)

// ErrInvalidToken is returned for unknown, malformed or revoked tokens
var ErrInvalidToken = errors.New("invalid token")

// TokenStore issues and validates bearer tokens. Only SHA-256 hashes of
// tokens are stored.
type TokenStore struct {
	db        *sql.DB
	generator *auth.TokenGenerator
}

// NewTokenStore creates a new TokenStore
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db, generator: auth.NewTokenGenerator()}
}

// Issue creates a token for userID and returns the plaintext token. The
// plaintext is never persisted.
func (s *TokenStore) Issue(ctx context.Context, userID int64) (string, *auth.APIToken, error) {
	token, hash, prefix, err := s.generator.GenerateToken()
	if err != nil {
		return "", nil, err
	}

	apiToken := &auth.APIToken{
		UserID:      userID,
		TokenHash:   hash,
		TokenPrefix: prefix,
		CreatedAt:   time.Now().UTC(),
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO auth_tokens (user_id, token_hash, token_prefix, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, userID, hash, prefix, apiToken.CreatedAt).Scan(&apiToken.ID)
	if err != nil {
		if storage.IsForeignKeyViolation(err) {
			return "", nil, apierrors.NotFound("Not found.")
		}
		return "", nil, fmt.Errorf("failed to create token: %w", err)
	}
	return token, apiToken, nil
}

// Authenticate resolves a plaintext token to its active user and records
// the use
func (s *TokenStore) Authenticate(ctx context.Context, token string) (*auth.AuthContext, error) {
	if err := s.generator.ValidateTokenFormat(token); err != nil {
		return nil, ErrInvalidToken
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.user_id, t.token_prefix, t.created_at, t.last_used_at,
		       u.id, u.email, u.password_hash, u.is_superuser, u.is_active,
		       u.created_by, u.updated_by, u.created_at, u.updated_at
		FROM auth_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = $1
	`, s.generator.HashToken(token))

	apiToken := &auth.APIToken{}
	user := &auth.User{}
	var lastUsed sql.NullTime
	var createdBy, updatedBy sql.NullInt64
	err := row.Scan(
		&apiToken.ID, &apiToken.UserID, &apiToken.TokenPrefix, &apiToken.CreatedAt, &lastUsed,
		&user.ID, &user.Email, &user.PasswordHash, &user.IsSuperuser, &user.IsActive,
		&createdBy, &updatedBy, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInvalidToken
	}
	apiToken.LastUsedAt = storage.TimePtr(lastUsed)
	user.CreatedBy = storage.Int64Ptr(createdBy)
	user.UpdatedBy = storage.Int64Ptr(updatedBy)

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `UPDATE auth_tokens SET last_used_at = $1 WHERE id = $2`, now, apiToken.ID); err != nil {
		return nil, fmt.Errorf("failed to record token use: %w", err)
	}
	apiToken.LastUsedAt = &now

	return &auth.AuthContext{User: user, Token: apiToken}, nil
}

// Revoke deletes one token
func (s *TokenStore) Revoke(ctx context.Context, tokenID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE id = $1`, tokenID)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrInvalidToken
	}
	return nil
}

// RevokeAllForUser deletes every token of userID and returns how many there were
func (s *TokenStore) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke tokens: %w", err)
	}
	return result.RowsAffected()
}
