package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	// TokenPrefix identifies crewdeck tokens
	TokenPrefix = "crewdeck_"
	// TokenLength is the total length of random bytes (32 bytes = 256 bits)
	TokenLength = 32
)

// TokenGenerator generates and validates API tokens
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a new API token
// Format: crewdeck_<base64url(32 random bytes)>
func (tg *TokenGenerator) GenerateToken() (token string, tokenHash string, tokenPrefix string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	// Encode to base64url (URL-safe, no padding)
	encodedToken := base64.RawURLEncoding.EncodeToString(randomBytes)

	fullToken := TokenPrefix + encodedToken

	// SHA256 hash for storage; the plaintext is never persisted
	hash := sha256.Sum256([]byte(fullToken))
	hashStr := hex.EncodeToString(hash[:])

	// First 8 chars after the prefix for identification in listings
	prefix := TokenPrefix
	if len(encodedToken) >= 8 {
		prefix = TokenPrefix + encodedToken[:8]
	}

	return fullToken, hashStr, prefix, nil
}

// HashToken computes the SHA256 hash of a token for lookup
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks if a token has the correct format
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) == 0 {
		return fmt.Errorf("token is too short")
	}

	if _, err := base64.RawURLEncoding.DecodeString(encodedPart); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}

	return nil
}

// SessionIDForToken derives a stable session identifier from a bearer token.
// Requests carrying the same token share a session for tenant caching. The
// derivation is one-way so the session ID can be logged and stored in Redis
// without exposing the token.
func SessionIDForToken(token string) string {
	hash := sha256.Sum256([]byte("session:" + token))
	return hex.EncodeToString(hash[:16])
}

// TokenManager manages API token lifecycle
type TokenManager struct {
	db        *sql.DB
	generator *TokenGenerator
}

// NewTokenManager creates a new token manager
func NewTokenManager(db *sql.DB) *TokenManager {
	return &TokenManager{
		db:        db,
		generator: NewTokenGenerator(),
	}
}

// CreateToken creates a new API token and returns the plaintext exactly once.
func (tm *TokenManager) CreateToken(ctx context.Context, userID int64, name string, expiresAt *time.Time) (*APIToken, string, error) {
	token, tokenHash, tokenPrefix, err := tm.generator.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	apiToken := &APIToken{
		UserID:      userID,
		TokenHash:   tokenHash,
		TokenPrefix: tokenPrefix,
		Name:        name,
		ExpiresAt:   expiresAt,
	}

	query := `
		INSERT INTO api_tokens (user_id, token_hash, token_prefix, name, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`
	err = tm.db.QueryRowContext(ctx, query,
		apiToken.UserID, apiToken.TokenHash, apiToken.TokenPrefix, apiToken.Name, apiToken.ExpiresAt,
	).Scan(&apiToken.ID, &apiToken.CreatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("failed to store token: %w", err)
	}

	return apiToken, token, nil
}

// ValidateToken validates a bearer token and returns the owning user.
// Revoked and expired tokens are rejected.
func (tm *TokenManager) ValidateToken(ctx context.Context, token string) (*User, error) {
	if err := tm.generator.ValidateTokenFormat(token); err != nil {
		return nil, fmt.Errorf("invalid token format: %w", err)
	}

	tokenHash := tm.generator.HashToken(token)

	query := `
		SELECT u.id, u.name, u.email, u.password_hash, u.current_organization_id,
		       u.is_super_admin, u.is_active, u.created_at, u.updated_at, u.last_login_at
		FROM api_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = $1
		  AND t.revoked_at IS NULL
		  AND (t.expires_at IS NULL OR t.expires_at > NOW())
		  AND u.is_active = true
	`
	user, err := scanUser(tm.db.QueryRowContext(ctx, query, tokenHash))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invalid or expired token")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}

	// Best-effort usage tracking
	_, _ = tm.db.ExecContext(ctx, `UPDATE api_tokens SET last_used_at = NOW() WHERE token_hash = $1`, tokenHash)

	return user, nil
}

// ListTokens returns a user's tokens, newest first, revoked ones included
func (tm *TokenManager) ListTokens(ctx context.Context, userID int64) ([]APIToken, error) {
	query := `
		SELECT id, user_id, token_hash, token_prefix, name, expires_at, last_used_at,
		       created_at, revoked_at, revoked_by, COALESCE(revoke_reason, '')
		FROM api_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := tm.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []APIToken
	for rows.Next() {
		var t APIToken
		var expiresAt, lastUsedAt, revokedAt sql.NullTime
		var revokedBy sql.NullInt64
		err := rows.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.TokenPrefix, &t.Name,
			&expiresAt, &lastUsedAt, &t.CreatedAt, &revokedAt, &revokedBy, &t.RevokeReason)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		if expiresAt.Valid {
			v := expiresAt.Time
			t.ExpiresAt = &v
		}
		if lastUsedAt.Valid {
			v := lastUsedAt.Time
			t.LastUsedAt = &v
		}
		if revokedAt.Valid {
			v := revokedAt.Time
			t.RevokedAt = &v
		}
		if revokedBy.Valid {
			v := revokedBy.Int64
			t.RevokedBy = &v
		}
		tokens = append(tokens, t)
	}

	return tokens, rows.Err()
}

// GetToken retrieves a token record by ID
func (tm *TokenManager) GetToken(ctx context.Context, tokenID int64) (*APIToken, error) {
	query := `
		SELECT id, user_id, token_hash, token_prefix, name, expires_at, last_used_at,
		       created_at, revoked_at, revoked_by, COALESCE(revoke_reason, '')
		FROM api_tokens
		WHERE id = $1
	`
	var t APIToken
	var expiresAt, lastUsedAt, revokedAt sql.NullTime
	var revokedBy sql.NullInt64
	err := tm.db.QueryRowContext(ctx, query, tokenID).Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.TokenPrefix, &t.Name,
		&expiresAt, &lastUsedAt, &t.CreatedAt, &revokedAt, &revokedBy, &t.RevokeReason)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("token not found: %d", tokenID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if expiresAt.Valid {
		v := expiresAt.Time
		t.ExpiresAt = &v
	}
	if lastUsedAt.Valid {
		v := lastUsedAt.Time
		t.LastUsedAt = &v
	}
	if revokedAt.Valid {
		v := revokedAt.Time
		t.RevokedAt = &v
	}
	if revokedBy.Valid {
		v := revokedBy.Int64
		t.RevokedBy = &v
	}

	return &t, nil
}

// RevokeToken revokes a token
func (tm *TokenManager) RevokeToken(ctx context.Context, tokenID int64, revokedBy int64, reason string) error {
	query := `
		UPDATE api_tokens
		SET revoked_at = NOW(), revoked_by = $1, revoke_reason = $2
		WHERE id = $3 AND revoked_at IS NULL
	`
	result, err := tm.db.ExecContext(ctx, query, revokedBy, reason, tokenID)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("token not found or already revoked")
	}

	return nil
}

// CleanupExpiredTokens deletes tokens past their expiry
func (tm *TokenManager) CleanupExpiredTokens(ctx context.Context) error {
	_, err := tm.db.ExecContext(ctx, `DELETE FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at < NOW()`)
	if err != nil {
		return fmt.Errorf("failed to cleanup expired tokens: %w", err)
	}
	return nil
}
