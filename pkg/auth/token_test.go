package auth

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tg := NewTokenGenerator()

	token, tokenHash, tokenPrefix, err := tg.GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, TokenPrefix))
	assert.Len(t, tokenHash, 64)
	assert.Equal(t, tokenHash, tg.HashToken(token))
	assert.True(t, strings.HasPrefix(token, tokenPrefix))
	assert.Len(t, tokenPrefix, len(TokenPrefix)+8)

	encoded := strings.TrimPrefix(token, TokenPrefix)
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Len(t, raw, TokenLength)

	// Two generations never collide.
	other, _, _, err := tg.GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestValidateTokenFormat(t *testing.T) {
	tg := NewTokenGenerator()

	token, _, _, err := tg.GenerateToken()
	require.NoError(t, err)
	assert.NoError(t, tg.ValidateTokenFormat(token))

	for name, bad := range map[string]string{
		"missing prefix": "abc123",
		"prefix only":    TokenPrefix,
		"bad encoding":   TokenPrefix + "not!valid@base64",
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, tg.ValidateTokenFormat(bad))
		})
	}
}

func TestSessionIDForToken(t *testing.T) {
	a := SessionIDForToken("crewdeck_aaaa")
	b := SessionIDForToken("crewdeck_bbbb")

	assert.Len(t, a, 32)
	assert.Equal(t, a, SessionIDForToken("crewdeck_aaaa"))
	assert.NotEqual(t, a, b)
	// One-way: the derived ID never contains the token.
	assert.NotContains(t, a, "crewdeck")
}

func TestCreateToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	manager := NewTokenManager(db)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO api_tokens").
		WithArgs(int64(42), sqlmock.AnyArg(), sqlmock.AnyArg(), "ci token", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(3, now))

	apiToken, plaintext, err := manager.CreateToken(context.Background(), 42, "ci token", nil)
	require.NoError(t, err)

	assert.Equal(t, int64(3), apiToken.ID)
	assert.True(t, strings.HasPrefix(plaintext, TokenPrefix))
	// Only the hash is persisted.
	assert.NotEqual(t, plaintext, apiToken.TokenHash)
	assert.Equal(t, NewTokenGenerator().HashToken(plaintext), apiToken.TokenHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	manager := NewTokenManager(db)
	tg := NewTokenGenerator()
	now := time.Now()

	token, tokenHash, _, err := tg.GenerateToken()
	require.NoError(t, err)

	t.Run("valid token returns the owner", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM api_tokens t").
			WithArgs(tokenHash).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "name", "email", "password_hash", "current_organization_id",
				"is_super_admin", "is_active", "created_at", "updated_at", "last_login_at",
			}).AddRow(42, "Ada", "ada@example.com", "", nil, false, true, now, now, nil))
		mock.ExpectExec("UPDATE api_tokens SET last_used_at").
			WithArgs(tokenHash).
			WillReturnResult(sqlmock.NewResult(0, 1))

		user, err := manager.ValidateToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, int64(42), user.ID)
	})

	t.Run("unknown token is rejected", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM api_tokens t").
			WithArgs(tokenHash).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "name", "email", "password_hash", "current_organization_id",
				"is_super_admin", "is_active", "created_at", "updated_at", "last_login_at",
			}))

		_, err := manager.ValidateToken(context.Background(), token)
		assert.EqualError(t, err, "invalid or expired token")
	})

	t.Run("malformed token never reaches the database", func(t *testing.T) {
		_, err := manager.ValidateToken(context.Background(), "not-a-token")
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	manager := NewTokenManager(db)

	t.Run("revokes an active token", func(t *testing.T) {
		mock.ExpectExec("UPDATE api_tokens").
			WithArgs(int64(42), "revoked by owner", int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, manager.RevokeToken(context.Background(), 3, 42, "revoked by owner"))
	})

	t.Run("already revoked tokens are not revoked twice", func(t *testing.T) {
		mock.ExpectExec("UPDATE api_tokens").
			WithArgs(int64(42), "", int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := manager.RevokeToken(context.Background(), 3, 42, "")
		assert.EqualError(t, err, "token not found or already revoked")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTokens(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	manager := NewTokenManager(db)
	now := time.Now()
	revoked := now.Add(-time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM api_tokens").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "token_hash", "token_prefix", "name", "expires_at",
			"last_used_at", "created_at", "revoked_at", "revoked_by", "revoke_reason",
		}).
			AddRow(4, 42, "hash2", "crewdeck_bbbbbbbb", "new", nil, nil, now, nil, nil, "").
			AddRow(3, 42, "hash1", "crewdeck_aaaaaaaa", "old", nil, nil, now.Add(-2*time.Hour), revoked, 42, "rotated"))

	tokens, err := manager.ListTokens(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	assert.Nil(t, tokens[0].RevokedAt)
	require.NotNil(t, tokens[1].RevokedAt)
	assert.Equal(t, "rotated", tokens[1].RevokeReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}
