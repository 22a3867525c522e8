package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/nimbusops/nimbus/internal/auth/domain"
	"github.com/nimbusops/nimbus/internal/auth/store"
)

type refreshTokensRepo struct {
	q querier
}

const refreshTokenColumns = `id, token_hash, user_id, username, tenant, client_id,
	scopes, expires_at, revoked, revoked_at, replaced_by, created_at`

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	var revokedAt sql.NullTime
	if t.RevokedAt != nil {
		revokedAt = sql.NullTime{Time: *t.RevokedAt, Valid: true}
	}

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+refreshTokenColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.TokenHash, t.UserID, t.Username, t.Tenant, t.ClientID,
		joinList(t.Scopes), t.ExpiresAt, t.Revoked, revokedAt, t.ReplacedBy, t.CreatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = ?`, hash)

	var (
		t         domain.RefreshToken
		scopes    string
		revokedAt sql.NullTime
	)
	err := row.Scan(
		&t.ID, &t.TokenHash, &t.UserID, &t.Username, &t.Tenant, &t.ClientID,
		&scopes, &t.ExpiresAt, &t.Revoked, &revokedAt, &t.ReplacedBy, &t.CreatedAt,
	)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.Scopes = splitList(scopes)
	if revokedAt.Valid {
		t.RevokedAt = &revokedAt.Time
	}
	return t, nil
}

// RevokeActiveRefreshToken is the rotation guard: the UPDATE only matches a
// token that is still unrevoked and unexpired, so exactly one of several
// concurrent rotations wins and the rest see ErrNotFound.
func (r *refreshTokensRepo) RevokeActiveRefreshToken(ctx context.Context, hash, replacedBy string, now time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens
		 SET revoked = 1, revoked_at = ?, replaced_by = ?
		 WHERE token_hash = ? AND revoked = 0 AND expires_at > ?`,
		now, replacedBy, hash, now,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string, now time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens
		 SET revoked = 1, revoked_at = ?
		 WHERE token_hash = ? AND revoked = 0`,
		now, hash,
	)
	return err
}

func (r *refreshTokensRepo) RevokeAllUserRefreshTokens(ctx context.Context, userID string, now time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens
		 SET revoked = 1, revoked_at = ?
		 WHERE user_id = ? AND revoked = 0`,
		now, userID,
	)
	return err
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= ? OR revoked = 1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
