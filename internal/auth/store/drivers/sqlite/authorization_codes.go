package sqlite

import (
	"context"
	"time"

	"github.com/nimbusops/nimbus/internal/auth/domain"
	"github.com/nimbusops/nimbus/internal/auth/store"
)

type authorizationCodesRepo struct {
	q querier
}

const authorizationCodeColumns = `id, code_hash, client_id, user_id, username, tenant,
	redirect_uri, scopes, code_challenge, code_challenge_method, expires_at, created_at`

func (r *authorizationCodesRepo) CreateAuthorizationCode(ctx context.Context, c domain.AuthorizationCode) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO authorization_codes (`+authorizationCodeColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CodeHash, c.ClientID, c.UserID, c.Username, c.Tenant,
		c.RedirectURI, joinList(c.Scopes),
		c.CodeChallenge, c.CodeChallengeMethod,
		c.ExpiresAt, c.CreatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// ConsumeAuthorizationCode removes the row and returns it in one statement.
// SQLite serialises writers, so under concurrent redemption exactly one
// caller sees the row and the rest get ErrNotFound.
func (r *authorizationCodesRepo) ConsumeAuthorizationCode(ctx context.Context, codeHash string) (domain.AuthorizationCode, error) {
	row := r.q.QueryRowContext(ctx,
		`DELETE FROM authorization_codes WHERE code_hash = ?
		 RETURNING `+authorizationCodeColumns, codeHash)

	var (
		c      domain.AuthorizationCode
		scopes string
	)
	err := row.Scan(
		&c.ID, &c.CodeHash, &c.ClientID, &c.UserID, &c.Username, &c.Tenant,
		&c.RedirectURI, &scopes,
		&c.CodeChallenge, &c.CodeChallengeMethod,
		&c.ExpiresAt, &c.CreatedAt,
	)
	if err != nil {
		return domain.AuthorizationCode{}, mapNotFound(err)
	}
	c.Scopes = splitList(scopes)
	return c, nil
}

func (r *authorizationCodesRepo) DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM authorization_codes WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
