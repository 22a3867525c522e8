package sqlite

import (
	"context"
	"time"

	"github.com/nimbusops/nimbus/internal/auth/domain"
	"github.com/nimbusops/nimbus/internal/auth/store"
)

type pendingAuthRequestsRepo struct {
	q querier
}

const pendingAuthRequestColumns = `id, client_id, redirect_uri, scopes, state, tenant,
	code_challenge, code_challenge_method, expires_at, created_at`

func (r *pendingAuthRequestsRepo) CreatePendingAuthRequest(ctx context.Context, p domain.PendingAuthRequest) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO pending_auth_requests (`+pendingAuthRequestColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ClientID, p.RedirectURI, joinList(p.Scopes), p.State, p.Tenant,
		p.CodeChallenge, p.CodeChallengeMethod, p.ExpiresAt, p.CreatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *pendingAuthRequestsRepo) GetPendingAuthRequest(ctx context.Context, id string) (domain.PendingAuthRequest, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+pendingAuthRequestColumns+` FROM pending_auth_requests WHERE id = ?`, id)

	var (
		p      domain.PendingAuthRequest
		scopes string
	)
	err := row.Scan(
		&p.ID, &p.ClientID, &p.RedirectURI, &scopes, &p.State, &p.Tenant,
		&p.CodeChallenge, &p.CodeChallengeMethod, &p.ExpiresAt, &p.CreatedAt,
	)
	if err != nil {
		return domain.PendingAuthRequest{}, mapNotFound(err)
	}
	p.Scopes = splitList(scopes)
	return p, nil
}

func (r *pendingAuthRequestsRepo) DeletePendingAuthRequest(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM pending_auth_requests WHERE id = ?`, id)
	return err
}

func (r *pendingAuthRequestsRepo) DeleteExpiredPendingAuthRequests(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM pending_auth_requests WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
