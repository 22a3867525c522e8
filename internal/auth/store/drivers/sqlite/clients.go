package sqlite

import (
	"context"
	"time"

	"github.com/nimbusops/nimbus/internal/auth/domain"
	"github.com/nimbusops/nimbus/internal/auth/store"
)

type clientsRepo struct {
	q querier
}

const clientColumns = `id, name, description, redirect_uris, allowed_scopes, public, active, created_at, updated_at`

func (r *clientsRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	return scanClient(row)
}

func (r *clientsRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (r *clientsRepo) CreateClient(ctx context.Context, c domain.Client) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO clients (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description,
		joinList(c.RedirectURIs), joinList(c.AllowedScopes),
		c.Public, c.Active, c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *clientsRepo) UpdateClient(ctx context.Context, c domain.Client) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE clients
		 SET name = ?, description = ?, redirect_uris = ?, allowed_scopes = ?, public = ?, active = ?, updated_at = ?
		 WHERE id = ?`,
		c.Name, c.Description,
		joinList(c.RedirectURIs), joinList(c.AllowedScopes),
		c.Public, c.Active, time.Now().UTC(), c.ID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *clientsRepo) DeleteClient(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (domain.Client, error) {
	var (
		c             domain.Client
		redirectURIs  string
		allowedScopes string
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Description,
		&redirectURIs, &allowedScopes,
		&c.Public, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Client{}, mapNotFound(err)
	}
	c.RedirectURIs = splitList(redirectURIs)
	c.AllowedScopes = splitList(allowedScopes)
	return c, nil
}
