package store

import (
	"context"
	"errors"
	"time"

	"github.com/nimbusops/nimbus/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface implemented by concrete drivers.
// It exposes sub-repositories per aggregate so callers depend only on what
// they touch.
type Store interface {
	Clients() Clients
	AuthorizationCodes() AuthorizationCodes
	RefreshTokens() RefreshTokens
	PendingAuthRequests() PendingAuthRequests

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn inside a transaction, committing when fn returns
	// nil and rolling back otherwise. Preferred over Tx for multi-step
	// operations that must be atomic, such as refresh rotation.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store with Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Clients interface {
	// GetClientByID fetches a client by its public identifier.
	GetClientByID(ctx context.Context, id string) (domain.Client, error)

	// ListClients returns all clients, newest first.
	ListClients(ctx context.Context) ([]domain.Client, error)

	// CreateClient inserts a new client. A duplicate id yields
	// ErrAlreadyExists.
	CreateClient(ctx context.Context, c domain.Client) error

	// UpdateClient replaces the mutable fields of an existing client.
	UpdateClient(ctx context.Context, c domain.Client) error

	// DeleteClient removes a client registration.
	DeleteClient(ctx context.Context, id string) error
}

type AuthorizationCodes interface {
	// CreateAuthorizationCode stores a freshly minted code record.
	CreateAuthorizationCode(ctx context.Context, c domain.AuthorizationCode) error

	// ConsumeAuthorizationCode atomically removes the record for codeHash
	// and returns it. At most one concurrent caller gets the record; every
	// other caller, and any caller with an unknown hash, gets ErrNotFound.
	// Removal precedes all validation so a code is burned even when later
	// checks against the returned record fail.
	ConsumeAuthorizationCode(ctx context.Context, codeHash string) (domain.AuthorizationCode, error)

	// DeleteExpiredAuthorizationCodes removes codes past expiry, returning
	// how many were deleted.
	DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int64, error)
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the record for a token fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeActiveRefreshToken revokes the token only if it is currently
	// active, recording the successor fingerprint. ErrNotFound means the
	// token was missing, already revoked or expired; during concurrent
	// rotation exactly one caller succeeds.
	RevokeActiveRefreshToken(ctx context.Context, hash, replacedBy string, now time.Time) error

	// RevokeRefreshToken unconditionally marks the token revoked. Unknown
	// and already-revoked tokens are not an error.
	RevokeRefreshToken(ctx context.Context, hash string, now time.Time) error

	// RevokeAllUserRefreshTokens revokes every active token of a user.
	RevokeAllUserRefreshTokens(ctx context.Context, userID string, now time.Time) error

	// DeleteExpiredRefreshTokens removes expired and revoked records,
	// returning how many were deleted.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type PendingAuthRequests interface {
	// CreatePendingAuthRequest stores validated authorization request state
	// awaiting login completion.
	CreatePendingAuthRequest(ctx context.Context, p domain.PendingAuthRequest) error

	// GetPendingAuthRequest returns the pending request for a handle.
	GetPendingAuthRequest(ctx context.Context, id string) (domain.PendingAuthRequest, error)

	// DeletePendingAuthRequest removes the request. Deleting an unknown
	// handle is not an error.
	DeletePendingAuthRequest(ctx context.Context, id string) error

	// DeleteExpiredPendingAuthRequests removes requests whose login window
	// has closed, returning how many were deleted.
	DeleteExpiredPendingAuthRequests(ctx context.Context, now time.Time) (int64, error)
}
