package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager provides a thin abstraction to execute a function within a
// database transaction, passing the underlying transaction handle via `tx`.
//
// Keeps the worker-facing interfaces clean (no transaction types leaking out)
// while letting repository methods that accept a Tx run SELECT ... FOR UPDATE
// and tx-bound Exec/Query as needed. Repositories MUST gracefully accept a
// nil Tx (non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
