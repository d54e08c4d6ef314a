package sqlstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

type txContextKey struct{}

// withTx returns a context that routes store operations through tx
// instead of the shared handle.
func withTx(ctx context.Context, tx bun.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

func txFromContext(ctx context.Context) (bun.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(bun.Tx)
	return tx, ok
}

// TxRunner opens one transaction and exposes it to every store built by
// the same factory through the context. Nested calls reuse the
// transaction already in flight.
type TxRunner struct {
	db *bun.DB
}

func NewTxRunner(db *bun.DB) (*TxRunner, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &TxRunner{db: db}, nil
}

func (r *TxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("sqlstore: tx runner is not configured")
	}
	if fn == nil {
		return fmt.Errorf("sqlstore: tx runner requires a function")
	}
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(withTx(ctx, tx))
	})
}

// storeDB picks the context transaction when one is in flight.
func storeDB(ctx context.Context, db *bun.DB) bun.IDB {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return db
}
