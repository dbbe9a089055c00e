package history

import (
	"context"
	"database/sql"
)

type txKey struct{}

// WithTransaction carries tx in ctx so store writes join it.
func WithTransaction(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTransaction returns the transaction carried by ctx, or nil.
func GetTransaction(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}
