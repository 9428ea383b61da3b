package db

import (
	"context"
	"fmt"
	"log"
)

// WithTx runs fn as one transaction on a dedicated connection, so the
// statement-level BEGIN/COMMIT stays on the same session in both
// dialects. SQLite gets BEGIN IMMEDIATE to take the write lock up
// front; Postgres a plain BEGIN. Any error from fn rolls back.
func WithTx(ctx context.Context, db *CompatDB, fn func(conn *CompatConn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, db.BeginTxSQL()); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(conn); err != nil {
		if _, rbErr := conn.ExecContext(ctx, "ROLLBACK"); rbErr != nil {
			log.Printf("db: rollback failed: %v (after: %v)", rbErr, err)
		}
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
