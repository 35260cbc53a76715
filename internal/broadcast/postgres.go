package broadcast

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTransport signals through LISTEN/NOTIFY on the database that
// already holds the store, so no extra broker is needed.
type PostgresTransport struct {
	pool    *pgxpool.Pool
	channel string
}

func NewPostgresTransport(pool *pgxpool.Pool, channel string) *PostgresTransport {
	return &PostgresTransport{pool: pool, channel: channel}
}

func (t *PostgresTransport) Publish(ctx context.Context, origin string) error {
	_, err := t.pool.Exec(ctx, "SELECT pg_notify($1, $2)", t.channel, origin)
	return err
}

func (t *PostgresTransport) Listen(ctx context.Context, handle func(origin string)) error {
	conn, err := t.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer func() {
		// The connection goes back to the pool; it must not keep listening.
		_, _ = conn.Exec(context.Background(), "UNLISTEN *")
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{t.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", t.channel, err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		handle(n.Payload)
	}
}

// Close is a no-op; the pool is owned by whoever created it.
func (t *PostgresTransport) Close() error {
	return nil
}
