package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// withLock runs fn while holding the MySQL named lock name (GET_LOCK) on a
// dedicated connection. It waits up to timeoutSeconds for the lock; a value
// <= 0 waits for as long as ctx allows.
func (s *SQL) withLock(ctx context.Context, name string, timeoutSeconds int, fn func(ctx context.Context) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("lock %q: %w", name, err)
	}
	defer conn.Close()

	lockCtx := ctx
	if timeoutSeconds > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second+500*time.Millisecond)
		defer cancel()
	} else {
		timeoutSeconds = -1
	}

	var got sql.NullInt64
	if err := conn.QueryRowContext(lockCtx, "SELECT GET_LOCK(?, ?)", name, timeoutSeconds).Scan(&got); err != nil {
		return fmt.Errorf("lock %q: %w", name, err)
	}
	if !got.Valid || got.Int64 != 1 {
		return fmt.Errorf("could not acquire MySQL advisory lock %q (result=%v)", name, got)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT RELEASE_LOCK(?)", name)
	}()

	return fn(ctx)
}
