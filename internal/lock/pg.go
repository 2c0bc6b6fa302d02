package lock

import (
	"context"
	"fmt"

	stderrors "errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"powertrade/pkg/exception"
)

// pgLockNotAvailable is the postgres error code raised when lock_timeout
// elapses while waiting.
const pgLockNotAvailable = "55P03"

// AdvisoryLocker acquires transaction-scoped postgres advisory locks.
// Postgres releases them automatically when the transaction commits or
// rolls back.
type AdvisoryLocker struct {
	tx      *gorm.DB
	timeout int64
}

// NewAdvisoryLocker binds a locker to an open gorm transaction with a
// bounded wait in milliseconds.
func NewAdvisoryLocker(tx *gorm.DB, timeoutMillis int64) *AdvisoryLocker {
	return &AdvisoryLocker{tx: tx, timeout: timeoutMillis}
}

// Acquire takes pg_advisory_xact_lock(org, profile) on the transaction.
func (l *AdvisoryLocker) Acquire(ctx context.Context, key Key) error {
	tx := l.tx.WithContext(ctx)

	if l.timeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", l.timeout)
		if err := tx.Exec(stmt).Error; err != nil {
			return errors.Wrap(err, "set lock timeout")
		}
	}

	if err := tx.Exec("SELECT pg_advisory_xact_lock(?, ?)", key.Org, key.Profile).Error; err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
			return exception.ErrLockBusy
		}
		return errors.Wrap(err, "acquire advisory lock")
	}

	return nil
}
