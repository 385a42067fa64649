package repository

import (
	"context"
	"database/sql"
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"

	"github.com/motorlane/ms-go-entitlements/app/entity"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func isDuplicateEntryError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

// Quotas are stored as nullable ints: NULL means unlimited.

func quotaFromColumn(v sql.NullInt32) entity.Quota {
	if !v.Valid {
		return entity.UnlimitedQuota()
	}
	return entity.BoundedQuota(v.Int32)
}

func quotaToColumn(q entity.Quota) interface{} {
	if q.IsUnlimited() {
		return nil
	}
	return q.Limit()
}
