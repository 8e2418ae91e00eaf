package repository

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/noah-isme/fieldsync-api/pkg/errors"
)

// ErrNestedUnitOfWork is returned when Do is called from inside another unit.
var ErrNestedUnitOfWork = errors.New("unit of work already active on this context")

// DBTX is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

type txKey struct{}

// Executor returns the transaction bound to ctx by a unit of work, or db.
func Executor(ctx context.Context, db *sqlx.DB) DBTX {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok && tx != nil {
		return tx
	}
	return db
}

// InUnitOfWork reports whether ctx carries an open transaction.
func InUnitOfWork(ctx context.Context) bool {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return ok && tx != nil
}

// UnitOfWork runs a sequence of repository calls on one reserved connection
// inside a single transaction.
type UnitOfWork struct {
	db *sqlx.DB
}

// NewUnitOfWork constructs a unit of work bound to the pool.
func NewUnitOfWork(db *sqlx.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// Do reserves a connection, begins a transaction and runs fn with a context
// carrying it. fn's error rolls the transaction back and is returned as is; a
// panic rolls back and is re-raised. The connection is released exactly once
// on every path.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if InUnitOfWork(ctx) {
		return ErrNestedUnitOfWork
	}

	conn, err := u.db.Connx(ctx)
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrTransactionFailure, err, "reserve connection")
	}
	var once sync.Once
	release := func() {
		once.Do(func() { _ = conn.Close() })
	}
	defer release()

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrTransactionFailure, err, "begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			release()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, appErrors.WrapAs(appErrors.ErrTransactionFailure, rbErr, "rollback transaction"))
			}
			return
		}
		if cmErr := tx.Commit(); cmErr != nil {
			err = appErrors.WrapAs(appErrors.ErrTransactionFailure, cmErr, "commit transaction")
		}
	}()

	err = fn(context.WithValue(ctx, txKey{}, tx))
	return err
}
