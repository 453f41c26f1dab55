package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func init() {
	// modernc.org/sqlite registers as "sqlite", which sqlx does not know.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

/*
RelationalHandle is everything the session store needs from a database.
Queries use named parameters (:name) and take their values from arg, which is
a map[string]any or a struct with db tags. Values are never spliced into the
statement text.
*/
type RelationalHandle interface {
	// QueryRow scans the first row into dest and reports whether there was one.
	QueryRow(ctx context.Context, dest any, query string, arg any) (bool, error)
	// Query scans all rows into dest, which must point to a slice.
	Query(ctx context.Context, dest any, query string, arg any) error
	// Update executes a single statement and returns the affected row count.
	Update(ctx context.Context, query string, arg any) (int64, error)
	// BatchUpdate executes query once per element of args.
	BatchUpdate(ctx context.Context, query string, args []map[string]any) error
	// CreateTable executes an idempotent DDL statement.
	CreateTable(ctx context.Context, ddl string) error
}

/*
SQLHandle implements RelationalHandle on top of sqlx.
*/
type SQLHandle struct {
	db      *sqlx.DB
	dialect Dialect
}

/*
NewSQLHandle wraps an open database. The dialect is derived from the driver
name the database was opened with.
*/
func NewSQLHandle(db *sqlx.DB) (*SQLHandle, error) {
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}

	dialect, err := DialectFor(db.DriverName())
	if err != nil {
		return nil, err
	}

	return &SQLHandle{db: db, dialect: dialect}, nil
}

/*
Open connects to driver (sqlite or postgres) at dsn and verifies the
connection.
*/
func Open(ctx context.Context, driver, dsn string) (*SQLHandle, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(dialect.Name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if dialect == SQLite {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY
		// and keeps :memory: databases alive across calls.
		db.SetMaxOpenConns(1)
	}

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach %s database: %w", driver, err)
	}

	return &SQLHandle{db: db, dialect: dialect}, nil
}

func (handle *SQLHandle) Dialect() Dialect {
	return handle.dialect
}

func (handle *SQLHandle) DB() *sqlx.DB {
	return handle.db
}

func (handle *SQLHandle) Close() error {
	return handle.db.Close()
}

func (handle *SQLHandle) QueryRow(
	ctx context.Context, dest any, query string, arg any,
) (bool, error) {
	stmt, err := handle.db.PrepareNamedContext(ctx, query)
	if err != nil {
		return false, err
	}

	defer stmt.Close()

	if err = stmt.GetContext(ctx, dest, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func (handle *SQLHandle) Query(
	ctx context.Context, dest any, query string, arg any,
) error {
	stmt, err := handle.db.PrepareNamedContext(ctx, query)
	if err != nil {
		return err
	}

	defer stmt.Close()

	return stmt.SelectContext(ctx, dest, arg)
}

func (handle *SQLHandle) Update(
	ctx context.Context, query string, arg any,
) (int64, error) {
	result, err := handle.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

/*
BatchUpdate runs every element of args through one prepared statement inside
a short transaction of its own. An empty batch does not touch the database.
*/
func (handle *SQLHandle) BatchUpdate(
	ctx context.Context, query string, args []map[string]any,
) (err error) {
	if len(args) == 0 {
		return nil
	}

	tx, err := handle.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return err
	}

	defer stmt.Close()

	for _, arg := range args {
		if _, err = stmt.ExecContext(ctx, arg); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (handle *SQLHandle) CreateTable(ctx context.Context, ddl string) error {
	_, err := handle.db.ExecContext(ctx, ddl)
	return err
}
