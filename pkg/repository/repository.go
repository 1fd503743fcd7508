// Package repository implements the thin Repository of spec §4.8: generic
// typed CRUD over a single table with parameter-bound queries. It opens no
// transactions itself; pkg/database's WithTx provides guaranteed-release
// transactions. Modeled on
// services/item/infrastructure/persistence/postgres/item_repository.go's
// database/sql + pgconn.PgError pattern, generalized with Go generics so
// each example service only supplies a table name, column list, and
// row-scan function instead of hand-writing CRUD again.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ghuser/relay/pkg/database"
	"github.com/ghuser/relay/pkg/svcerr"
)

// ErrAlreadyExists is returned by Create on a unique constraint violation.
var ErrAlreadyExists = svcerr.NewValidationError("entity already exists", nil)

// ErrNotFound is returned by Get/Update/Delete when no row matches.
var ErrNotFound = svcerr.NewNotFoundError("entity")

// Entity is the minimal shape a repository-managed type must expose so
// Create can assign an ID and timestamps when unset.
type Entity interface {
	GetID() string
	SetID(id string)
	SetTimestamps(createdAt, updatedAt time.Time)
}

// Filters is an unordered set of column=value equality conditions. Every
// value is passed as a bound query parameter, never interpolated.
type Filters map[string]any

// Table describes how a Repository maps a Go type onto a single table.
type Table[T Entity] struct {
	Name    string
	Columns []string
	// Scan reads one result row (in Columns order) into a new *T.
	Scan func(row Scanner) (*T, error)
	// Values returns the column values (in Columns order) for an insert
	// or update of entity.
	Values func(entity *T) []any
	NewID  func() string
}

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// Repository is a generic CRUD repository over one table.
type Repository[T Entity] struct {
	db    *database.Database
	table Table[T]
}

// New returns a Repository for table, backed by db.
func New[T Entity](db *database.Database, table Table[T]) *Repository[T] {
	return &Repository[T]{db: db, table: table}
}

// Create assigns an ID/timestamps when unset, inserts entity, and returns
// it with those fields populated. Returns ErrAlreadyExists on a unique
// constraint violation (Postgres code 23505).
func (r *Repository[T]) Create(ctx context.Context, entity *T) (*T, error) {
	e := any(entity).(Entity)
	if e.GetID() == "" {
		e.SetID(r.table.NewID())
	}
	now := time.Now().UTC()
	e.SetTimestamps(now, now)

	cols := strings.Join(r.table.Columns, ", ")
	placeholders := placeholdersFor(len(r.table.Columns))
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", r.table.Name, cols, placeholders)

	_, err := r.db.DB().ExecContext(ctx, query, r.table.Values(entity)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert into %s: %w", r.table.Name, err)
	}
	return entity, nil
}

// Get returns the row matching id, or ErrNotFound.
func (r *Repository[T]) Get(ctx context.Context, id string) (*T, error) {
	return r.findOneBy(ctx, Filters{"id": id})
}

// FindOne returns the first row matching filters, or ErrNotFound.
func (r *Repository[T]) FindOne(ctx context.Context, filters Filters) (*T, error) {
	return r.findOneBy(ctx, filters)
}

func (r *Repository[T]) findOneBy(ctx context.Context, filters Filters) (*T, error) {
	where, args := whereClause(filters)
	query := fmt.Sprintf("SELECT %s FROM %s%s LIMIT 1", strings.Join(r.table.Columns, ", "), r.table.Name, where)

	row := r.db.DB().QueryRowContext(ctx, query, args...)
	entity, err := r.table.Scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query %s: %w", r.table.Name, err)
	}
	return entity, nil
}

// FindBy returns every row matching filters.
func (r *Repository[T]) FindBy(ctx context.Context, filters Filters) ([]*T, error) {
	where, args := whereClause(filters)
	query := fmt.Sprintf("SELECT %s FROM %s%s", strings.Join(r.table.Columns, ", "), r.table.Name, where)
	return r.queryAll(ctx, query, args)
}

// List returns up to limit rows starting at offset, ordered by id.
func (r *Repository[T]) List(ctx context.Context, limit, offset int) ([]*T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id LIMIT $1 OFFSET $2",
		strings.Join(r.table.Columns, ", "), r.table.Name)
	return r.queryAll(ctx, query, []any{limit, offset})
}

func (r *Repository[T]) queryAll(ctx context.Context, query string, args []any) ([]*T, error) {
	rows, err := r.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.table.Name, err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*T
	for rows.Next() {
		entity, err := r.table.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", r.table.Name, err)
		}
		out = append(out, entity)
	}
	return out, rows.Err()
}

// Update applies changes to the row identified by id and returns the
// updated entity. Returns ErrNotFound if no row matches.
func (r *Repository[T]) Update(ctx context.Context, id string, changes map[string]any) (*T, error) {
	if len(changes) == 0 {
		return r.Get(ctx, id)
	}

	cols := make([]string, 0, len(changes))
	args := make([]any, 0, len(changes)+1)
	i := 1
	for col, val := range changes {
		cols = append(cols, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", r.table.Name, strings.Join(cols, ", "), i)
	res, err := r.db.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", r.table.Name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes the row identified by id. Returns false if no row matched;
// soft-delete via a status column is a caller concern, per spec §4.8.
func (r *Repository[T]) Delete(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.table.Name)
	res, err := r.db.DB().ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete from %s: %w", r.table.Name, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Count returns the number of rows matching filters.
func (r *Repository[T]) Count(ctx context.Context, filters Filters) (int, error) {
	where, args := whereClause(filters)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", r.table.Name, where)
	var n int
	err := r.db.DB().QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// Exists reports whether any row matches filters.
func (r *Repository[T]) Exists(ctx context.Context, filters Filters) (bool, error) {
	n, err := r.Count(ctx, filters)
	return n > 0, err
}

func whereClause(filters Filters) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	i := 1
	for col, val := range filters {
		conds = append(conds, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func placeholdersFor(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}
