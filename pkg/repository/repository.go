package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// DBX: Database Error
	ErrGeneric error = errors.New("DBX: Internal server error")

	// DBXO: Bad operation
	// DBXQ: Bad query
	ErrDuplicate        error = errors.New("DBXO: Duplicate")
	ErrNotFound         error = errors.New("DBXQ: Not found")
	ErrRelationNotExist error = errors.New("DBXO: Relation not exists")
)

var (
	// Class 23 — Integrity Constraint Violation
	// https://github.com/jackc/pgerrcode/blob/master/errcode.go
	UniqueViolation     = "23505"
	ForeignKeyViolation = "23503"
)

type Repository[T any] interface {
	Find(ctx context.Context, options FindOptions) ([]*T, error)
	FindOne(ctx context.Context, options FindOptions) (*T, error)
	Count(ctx context.Context, options FindOptions) (int64, error)
	// Create inserts one row. A datastore uniqueness conflict surfaces as
	// ErrDuplicate so callers can treat the conflict as already-done.
	Create(ctx context.Context, entity *T) error
	// UpdateFields applies a partial update (including gorm.Expr increments)
	// to rows matched by where.
	UpdateFields(ctx context.Context, where WhereType, fields map[string]any) (int64, error)
	Transaction(ctx context.Context, fn func(txRepo Repository[T]) error) error
}

// gorm generic repository
type repository[T any] struct {
	db *gorm.DB
}

func NewRepository[T any](db *gorm.DB) Repository[T] {
	return &repository[T]{
		db: db,
	}
}

func (r *repository[T]) handleDBError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case UniqueViolation:
			return ErrDuplicate
		case ForeignKeyViolation:
			return ErrRelationNotExist
		}
	}
	return nil
}

func (r *repository[T]) WrapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	// Constraint violations get a stable error the caller can branch on.
	if handledErr := r.handleDBError(err); handledErr != nil {
		return handledErr
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	// otherwise an unidentified internal error
	return ErrGeneric
}

func (r *repository[T]) HealthCheck() error {
	if err := r.db.Exec("SELECT 1").Error; err != nil {
		return errors.New("DB is not healthy")
	}

	return nil
}

func (r *repository[T]) applyFindOptionsToDB(db *gorm.DB, options FindOptions) *gorm.DB {
	isSelectAll := len(options.Select) == 1 && options.Select[0] == "*"
	if options.Select != nil && !isSelectAll {
		db = db.Select(strings.Join(options.Select, ","))
	}

	if options.Where != nil {
		db = db.Where(map[string]any(options.Where))
	}

	if options.OrWhere != nil {
		db = db.Or(map[string]any(options.OrWhere))
	}

	if options.Order != nil {
		var orders string
		for field, order := range options.Order {
			orders += fmt.Sprintf("%s %s,", field, order)
		}
		orders = strings.TrimSuffix(orders, ",")
		db = db.Order(orders)
	}

	if options.Limit != 0 {
		db = db.Limit(int(options.Limit))
	}

	if options.Offset != 0 {
		db = db.Offset(int(options.Offset))
	}

	return db
}

func (r *repository[T]) Find(ctx context.Context, options FindOptions) ([]*T, error) {
	var results []*T
	db := r.db.WithContext(ctx).Model(results)
	db = r.applyFindOptionsToDB(db, options)

	if err := db.Find(&results).Error; err != nil {
		return results, r.WrapError(ctx, err)
	}

	return results, nil
}

func (r *repository[T]) FindOne(ctx context.Context, options FindOptions) (*T, error) {
	options.Limit = 2
	results, err := r.Find(ctx, options)
	if err != nil {
		return nil, err
	}
	// Zero or multiple matches both read as not-found; the caller must not
	// guess between ambiguous rows.
	if len(results) != 1 {
		return nil, ErrNotFound
	}
	return results[0], nil
}

func (r *repository[T]) Count(ctx context.Context, options FindOptions) (int64, error) {
	var count int64
	var entity T
	db := r.db.WithContext(ctx).Model(&entity)
	if options.Where != nil {
		db = db.Where(map[string]any(options.Where))
	}

	err := db.Count(&count).Error
	if err != nil {
		return 0, r.WrapError(ctx, err)
	}

	return count, nil
}

func (r *repository[T]) Create(ctx context.Context, entity *T) error {
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return r.WrapError(ctx, err)
	}
	return nil
}

func (r *repository[T]) UpdateFields(ctx context.Context, where WhereType, fields map[string]any) (int64, error) {
	var entity T
	db := r.db.WithContext(ctx).Model(&entity).Where(map[string]any(where)).Updates(fields)
	if db.Error != nil {
		return 0, r.WrapError(ctx, db.Error)
	}
	return db.RowsAffected, nil
}

func (r *repository[T]) Transaction(
	ctx context.Context,
	fn func(txRepo Repository[T]) error,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := NewRepository[T](tx)
		return fn(txRepo)
	})
}

func (r *repository[T]) GetDB() *gorm.DB {
	return r.db
}
