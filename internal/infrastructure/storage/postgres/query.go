package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockflow/internal/core/apperror"
)

// Builder returns a squirrel builder with PostgreSQL placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Exec runs a built statement and returns the affected row count.
func (m *TxManager) Exec(ctx context.Context, q squirrel.Sqlizer) (int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build statement: %w", err)
	}
	tag, err := m.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, TranslateError(err)
	}
	return tag.RowsAffected(), nil
}

// Get scans exactly one row into dst. A missing row becomes NotFound.
func (m *TxManager) Get(ctx context.Context, dst any, q squirrel.Sqlizer, entity string, key any) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, m.GetQuerier(ctx), dst, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewNotFound(entity, key)
		}
		return TranslateError(err)
	}
	return nil
}

// Select scans all rows into dst, a pointer to a slice.
func (m *TxManager) Select(ctx context.Context, dst any, q squirrel.Sqlizer) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, m.GetQuerier(ctx), dst, sql, args...); err != nil {
		return TranslateError(err)
	}
	return nil
}
