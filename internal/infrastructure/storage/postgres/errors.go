package postgres

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"

	"stockflow/internal/core/apperror"
)

// SQLSTATE codes handled explicitly.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgQueryCanceled        = "57014"
)

// TranslateError maps driver errors to application errors. AppErrors pass
// through unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return apperror.NewTransactionAborted(err)
		case pgUniqueViolation:
			return apperror.NewDuplicate(pgErr.TableName, "key", pgErr.ConstraintName).WithCause(err)
		case pgForeignKeyViolation:
			return apperror.NewValidation("referenced record does not exist").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgCheckViolation:
			return apperror.NewValidation("value violates constraint").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgQueryCanceled:
			return (&apperror.AppError{
				Code:       apperror.CodeTimeout,
				Message:    "Query timed out",
				HTTPStatus: http.StatusGatewayTimeout,
			}).WithCause(err)
		}
	}

	return (&apperror.AppError{
		Code:       apperror.CodeDatabase,
		Message:    "Database error",
		HTTPStatus: http.StatusInternalServerError,
	}).WithCause(err)
}
