package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// copyThreshold is the row count from which CopyRows switches from a
// batched multi-statement INSERT to the COPY protocol.
const copyThreshold = 32

// BatchWriter groups multi-row writes into one round trip.
// Every method must run inside a transaction.
type BatchWriter struct {
	txManager *TxManager
}

// NewBatchWriter creates a batch writer.
func NewBatchWriter(txManager *TxManager) *BatchWriter {
	return &BatchWriter{txManager: txManager}
}

// CopyRows inserts rows into table. Large sets use COPY, small sets use
// a pipelined batch of INSERTs (COPY has a fixed setup cost).
func (b *BatchWriter) CopyRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx := b.txManager.GetTx(ctx)
	if tx == nil {
		return 0, fmt.Errorf("CopyRows into %s requires transaction context", table)
	}

	if len(rows) >= copyThreshold {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return n, TranslateError(fmt.Errorf("copy into %s: %w", table, err))
		}
		return n, nil
	}

	stmt := insertStatement(table, columns)
	queries := make([]BatchQuery, 0, len(rows))
	for _, row := range rows {
		queries = append(queries, BatchQuery{SQL: stmt, Args: row})
	}
	if err := b.Execute(ctx, queries); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// BatchQuery represents a query in a batch.
type BatchQuery struct {
	SQL  string
	Args []any
}

// Execute runs queries in a single round trip.
func (b *BatchWriter) Execute(ctx context.Context, queries []BatchQuery) error {
	_, err := b.exec(ctx, queries)
	return err
}

// ExecuteExpectingRows runs queries in a batch and returns the index of the
// first query that affected no row, or -1.
func (b *BatchWriter) ExecuteExpectingRows(ctx context.Context, queries []BatchQuery) (int, error) {
	return b.exec(ctx, queries)
}

func (b *BatchWriter) exec(ctx context.Context, queries []BatchQuery) (int, error) {
	if len(queries) == 0 {
		return -1, nil
	}
	tx := b.txManager.GetTx(ctx)
	if tx == nil {
		return -1, fmt.Errorf("batch requires transaction context")
	}

	batch := &pgx.Batch{}
	for _, q := range queries {
		batch.Queue(q.SQL, q.Args...)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	missing := -1
	for i := range queries {
		tag, err := results.Exec()
		if err != nil {
			return -1, TranslateError(fmt.Errorf("batch query %d: %w", i, err))
		}
		if missing < 0 && tag.RowsAffected() == 0 {
			missing = i
		}
	}
	return missing, nil
}

func insertStatement(table string, columns []string) string {
	stmt := "INSERT INTO " + pgx.Identifier{table}.Sanitize() + " ("
	values := ") VALUES ("
	for i, c := range columns {
		if i > 0 {
			stmt += ", "
			values += ", "
		}
		stmt += pgx.Identifier{c}.Sanitize()
		values += fmt.Sprintf("$%d", i+1)
	}
	return stmt + values + ")"
}
