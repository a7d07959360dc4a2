package memory

import (
	"context"
	"errors"

	"stockflow/internal/core/apperror"
)

type txKey struct{}

// txState is the private working copy of one transaction.
type txState struct {
	data *state
}

func txFrom(ctx context.Context) *txState {
	t, _ := ctx.Value(txKey{}).(*txState)
	return t
}

// TxManager implements tx.Manager over a Store.
type TxManager struct {
	s *Store
}

// RunInTransaction serializes writers. fn works on a copy of the committed
// state; the copy replaces it only when fn and the commit hook succeed.
// Nested calls join the outer transaction.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()

	t := &txState{data: m.s.committed()}
	txCtx := context.WithValue(ctx, txKey{}, t)
	if err := fn(txCtx); err != nil {
		return err
	}
	if hook := m.s.currentHooks().BeforeCommit; hook != nil {
		if err := hook(txCtx); err != nil {
			return err
		}
	}
	m.s.publish(t.data)
	return nil
}

// ReadOnly runs fn over a copy of the committed state. The copy is never
// published, so writes made through ctx are discarded.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	return fn(context.WithValue(ctx, txKey{}, &txState{data: m.s.committed()}))
}

// RunInSavepoint undoes only fn's writes when fn fails.
func (m *TxManager) RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	t := txFrom(ctx)
	if t == nil {
		return apperror.NewInternal(errors.New("savepoint requires an active transaction"))
	}
	saved := t.data.clone()
	if err := fn(ctx); err != nil {
		t.data = saved
		return err
	}
	return nil
}
