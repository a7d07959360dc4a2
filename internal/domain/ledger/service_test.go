package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/core/apperror"
	appctx "stockflow/internal/core/context"
	"stockflow/internal/core/events"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/audit"
	"stockflow/internal/domain/ledger"
	"stockflow/internal/infrastructure/storage/memory"
)

func newService(t *testing.T) (*ledger.Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return ledger.NewService(store.Ledger(), store.TxManager(), store.Publisher(), nil), store
}

type auditSpy struct {
	mu     sync.Mutex
	kinds  []audit.Kind
	actors []string
}

func (s *auditSpy) RecordEvent(_ context.Context, kind audit.Kind, actorID string, _ any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, kind)
	s.actors = append(s.actors, actorID)
	return nil
}

func TestService_AppendFillsActorAndPublishes(t *testing.T) {
	svc, store := newService(t)
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u1", TenantID: "t1"})
	loc := id.New()

	movementID, err := svc.Append(ctx, ledger.Movement{
		MaterialID:   id.New(),
		MaterialName: "Rebar",
		Type:         ledger.TypeReturn,
		Quantity:     types.NewQuantity(3),
		ToLocationID: &loc,
	})
	require.NoError(t, err)

	got, err := svc.Query(ctx, "t1", ledger.MovementFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, movementID, got[0].ID)
	assert.Equal(t, "u1", got[0].UserID)
	assert.Equal(t, ledger.RefManual, got[0].ReferenceType)
	assert.False(t, got[0].CreatedAt.IsZero())

	evs := store.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.MovementRecorded, evs[0].Type)
	assert.Equal(t, movementID, evs[0].AggregateID)
}

func TestService_AppendRecordsAuditAfterCommit(t *testing.T) {
	store := memory.NewStore()
	spy := &auditSpy{}
	svc := ledger.NewService(store.Ledger(), store.TxManager(), store.Publisher(), spy)
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u1", TenantID: "t1"})
	loc := id.New()

	_, err := svc.Append(ctx, ledger.Movement{
		MaterialID:   id.New(),
		Type:         ledger.TypeReceipt,
		Quantity:     types.NewQuantity(2),
		ToLocationID: &loc,
	})
	require.NoError(t, err)
	assert.Equal(t, []audit.Kind{audit.KindMovementAppended}, spy.kinds)
	assert.Equal(t, []string{"u1"}, spy.actors)

	// rejected movements are not audited
	_, err = svc.Append(ctx, ledger.Movement{MaterialID: id.New(), Type: ledger.TypeReceipt, Quantity: types.NewQuantity(2)})
	require.Error(t, err)
	assert.Len(t, spy.kinds, 1)
}

func TestService_AppendRejectsInvalid(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	loc := id.New()

	_, err := svc.Append(ctx, ledger.Movement{
		TenantID:       "t1",
		MaterialID:     id.New(),
		Type:           ledger.TypeTransfer,
		Quantity:       types.NewQuantity(1),
		FromLocationID: &loc,
		ToLocationID:   &loc,
	})
	require.Error(t, err)

	_, err = svc.Append(ctx, ledger.Movement{MaterialID: id.New(), Type: ledger.TypeReceipt, Quantity: 1, ToLocationID: &loc})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)

	assert.Empty(t, store.Events())
}

func TestService_QueryValidatesFilter(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	from := time.Now()
	to := from.Add(-time.Hour)

	_, err := svc.Query(ctx, "t1", ledger.MovementFilter{From: &from, To: &to})
	assert.Error(t, err)

	_, err = svc.Query(ctx, "t1", ledger.MovementFilter{Types: []ledger.MovementType{"gift"}})
	assert.Error(t, err)

	_, err = svc.Query(ctx, "", ledger.MovementFilter{})
	assert.Error(t, err)
}

func TestService_QueryFiltersByLocationEitherSide(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	a, b, c := id.New(), id.New(), id.New()
	material := id.New()

	for _, m := range []ledger.Movement{
		{Type: ledger.TypeReceipt, ToLocationID: &a},
		{Type: ledger.TypeTransfer, FromLocationID: &a, ToLocationID: &b},
		{Type: ledger.TypeReceipt, ToLocationID: &c},
	} {
		m.TenantID = "t1"
		m.MaterialID = material
		m.Quantity = types.NewQuantity(1)
		_, err := svc.Append(ctx, m)
		require.NoError(t, err)
	}

	got, err := svc.Query(ctx, "t1", ledger.MovementFilter{LocationIDs: []id.ID{b}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ledger.TypeTransfer, got[0].Type)

	got, err = svc.Query(ctx, "t1", ledger.MovementFilter{LocationIDs: []id.ID{a}})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
