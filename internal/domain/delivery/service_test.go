package delivery_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/events"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/audit"
	"stockflow/internal/domain/delivery"
	"stockflow/internal/domain/purchasing"
	"stockflow/internal/infrastructure/storage/memory"
)

type auditSpy struct {
	kinds []audit.Kind
}

func (s *auditSpy) RecordEvent(_ context.Context, kind audit.Kind, _ string, _ any) error {
	s.kinds = append(s.kinds, kind)
	return nil
}

type env struct {
	store     *memory.Store
	workflow  *delivery.Workflow
	purchases *purchasing.Service
	auditor   *auditSpy
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.NewStore()
	spy := &auditSpy{}
	return &env{
		store:     store,
		auditor:   spy,
		purchases: purchasing.NewService(store.Orders(), store.Materials(), store.TxManager(), nil),
		workflow: delivery.NewWorkflow(delivery.Deps{
			Orders:     store.Orders(),
			Materials:  store.Materials(),
			Deliveries: store.Deliveries(),
			TxManager:  store.TxManager(),
			Publisher:  store.Publisher(),
			Auditor:    spy,
		}, 0),
	}
}

func (e *env) setup(t *testing.T, stock int64, expected ...int64) (*purchasing.OrderView, []*purchasing.Material) {
	t.Helper()
	ctx := context.Background()
	var (
		mats  []*purchasing.Material
		lines []purchasing.Line
	)
	for i, q := range expected {
		m, err := e.purchases.CreateMaterial(ctx, purchasing.Material{
			TenantID:        "t1",
			Name:            []string{"Cement", "Sand", "Gravel"}[i%3],
			CurrentQuantity: types.NewQuantity(stock),
		})
		require.NoError(t, err)
		mats = append(mats, m)
		lines = append(lines, purchasing.Line{MaterialID: m.ID, MaterialName: m.Name, OrderedQuantity: types.NewQuantity(q)})
	}
	view, err := e.purchases.CreateOrder(ctx, purchasing.PurchaseOrder{TenantID: "t1", PONumber: "PO-" + id.New().String()[:8]}, lines)
	require.NoError(t, err)
	return view, mats
}

func (e *env) quantity(t *testing.T, m *purchasing.Material) types.Quantity {
	t.Helper()
	got, err := e.purchases.GetMaterial(context.Background(), "t1", m.ID)
	require.NoError(t, err)
	return got.CurrentQuantity
}

func TestConfirmDelivery_RecordsIssuesAndUpdatesCache(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	view, mats := e.setup(t, 2, 10, 10)

	res, err := e.workflow.ConfirmDelivery(ctx, delivery.Form{
		TenantID:        "t1",
		PurchaseOrderID: view.Order.ID,
		Items: []delivery.FormItem{
			{POLineID: view.Lines[0].ID, ActualQuantity: types.NewQuantity(7), Status: delivery.LineShort},
			{POLineID: view.Lines[1].ID, ActualQuantity: types.NewQuantity(10), Status: delivery.LineOK},
		},
	}, "dock-1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.IssuesCreated)
	assert.True(t, res.InventoryUpdated)

	assert.Equal(t, types.NewQuantity(9), e.quantity(t, mats[0]))
	assert.Equal(t, types.NewQuantity(12), e.quantity(t, mats[1]))

	got, err := e.purchases.GetOrder(ctx, "t1", view.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, purchasing.OrderDelivered, got.Order.Status)

	issues, err := e.workflow.ListIssues(ctx, "t1", delivery.IssueFilter{Status: delivery.IssueOpen})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "Short delivery: Expected 10, received 7", issues[0].Description)
	assert.Equal(t, res.DeliveryID, issues[0].DeliveryID)

	assert.Equal(t, []audit.Kind{
		audit.KindDeliveryConfirmed, audit.KindIssueCreated, audit.KindOrderStatusChanged,
	}, e.auditor.kinds)

	evs := e.store.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.DeliveryConfirmed, evs[0].Type)
}

func TestConfirmDelivery_ValidationWritesNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	view, mats := e.setup(t, 5, 10)

	_, err := e.workflow.ConfirmDelivery(ctx, delivery.Form{
		TenantID:        "t1",
		PurchaseOrderID: view.Order.ID,
		Items: []delivery.FormItem{
			{POLineID: view.Lines[0].ID, ActualQuantity: types.NewQuantity(10), Status: delivery.LineDamaged},
		},
	}, "dock-1")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)

	assert.Empty(t, e.store.Deliveries().Deliveries(view.Order.ID))
	issues, _ := e.workflow.ListIssues(ctx, "t1", delivery.IssueFilter{})
	assert.Empty(t, issues)
	assert.Equal(t, types.NewQuantity(5), e.quantity(t, mats[0]))
	assert.Empty(t, e.store.Events())
}

func TestConfirmDelivery_CacheFailureKeepsDelivery(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	view, mats := e.setup(t, 1, 4, 4)

	failing := mats[0].ID
	e.store.SetHooks(memory.Hooks{AdjustQuantity: func(materialID id.ID) error {
		if materialID == failing {
			return errors.New("cache unavailable")
		}
		return nil
	}})

	res, err := e.workflow.ConfirmDelivery(ctx, delivery.Form{
		TenantID:        "t1",
		PurchaseOrderID: view.Order.ID,
		Items: []delivery.FormItem{
			{POLineID: view.Lines[0].ID, ActualQuantity: types.NewQuantity(4), Status: delivery.LineOK},
			{POLineID: view.Lines[1].ID, ActualQuantity: types.NewQuantity(4), Status: delivery.LineOK},
		},
	}, "dock-1")
	require.NoError(t, err)
	assert.False(t, res.InventoryUpdated)
	assert.Equal(t, []id.ID{failing}, res.SkippedMaterials)

	assert.Len(t, e.store.Deliveries().Deliveries(view.Order.ID), 1)
	assert.Equal(t, types.NewQuantity(1), e.quantity(t, mats[0]))
	assert.Equal(t, types.NewQuantity(5), e.quantity(t, mats[1]))
}

func TestConfirmDelivery_PartialThenDelivered(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	view, _ := e.setup(t, 0, 3, 3)

	confirm := func(line purchasing.Line) {
		_, err := e.workflow.ConfirmDelivery(ctx, delivery.Form{
			TenantID:        "t1",
			PurchaseOrderID: view.Order.ID,
			Items:           []delivery.FormItem{{POLineID: line.ID, ActualQuantity: types.NewQuantity(3), Status: delivery.LineOK}},
		}, "dock-1")
		require.NoError(t, err)
	}

	confirm(view.Lines[0])
	got, _ := e.purchases.GetOrder(ctx, "t1", view.Order.ID)
	assert.Equal(t, purchasing.OrderPartial, got.Order.Status)

	confirm(view.Lines[1])
	got, _ = e.purchases.GetOrder(ctx, "t1", view.Order.ID)
	assert.Equal(t, purchasing.OrderDelivered, got.Order.Status)
}

func TestResolveIssue(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	view, _ := e.setup(t, 0, 10)

	_, err := e.workflow.ConfirmDelivery(ctx, delivery.Form{
		TenantID:        "t1",
		PurchaseOrderID: view.Order.ID,
		Items: []delivery.FormItem{
			{POLineID: view.Lines[0].ID, ActualQuantity: types.NewQuantity(12), Status: delivery.LineOver},
		},
	}, "dock-1")
	require.NoError(t, err)

	issues, err := e.workflow.ListIssues(ctx, "t1", delivery.IssueFilter{PurchaseOrderID: &view.Order.ID})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	issueID := issues[0].ID

	_, err = e.workflow.ResolveIssue(ctx, "t1", issueID, "  ", "mgr")
	assert.Error(t, err)

	_, err = e.workflow.ResolveIssue(ctx, "t2", issueID, "credit note", "mgr")
	assert.True(t, apperror.IsNotFound(err))

	resolved, err := e.workflow.ResolveIssue(ctx, "t1", issueID, "credit note", "mgr")
	require.NoError(t, err)
	assert.Equal(t, delivery.IssueResolved, resolved.Status)
	assert.Equal(t, "mgr", resolved.ResolvedBy)
	assert.Equal(t, "credit note", resolved.ResolutionNotes)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = e.workflow.ResolveIssue(ctx, "t1", issueID, "again", "mgr")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.CodeConflict, appErr.Code)

	open, _ := e.workflow.ListIssues(ctx, "t1", delivery.IssueFilter{Status: delivery.IssueOpen})
	assert.Empty(t, open)

	_, err = e.workflow.ListIssues(ctx, "t1", delivery.IssueFilter{Status: "closed"})
	assert.Error(t, err)
}
