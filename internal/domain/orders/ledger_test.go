package orders

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&Order{}, &OrderItem{}, &OrderTransition{}, &GatewayNotification{}))
	return db
}

func newTestLedger(t *testing.T) *Ledger {
	return NewLedger(newTestDB(t), zap.NewNop())
}

func sessionOwner(sid string) Owner {
	return Owner{SessionID: &sid}
}

func userOwner(id uint) Owner {
	return Owner{UserID: &id}
}

func oneItem() []NewItem {
	return []NewItem{{
		ProductTypeID:         1,
		ArchivalDescriptionID: 42,
		Title:                 "Photograph of harbour",
		UnitPrice:             5.00,
		Quantity:              1,
	}}
}

func TestCreate(t *testing.T) {
	ledger := newTestLedger(t)

	order, err := ledger.Create(sessionOwner("sess-a"), oneItem(), nil)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, order.Status)
	assert.NotEmpty(t, order.OrderNumber)
	assert.Len(t, order.Items, 1)
	assert.Equal(t, 5.00, order.Total())
}

func TestCreate_RejectsEmptyItems(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.Create(sessionOwner("sess-a"), nil, nil)
	assert.ErrorIs(t, err, ErrEmptyOrder)
}

func TestCreate_RejectsAmbiguousOwner(t *testing.T) {
	ledger := newTestLedger(t)
	uid := uint(7)
	sid := "sess-a"

	_, err := ledger.Create(Owner{UserID: &uid, SessionID: &sid}, oneItem(), nil)
	assert.ErrorIs(t, err, ErrInvalidOwner)

	_, err = ledger.Create(Owner{}, oneItem(), nil)
	assert.ErrorIs(t, err, ErrInvalidOwner)
}

func TestTransition_AllowedPaths(t *testing.T) {
	cases := []struct {
		from, to string
	}{
		{StatusPending, StatusPaid},
		{StatusPending, StatusCompleted},
		{StatusPending, StatusCancelled},
		{StatusPaid, StatusCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.from+"_to_"+tc.to, func(t *testing.T) {
			ledger := newTestLedger(t)
			order, err := ledger.Create(sessionOwner("s"), oneItem(), nil)
			require.NoError(t, err)

			if tc.from != StatusPending {
				_, err = ledger.Transition(order.OrderNumber, tc.from, "setup")
				require.NoError(t, err)
			}

			updated, err := ledger.Transition(order.OrderNumber, tc.to, "test")
			require.NoError(t, err)
			assert.Equal(t, tc.to, updated.Status)
		})
	}
}

func TestTransition_Invalid(t *testing.T) {
	ledger := newTestLedger(t)
	order, err := ledger.Create(sessionOwner("s"), oneItem(), nil)
	require.NoError(t, err)

	_, err = ledger.Transition(order.OrderNumber, StatusCancelled, "failed payment")
	require.NoError(t, err)

	// terminal states accept nothing but idempotent repeats
	_, err = ledger.Transition(order.OrderNumber, StatusPaid, "late webhook")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = ledger.Transition(order.OrderNumber, StatusCompleted, "late webhook")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransition_IdempotentRepeat(t *testing.T) {
	ledger := newTestLedger(t)
	order, err := ledger.Create(sessionOwner("s"), oneItem(), nil)
	require.NoError(t, err)

	first, err := ledger.Transition(order.OrderNumber, StatusCompleted, "webhook")
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Revision)

	// redelivered webhook: no-op success, no revision bump, no extra audit row
	second, err := ledger.Transition(order.OrderNumber, StatusCompleted, "webhook redelivery")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, second.Status)
	assert.Equal(t, uint(1), second.Revision)

	var count int64
	ledger.db.Model(&OrderTransition{}).Where("order_id = ?", order.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestTransition_UnknownOrder(t *testing.T) {
	ledger := newTestLedger(t)
	_, err := ledger.Transition("ORD-NOPE", StatusPaid, "webhook")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestTransition_AuditTrail(t *testing.T) {
	ledger := newTestLedger(t)
	order, err := ledger.Create(sessionOwner("s"), oneItem(), nil)
	require.NoError(t, err)

	_, err = ledger.Transition(order.OrderNumber, StatusPaid, "webhook PENDING")
	require.NoError(t, err)
	_, err = ledger.Transition(order.OrderNumber, StatusCompleted, "webhook COMPLETE")
	require.NoError(t, err)

	var trail []OrderTransition
	require.NoError(t, ledger.db.Where("order_id = ?", order.ID).Order("revision").Find(&trail).Error)
	require.Len(t, trail, 2)
	assert.Equal(t, uint(1), trail[0].Revision)
	assert.Equal(t, StatusPending, trail[0].FromStatus)
	assert.Equal(t, StatusPaid, trail[0].ToStatus)
	assert.Equal(t, uint(2), trail[1].Revision)
	assert.Equal(t, StatusPaid, trail[1].FromStatus)
	assert.Equal(t, StatusCompleted, trail[1].ToStatus)
}

func TestVerifyOwnership(t *testing.T) {
	ledger := newTestLedger(t)

	sessionOrder, err := ledger.Create(sessionOwner("sess-a"), oneItem(), nil)
	require.NoError(t, err)
	userOrder, err := ledger.Create(userOwner(7), oneItem(), nil)
	require.NoError(t, err)

	userB := uint(8)
	userA := uint(7)

	// session order: only the same session may access it
	assert.True(t, ledger.VerifyOwnership(sessionOrder, nil, "sess-a"))
	assert.False(t, ledger.VerifyOwnership(sessionOrder, nil, "sess-b"))
	assert.False(t, ledger.VerifyOwnership(sessionOrder, &userB, ""))

	// user order: only the same user, never a session
	assert.True(t, ledger.VerifyOwnership(userOrder, &userA, ""))
	assert.False(t, ledger.VerifyOwnership(userOrder, &userB, ""))
	assert.False(t, ledger.VerifyOwnership(userOrder, nil, "sess-a"))

	// an order with no owner at all is inaccessible
	orphan := &Order{}
	assert.False(t, ledger.VerifyOwnership(orphan, &userA, "sess-a"))
}
