package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
	repoMocks "github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository/mocks"
)

const oneItem = `[{"cocktail_id":"c1","size_id":"s1","quantity":2,"unit_price":5}]`

func TestOrderMaterializer_Materialize(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		input         MaterializeInput
		setup         func(d testDeps)
		expectedErr   error
		expectCreated bool
		validateOrder func(t *testing.T, order repository.Order, event repository.OutboxEvent)
	}{
		{
			name: "success: creates paid order with items and adjusts stock",
			input: MaterializeInput{
				PaymentReference: "pi_abc",
				AmountReceived:   1000,
				Metadata:         map[string]string{"items": oneItem},
			},
			setup: func(d testDeps) {
				d.orders.On("GetByPaymentReference", mock.Anything, "pi_abc").
					Return(repository.Order{}, repository.ErrNotFound).Once()
				d.orders.On("CreateWithItems", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
				d.inventory.On("GetStock", mock.Anything, "c1", "s1").
					Return(repository.InventoryRecord{CocktailID: "c1", SizeID: "s1", StockQuantity: 10, Available: true}, nil).Once()
				d.inventory.On("SetStock", mock.Anything, repository.InventoryRecord{CocktailID: "c1", SizeID: "s1", StockQuantity: 8, Available: true}).
					Return(nil).Once()
			},
			expectCreated: true,
			validateOrder: func(t *testing.T, order repository.Order, event repository.OutboxEvent) {
				require.NotEmpty(t, order.ID)
				require.Equal(t, "pi_abc", order.PaymentReference)
				require.Equal(t, "10.00", order.TotalAmount.StringFixed(2))
				require.Equal(t, repository.StatusPaid, order.Status)
				require.True(t, order.IsPaid)
				require.Len(t, order.Items, 1)
				require.Equal(t, order.ID, order.Items[0].OrderID)
				require.Equal(t, 2, order.Items[0].Quantity)
				require.True(t, order.Items[0].LineTotal.Equal(decimal.NewFromInt(10)))

				require.Equal(t, EventTypeOrderPaid, event.EventType)
				require.Equal(t, testTopic, event.Topic)
				require.Equal(t, order.ID, event.AggregateID)
				var payload map[string]any
				require.NoError(t, json.Unmarshal(event.Payload, &payload))
				require.Equal(t, "pi_abc", payload["payment_reference"])
				require.Equal(t, "10", payload["total_amount"])
			},
		},
		{
			name: "amount conversion: 2605 minor units become 26.05",
			input: MaterializeInput{
				PaymentReference: "pi_2605",
				AmountReceived:   2605,
				Metadata:         map[string]string{"items": oneItem},
			},
			setup: func(d testDeps) {
				d.orders.On("GetByPaymentReference", mock.Anything, "pi_2605").
					Return(repository.Order{}, repository.ErrNotFound).Once()
				d.orders.On("CreateWithItems", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
				d.inventory.On("GetStock", mock.Anything, "c1", "s1").
					Return(repository.InventoryRecord{CocktailID: "c1", SizeID: "s1", StockQuantity: 10}, nil).Once()
				d.inventory.On("SetStock", mock.Anything, mock.Anything).Return(nil).Once()
			},
			expectCreated: true,
			validateOrder: func(t *testing.T, order repository.Order, _ repository.OutboxEvent) {
				require.True(t, order.TotalAmount.Equal(decimal.RequireFromString("26.05")), "got %s", order.TotalAmount)
			},
		},
		{
			name: "duplicate: existing order short-circuits",
			input: MaterializeInput{
				PaymentReference: "pi_dup",
				AmountReceived:   1000,
				Metadata:         map[string]string{"items": oneItem},
			},
			setup: func(d testDeps) {
				d.orders.On("GetByPaymentReference", mock.Anything, "pi_dup").
					Return(repository.Order{ID: "order-1", PaymentReference: "pi_dup"}, nil).Once()
			},
		},
		{
			name: "error: existence check read fails aborts with diagnostic",
			input: MaterializeInput{
				PaymentReference: "pi_err",
				AmountReceived:   1000,
				Metadata:         map[string]string{"items": oneItem},
			},
			setup: func(d testDeps) {
				d.orders.On("GetByPaymentReference", mock.Anything, "pi_err").
					Return(repository.Order{}, errors.New("connection reset")).Once()
				d.diag.On("Record", mock.Anything, diagKind(DiagOrderLookupFailed)).Return(nil).Once()
			},
			expectedErr: ErrOrderExistenceCheck,
		},
		{
			name: "all-or-nothing: item without size creates nothing",
			input: MaterializeInput{
				PaymentReference: "pi_bad",
				AmountReceived:   1000,
				Metadata: map[string]string{
					"items": `[{"cocktail_id":"c1","size_id":"s1","quantity":1,"unit_price":5},{"cocktail_id":"c2","quantity":1,"unit_price":5}]`,
				},
			},
			setup: func(d testDeps) {
				d.orders.On("GetByPaymentReference", mock.Anything, "pi_bad").
					Return(repository.Order{}, repository.ErrNotFound).Once()
				d.diag.On("Record", mock.Anything, diagKind(DiagOrderNoItems)).Return(nil).Once()
			},
		},
		{
			name: "truncated metadata creates nothing",
			input: MaterializeInput{
				PaymentReference: "pi_trunc",
				AmountReceived:   1000,
				Metadata:         map[string]string{"items": `[{"cocktail_id":"c1","size_id":"s1","qua...`},
			},
			setup: func(d testDeps) {
				d.orders.On("GetByPaymentReference", mock.Anything, "pi_trunc").
					Return(repository.Order{}, repository.ErrNotFound).Once()
				d.diag.On("Record", mock.Anything, diagKind(DiagOrderNoItems)).Return(nil).Once()
			},
		},
		{
			name: "unique violation on insert is treated as already exists",
			input: MaterializeInput{
				PaymentReference: "pi_race",
				AmountReceived:   1000,
				Metadata:         map[string]string{"items": oneItem},
			},
			setup: func(d testDeps) {
				d.orders.On("GetByPaymentReference", mock.Anything, "pi_race").
					Return(repository.Order{}, repository.ErrNotFound).Once()
				d.orders.On("CreateWithItems", mock.Anything, mock.Anything, mock.Anything).
					Return(repository.ErrAlreadyExists).Once()
			},
		},
		{
			name: "error: insert failure is fatal and recorded",
			input: MaterializeInput{
				PaymentReference: "pi_fail",
				AmountReceived:   1000,
				Metadata:         map[string]string{"items": oneItem},
			},
			setup: func(d testDeps) {
				d.orders.On("GetByPaymentReference", mock.Anything, "pi_fail").
					Return(repository.Order{}, repository.ErrNotFound).Once()
				d.orders.On("CreateWithItems", mock.Anything, mock.Anything, mock.Anything).
					Return(errors.New("disk full")).Once()
				d.diag.On("Record", mock.Anything, diagKind(DiagOrderCreateFailed)).Return(nil).Once()
			},
			expectedErr: ErrOrderCreate,
		},
		{
			name:        "error: empty payment reference",
			input:       MaterializeInput{AmountReceived: 1000, Metadata: map[string]string{"items": oneItem}},
			setup:       func(d testDeps) {},
			expectedErr: ErrMalformedEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			d := newTestDeps(t)
			tt.setup(d)
			m := d.materializer(nil)

			// Act
			res, err := m.Materialize(ctx, tt.input)

			// Assert
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				require.False(t, res.Created)
				if !errors.Is(tt.expectedErr, ErrOrderCreate) {
					d.orders.AssertNotCalled(t, "CreateWithItems", mock.Anything, mock.Anything, mock.Anything)
				}
				d.inventory.AssertNotCalled(t, "GetStock", mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expectCreated, res.Created)

			if !tt.expectCreated {
				d.inventory.AssertNotCalled(t, "GetStock", mock.Anything, mock.Anything, mock.Anything)
				return
			}

			require.NotEmpty(t, res.OrderID)
			require.Equal(t, 1.0, testutil.ToFloat64(d.metrics.OrdersMaterialized))
			if tt.validateOrder != nil {
				call := findCall(t, &d.orders.Mock, "CreateWithItems")
				tt.validateOrder(t, call.Arguments.Get(1).(repository.Order), call.Arguments.Get(2).(repository.OutboxEvent))
			}
		})
	}
}

func TestOrderMaterializer_PriceMismatchDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	d := newTestDeps(t)
	catalog := repoMocks.NewCatalogRepository(t)

	d.orders.On("GetByPaymentReference", mock.Anything, "pi_price").
		Return(repository.Order{}, repository.ErrNotFound).Once()
	d.orders.On("CreateWithItems", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	catalog.On("GetUnitPrice", mock.Anything, "c1", "s1").Return(decimal.RequireFromString("6.50"), nil).Once()
	d.diag.On("Record", mock.Anything, diagKind(DiagPriceMismatch)).Return(nil).Once()
	d.inventory.On("GetStock", mock.Anything, "c1", "s1").
		Return(repository.InventoryRecord{CocktailID: "c1", SizeID: "s1", StockQuantity: 5}, nil).Once()
	d.inventory.On("SetStock", mock.Anything, mock.Anything).Return(nil).Once()

	res, err := d.materializer(catalog).Materialize(ctx, MaterializeInput{
		PaymentReference: "pi_price",
		AmountReceived:   1000,
		Metadata:         map[string]string{"items": oneItem},
	})

	require.NoError(t, err)
	require.True(t, res.Created)
}

func TestOrderMaterializer_CatalogLookupFailureIsIgnored(t *testing.T) {
	ctx := context.Background()
	d := newTestDeps(t)
	catalog := repoMocks.NewCatalogRepository(t)

	d.orders.On("GetByPaymentReference", mock.Anything, "pi_cat").
		Return(repository.Order{}, repository.ErrNotFound).Once()
	d.orders.On("CreateWithItems", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	catalog.On("GetUnitPrice", mock.Anything, "c1", "s1").Return(decimal.Zero, repository.ErrNotFound).Once()
	d.inventory.On("GetStock", mock.Anything, "c1", "s1").
		Return(repository.InventoryRecord{CocktailID: "c1", SizeID: "s1", StockQuantity: 5}, nil).Once()
	d.inventory.On("SetStock", mock.Anything, mock.Anything).Return(nil).Once()

	res, err := d.materializer(catalog).Materialize(ctx, MaterializeInput{
		PaymentReference: "pi_cat",
		AmountReceived:   1000,
		Metadata:         map[string]string{"items": oneItem},
	})

	require.NoError(t, err)
	require.True(t, res.Created)
	d.diag.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestMinorToMajor(t *testing.T) {
	tests := []struct {
		minor    int64
		expected string
	}{
		{minor: 2605, expected: "26.05"},
		{minor: 1000, expected: "10.00"},
		{minor: 1, expected: "0.01"},
		{minor: 0, expected: "0.00"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, MinorToMajor(tt.minor).StringFixed(2))
	}
}

func findCall(t *testing.T, m *mock.Mock, method string) mock.Call {
	t.Helper()
	for _, c := range m.Calls {
		if c.Method == method {
			return c
		}
	}
	t.Fatalf("method %s was not called", method)
	return mock.Call{}
}
