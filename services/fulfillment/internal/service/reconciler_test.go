package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
)

func TestFailureReconciler_Reconcile(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		input    ReconcileInput
		setup    func(d testDeps)
		expected ReconcileOutcome
	}{
		{
			name:     "empty reference is a no-op",
			input:    ReconcileInput{Kind: EventFailed},
			setup:    func(d testDeps) {},
			expected: OutcomeNoReference,
		},
		{
			name:  "missing order records diagnostic only",
			input: ReconcileInput{Kind: EventCanceled, PaymentReference: "pi_none"},
			setup: func(d testDeps) {
				d.orders.On("GetByPaymentReference", mock.Anything, "pi_none").
					Return(repository.Order{}, repository.ErrNotFound).Once()
				d.diag.On("Record", mock.Anything, diagKind(DiagOrderMissing)).Return(nil).Once()
			},
			expected: OutcomeOrderMissing,
		},
		{
			name:  "lookup error records diagnostic and stops",
			input: ReconcileInput{Kind: EventFailed, PaymentReference: "pi_err"},
			setup: func(d testDeps) {
				d.orders.On("GetByPaymentReference", mock.Anything, "pi_err").
					Return(repository.Order{}, errors.New("db down")).Once()
				d.diag.On("Record", mock.Anything, diagKind(DiagCancelLookupFailed)).Return(nil).Once()
			},
			expected: OutcomeLookupFailed,
		},
		{
			name:  "paid guard: paid order is never downgraded",
			input: ReconcileInput{Kind: EventFailed, PaymentReference: "pr_1"},
			setup: func(d testDeps) {
				d.orders.On("GetByPaymentReference", mock.Anything, "pr_1").
					Return(repository.Order{ID: "order-1", PaymentReference: "pr_1", Status: repository.StatusPaid, IsPaid: true}, nil).Once()
				d.diag.On("Record", mock.Anything, diagKind(DiagOrderAlreadyPaid)).Return(nil).Once()
			},
			expected: OutcomeAlreadyPaid,
		},
		{
			name:  "already cancelled order is not written again",
			input: ReconcileInput{Kind: EventFailed, PaymentReference: "pi_done"},
			setup: func(d testDeps) {
				d.orders.On("GetByPaymentReference", mock.Anything, "pi_done").
					Return(repository.Order{ID: "order-2", Status: repository.StatusCancelled, IsPaid: false}, nil).Once()
			},
			expected: OutcomeUnchanged,
		},
		{
			name:  "unpaid order is cancelled with minimal update",
			input: ReconcileInput{Kind: EventFailed, PaymentReference: "pi_unpaid", FailureReason: "card_declined"},
			setup: func(d testDeps) {
				d.orders.On("GetByPaymentReference", mock.Anything, "pi_unpaid").
					Return(repository.Order{ID: "order-3", PaymentReference: "pi_unpaid", Status: repository.StatusPaid, IsPaid: false}, nil).Once()
				d.orders.On("UpdatePaymentState", mock.Anything, "order-3",
					mock.MatchedBy(func(u repository.PaymentStateUpdate) bool {
						return u.Status != nil && *u.Status == repository.StatusCancelled && u.IsPaid == nil
					}),
					mock.MatchedBy(func(e repository.OutboxEvent) bool {
						return e.EventType == EventTypeOrderCancelled && e.AggregateID == "order-3" && e.Topic == testTopic
					}),
				).Return(nil).Once()
			},
			expected: OutcomeCancelled,
		},
		{
			name:  "update failure records diagnostic",
			input: ReconcileInput{Kind: EventCanceled, PaymentReference: "pi_upd"},
			setup: func(d testDeps) {
				d.orders.On("GetByPaymentReference", mock.Anything, "pi_upd").
					Return(repository.Order{ID: "order-4", Status: repository.StatusPaid}, nil).Once()
				d.orders.On("UpdatePaymentState", mock.Anything, "order-4", mock.Anything, mock.Anything).
					Return(errors.New("serialization failure")).Once()
				d.diag.On("Record", mock.Anything, diagKind(DiagOrderUpdateFailed)).Return(nil).Once()
			},
			expected: OutcomeUpdateFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps(t)
			tt.setup(d)

			res := d.reconciler().Reconcile(ctx, tt.input)

			require.Equal(t, tt.expected, res.Outcome)
			if tt.expected != OutcomeCancelled && tt.expected != OutcomeUpdateFailed {
				d.orders.AssertNotCalled(t, "UpdatePaymentState", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestCancellationUpdate(t *testing.T) {
	upd := cancellationUpdate(repository.Order{Status: repository.StatusCancelled})
	require.True(t, upd.IsEmpty())

	upd = cancellationUpdate(repository.Order{Status: repository.StatusPaid, IsPaid: true})
	require.NotNil(t, upd.Status)
	require.NotNil(t, upd.IsPaid)
	require.False(t, *upd.IsPaid)
}
