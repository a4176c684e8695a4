package tokens

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/career-coach/internal/db"
)

type fakeLedger struct {
	calls       int
	amount      int
	ctxErr      error
	err         error
	hasDeadline bool
}

func (f *fakeLedger) SpendTokens(ctx context.Context, _ uuid.UUID, amount int, _ uuid.UUID) (*db.SpendResult, error) {
	f.calls++
	f.amount = amount
	f.ctxErr = ctx.Err()
	_, f.hasDeadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return &db.SpendResult{PurchasedUsed: amount, BalanceAfter: 100 - amount}, nil
}

func TestSettle_FreeToolIsNoop(t *testing.T) {
	ledger := &fakeLedger{}
	s := NewSettler(ledger, 0)

	res, err := s.Settle(context.Background(), uuid.New(), 0, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 0, ledger.calls)
}

func TestSettle_NegativeCost(t *testing.T) {
	ledger := &fakeLedger{}
	s := NewSettler(ledger, 0)

	_, err := s.Settle(context.Background(), uuid.New(), -1, uuid.New())
	require.Error(t, err)
	assert.Equal(t, 0, ledger.calls)
}

func TestSettle_Charges(t *testing.T) {
	ledger := &fakeLedger{}
	s := NewSettler(ledger, time.Second)

	res, err := s.Settle(context.Background(), uuid.New(), 10, uuid.New())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, ledger.calls)
	assert.Equal(t, 10, ledger.amount)
	assert.Equal(t, 90, res.BalanceAfter)
	assert.True(t, ledger.hasDeadline)
}

func TestSettle_SurvivesCanceledRequest(t *testing.T) {
	ledger := &fakeLedger{}
	s := NewSettler(ledger, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Settle(ctx, uuid.New(), 3, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.calls)
	assert.NoError(t, ledger.ctxErr)
}

func TestSettle_AlreadySettledIsSuccess(t *testing.T) {
	ledger := &fakeLedger{err: db.ErrAlreadySettled}
	s := NewSettler(ledger, 0)

	res, err := s.Settle(context.Background(), uuid.New(), 5, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestSettle_PropagatesFailures(t *testing.T) {
	for _, cause := range []error{db.ErrInsufficientTokens, errors.New("connection reset")} {
		ledger := &fakeLedger{err: cause}
		s := NewSettler(ledger, 0)

		_, err := s.Settle(context.Background(), uuid.New(), 5, uuid.New())
		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
	}
}
