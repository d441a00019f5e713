package fanout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettle_KeepsInputOrder(t *testing.T) {
	inputs := []int{5, 1, 4, 2, 3}
	results := Settle(context.Background(), inputs, 2, func(_ context.Context, n int) (int, error) {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10, nil
	})

	require.Len(t, results, len(inputs))
	for i, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, inputs[i]*10, r.Value)
	}
}

func TestSettle_FailureDoesNotStopOthers(t *testing.T) {
	errBoom := errors.New("boom")
	results := Settle(context.Background(), []string{"a", "bad", "c"}, 0, func(_ context.Context, s string) (string, error) {
		if s == "bad" {
			return "", errBoom
		}
		return s + s, nil
	})

	require.Len(t, results, 3)
	assert.True(t, results[0].OK())
	assert.Equal(t, "aa", results[0].Value)
	assert.ErrorIs(t, results[1].Err, errBoom)
	assert.True(t, results[2].OK())
	assert.Equal(t, "cc", results[2].Value)
}

func TestSettle_RecoversPanics(t *testing.T) {
	results := Settle(context.Background(), []int{1, 2}, 1, func(_ context.Context, n int) (int, error) {
		if n == 1 {
			panic("nil map")
		}
		return n, nil
	})

	var panicErr *PanicError
	require.ErrorAs(t, results[0].Err, &panicErr)
	assert.Equal(t, "nil map", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
	assert.Equal(t, 2, results[1].Value)
}

func TestSettle_BoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	inputs := make([]int, 20)

	Settle(context.Background(), inputs, 3, func(_ context.Context, _ int) (struct{}, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return struct{}{}, nil
	})

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestSettle_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	results := Settle(ctx, []int{1, 2, 3}, 0, func(_ context.Context, n int) (int, error) {
		atomic.AddInt32(&calls, 1)
		return n, nil
	})

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestSettle_EmptyInput(t *testing.T) {
	called := false
	results := Settle(context.Background(), nil, 4, func(_ context.Context, n int) (int, error) {
		called = true
		return n, nil
	})
	assert.Nil(t, results)
	assert.False(t, called)
}

func TestValues(t *testing.T) {
	results := []Result[int]{{Value: 1}, {Err: errors.New("x")}, {Value: 3}}

	var failed []int
	got := Values(results, func(i int, _ error) { failed = append(failed, i) })

	assert.Equal(t, []int{1, 3}, got)
	assert.Equal(t, []int{1}, failed)
}
