// Package fanout runs a batch of independent fetches concurrently and waits
// for every one of them to finish, successful or not.
package fanout

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/sourcegraph/conc/iter"
)

// Result is the outcome of one task of a batch.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the task succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// PanicError is stored in a Result when the task panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Settle calls fn once per input with at most maxConcurrency calls in flight
// (GOMAXPROCS when maxConcurrency <= 0) and returns one Result per input, in
// input order. A failing or panicking task never stops the others.
func Settle[T, R any](ctx context.Context, inputs []T, maxConcurrency int, fn func(context.Context, T) (R, error)) []Result[R] {
	if len(inputs) == 0 {
		return nil
	}

	mapper := iter.Mapper[T, Result[R]]{MaxGoroutines: maxConcurrency}
	return mapper.Map(inputs, func(in *T) Result[R] {
		return run(ctx, *in, fn)
	})
}

func run[T, R any](ctx context.Context, in T, fn func(context.Context, T) (R, error)) (res Result[R]) {
	defer func() {
		if r := recover(); r != nil {
			res = Result[R]{Err: &PanicError{Value: r, Stack: debug.Stack()}}
		}
	}()

	if err := ctx.Err(); err != nil {
		return Result[R]{Err: err}
	}
	v, err := fn(ctx, in)
	return Result[R]{Value: v, Err: err}
}

// Values returns the values of the successful results, in order, and calls
// onErr with the index of each failed one.
func Values[R any](results []Result[R], onErr func(i int, err error)) []R {
	out := make([]R, 0, len(results))
	for i, r := range results {
		if r.Err != nil {
			if onErr != nil {
				onErr(i, r.Err)
			}
			continue
		}
		out = append(out, r.Value)
	}
	return out
}
