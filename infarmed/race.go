package infarmed

import (
	"context"
	"errors"
)

// Race runs every op concurrently and returns the first successful result.
// Once a winner is known the losers are cancelled, not abandoned: the context
// they share is cancelled and each returns on its own into a buffered
// channel, so no wait or timer outlives the call. When every op fails the
// errors are joined.
func Race[T any](ctx context.Context, ops ...func(context.Context) (T, error)) (T, error) {
	var zero T
	if len(ops) == 0 {
		return zero, errors.New("race: no operations")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	results := make(chan outcome, len(ops))

	for _, op := range ops {
		op := op
		go func() {
			v, err := op(ctx)
			results <- outcome{val: v, err: err}
		}()
	}

	var errs []error
	for range ops {
		select {
		case res := <-results:
			if res.err == nil {
				return res.val, nil
			}
			errs = append(errs, res.err)
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, errors.Join(errs...)
}
