package batch

import (
	"context"
	"sync"
	"time"

	"github.com/davidnajera/mentiondesk-backend/pkg/clock"
)

const defaultLimit = 10

// Options shape a bounded fan-out traversal.
type Options struct {
	// Limit caps how many operations are in flight at once.
	Limit int
	// Delay throttles between batches.
	Delay time.Duration
	// BreakOnError aborts the whole traversal on the first failure.
	// When false, each failure is routed to OnError and the traversal
	// continues.
	BreakOnError bool
	OnError      func(index int, err error)
	Clock        clock.Clock
}

// Process submits items in order, at most Limit in flight, appending each
// batch's results to the accumulator as it completes.
func Process[T any, R any](ctx context.Context, items []T, opts Options, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	results := make([]R, 0, len(items))

	for offset := 0; offset < len(items); offset += limit {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		end := offset + limit
		if end > len(items) {
			end = len(items)
		}
		chunk := items[offset:end]

		chunkResults := make([]R, len(chunk))
		chunkErrs := make([]error, len(chunk))

		var wg sync.WaitGroup
		for i, item := range chunk {
			wg.Add(1)
			go func(i int, item T) {
				defer wg.Done()
				chunkResults[i], chunkErrs[i] = fn(ctx, item)
			}(i, item)
		}
		wg.Wait()

		for i, err := range chunkErrs {
			if err != nil {
				if opts.BreakOnError {
					return results, err
				}
				if opts.OnError != nil {
					opts.OnError(offset+i, err)
				}
				continue
			}
			results = append(results, chunkResults[i])
		}

		if opts.Delay > 0 && end < len(items) {
			if err := clk.Sleep(ctx, opts.Delay); err != nil {
				return results, err
			}
		}
	}

	return results, nil
}
