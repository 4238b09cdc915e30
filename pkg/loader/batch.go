package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/litigraph/backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// LoadBatch loads every path with at most maxConcurrent files in flight.
// Results come back in input order, one per path, regardless of per-file
// outcome. timeoutPerFile bounds each file; zero means no per-file limit.
//
// With SkipErrors set, per-file failures stay in the results and the error
// return covers only caller mistakes. Without it, the first failing result is
// also surfaced as the batch error; the remaining files still run to
// completion so the results stay complete.
func (l *Loader) LoadBatch(
	ctx context.Context,
	paths []string,
	maxConcurrent int,
	timeoutPerFile time.Duration,
) ([]LoadResult, error) {
	if maxConcurrent <= 0 {
		return nil, fmt.Errorf("loader: max concurrent must be positive, got %d", maxConcurrent)
	}
	if len(paths) == 0 {
		return []LoadResult{}, nil
	}

	logger.Info("[Loader] Starting batch", "files", len(paths), "maxConcurrent", maxConcurrent)

	results := make([]LoadResult, len(paths))

	group := new(errgroup.Group)
	group.SetLimit(maxConcurrent)
	for i, path := range paths {
		group.Go(func() error {
			fileCtx := ctx
			if timeoutPerFile > 0 {
				var cancel context.CancelFunc
				fileCtx, cancel = context.WithTimeout(ctx, timeoutPerFile)
				defer cancel()
			}

			result := l.LoadSingle(fileCtx, path)
			if result.Status != StatusLoaded {
				logger.Warn("[Loader] File not loaded", "path", path, "status", result.Status, "err", result.Error)
			}
			results[i] = result
			return nil
		})
	}
	group.Wait()

	counts := CountStatuses(results)
	logger.Info("[Loader] Batch finished",
		"loaded", counts[StatusLoaded],
		"skipped", counts[StatusSkipped],
		"failed", counts[StatusFailed],
		"timeout", counts[StatusTimeout],
	)

	if !l.skipErrors {
		for _, result := range results {
			if result.Status == StatusFailed || result.Status == StatusTimeout {
				return results, fmt.Errorf("loader: %s: %s", result.Path, result.Error)
			}
		}
	}

	return results, nil
}

// CountStatuses tallies results by status.
func CountStatuses(results []LoadResult) map[Status]int {
	counts := make(map[Status]int, 4)
	for _, result := range results {
		counts[result.Status]++
	}
	return counts
}
