package cli

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/riftdb/pagecache/src/app"
	"github.com/riftdb/pagecache/src/bufferpool"
	"github.com/riftdb/pagecache/src/pkg/common"
)

type benchOptions struct {
	Pages   int
	Workers int
	Ops     int
}

func (c *RootCommand) registerBench() {
	opts := benchOptions{Pages: 256, Workers: 8, Ops: 2000}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a concurrent synthetic workload against the buffer pool",
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			return runBench(cobraCmd.Context(), c.Options.ConfigPath, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Pages, "pages", opts.Pages, "number of distinct pages the workload allocates up front")
	cmd.Flags().IntVar(&opts.Workers, "workers", opts.Workers, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.Ops, "ops", opts.Ops, "fetch/unpin operations each worker performs")

	c.AddCommand(cmd)
}

// benchResult tallies what a bench run observed. Counters are per-goroutine
// and only combined after every worker has finished, so no locking is
// needed on them.
type benchResult struct {
	hits     int
	noFrames int
}

func runBench(ctx context.Context, configPath string, opts benchOptions) error {
	a, err := app.New(configPath)
	if err != nil {
		return fmt.Errorf("bench: %w", err)
	}

	runID := uuid.New()
	started := time.Now()

	pageIDs := make([]common.PageID, 0, opts.Pages)

	for i := 0; i < opts.Pages; i++ {
		id, _, err := a.Pool.NewPage(ctx)
		if err != nil {
			return fmt.Errorf("bench: allocate page %d: %w", i, err)
		}

		a.Pool.Unpin(ctx, id, false)
		pageIDs = append(pageIDs, id)
	}

	results := make([]benchResult, opts.Workers)

	g, gctx := errgroup.WithContext(ctx)

	for w := 0; w < opts.Workers; w++ {
		g.Go(func() error {
			return runBenchWorker(gctx, a.Pool, pageIDs, opts.Ops, &results[w])
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("bench: %w", err)
	}

	var total benchResult

	for _, r := range results {
		total.hits += r.hits
		total.noFrames += r.noFrames
	}

	fmt.Println(encodeBenchReport(runID, opts, time.Since(started), total))

	return nil
}

func runBenchWorker(ctx context.Context, pool *bufferpool.Manager, pageIDs []common.PageID, ops int, result *benchResult) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // synthetic load generator, not security sensitive

	for i := 0; i < ops; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		id := pageIDs[rng.Intn(len(pageIDs))]

		pg, err := pool.FetchPage(ctx, id)
		if err != nil {
			if errors.Is(err, bufferpool.ErrNoFrame) {
				result.noFrames++
				continue
			}

			return err
		}

		dirty := rng.Intn(4) == 0
		if dirty {
			data := pg.GetData()
			data[0]++
		}

		pool.Unpin(ctx, id, dirty)
		result.hits++
	}

	return nil
}

func encodeBenchReport(runID uuid.UUID, opts benchOptions, elapsed time.Duration, total benchResult) string {
	var e jx.Writer

	e.ObjStart()

	e.FieldStart("run_id")
	e.Str(runID.String())

	e.FieldStart("pages")
	e.Int(opts.Pages)

	e.FieldStart("workers")
	e.Int(opts.Workers)

	e.FieldStart("ops_per_worker")
	e.Int(opts.Ops)

	e.FieldStart("elapsed_ms")
	e.Int64(elapsed.Milliseconds())

	e.FieldStart("hits")
	e.Int(total.hits)

	e.FieldStart("no_frame")
	e.Int(total.noFrames)

	e.ObjEnd()

	return e.String()
}
