// Command pagecachectl drives the buffer pool manager from the shell:
// "bench" runs a concurrent synthetic workload against it, "stats"
// sanity-checks that it starts up and reports residency.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/riftdb/pagecache/src/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli.Init("pagecachectl").MustExecute(ctx)
}
