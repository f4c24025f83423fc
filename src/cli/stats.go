package cli

import (
	"context"
	"fmt"

	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/riftdb/pagecache/src/app"
)

func (c *RootCommand) registerStats() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Start the buffer pool, allocate one page to verify it's wired up, and print its resident page count",
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			return runStats(cobraCmd.Context(), c.Options.ConfigPath)
		},
	}

	c.AddCommand(cmd)
}

func runStats(ctx context.Context, configPath string) error {
	a, err := app.New(configPath)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	id, _, err := a.Pool.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	a.Pool.Unpin(ctx, id, false)

	var e jx.Writer

	e.ObjStart()
	e.FieldStart("run_id")
	e.Str(uuid.New().String())
	e.FieldStart("resident_pages")
	e.Int(a.Pool.Size())
	e.ObjEnd()

	fmt.Println(e.String())

	return a.Close()
}
