package cmd

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sift/cli/render"
	"github.com/pithecene-io/sift/config"
)

// StatsResponse is the aggregated decision store report.
type StatsResponse struct {
	Backend  string `json:"backend"`
	Kept     int64  `json:"kept"`
	Deleted  int64  `json:"deleted"`
	SeenOnly int64  `json:"seen_only"`
	Total    int64  `json:"total"`
}

// StatsCommand returns the stats command: a read-only report over the
// decision store.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show decision store statistics (kept, deleted, seen)",
		Flags:  append(ReadOnlyFlags(), ConfigFlag),
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	st, closeStore, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	counts, err := st.Counts(ctx)
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(StatsResponse{
		Backend:  storeBackendLabel(cfg),
		Kept:     counts.Kept,
		Deleted:  counts.Deleted,
		SeenOnly: counts.SeenOnly,
		Total:    counts.Total(),
	})
}
