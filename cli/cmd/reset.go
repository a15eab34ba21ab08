package cmd

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sift/cli/render"
	"github.com/pithecene-io/sift/config"
	"github.com/pithecene-io/sift/session"
)

// ResetResponse reports what a reset removed.
type ResetResponse struct {
	Backend         string `json:"backend"`
	DecisionsErased int64  `json:"decisions_erased"`
	SnapshotRemoved bool   `json:"snapshot_removed"`
}

// ResetCommand returns the reset command. It erases the decision
// history and the resume snapshot so every asset becomes undecided
// again. Requires --yes; there is no undo.
func ResetCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Erase decision history and the resume snapshot",
		Flags: append(ReadOnlyFlags(), ConfigFlag,
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Confirm the reset",
			},
		),
		Action: resetAction,
	}
}

func resetAction(c *cli.Context) error {
	if !c.Bool("yes") {
		return cli.Exit("reset erases all decision history; re-run with --yes to confirm", 1)
	}

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
	if err := st.Reset(ctx); err != nil {
		return err
	}

	snapshotRemoved := false
	if path := cfg.Session.SnapshotPath; path != "" {
		if err := session.Remove(path); err != nil {
			return err
		}
		snapshotRemoved = true
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(ResetResponse{
		Backend:         storeBackendLabel(cfg),
		DecisionsErased: counts.Total(),
		SnapshotRemoved: snapshotRemoved,
	})
}
