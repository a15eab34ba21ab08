package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sift/cache"
	"github.com/pithecene-io/sift/cli/render"
	"github.com/pithecene-io/sift/cli/tui"
	"github.com/pithecene-io/sift/config"
	"github.com/pithecene-io/sift/engine"
	"github.com/pithecene-io/sift/feed"
	"github.com/pithecene-io/sift/gesture"
	"github.com/pithecene-io/sift/metrics"
	"github.com/pithecene-io/sift/preload"
	"github.com/pithecene-io/sift/types"
)

// TriageCommand returns the triage command: the interactive swipe
// session, and the only command that writes decisions.
func TriageCommand() *cli.Command {
	return &cli.Command{
		Name:  "triage",
		Usage: "Run an interactive triage session over a media library",
		Flags: []cli.Flag{
			ConfigFlag,
			&cli.StringFlag{
				Name:  "library",
				Usage: "Library to triage (subdirectory or key prefix)",
			},
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Restrict to one media kind: image or video",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Cap the number of assets enumerated (0 = no cap)",
			},
			&cli.BoolFlag{
				Name:  "shuffle",
				Usage: "Shuffle the undecided set before triaging",
			},
			FormatFlag,
			NoColorFlag,
		},
		Action: triageAction,
	}
}

func triageAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	applyTriageFlags(cfg, c)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	src, fetcher, err := buildSource(ctx, cfg)
	if err != nil {
		return err
	}
	st, closeStore, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	pub, err := buildAdapter(cfg)
	if err != nil {
		return err
	}

	e, err := engine.New(engineConfig(cfg), engine.Options{
		Source:        src,
		Store:         st,
		Fetcher:       fetcher,
		Publisher:     pub,
		SourceBackend: sourceBackendLabel(cfg),
		StoreBackend:  storeBackendLabel(cfg),
	})
	if err != nil {
		return err
	}

	query := types.Query{
		Library: cfg.Library,
		Kind:    types.MediaKind(cfg.Source.Kind),
		Limit:   c.Int("limit"),
	}
	if err := e.Start(ctx, query); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	if cfg.Feed.Shuffle {
		if err := e.Restart(ctx, true); err != nil {
			return fmt.Errorf("shuffle: %w", err)
		}
	}

	if err := tui.Run(ctx, e); err != nil {
		e.Finish()
		return err
	}

	snap := e.Finish()
	return renderSummary(c, snap)
}

// applyTriageFlags overlays CLI flags on the loaded config. Flags
// always win.
func applyTriageFlags(cfg *config.Config, c *cli.Context) {
	if v := c.String("library"); v != "" {
		cfg.Library = v
	}
	if v := c.String("kind"); v != "" {
		cfg.Source.Kind = v
	}
	if c.Bool("shuffle") {
		cfg.Feed.Shuffle = true
	}
}

// engineConfig maps the YAML config onto engine tuning. Zero values
// pass through; each component applies its own defaults.
func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Library: cfg.Library,
		Feed: feed.Config{
			InitialBatch:          cfg.Feed.InitialBatch,
			BackfillBatch:         cfg.Feed.BackfillBatch,
			BufferThreshold:       cfg.Feed.BufferThreshold,
			MaxBackwardNavigation: cfg.Feed.MaxBackwardNavigation,
		},
		Gesture: gesture.Config{
			DirectionThreshold:       cfg.Gesture.DirectionThreshold,
			DirectionRatio:           cfg.Gesture.DirectionRatio,
			HorizontalCommitFraction: cfg.Gesture.HorizontalCommitFraction,
			VerticalCommitFraction:   cfg.Gesture.VerticalCommitFraction,
			ZoomMax:                  cfg.Gesture.ZoomMax,
			ZoomGrace:                cfg.Gesture.ZoomGrace.Duration,
		},
		Preload: preload.Config{
			BackSpan:    cfg.Preload.BackSpan,
			ForwardSpan: cfg.Preload.ForwardSpan,
			Parallel:    cfg.Preload.Parallel,
		},
		Cache: cache.Config{
			PerTierCapacity: cfg.Cache.PerTierCapacity,
		},
		SnapshotPath: cfg.Session.SnapshotPath,
	}
}

func sourceBackendLabel(cfg *config.Config) string {
	if cfg.Source.Backend == "" {
		return "dir"
	}
	return cfg.Source.Backend
}

func storeBackendLabel(cfg *config.Config) string {
	if cfg.Store.Backend == "" {
		return "memory"
	}
	return cfg.Store.Backend
}

// SessionSummary is the post-session report printed after the TUI
// exits.
type SessionSummary struct {
	SessionID string `json:"session_id"`
	Library   string `json:"library,omitempty"`
	Kept      int64  `json:"kept"`
	Deleted   int64  `json:"deleted"`
	Blocked   int64  `json:"blocked"`
	Advances  int64  `json:"advances"`
	Retreats  int64  `json:"retreats"`
	EndOfFeed int64  `json:"end_of_feed_hits"`

	PreloadIssued    int64 `json:"preload_issued"`
	PreloadCompleted int64 `json:"preload_completed"`
	PreloadFailed    int64 `json:"preload_failed"`
	CacheHits        int64 `json:"cache_hits"`
	CacheMisses      int64 `json:"cache_misses"`
}

func renderSummary(c *cli.Context, snap metrics.Snapshot) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(summarize(snap))
}

func summarize(snap metrics.Snapshot) SessionSummary {
	return SessionSummary{
		SessionID:        snap.SessionID,
		Library:          snap.Library,
		Kept:             snap.DecisionsKept,
		Deleted:          snap.DecisionsDeleted,
		Blocked:          snap.DecisionsBlocked,
		Advances:         snap.Advances,
		Retreats:         snap.Retreats,
		EndOfFeed:        snap.EndOfFeedHits,
		PreloadIssued:    snap.PreloadIssued,
		PreloadCompleted: snap.PreloadCompleted,
		PreloadFailed:    snap.PreloadFailed,
		CacheHits:        snap.CacheHits,
		CacheMisses:      snap.CacheMisses,
	}
}
