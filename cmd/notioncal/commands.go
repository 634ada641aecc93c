package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"notioncal/internal/capture"
	"notioncal/internal/config"
	appLog "notioncal/internal/log"
	"notioncal/internal/model"
	"notioncal/internal/notion"
	"notioncal/internal/scheduler"
	"notioncal/internal/state"
	"notioncal/internal/syncer"
	"notioncal/internal/web"
)

var serveCmd = cli.Command{
	Name:   "serve",
	Usage:  "Run the HTTP API and the periodic refresh",
	Action: serve,
}

var refreshCmd = cli.Command{
	Name:   "refresh",
	Usage:  "Fetch every configured source once and print the events",
	Action: refreshOnce,
}

var databasesCmd = cli.Command{
	Name:   "databases",
	Usage:  "List the Notion databases the credential can access",
	Action: listDatabases,
}

var snapshotCmd = cli.Command{
	Name:  "snapshot",
	Usage: "Render the calendar page to a PNG with headless Chromium",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "output, o",
			Usage: "PNG output path (overrides capture.output)",
		},
		cli.StringFlag{
			Name:  "view",
			Usage: "month, week or day (defaults to the saved view)",
		},
		cli.StringFlag{
			Name:  "date",
			Usage: "Anchor date YYYY-MM-DD (defaults to the saved anchor)",
		},
	},
	Action: snapshot,
}

// app bundles what every command needs.
type app struct {
	cfg  *config.Config
	ctrl *syncer.Controller
}

func setup(c *cli.Context) (*app, error) {
	path := c.GlobalString("config")
	cfg, err := config.Load(path)
	if err != nil {
		if cfg == nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		// First-run save failed; the defaults are still usable.
		appLog.Error("failed to write default config", err, "config_path", path)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	appLog.Setup(os.Stderr, cfg.Log.Format)
	appLog.SetLevel(appLog.ParseLevel(cfg.Log.Level))
	if c.GlobalBool("debug") {
		appLog.SetLevel(appLog.LevelDebug)
	}

	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("invalid timezone; falling back to local", err, "timezone", cfg.Timezone)
	}

	ncfg := notion.Config{
		BaseURL: cfg.Notion.BaseURL,
		Version: cfg.Notion.Version,
		Timeout: cfg.NotionTimeout(),
	}
	ctrl := syncer.New(syncer.Options{
		Remote: func(credential string) syncer.Remote {
			return notion.NewClient(credential, ncfg)
		},
		Store:    state.New(cfg.StatePath),
		Location: loc,
	})
	if err := ctrl.Load(cfg.Credential); err != nil {
		return nil, err
	}

	appLog.Info("effective config",
		"config_path", path,
		"listen", cfg.Listen,
		"timezone", loc.String(),
		"refresh", cfg.RefreshCron,
		"state_path", cfg.StatePath,
		"notion_base_url", cfg.Notion.BaseURL,
		"basic_auth", cfg.BasicAuth != nil,
	)
	return &app{cfg: cfg, ctrl: ctrl}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func serve(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(a.cfg.RefreshCron, a.ctrl.Location(), a.ctrl)
	if err != nil {
		return err
	}
	srv := web.NewServer(a.cfg, a.ctrl)

	ctx, stop := signalContext()
	defer stop()

	appLog.Info("notioncal starting", "version", version)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return sched.Run(ctx) })

	err = g.Wait()
	appLog.Info("notioncal exiting")
	return err
}

func requireCredential(a *app) error {
	if !a.ctrl.State().HasCredential() {
		return fmt.Errorf("%w (set NOTIONCAL_CREDENTIAL or PUT /api/settings)", syncer.ErrNoCredential)
	}
	return nil
}

func refreshOnce(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	if err := requireCredential(a); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	report := a.ctrl.Refresh(ctx)
	names := map[string]string{}
	for _, src := range a.ctrl.State().Sources {
		names[src.ID] = src.Name
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tEND\tSOURCE\tTITLE\tPAGE")
	for _, ev := range a.ctrl.Events() {
		end := ""
		if ev.End != nil {
			end = model.FormatDate(*ev.End)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			model.FormatDate(ev.Start), end, names[ev.SourceID], ev.Title, ev.RemoteID)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, f := range report.Failed {
		fmt.Fprintf(os.Stderr, "source %q failed: %s\n", f.Name, f.Error)
	}
	return nil
}

func listDatabases(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	if err := requireCredential(a); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	dbs, err := a.ctrl.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list databases: %w", err)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, db := range dbs {
		fmt.Fprintf(tw, "%s\t%s\n", model.CleanCollectionID(db.ID), db.Name())
	}
	return tw.Flush()
}

// snapshot serves the calendar on the configured listen address just long
// enough for Chromium to capture it.
func snapshot(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}

	target, err := url.Parse(a.cfg.CaptureURL())
	if err != nil {
		return fmt.Errorf("capture url: %w", err)
	}
	q := target.Query()
	if v := c.String("view"); v != "" {
		q.Set("view", v)
	}
	if v := c.String("date"); v != "" {
		q.Set("date", v)
	}
	target.RawQuery = q.Encode()

	output := a.cfg.Capture.Output
	if v := c.String("output"); v != "" {
		output = v
	}

	ctx, stop := signalContext()
	defer stop()

	a.ctrl.Refresh(ctx)

	srvCtx, cancelSrv := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(srvCtx)
	srv := web.NewServer(a.cfg, a.ctrl)
	g.Go(func() error { return srv.Run(gctx) })

	captureErr := waitHealthy(gctx, "http://"+a.cfg.Listen+"/health")
	if captureErr == nil {
		opts := capture.Options{
			URL:        target.String(),
			OutputPath: output,
			Width:      a.cfg.Capture.Width,
			Height:     a.cfg.Capture.Height,
		}
		if a.cfg.BasicAuth != nil {
			opts.Username = a.cfg.BasicAuth.Username
			opts.Password = a.cfg.BasicAuth.Password
		}
		captureErr = capture.CalendarPNG(gctx, opts)
	}

	cancelSrv()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return captureErr
}

func waitHealthy(ctx context.Context, healthURL string) error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(5 * time.Second)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("server at %s did not become healthy", healthURL)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
