package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/subcommands"

	"b3-dataflow/internal/app"
	"b3-dataflow/internal/errors"
	"b3-dataflow/internal/inspect"
	"b3-dataflow/internal/partition"
	"b3-dataflow/internal/runner"
	"b3-dataflow/internal/transform"
	"b3-dataflow/internal/trigger"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type extractCmd struct {
	local bool
}

func (*extractCmd) Name() string     { return "extract" }
func (*extractCmd) Synopsis() string { return "fetch the lookback window and write today's raw partition" }
func (*extractCmd) Usage() string {
	return "extract [-local]\n  Fetch the configured ticker and write raw/year=/month=/day=/{dataset}.parquet.\n"
}
func (c *extractCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.local, "local", false, "write to the data directory even when storage is nats (then run upload)")
}

func (c *extractCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *App) error {
		ex := a.Extractor
		if c.local {
			ex = a.LocalExtractor.Extractor
		}
		res, err := ex.Run(ctx)
		if err != nil {
			return err
		}
		return printJSON(res)
	})
}

type uploadCmd struct{}

func (*uploadCmd) Name() string           { return "upload" }
func (*uploadCmd) Synopsis() string       { return "copy today's local raw partition to the remote store" }
func (*uploadCmd) Usage() string          { return "upload\n" }
func (*uploadCmd) SetFlags(*flag.FlagSet) {}

func (*uploadCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *App) error {
		if a.Config.Storage != "nats" {
			return fmt.Errorf("upload needs storage: nats, have %q: %w", a.Config.Storage, errors.ErrInvalidConfig)
		}
		key, err := a.Uploader.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	})
}

type transformCmd struct {
	mode    string
	raw     string
	refined string
}

func (*transformCmd) Name() string     { return "transform" }
func (*transformCmd) Synopsis() string { return "derive raw partitions into refined outputs" }
func (*transformCmd) Usage() string {
	return `transform [-mode all|latest|partition] [-raw key] [-refined key]
  all:       aggregate every raw partition by ISO week
  latest:    derive the most recent raw partition
  partition: derive -raw into -refined (default: raw prefix swapped)
`
}
func (c *transformCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.mode, "mode", transform.ModeAll, "all, latest or partition")
	f.StringVar(&c.raw, "raw", "", "raw key (partition mode)")
	f.StringVar(&c.refined, "refined", "", "refined key (partition mode)")
}

func (c *transformCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.mode == transform.ModePartition && c.raw == "" {
		fmt.Fprintln(os.Stderr, "transform: -raw is required in partition mode")
		f.Usage()
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(a *App) error {
		var (
			res transform.Result
			err error
		)
		switch c.mode {
		case transform.ModeAll:
			res, err = a.Transformer.TransformAll(ctx)
		case transform.ModeLatest:
			res, err = a.Transformer.TransformLatest(ctx)
		case transform.ModePartition:
			refined := c.refined
			if refined == "" {
				var ok bool
				refined, ok = partition.Swap(c.raw, a.Config.RawPrefix, a.Config.RefinedPrefix)
				if !ok {
					return fmt.Errorf("%s is not under %s: %w", c.raw, a.Config.RawPrefix, errors.ErrInvalidPartition)
				}
			}
			res, err = a.Transformer.TransformPartition(ctx, c.raw, refined)
		default:
			return fmt.Errorf("unknown mode %q", c.mode)
		}
		if err != nil {
			return err
		}
		return printJSON(res)
	})
}

type triggerCmd struct {
	file   string
	report bool
}

func (*triggerCmd) Name() string     { return "trigger" }
func (*triggerCmd) Synopsis() string { return "handle an S3-style notification document" }
func (*triggerCmd) Usage() string {
	return "trigger [-file notification.json] [-report]\n  Reads stdin when -file is empty.\n"
}
func (c *triggerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", "", "notification document (default stdin)")
	f.BoolVar(&c.report, "report", false, "write .lastrun.success.json / .lastrun.failed.json to the data directory")
}

func (c *triggerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *App) error {
		var (
			data []byte
			err  error
		)
		if c.file == "" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(c.file)
		}
		if err != nil {
			return err
		}
		events, err := trigger.ParseNotification(data)
		if err != nil {
			return err
		}
		res := a.Trigger.Handle(ctx, events)
		// Local runs are asynchronous; finish them before the process exits.
		a.Local.Wait()
		if c.report {
			if err := trigger.WriteReport(a.Config.DataDir, res); err != nil {
				slog.Warn("could not write run report", "error", err)
			}
		}
		return printJSON(res)
	})
}

type serveCmd struct{}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the notification endpoint and watch the raw bucket" }
func (*serveCmd) Usage() string {
	return "serve\n  POST /v1/notifications, GET /v1/jobs, GET /metrics, GET /healthz.\n"
}
func (*serveCmd) SetFlags(*flag.FlagSet) {}

func (*serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *App) error {
		if a.Stores.RawWatch != nil {
			puts, err := a.Stores.RawWatch(ctx)
			if err != nil {
				return err
			}
			go a.Trigger.Watch(ctx, a.Config.BucketRaw, puts, nil)
			slog.Info("watching raw bucket", "bucket", a.Config.BucketRaw)
		}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		a.Trigger.Register(r)
		jobRoutes(r, a.Local)
		r.Handle("/metrics", a.Metrics.Handler())
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		err := app.Serve(ctx, a.Config.HTTPAddr, r)
		a.Local.Wait()
		return err
	})
}

// jobRoutes serves the local job store read-only.
func jobRoutes(r chi.Router, l *runner.Local) {
	r.Get("/v1/jobs", func(w http.ResponseWriter, req *http.Request) {
		render.JSON(w, req, l.Jobs())
	})
	r.Get("/v1/jobs/{id}", func(w http.ResponseWriter, req *http.Request) {
		job, err := l.Job(chi.URLParam(req, "id"))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.IsNotFound(err) {
				status = http.StatusNotFound
			}
			render.Status(req, status)
			render.JSON(w, req, map[string]string{"error": err.Error()})
			return
		}
		render.JSON(w, req, job)
	})
}

type workerCmd struct{}

func (*workerCmd) Name() string           { return "worker" }
func (*workerCmd) Synopsis() string       { return "run ETL jobs requested over NATS" }
func (*workerCmd) Usage() string          { return "worker\n  Needs nats_url.\n" }
func (*workerCmd) SetFlags(*flag.FlagSet) {}

func (*workerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *App) error {
		if a.Worker == nil {
			return fmt.Errorf("worker needs a NATS connection (runner or storage nats): %w", errors.ErrInvalidConfig)
		}
		if err := a.Worker.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		slog.Info("received signal, draining worker")
		return a.Worker.Stop()
	})
}

type inspectCmd struct {
	layer string
}

func (*inspectCmd) Name() string     { return "inspect" }
func (*inspectCmd) Synopsis() string { return "summarize local partitions with DuckDB" }
func (*inspectCmd) Usage() string    { return "inspect [-layer raw|refined]\n" }
func (c *inspectCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.layer, "layer", string(partition.Raw), "raw or refined")
}

func (c *inspectCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *App) error {
		svc, err := inspect.New()
		if err != nil {
			return err
		}
		defer svc.Close()
		sum, err := svc.Summarize(ctx, a.Config.DataDir, partition.Layer(c.layer))
		if err != nil {
			return err
		}
		return printJSON(sum)
	})
}
