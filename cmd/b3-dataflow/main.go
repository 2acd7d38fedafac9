// Command b3-dataflow runs the daily market-index pipeline: extract, upload,
// transform, trigger, and the long-running serve and worker modes.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/google/subcommands"

	"b3-dataflow/internal/app"
	"b3-dataflow/internal/extract"
	"b3-dataflow/internal/metrics"
	"b3-dataflow/internal/runner"
	"b3-dataflow/internal/slogx"
	"b3-dataflow/internal/transform"
	"b3-dataflow/internal/trigger"
	"b3-dataflow/internal/upload"
)

// App holds application dependencies built by Wire.
type App struct {
	Config         *app.Config
	Metrics        *metrics.Prometheus
	Stores         *app.Stores
	Extractor      *extract.Extractor
	LocalExtractor app.LocalExtractor
	Transformer    *transform.Transformer
	Local          *runner.Local
	Worker         *runner.Worker
	Trigger        *trigger.Trigger
	Uploader       *upload.Uploader
}

var configPath = flag.String("config", os.Getenv("B3_CONFIG"), "YAML config file (optional)")

func init() {
	slog.SetDefault(slogx.NewDefault("info"))
}

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&extractCmd{}, "pipeline")
	subcommands.Register(&uploadCmd{}, "pipeline")
	subcommands.Register(&transformCmd{}, "pipeline")
	subcommands.Register(&triggerCmd{}, "pipeline")
	subcommands.Register(&serveCmd{}, "services")
	subcommands.Register(&workerCmd{}, "services")
	subcommands.Register(&inspectCmd{}, "tools")

	flag.Parse()
	ctx, stop := app.SignalContext(context.Background())
	code := subcommands.Execute(ctx)
	stop()
	os.Exit(int(code))
}

// withApp builds the App, runs fn and releases everything afterwards.
func withApp(ctx context.Context, fn func(a *App) error) subcommands.ExitStatus {
	a, cleanup, err := InitializeApp(ctx, app.ConfigPath(*configPath))
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return subcommands.ExitFailure
	}
	defer cleanup()

	if err := fn(a); err != nil {
		slog.Error("command failed", "error", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
