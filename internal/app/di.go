package app

import (
	"context"
	"log/slog"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"b3-dataflow/internal/extract"
	"b3-dataflow/internal/metrics"
	"b3-dataflow/internal/provider"
	"b3-dataflow/internal/runner"
	"b3-dataflow/internal/slogx"
	"b3-dataflow/internal/storage"
	"b3-dataflow/internal/storage/local"
	"b3-dataflow/internal/storage/natsstore"
	"b3-dataflow/internal/transform"
	"b3-dataflow/internal/trigger"
	"b3-dataflow/internal/upload"
)

// ConfigPath is the optional YAML config file (for Wire).
type ConfigPath string

// Broker is the NATS connection shared by the object store and the job
// runner. Conn is nil when neither is configured for NATS.
type Broker struct {
	Conn *nats.Conn
	JS   jetstream.JetStream
}

// Stores groups the blob stores the stages read and write. Local is always
// the data directory; Raw and Refined are the configured gateway and equal
// Local in local mode.
type Stores struct {
	Local   *local.Store
	Raw     storage.Store
	Refined storage.Store

	// RawWatch streams new raw keys. Nil unless storage is nats.
	RawWatch func(ctx context.Context) (<-chan string, error)
}

// ProvideConfig loads config from path and the environment, and installs
// the configured default logger (for Wire).
func ProvideConfig(path ConfigPath) (*Config, error) {
	cfg, err := Load(string(path))
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slogx.New(os.Stderr, cfg.LogLevel, cfg.LogFormat))
	return cfg, nil
}

// ProvideMetrics creates the Prometheus collector (for Wire).
func ProvideMetrics() *metrics.Prometheus {
	return metrics.NewPrometheus()
}

// ProvideProvider creates the configured DataProvider (for Wire).
// The cleanup closes it.
func ProvideProvider(cfg *Config) (provider.DataProvider, func(), error) {
	dp, err := CreateProvider(cfg)
	if err != nil {
		return nil, nil, err
	}
	return dp, func() { _ = dp.Close() }, nil
}

// ProvideBroker connects to NATS when the config needs it (for Wire).
func ProvideBroker(cfg *Config) (*Broker, func(), error) {
	if !cfg.UsesNATS() {
		return &Broker{}, func() {}, nil
	}
	nc, js, err := natsstore.Dial(cfg.NATSURL, "b3-dataflow")
	if err != nil {
		return nil, nil, err
	}
	slog.Info("connected to nats", "url", cfg.NATSURL)
	return &Broker{Conn: nc, JS: js}, func() { nc.Close() }, nil
}

// ProvideStores opens the configured stores (for Wire).
func ProvideStores(ctx context.Context, cfg *Config, b *Broker) (*Stores, error) {
	ls := local.New(cfg.DataDir)
	if cfg.Storage != "nats" {
		return &Stores{Local: ls, Raw: ls, Refined: ls}, nil
	}
	raw, err := natsstore.Open(ctx, b.JS, cfg.BucketRaw)
	if err != nil {
		return nil, err
	}
	refined, err := natsstore.Open(ctx, b.JS, cfg.BucketRefined)
	if err != nil {
		return nil, err
	}
	return &Stores{Local: ls, Raw: raw, Refined: refined, RawWatch: raw.Puts}, nil
}

// ProvideExtractor wires the extractor to the raw gateway (for Wire).
func ProvideExtractor(cfg *Config, dp provider.DataProvider, s *Stores, m metrics.Collector) *extract.Extractor {
	return extract.New(extractConfig(cfg), dp, s.Raw, extract.WithMetrics(m))
}

// LocalExtractor writes to the data directory regardless of the configured
// gateway, for the extract-then-upload path.
type LocalExtractor struct {
	*extract.Extractor
}

// ProvideLocalExtractor wires the LocalExtractor (for Wire).
func ProvideLocalExtractor(cfg *Config, dp provider.DataProvider, s *Stores, m metrics.Collector) LocalExtractor {
	return LocalExtractor{extract.New(extractConfig(cfg), dp, s.Local, extract.WithMetrics(m))}
}

func extractConfig(cfg *Config) extract.Config {
	return extract.Config{
		Ticker:      cfg.Ticker,
		TickerLabel: cfg.TickerLabel,
		Dataset:     cfg.Dataset,
		RawPrefix:   cfg.RawPrefix,
		Lookback:    cfg.Lookback,
		Location:    cfg.Location(),
		Codec:       cfg.CodecOptions(),
	}
}

// ProvideTransformer wires the transformer (for Wire).
func ProvideTransformer(cfg *Config, s *Stores, m metrics.Collector) *transform.Transformer {
	return transform.New(transform.Config{
		RawPrefix:       cfg.RawPrefix,
		RefinedPrefix:   cfg.RefinedPrefix,
		Dataset:         cfg.Dataset,
		TickerLabel:     cfg.TickerLabel,
		Codec:           cfg.CodecOptions(),
		ReadConcurrency: cfg.ReadConcurrency,
	}, s.Raw, s.Refined, transform.WithMetrics(m))
}

// ProvideLocalRunner creates the in-process runner with the ETL job
// registered under cfg.JobName (for Wire).
func ProvideLocalRunner(cfg *Config, t *transform.Transformer) *runner.Local {
	l := runner.NewLocal()
	l.Register(cfg.JobName, runner.ETLHandler(t))
	return l
}

// ProvideRunner picks the runner the trigger starts jobs on (for Wire).
func ProvideRunner(cfg *Config, b *Broker, l *runner.Local) runner.Runner {
	if cfg.Runner == "nats" {
		return runner.NewNATS(b.Conn, cfg.JobSubject, 0)
	}
	return l
}

// ProvideWorker creates the NATS job worker, or nil without a broker (for Wire).
func ProvideWorker(cfg *Config, b *Broker, l *runner.Local) *runner.Worker {
	if b.Conn == nil {
		return nil
	}
	return runner.NewWorker(b.Conn, cfg.JobSubject, "", l)
}

// ProvideTrigger wires the trigger (for Wire).
func ProvideTrigger(cfg *Config, r runner.Runner, m metrics.Collector) *trigger.Trigger {
	return trigger.New(trigger.Config{
		RawPrefix:     cfg.RawPrefix,
		RefinedPrefix: cfg.RefinedPrefix,
		JobName:       cfg.JobName,
	}, r, trigger.WithMetrics(m))
}

// ProvideUploader copies from the data directory to the raw gateway (for Wire).
func ProvideUploader(cfg *Config, s *Stores) *upload.Uploader {
	return upload.New(cfg.Dataset, cfg.RawPrefix, cfg.Location(), s.Local, s.Raw)
}
