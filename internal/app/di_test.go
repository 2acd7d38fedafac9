package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3-dataflow/internal/codec"
	"b3-dataflow/internal/metrics"
	"b3-dataflow/internal/model"
	"b3-dataflow/internal/runner"
	"b3-dataflow/internal/testutil"
	"b3-dataflow/internal/trigger"
)

type staticProvider struct{}

func (staticProvider) GetName() string { return "static" }
func (staticProvider) Close() error    { return nil }

func (staticProvider) Fetch(_ context.Context, _ string, w model.Window) (*model.Table, error) {
	d := w.To.AddDate(0, 0, -1)
	return &model.Table{
		Dates: []time.Time{d.AddDate(0, 0, -1), d},
		Columns: map[string][]float64{
			"Open": {100, 0}, "Close": {110, 5}, "High": {111, 6}, "Low": {99, 0}, "Volume": {1000, 2000},
		},
	}, nil
}

// runPipeline extracts today's partition, announces it to the trigger and
// waits for jobs started in process.
func runPipeline(t *testing.T, cfg *Config, b *Broker) (*Stores, trigger.BatchResult) {
	t.Helper()
	ctx := context.Background()
	m := metrics.NewNop()

	stores, err := ProvideStores(ctx, cfg, b)
	require.NoError(t, err)
	tr := ProvideTransformer(cfg, stores, m)
	local := ProvideLocalRunner(cfg, tr)
	if w := ProvideWorker(cfg, b, local); w != nil && cfg.Runner == "nats" {
		require.NoError(t, w.Start(ctx))
		t.Cleanup(func() { _ = w.Stop() })
	}
	trig := ProvideTrigger(cfg, ProvideRunner(cfg, b, local), m)

	res, err := ProvideExtractor(cfg, staticProvider{}, stores, m).Run(ctx)
	require.NoError(t, err)

	batch := trig.Handle(ctx, []trigger.Event{{Bucket: cfg.BucketRaw, Key: res.Key}})
	local.Wait()
	return stores, batch
}

func TestPipelineLocal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()

	stores, batch := runPipeline(t, cfg, &Broker{})
	require.Equal(t, 1, batch.Started, "%+v", batch.Outcomes)
	refinedKey := batch.Outcomes[0].RefinedPath

	data, err := stores.Refined.Get(context.Background(), refinedKey)
	require.NoError(t, err)
	rows, err := codec.Decode[model.Derived](data)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "IBOV", rows[0].Ticker)
	assert.InDelta(t, 10, rows[0].PctVariation, 1e-9)
}

func TestPipelineCustomPrefixes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.RawPrefix = "landing/"
	cfg.RefinedPrefix = "curated/"
	require.NoError(t, cfg.Validate())

	stores, batch := runPipeline(t, cfg, &Broker{})
	require.Equal(t, 1, batch.Started, "%+v", batch.Outcomes)
	out := batch.Outcomes[0]
	assert.True(t, strings.HasPrefix(out.Key, "landing/year="), out.Key)
	assert.True(t, strings.HasPrefix(out.RefinedPath, "curated/year="), out.RefinedPath)

	_, err := stores.Refined.Get(context.Background(), out.RefinedPath)
	require.NoError(t, err)

	res, err := ProvideTransformer(cfg, stores, metrics.NewNop()).TransformAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "curated/ibov_refined.parquet", res.Key)
}

func TestPipelineNATS(t *testing.T) {
	ns, _, _ := testutil.StartEmbeddedNATS(t)
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Storage = "nats"
	cfg.Runner = "nats"
	cfg.NATSURL = ns.ClientURL()
	require.NoError(t, cfg.Validate())

	b, cleanup, err := ProvideBroker(cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	require.NotNil(t, b.Conn)

	stores, batch := runPipeline(t, cfg, b)
	require.Equal(t, 1, batch.Started, "%+v", batch.Outcomes)
	refinedKey := batch.Outcomes[0].RefinedPath

	// The job runs on the worker; poll the refined bucket.
	require.Eventually(t, func() bool {
		_, err := stores.Refined.Get(context.Background(), refinedKey)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	keys, err := stores.Local.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys, "nats mode writes nothing to the data directory")
}

func TestProvideRunner(t *testing.T) {
	cfg := DefaultConfig()
	l := runner.NewLocal()
	assert.Same(t, l, ProvideRunner(cfg, &Broker{}, l))
	assert.Nil(t, ProvideWorker(cfg, &Broker{}, l))
}
