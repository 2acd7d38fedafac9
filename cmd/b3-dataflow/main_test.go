package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3-dataflow/internal/codec"
	"b3-dataflow/internal/model"
	"b3-dataflow/internal/runner"
	"b3-dataflow/internal/storage/local"
	"b3-dataflow/internal/transform"
	"b3-dataflow/internal/trigger"
)

const (
	day07 = "raw/year=2024/month=05/day=07/ibov.parquet"
	day08 = "raw/year=2024/month=05/day=08/ibov.parquet"
)

// setupDataDir seeds two raw partitions and points -config at a file using
// the directory.
func setupDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	store := local.New(dir)
	put := func(key string, rows ...model.Observation) {
		data, err := codec.Encode(rows, codec.DefaultOptions())
		require.NoError(t, err)
		require.NoError(t, store.Put(context.Background(), key, data))
	}
	put(day07, model.Observation{Date: "2024-05-06", Ticker: "IBOV", Open: 9, Close: 10, High: 11, Low: 8, Volume: 100})
	put(day08,
		model.Observation{Date: "2024-05-06", Ticker: "IBOV", Open: 9, Close: 10, High: 11, Low: 8, Volume: 100},
		model.Observation{Date: "2024-05-08", Ticker: "IBOV", Open: 18, Close: 20, High: 21, Low: 17, Volume: 300},
	)

	cfgFile := filepath.Join(t.TempDir(), "b3.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("data_dir: "+dir+"\nlog_level: error\n"), 0o644))
	prev := *configPath
	*configPath = cfgFile
	t.Cleanup(func() { *configPath = prev })
	return dir
}

func flags(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func TestTransformCmdAll(t *testing.T) {
	dir := setupDataDir(t)

	status := (&transformCmd{mode: transform.ModeAll}).Execute(context.Background(), flags("transform"))
	require.Equal(t, subcommands.ExitSuccess, status)

	data, err := local.New(dir).Get(context.Background(), "refined/ibov_refined.parquet")
	require.NoError(t, err)
	weeks, err := codec.Decode[model.Weekly](data)
	require.NoError(t, err)
	require.Len(t, weeks, 1)
	assert.InDelta(t, 15, weeks[0].MeanClose, 1e-9)
	assert.Equal(t, int64(400), weeks[0].SumVolume)
}

func TestTransformCmdPartitionDefaultsRefinedKey(t *testing.T) {
	dir := setupDataDir(t)

	status := (&transformCmd{mode: transform.ModePartition, raw: day08}).Execute(context.Background(), flags("transform"))
	require.Equal(t, subcommands.ExitSuccess, status)

	_, err := local.New(dir).Get(context.Background(), "refined/year=2024/month=05/day=08/ibov.parquet")
	require.NoError(t, err)
}

func TestTransformCmdErrors(t *testing.T) {
	setupDataDir(t)
	ctx := context.Background()

	assert.Equal(t, subcommands.ExitUsageError,
		(&transformCmd{mode: transform.ModePartition}).Execute(ctx, flags("transform")))
	assert.Equal(t, subcommands.ExitFailure,
		(&transformCmd{mode: "weekly"}).Execute(ctx, flags("transform")))
	assert.Equal(t, subcommands.ExitFailure,
		(&transformCmd{mode: transform.ModePartition, raw: "other/x.parquet"}).Execute(ctx, flags("transform")))
}

func TestTriggerCmdRunsJobAndReports(t *testing.T) {
	dir := setupDataDir(t)
	doc := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(doc, []byte(`{"Records": [
	  {"eventName": "ObjectCreated:Put",
	   "s3": {"bucket": {"name": "b3-raw"}, "object": {"key": "raw/year%3D2024/month%3D05/day%3D08/ibov.parquet"}}}
	]}`), 0o644))

	status := (&triggerCmd{file: doc, report: true}).Execute(context.Background(), flags("trigger"))
	require.Equal(t, subcommands.ExitSuccess, status)

	_, err := local.New(dir).Get(context.Background(), "refined/year=2024/month=05/day=08/ibov.parquet")
	require.NoError(t, err, "job finishes before the command returns")
	assert.FileExists(t, filepath.Join(dir, trigger.SuccessReport))
	assert.NoFileExists(t, filepath.Join(dir, trigger.FailedReport))
}

func TestBadConfigFails(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "b3.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("provider: bloomberg\n"), 0o644))
	prev := *configPath
	*configPath = cfgFile
	t.Cleanup(func() { *configPath = prev })

	status := (&transformCmd{mode: transform.ModeAll}).Execute(context.Background(), flags("transform"))
	assert.Equal(t, subcommands.ExitFailure, status)
}

func TestJobRoutes(t *testing.T) {
	l := runner.NewLocal(runner.Synchronous())
	l.Register("noop", func(context.Context, map[string]string) error { return nil })
	id, err := l.StartJob(context.Background(), "noop", nil)
	require.NoError(t, err)

	r := chi.NewRouter()
	jobRoutes(r, l)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/jobs/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var job runner.Job
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&job))
	assert.Equal(t, runner.StatusCompleted, job.Status)

	resp2, err := http.Get(srv.URL + "/v1/jobs")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var jobs []runner.Job
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&jobs))
	assert.Len(t, jobs, 1)

	resp3, err := http.Get(srv.URL + "/v1/jobs/missing")
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode)
}
