// Package trigger starts the ETL job for every new raw partition announced
// by a notification batch.
//
// Events are handled one at a time and independently. An event whose key is
// not a raw data file is ignored; a failure to start the job is recorded on
// that event only. The batch itself always succeeds, and redelivery is left
// to the notification source.
package trigger

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"b3-dataflow/internal/codec"
	"b3-dataflow/internal/metrics"
	"b3-dataflow/internal/partition"
	"b3-dataflow/internal/runner"
	"b3-dataflow/internal/slogx"
)

// Outcome statuses.
const (
	StatusStarted = "started"
	StatusIgnored = "ignored"
	StatusFailed  = "failed"
)

// Config is the trigger's slice of the application config.
type Config struct {
	RawPrefix     string
	RefinedPrefix string
	JobName       string
}

// Outcome is the result of one event.
type Outcome struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	Status      string `json:"status"`
	RunID       string `json:"run_id,omitempty"`
	RefinedPath string `json:"refined_path,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// BatchResult summarizes one batch.
type BatchResult struct {
	StatusCode int       `json:"statusCode"`
	Processed  int       `json:"processed"`
	Started    int       `json:"started"`
	Ignored    int       `json:"ignored"`
	Failed     int       `json:"failed"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Trigger maps raw object events to job starts.
type Trigger struct {
	cfg     Config
	runner  runner.Runner
	suffix  string
	log     *slog.Logger
	metrics metrics.Collector
}

// Option customizes a Trigger.
type Option func(*Trigger)

func WithLogger(l *slog.Logger) Option {
	return func(t *Trigger) { t.log = l }
}

func WithMetrics(c metrics.Collector) Option {
	return func(t *Trigger) { t.metrics = c }
}

// New creates a Trigger starting jobs on r.
func New(cfg Config, r runner.Runner, opts ...Option) *Trigger {
	if cfg.RawPrefix == "" {
		cfg.RawPrefix = partition.Raw.Prefix()
	}
	if cfg.RefinedPrefix == "" {
		cfg.RefinedPrefix = partition.Refined.Prefix()
	}
	if cfg.JobName == "" {
		cfg.JobName = runner.DefaultETLJob
	}
	t := &Trigger{
		cfg:     cfg,
		runner:  r,
		suffix:  "." + codec.Extension(),
		log:     slogx.Component("trigger"),
		metrics: metrics.NewNop(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Handle processes events in order. It never fails; per-event results are
// carried in the outcomes.
func (t *Trigger) Handle(ctx context.Context, events []Event) BatchResult {
	res := BatchResult{StatusCode: http.StatusOK, Outcomes: make([]Outcome, 0, len(events))}
	for _, ev := range events {
		out := t.handleOne(ctx, ev)
		switch out.Status {
		case StatusStarted:
			res.Started++
		case StatusIgnored:
			res.Ignored++
		case StatusFailed:
			res.Failed++
		}
		t.metrics.TriggerEvent(out.Status)
		res.Outcomes = append(res.Outcomes, out)
		res.Processed++
	}
	t.log.Info("batch processed", "events", res.Processed, "started", res.Started,
		"ignored", res.Ignored, "failed", res.Failed)
	return res
}

func (t *Trigger) handleOne(ctx context.Context, ev Event) Outcome {
	out := Outcome{Bucket: ev.Bucket, Key: ev.Key}

	if !ev.Created() {
		out.Status, out.Reason = StatusIgnored, "not an object creation: "+ev.Name
		t.log.Debug("event ignored", "key", ev.Key, "event", ev.Name)
		return out
	}
	key, err := url.QueryUnescape(ev.Key)
	if err != nil {
		out.Status, out.Reason = StatusIgnored, "undecodable key: "+err.Error()
		t.log.Warn("event ignored", "key", ev.Key, "reason", out.Reason)
		return out
	}
	out.Key = key

	if !strings.HasPrefix(key, t.cfg.RawPrefix) || !strings.HasSuffix(key, t.suffix) {
		out.Status, out.Reason = StatusIgnored, "not a raw data file"
		t.log.Debug("event ignored", "key", key)
		return out
	}
	refined, _ := partition.Swap(key, t.cfg.RawPrefix, t.cfg.RefinedPrefix)
	out.RefinedPath = refined

	runID, err := t.runner.StartJob(ctx, t.cfg.JobName, map[string]string{
		runner.ArgRawPath:     key,
		runner.ArgRefinedPath: refined,
		runner.ArgRawBucket:   ev.Bucket,
	})
	out.RunID = runID
	if err != nil {
		out.Status, out.Reason = StatusFailed, err.Error()
		t.log.Error("job start failed", "key", key, "bucket", ev.Bucket, "error", err)
		return out
	}
	out.Status = StatusStarted
	t.log.Info("job started", "key", key, "refined", refined, "run_id", runID)
	return out
}
