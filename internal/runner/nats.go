package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"b3-dataflow/internal/errors"
	"b3-dataflow/internal/slogx"
)

// DefaultSubjectPrefix is the subject prefix job requests are sent under.
const DefaultSubjectPrefix = "b3.jobs"

const defaultRequestTimeout = 10 * time.Second

// Reply error kinds.
const (
	kindUnknownJob = "unknown_job"
	kindFailed     = "failed"
)

type jobRequest struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args"`
}

type jobReply struct {
	RunID string `json:"run_id,omitempty"`
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// NATS starts jobs on a remote Worker through request/reply on
// {prefix}.{name}.
type NATS struct {
	conn    *nats.Conn
	prefix  string
	timeout time.Duration
}

// NewNATS creates a runner publishing under prefix. A zero timeout means
// ten seconds.
func NewNATS(conn *nats.Conn, prefix string, timeout time.Duration) *NATS {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &NATS{conn: conn, prefix: prefix, timeout: timeout}
}

// StartJob sends the request and waits for the worker's run id.
func (n *NATS) StartJob(ctx context.Context, name string, args map[string]string) (string, error) {
	data, err := json.Marshal(jobRequest{Name: name, Args: args})
	if err != nil {
		return "", fmt.Errorf("encode job request: %w", err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	msg, err := n.conn.RequestWithContext(ctx, n.prefix+"."+name, data)
	if err != nil {
		return "", fmt.Errorf("request job %s: %w", name, err)
	}
	var reply jobReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return "", fmt.Errorf("decode job reply: %w", err)
	}
	switch {
	case reply.Kind == kindUnknownJob:
		return "", fmt.Errorf("job %q: %s: %w", name, reply.Error, errors.ErrUnknownJob)
	case reply.Error != "":
		return reply.RunID, fmt.Errorf("job %s: %s", name, reply.Error)
	}
	return reply.RunID, nil
}

// Worker serves job requests from NATS on a Local runner.
type Worker struct {
	conn   *nats.Conn
	prefix string
	queue  string
	local  *Local
	log    *slog.Logger
	sub    *nats.Subscription
}

// NewWorker creates a worker. Workers sharing a queue group split requests
// between them.
func NewWorker(conn *nats.Conn, prefix, queue string, local *Local) *Worker {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if queue == "" {
		queue = "b3-workers"
	}
	return &Worker{
		conn:   conn,
		prefix: prefix,
		queue:  queue,
		local:  local,
		log:    slogx.Component("worker"),
	}
}

// Start subscribes to {prefix}.>. Runs use ctx as their parent.
func (w *Worker) Start(ctx context.Context) error {
	sub, err := w.conn.QueueSubscribe(w.prefix+".>", w.queue, func(msg *nats.Msg) {
		w.handle(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s.>: %w", w.prefix, err)
	}
	// Make sure the subscription reached the server before callers publish.
	if err := w.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("flush: %w", err)
	}
	w.sub = sub
	w.log.Info("worker listening", "subject", w.prefix+".>", "queue", w.queue, "jobs", w.local.Names())
	return nil
}

func (w *Worker) handle(ctx context.Context, msg *nats.Msg) {
	var req jobRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		w.respond(msg, jobReply{Error: "malformed request: " + err.Error(), Kind: kindFailed})
		return
	}
	name := strings.TrimPrefix(msg.Subject, w.prefix+".")
	if req.Name != "" && req.Name != name {
		w.respond(msg, jobReply{Error: fmt.Sprintf("subject names %q, body names %q", name, req.Name), Kind: kindFailed})
		return
	}

	id, err := w.local.StartJob(ctx, name, req.Args)
	switch {
	case errors.Is(err, errors.ErrUnknownJob):
		w.respond(msg, jobReply{Error: err.Error(), Kind: kindUnknownJob})
	case err != nil:
		w.respond(msg, jobReply{RunID: id, Error: err.Error(), Kind: kindFailed})
	default:
		w.respond(msg, jobReply{RunID: id})
	}
}

func (w *Worker) respond(msg *nats.Msg, reply jobReply) {
	data, _ := json.Marshal(reply)
	if err := msg.Respond(data); err != nil {
		w.log.Warn("reply failed", "subject", msg.Subject, "error", err)
	}
}

// Stop drains the subscription and waits for asynchronous runs.
func (w *Worker) Stop() error {
	if w.sub == nil {
		return nil
	}
	err := w.sub.Drain()
	w.local.Wait()
	return err
}
