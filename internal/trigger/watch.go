package trigger

import (
	"context"
	"net/url"
)

// Watch handles every key received on puts as a single-event batch for
// bucket, until ctx is done or puts is closed. Object store keys arrive
// unescaped, so they are query-escaped to round-trip through Handle.
func (t *Trigger) Watch(ctx context.Context, bucket string, puts <-chan string, onBatch func(BatchResult)) {
	for {
		select {
		case <-ctx.Done():
			return
		case key, ok := <-puts:
			if !ok {
				return
			}
			res := t.Handle(ctx, []Event{{Bucket: bucket, Key: url.QueryEscape(key)}})
			if onBatch != nil {
				onBatch(res)
			}
		}
	}
}
