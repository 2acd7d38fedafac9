package trigger

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Event is one object notification. Name is the S3 event name, e.g.
// ObjectCreated:Put; empty means a creation.
type Event struct {
	Name   string `json:"event_name,omitempty"`
	Bucket string `json:"bucket"`
	Key    string `json:"key"` // may be percent-encoded
}

// Created reports whether ev announces a new or overwritten object.
func (ev Event) Created() bool {
	return ev.Name == "" || strings.HasPrefix(ev.Name, "ObjectCreated:")
}

// notification mirrors the S3 event document. Only the fields the trigger
// reads are declared.
type notification struct {
	Records []struct {
		EventName string `json:"eventName"`
		S3        struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// ParseNotification decodes an S3-style notification document into events,
// in record order.
func ParseNotification(data []byte) ([]Event, error) {
	var n notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	events := make([]Event, 0, len(n.Records))
	for _, r := range n.Records {
		events = append(events, Event{Name: r.EventName, Bucket: r.S3.Bucket.Name, Key: r.S3.Object.Key})
	}
	return events, nil
}
