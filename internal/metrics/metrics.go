// Package metrics exposes pipeline counters.
package metrics

// Collector receives pipeline events. Implementations must be safe for
// concurrent use.
type Collector interface {
	// ExtractRows records the row count of a written raw partition.
	ExtractRows(rows int)
	// TransformRun records one transformer invocation. status is "success"
	// or "failure"; rows is zero on failure.
	TransformRun(mode, status string, rows int)
	// TriggerEvent records the outcome of one notification event.
	TriggerEvent(outcome string)
}

// Nop discards everything.
type Nop struct{}

var _ Collector = Nop{}

func (Nop) ExtractRows(int)                  {}
func (Nop) TransformRun(string, string, int) {}
func (Nop) TriggerEvent(string)              {}

// NewNop returns a Collector that records nothing.
func NewNop() Collector { return Nop{} }

// Status maps an error to the status label.
func Status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
