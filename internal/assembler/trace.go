package assembler

import "time"

// TraceEntry records one assembly stage for the audit panel.
type TraceEntry struct {
	Stage       string        `json:"stage"`
	Description string        `json:"description"`
	Status      string        `json:"status"`
	Data        any           `json:"data,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
}

type traceLog struct {
	entries []TraceEntry
}

func newTrace() *traceLog {
	return &traceLog{}
}

func (t *traceLog) add(stage, description, status string, data any) {
	t.addTimed(stage, description, status, data, 0)
}

func (t *traceLog) addTimed(stage, description, status string, data any, d time.Duration) {
	t.entries = append(t.entries, TraceEntry{
		Stage:       stage,
		Description: description,
		Status:      status,
		Data:        data,
		Duration:    d,
	})
}
