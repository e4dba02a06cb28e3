package harness

// TraceEvent is one executed step as seen in the trace.
type TraceEvent struct {
	Step       int    `json:"step"`
	Action     string `json:"action"`
	Type       string `json:"type,omitempty"`
	Version    int64  `json:"version,omitempty"`
	Outcome    string `json:"outcome"`
	Field      string `json:"field,omitempty"`
	Target     int64  `json:"target,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Deprecated bool   `json:"deprecated,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause matched.
	Pass bool `json:"pass"`

	// Trace holds one event per step, in step order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds expect mismatches. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Recorded is the number of outcomes written to the audit store.
	Recorded int `json:"recorded"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds an expect mismatch and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an executed step to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
