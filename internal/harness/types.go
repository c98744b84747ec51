package harness

// Trace event types.
const (
	EventAssert  = "assert"
	EventRetract = "retract"
	EventQuery   = "query"
	EventAnswer  = "answer"
	EventDerive  = "derive"
	EventFact    = "fact"
	EventError   = "error"
)

// TraceEvent is one observable effect of a scenario.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Type   string `json:"type"`
	Text   string `json:"text"`
	Detail string `json:"detail,omitempty"`
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds the events in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds one message per failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result with an empty trace.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(typ, text, detail string) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:    int64(len(r.Trace) + 1),
		Type:   typ,
		Text:   text,
		Detail: detail,
	})
}
