package patch

import "sort"

// Status is the result of applying one entry.
type Status string

const (
	StatusApplied Status = "applied"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Skip reasons.
const (
	ReasonAlreadyApplied = "already applied"
	ReasonAlreadyAbsent  = "already absent"
	ReasonAborted        = "aborted"
	ReasonStaleBase      = "stale base"
)

// Outcome records what happened to one entry.
type Outcome struct {
	Path   string
	Kind   Kind
	Status Status
	Reason string
	Err    error
}

// Report is the per-entry result of an apply run.
type Report struct {
	Outcomes []Outcome
}

func (r *Report) count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

func (r *Report) Applied() int { return r.count(StatusApplied) }
func (r *Report) Skipped() int { return r.count(StatusSkipped) }
func (r *Report) Failed() int  { return r.count(StatusFailed) }

// Failures returns only failed outcomes, ordered by path.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Sorted() {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// Sorted returns a copy of the outcomes ordered by path.
func (r *Report) Sorted() []Outcome {
	out := append([]Outcome(nil), r.Outcomes...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Lookup returns the outcome for path.
func (r *Report) Lookup(path string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Path == path {
			return o, true
		}
	}
	return Outcome{}, false
}
