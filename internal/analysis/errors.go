package analysis

import (
	"fmt"
	"strings"
)

// RunError reports a run that produced nothing usable: no merge request to
// process, every merge request failed, or the labeled set could not be listed.
type RunError struct {
	Reason string
	Causes []error
}

func (e *RunError) Error() string {
	if len(e.Causes) == 0 {
		return "analysis: " + e.Reason
	}
	msgs := make([]string, 0, len(e.Causes))
	for _, c := range e.Causes {
		msgs = append(msgs, c.Error())
	}
	return fmt.Sprintf("analysis: %s: %s", e.Reason, strings.Join(msgs, "; "))
}

func (e *RunError) Unwrap() []error {
	return e.Causes
}

// WarningKind classifies a non-fatal problem of a run.
type WarningKind string

const (
	WarnMRNotFound WarningKind = "mr_not_found"
	WarnMRSkipped  WarningKind = "mr_skipped"
)

// Warning is a problem that did not stop the run.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	MRIID   int         `json:"mr_iid"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
}

func (w Warning) String() string {
	return w.Message
}
