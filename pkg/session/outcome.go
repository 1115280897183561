package session

import "errors"

// OutcomeStatus classifies how a store operation completed.
type OutcomeStatus string

const (
	// OutcomeOK means the operation completed against the backend.
	OutcomeOK OutcomeStatus = "ok"
	// OutcomeDegraded means a read failed and an empty result was served.
	OutcomeDegraded OutcomeStatus = "degraded"
	// OutcomeFailed means a write was dropped.
	OutcomeFailed OutcomeStatus = "failed"
)

// Outcome reports the result of an advisory store operation. Store methods
// never return errors to callers; failures are logged and surfaced here.
type Outcome struct {
	Status  OutcomeStatus
	Backend string
	Err     error
}

// OK reports whether the operation fully succeeded.
func (o Outcome) OK() bool { return o.Status == OutcomeOK }

func (o Outcome) String() string {
	if o.Err != nil {
		return string(o.Status) + " (" + o.Backend + "): " + o.Err.Error()
	}
	return string(o.Status) + " (" + o.Backend + ")"
}

// IsClosed reports whether the operation failed because the backend was closed.
func (o Outcome) IsClosed() bool {
	return errors.Is(o.Err, ErrStorageClosed)
}
