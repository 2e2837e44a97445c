package logsync

import (
	"fmt"
	"time"
)

type OpKind string

const (
	OpDelete  OpKind = "delete"
	OpRestore OpKind = "restore"
)

type OpState int

const (
	InFlight OpState = iota
	Committed
	RolledBack
)

func (s OpState) String() string {
	switch s {
	case InFlight:
		return "in-flight"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled-back"
	default:
		return fmt.Sprintf("OpState(%d)", int(s))
	}
}

// Operation tracks one optimistic mutation. It starts in-flight and settles
// exactly once.
type Operation struct {
	Kind      OpKind
	LogID     string
	State     OpState
	Err       string
	StartedAt time.Time
	SettledAt time.Time
}

func newOperation(kind OpKind, logID string, now time.Time) *Operation {
	return &Operation{Kind: kind, LogID: logID, State: InFlight, StartedAt: now}
}

func (o *Operation) commit(now time.Time) error {
	return o.settle(Committed, nil, now)
}

func (o *Operation) rollBack(cause error, now time.Time) error {
	return o.settle(RolledBack, cause, now)
}

func (o *Operation) settle(to OpState, cause error, now time.Time) error {
	if o.State != InFlight {
		return fmt.Errorf("logsync: %s of %s already %s", o.Kind, o.LogID, o.State)
	}
	o.State = to
	o.SettledAt = now
	if cause != nil {
		o.Err = cause.Error()
	}
	return nil
}
