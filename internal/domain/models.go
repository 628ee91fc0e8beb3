package domain

import (
	"fmt"
	"syscall"
	"time"
)

// OutcomeKind tags a ProbeOutcome.
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeFailed
	OutcomeKilled
	OutcomeTimedOut
	OutcomeExecError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeFailed:
		return "failed"
	case OutcomeKilled:
		return "killed_by_signal"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeExecError:
		return "exec_error"
	default:
		return "unknown"
	}
}

func (k OutcomeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *OutcomeKind) UnmarshalText(b []byte) error {
	for c := OutcomeOK; c <= OutcomeExecError; c++ {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", b)
}

// ProbeOutcome is the classified result of one probe attempt.
// ExitCode is meaningful for OutcomeFailed, Signal for OutcomeKilled.
type ProbeOutcome struct {
	Kind     OutcomeKind
	ExitCode int
	Signal   syscall.Signal
}

func OK() ProbeOutcome { return ProbeOutcome{Kind: OutcomeOK} }
func Failed(code int) ProbeOutcome { return ProbeOutcome{Kind: OutcomeFailed, ExitCode: code} }
func KilledBySignal(sig syscall.Signal) ProbeOutcome { return ProbeOutcome{Kind: OutcomeKilled, Signal: sig} }
func TimedOut() ProbeOutcome { return ProbeOutcome{Kind: OutcomeTimedOut} }
func ExecError() ProbeOutcome { return ProbeOutcome{Kind: OutcomeExecError} }

// IsOK reports whether the probe succeeded.
func (o ProbeOutcome) IsOK() bool { return o.Kind == OutcomeOK }

// Anomalous outcomes are retried after the short delay instead of the full interval.
func (o ProbeOutcome) Anomalous() bool {
	return o.Kind == OutcomeTimedOut || o.Kind == OutcomeExecError
}

func (o ProbeOutcome) String() string {
	switch o.Kind {
	case OutcomeFailed:
		return fmt.Sprintf("failed(%d)", o.ExitCode)
	case OutcomeKilled:
		return fmt.Sprintf("killed_by_signal(%d)", int(o.Signal))
	default:
		return o.Kind.String()
	}
}

// PublishDecision tells the publisher what to do with the snapshot.
type PublishDecision int

const (
	PublishOk PublishDecision = iota
	PublishFailed
	Suppress
)

func (d PublishDecision) String() string {
	switch d {
	case PublishOk:
		return "publish_ok"
	case PublishFailed:
		return "publish_failed"
	case Suppress:
		return "suppress"
	default:
		return "unknown"
	}
}

func (d PublishDecision) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *PublishDecision) UnmarshalText(b []byte) error {
	for c := PublishOk; c <= Suppress; c++ {
		if c.String() == string(b) {
			*d = c
			return nil
		}
	}
	return fmt.Errorf("unknown publish decision %q", b)
}

// ProbeRecord is one completed cycle as kept in the probe history.
type ProbeRecord struct {
	CycleID   string          `json:"cycle_id"`
	Target    string          `json:"target"`
	Outcome   OutcomeKind     `json:"outcome"`
	ExitCode  int             `json:"exit_code,omitempty"`
	Signal    int             `json:"signal,omitempty"`
	ElapsedMS float64         `json:"elapsed_ms"`
	Decision  PublishDecision `json:"decision"`
	CheckedAt time.Time       `json:"checked_at"`
}
