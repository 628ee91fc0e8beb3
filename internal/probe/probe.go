package probe

import (
	"errors"
	"time"

	"github.com/hamed0406/turnprobe/internal/domain"
)

// ErrInterrupted is returned by a Runner when a shutdown request was
// observed while the probe was running. The accompanying Result must not
// be published.
var ErrInterrupted = errors.New("probe interrupted by shutdown")

// StopFlag is polled by blocking waits to observe a shutdown request.
type StopFlag interface {
	Stopping() bool
}

// Result is the classified outcome of one probe run and how long it took.
type Result struct {
	Outcome domain.ProbeOutcome
	Elapsed time.Duration
}

// Runner runs a probe command under a soft/hard timeout escalation.
type Runner interface {
	Run(cmd Command, soft, hard time.Duration) (Result, error)
}
