//go:build unix

package probe

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/hamed0406/turnprobe/internal/domain"
)

// DefaultPollInterval bounds how long a running probe can hide a shutdown request.
const DefaultPollInterval = 100 * time.Millisecond

// outputLimit caps how much probe output is kept for diagnostics.
const outputLimit = 4096

// ProcessRunner launches the probe as a child process in its own process
// group and escalates SIGTERM -> SIGKILL to the whole group on timeout or
// shutdown. The child is always reaped before Run returns.
type ProcessRunner struct {
	Logger       *zap.Logger
	Stop         StopFlag
	PollInterval time.Duration
}

func NewProcessRunner(logger *zap.Logger, stop StopFlag) *ProcessRunner {
	return &ProcessRunner{Logger: logger, Stop: stop, PollInterval: DefaultPollInterval}
}

func (r *ProcessRunner) Run(c Command, soft, hard time.Duration) (Result, error) {
	start := time.Now()

	out := &tailBuffer{max: outputLimit}
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// A grandchild holding the output pipe must not keep Wait from returning.
	cmd.WaitDelay = hard

	if err := cmd.Start(); err != nil {
		return Result{Outcome: domain.ExecError(), Elapsed: time.Since(start)},
			fmt.Errorf("start %s: %w", c.Path, err)
	}
	pid := cmd.Process.Pid
	r.Logger.Debug("probe_started", zap.Int("pid", pid), zap.Stringer("cmd", c))

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	poll := r.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	tick := time.NewTicker(poll)
	defer tick.Stop()
	softTimer := time.NewTimer(soft)
	defer softTimer.Stop()

	var (
		hardTimer   *time.Timer
		hardC       <-chan time.Time
		timedOut    bool
		interrupted bool
	)
	defer func() {
		if hardTimer != nil {
			hardTimer.Stop()
		}
	}()
	terminate := func(reason string) {
		r.Logger.Warn("probe_terminate",
			zap.Int("pid", pid),
			zap.String("reason", reason),
			zap.Duration("elapsed", time.Since(start)),
		)
		signalGroup(pid, unix.SIGTERM)
		hardTimer = time.NewTimer(hard)
		hardC = hardTimer.C
	}

	for {
		select {
		case <-done:
			return r.finish(cmd, out, start, timedOut, interrupted)

		case <-softTimer.C:
			if hardC == nil {
				timedOut = true
				terminate("soft_timeout")
			}

		case <-tick.C:
			if hardC == nil && r.Stop != nil && r.Stop.Stopping() {
				interrupted = true
				terminate("shutdown")
			}

		case <-hardC:
			r.Logger.Warn("probe_kill", zap.Int("pid", pid), zap.Duration("elapsed", time.Since(start)))
			signalGroup(pid, unix.SIGKILL)
			<-done
			return r.finish(cmd, out, start, timedOut, interrupted)
		}
	}
}

func (r *ProcessRunner) finish(cmd *exec.Cmd, out *tailBuffer, start time.Time, timedOut, interrupted bool) (Result, error) {
	res := Result{Outcome: classify(cmd.ProcessState), Elapsed: time.Since(start)}
	if timedOut || interrupted {
		res.Outcome = domain.TimedOut()
	}
	if !res.Outcome.IsOK() {
		r.Logger.Debug("probe_output",
			zap.Stringer("outcome", res.Outcome),
			zap.ByteString("tail", out.Bytes()),
		)
	}
	if interrupted {
		return res, ErrInterrupted
	}
	return res, nil
}

func classify(ps *os.ProcessState) domain.ProbeOutcome {
	if ps == nil {
		return domain.ExecError()
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return domain.KilledBySignal(ws.Signal())
	}
	if code := ps.ExitCode(); code != 0 {
		return domain.Failed(code)
	}
	return domain.OK()
}

// signalGroup signals every process in the child's group. ESRCH means the
// group is already gone.
func signalGroup(pid int, sig syscall.Signal) {
	if err := unix.Kill(-pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		_ = unix.Kill(pid, sig)
	}
}

// tailBuffer keeps the last max bytes written to it. exec.Cmd serializes
// writes when Stdout and Stderr are the same writer.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) Bytes() []byte { return t.buf }
